package memory

import (
	"errors"
	"fmt"

	"icetrace/pkg/domain"
)

// Snapshot captures a point-in-time copy of the registry. Record slices are in
// creation order; the relationship index is rebuilt from them on import.
type Snapshot struct {
	Companies          []domain.Company              `json:"companies"`
	Machines           []domain.Machine              `json:"machines"`
	Recipes            []domain.Recipe               `json:"recipes"`
	RecipeSteps        []domain.RecipeStep           `json:"recipe_steps"`
	MeasureConstraints []domain.MeasureConstraint    `json:"measure_constraints"`
	Products           []domain.Product              `json:"products"`
	Phases             []domain.Phase                `json:"phases"`
	Measures           []domain.Measure              `json:"measures"`
	Counters           map[domain.EntityType]uint64 `json:"counters,omitempty"`
	Journal            []domain.JournalEntry         `json:"journal,omitempty"`
}

// Empty reports whether the snapshot carries no records, counters or journal entries.
func (s Snapshot) Empty() bool {
	return len(s.Companies) == 0 && len(s.Machines) == 0 && len(s.Recipes) == 0 &&
		len(s.RecipeSteps) == 0 && len(s.MeasureConstraints) == 0 && len(s.Products) == 0 &&
		len(s.Phases) == 0 && len(s.Measures) == 0 && len(s.Counters) == 0 && len(s.Journal) == 0
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	journal := make([]domain.JournalEntry, len(state.journal))
	copy(journal, state.journal)
	return Snapshot{
		Companies:          state.companies.all(),
		Machines:           state.machines.all(),
		Recipes:            state.recipes.all(),
		RecipeSteps:        state.recipeSteps.all(),
		MeasureConstraints: state.measureConstraints.all(),
		Products:           state.products.all(),
		Phases:             state.phases.all(),
		Measures:           state.measures.all(),
		Counters:           state.ids.counters(),
		Journal:            journal,
	}
}

// memoryStateFromSnapshot replays the snapshot through the same checks a live add
// performs, so a corrupted or hand-edited snapshot cannot break referential closure.
func memoryStateFromSnapshot(s Snapshot) (memoryState, error) {
	state := newMemoryState()
	var errs []error
	load := func(kind domain.EntityType, id uint64, rec any, put func() error) {
		for _, ref := range domain.ParentRefs(rec) {
			if !state.exists(ref.Relation.Parent(), ref.ID) {
				errs = append(errs, fmt.Errorf("%s %d: %w", kind, id, domain.ReferenceNotFoundError{Entity: ref.Relation.Parent(), ID: ref.ID}))
				return
			}
		}
		if err := put(); err != nil {
			errs = append(errs, err)
			return
		}
		state.link(rec, id)
	}
	for _, r := range s.Companies {
		load(domain.EntityCompany, r.ID, r, func() error { return state.companies.put(r.ID, r) })
	}
	for _, r := range s.Machines {
		load(domain.EntityMachine, r.ID, r, func() error { return state.machines.put(r.ID, r) })
	}
	for _, r := range s.Recipes {
		load(domain.EntityRecipe, r.ID, r, func() error { return state.recipes.put(r.ID, r) })
	}
	for _, r := range s.RecipeSteps {
		load(domain.EntityRecipeStep, r.ID, r, func() error { return state.recipeSteps.put(r.ID, r) })
	}
	for _, r := range s.MeasureConstraints {
		load(domain.EntityMeasureConstraint, r.ID, r, func() error { return state.measureConstraints.put(r.ID, r) })
	}
	for _, r := range s.Products {
		load(domain.EntityProduct, r.ID, r, func() error { return state.products.put(r.ID, r) })
	}
	for _, r := range s.Phases {
		load(domain.EntityPhase, r.ID, r, func() error { return state.phases.put(r.ID, r) })
	}
	for _, r := range s.Measures {
		load(domain.EntityMeasure, r.ID, r, func() error { return state.measures.put(r.ID, r) })
	}
	if len(errs) > 0 {
		return memoryState{}, errors.Join(errs...)
	}

	state.ids.advance(domain.EntityCompany, state.companies.nextFree())
	state.ids.advance(domain.EntityMachine, state.machines.nextFree())
	state.ids.advance(domain.EntityRecipe, state.recipes.nextFree())
	state.ids.advance(domain.EntityRecipeStep, state.recipeSteps.nextFree())
	state.ids.advance(domain.EntityMeasureConstraint, state.measureConstraints.nextFree())
	state.ids.advance(domain.EntityProduct, state.products.nextFree())
	state.ids.advance(domain.EntityPhase, state.phases.nextFree())
	state.ids.advance(domain.EntityMeasure, state.measures.nextFree())
	for kind, next := range s.Counters {
		state.ids.advance(kind, next)
	}

	journal := make([]domain.JournalEntry, len(s.Journal))
	copy(journal, s.Journal)
	if err := domain.VerifyJournal(journal, state.lookup); err != nil {
		return memoryState{}, err
	}
	if len(journal) != state.total() {
		return memoryState{}, domain.JournalBrokenError{
			Seq:    uint64(len(journal)),
			Reason: fmt.Sprintf("journal covers %d of %d records", len(journal), state.total()),
		}
	}
	state.journal = journal
	return state, nil
}
