package memory

import (
	"fmt"
	"sort"

	"icetrace/pkg/domain"
)

// record is satisfied by every domain entity through the embedded domain.Base.
type record interface {
	Identity() uint64
}

// table stores the records of one kind in creation order. Ids are strictly
// increasing along rows, and dense unless a snapshot carried a gap.
type table[T record] struct {
	kind domain.EntityType
	rows []T
}

func newTable[T record](kind domain.EntityType) table[T] {
	return table[T]{kind: kind}
}

func (t table[T]) get(id uint64) (T, bool) {
	var zero T
	if id < uint64(len(t.rows)) && t.rows[id].Identity() == id {
		return t.rows[id], true
	}
	i := sort.Search(len(t.rows), func(i int) bool { return t.rows[i].Identity() >= id })
	if i < len(t.rows) && t.rows[i].Identity() == id {
		return t.rows[i], true
	}
	return zero, false
}

func (t table[T]) has(id uint64) bool {
	_, ok := t.get(id)
	return ok
}

// put appends record under id. Records are immutable once written, so id must exceed every stored id.
func (t *table[T]) put(id uint64, rec T) error {
	if n := len(t.rows); n > 0 && t.rows[n-1].Identity() >= id {
		return fmt.Errorf("%s id %d out of sequence (last %d)", t.kind, id, t.rows[n-1].Identity())
	}
	if rec.Identity() != id {
		return fmt.Errorf("%s record carries id %d, expected %d", t.kind, rec.Identity(), id)
	}
	t.rows = append(t.rows, rec)
	return nil
}

func (t table[T]) all() []T {
	out := make([]T, len(t.rows))
	copy(out, t.rows)
	return out
}

func (t table[T]) len() int { return len(t.rows) }

// nextFree returns one past the highest stored id.
func (t table[T]) nextFree() uint64 {
	if n := len(t.rows); n > 0 {
		return t.rows[n-1].Identity() + 1
	}
	return 0
}

func (t table[T]) clone() table[T] {
	return table[T]{kind: t.kind, rows: t.rows[:len(t.rows):len(t.rows)]}
}

type memoryState struct {
	companies          table[domain.Company]
	machines           table[domain.Machine]
	recipes            table[domain.Recipe]
	recipeSteps        table[domain.RecipeStep]
	measureConstraints table[domain.MeasureConstraint]
	products           table[domain.Product]
	phases             table[domain.Phase]
	measures           table[domain.Measure]

	ids     idAllocator
	index   relationIndex
	journal []domain.JournalEntry
}

func newMemoryState() memoryState {
	return memoryState{
		companies:          newTable[domain.Company](domain.EntityCompany),
		machines:           newTable[domain.Machine](domain.EntityMachine),
		recipes:            newTable[domain.Recipe](domain.EntityRecipe),
		recipeSteps:        newTable[domain.RecipeStep](domain.EntityRecipeStep),
		measureConstraints: newTable[domain.MeasureConstraint](domain.EntityMeasureConstraint),
		products:           newTable[domain.Product](domain.EntityProduct),
		phases:             newTable[domain.Phase](domain.EntityPhase),
		measures:           newTable[domain.Measure](domain.EntityMeasure),
		ids:                newIDAllocator(),
		index:              newRelationIndex(),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		companies:          s.companies.clone(),
		machines:           s.machines.clone(),
		recipes:            s.recipes.clone(),
		recipeSteps:        s.recipeSteps.clone(),
		measureConstraints: s.measureConstraints.clone(),
		products:           s.products.clone(),
		phases:             s.phases.clone(),
		measures:           s.measures.clone(),
		ids:                s.ids.clone(),
		index:              s.index.clone(),
		journal:            s.journal[:len(s.journal):len(s.journal)],
	}
}

// exists reports whether a record of kind with id is stored.
func (s *memoryState) exists(kind domain.EntityType, id uint64) bool {
	switch kind {
	case domain.EntityCompany:
		return s.companies.has(id)
	case domain.EntityMachine:
		return s.machines.has(id)
	case domain.EntityRecipe:
		return s.recipes.has(id)
	case domain.EntityRecipeStep:
		return s.recipeSteps.has(id)
	case domain.EntityMeasureConstraint:
		return s.measureConstraints.has(id)
	case domain.EntityProduct:
		return s.products.has(id)
	case domain.EntityPhase:
		return s.phases.has(id)
	case domain.EntityMeasure:
		return s.measures.has(id)
	default:
		return false
	}
}

// lookup returns the stored record of kind with id.
func (s *memoryState) lookup(kind domain.EntityType, id uint64) (any, bool) {
	switch kind {
	case domain.EntityCompany:
		return s.companies.get(id)
	case domain.EntityMachine:
		return s.machines.get(id)
	case domain.EntityRecipe:
		return s.recipes.get(id)
	case domain.EntityRecipeStep:
		return s.recipeSteps.get(id)
	case domain.EntityMeasureConstraint:
		return s.measureConstraints.get(id)
	case domain.EntityProduct:
		return s.products.get(id)
	case domain.EntityPhase:
		return s.phases.get(id)
	case domain.EntityMeasure:
		return s.measures.get(id)
	default:
		return nil, false
	}
}

// total returns the number of stored records across all kinds.
func (s *memoryState) total() int {
	return s.companies.len() + s.machines.len() + s.recipes.len() + s.recipeSteps.len() +
		s.measureConstraints.len() + s.products.len() + s.phases.len() + s.measures.len()
}

// link appends childID under every parent referenced by record.
func (s *memoryState) link(rec any, childID uint64) {
	for _, ref := range domain.ParentRefs(rec) {
		s.index.append(ref.Relation, ref.ID, childID)
	}
}

// appendJournal chains record onto the journal.
func (s *memoryState) appendJournal(kind domain.EntityType, id uint64, rec any) error {
	prev := ""
	if n := len(s.journal); n > 0 {
		prev = s.journal[n-1].Digest
	}
	digest, err := domain.JournalDigest(prev, kind, id, rec)
	if err != nil {
		return err
	}
	s.journal = append(s.journal, domain.JournalEntry{
		Seq:      uint64(len(s.journal)),
		Entity:   kind,
		EntityID: id,
		Prev:     prev,
		Digest:   digest,
	})
	return nil
}
