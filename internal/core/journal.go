package core

import (
	"context"

	"icetrace/pkg/domain"
)

// JournalReport summarises a verified journal.
type JournalReport struct {
	Entries int    `json:"entries"`
	Head    string `json:"head"`
}

// VerifyJournal recomputes the journal chain against the live records. It
// fails with an error matching domain.ErrJournalBroken when a digest does not
// match or when a stored record has no journal entry.
func (s *Service) VerifyJournal(ctx context.Context) (JournalReport, error) {
	var report JournalReport
	_, err := s.observe(ctx, "verify_journal", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			entries := v.Journal()
			if err := domain.VerifyJournal(entries, viewLookup(v)); err != nil {
				return err
			}
			if total := recordCount(v); total != len(entries) {
				return domain.JournalBrokenError{
					Seq:    uint64(len(entries)),
					Reason: "records without journal entries",
				}
			}
			report.Entries = len(entries)
			if len(entries) > 0 {
				report.Head = entries[len(entries)-1].Digest
			}
			return nil
		})
	})
	if err != nil {
		return JournalReport{}, err
	}
	return report, nil
}

func viewLookup(v TransactionView) func(EntityType, uint64) (any, bool) {
	return func(kind EntityType, id uint64) (any, bool) {
		switch kind {
		case EntityCompany:
			return v.FindCompany(id)
		case EntityMachine:
			return v.FindMachine(id)
		case EntityRecipe:
			return v.FindRecipe(id)
		case EntityRecipeStep:
			return v.FindRecipeStep(id)
		case EntityMeasureConstraint:
			return v.FindMeasureConstraint(id)
		case EntityProduct:
			return v.FindProduct(id)
		case EntityPhase:
			return v.FindPhase(id)
		case EntityMeasure:
			return v.FindMeasure(id)
		default:
			return nil, false
		}
	}
}

func recordCount(v TransactionView) int {
	return len(v.ListCompanies()) +
		len(v.ListMachines()) +
		len(v.ListRecipes()) +
		len(v.ListRecipeSteps()) +
		len(v.ListMeasureConstraints()) +
		len(v.ListProducts()) +
		len(v.ListPhases()) +
		len(v.ListMeasures())
}
