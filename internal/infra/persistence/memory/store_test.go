package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"icetrace/pkg/domain"
)

func fixedNow() time.Time { return time.Date(2024, 5, 27, 9, 0, 0, 0, time.UTC) }

func newTestStore() *Store {
	return NewStore(nil, WithNow(fixedNow))
}

func mustRun(t *testing.T, s *Store, fn func(tx domain.Transaction) error) {
	t.Helper()
	if _, err := s.RunInTransaction(context.Background(), fn); err != nil {
		t.Fatalf("run transaction: %v", err)
	}
}

func seedCompanyAndMachine(t *testing.T, s *Store) (domain.Company, domain.Machine) {
	t.Helper()
	var company domain.Company
	var machine domain.Machine
	mustRun(t, s, func(tx domain.Transaction) error {
		var err error
		if company, err = tx.AddCompany(domain.Company{Name: "azienda di giovanni"}); err != nil {
			return err
		}
		machine, err = tx.AddMachine(domain.Machine{CompanyID: company.ID, Name: "tornio", Description: "tornio machine"})
		return err
	})
	return company, machine
}

func TestIDsArePerKindAndSequential(t *testing.T) {
	s := newTestStore()
	var ids []uint64
	mustRun(t, s, func(tx domain.Transaction) error {
		for _, name := range []string{"A", "B", "C"} {
			c, err := tx.AddCompany(domain.Company{Name: name})
			if err != nil {
				return err
			}
			ids = append(ids, c.ID)
		}
		m, err := tx.AddMachine(domain.Machine{CompanyID: 2, Name: "lathe"})
		if err != nil {
			return err
		}
		if m.ID != 0 {
			t.Fatalf("expected machine counter to start at 0, got %d", m.ID)
		}
		return nil
	})
	for i, id := range ids {
		if id != uint64(i) {
			t.Fatalf("expected company id %d, got %d", i, id)
		}
	}
	mustRun(t, s, func(tx domain.Transaction) error {
		c, err := tx.AddCompany(domain.Company{Name: "D"})
		if err != nil {
			return err
		}
		if c.ID != 3 {
			t.Fatalf("expected id 3 after commit, got %d", c.ID)
		}
		if !c.CreatedAt.Equal(fixedNow()) {
			t.Fatalf("expected CreatedAt from clock, got %v", c.CreatedAt)
		}
		return nil
	})
}

func TestFailedAddConsumesNoID(t *testing.T) {
	s := newTestStore()
	company, _ := seedCompanyAndMachine(t, s)

	_, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.AddMachine(domain.Machine{CompanyID: 99, Name: "ghost"})
		return err
	})
	var refErr domain.ReferenceNotFoundError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected ReferenceNotFoundError, got %v", err)
	}
	if refErr.Entity != domain.EntityCompany || refErr.ID != 99 {
		t.Fatalf("unexpected reference error: %+v", refErr)
	}
	if !errors.Is(err, domain.ErrReferenceNotFound) {
		t.Fatalf("expected errors.Is match")
	}

	_, err = s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.AddMachine(domain.Machine{CompanyID: company.ID, Name: "  "})
		return err
	})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	mustRun(t, s, func(tx domain.Transaction) error {
		m, err := tx.AddMachine(domain.Machine{CompanyID: company.ID, Name: "fresa"})
		if err != nil {
			return err
		}
		if m.ID != 1 {
			t.Fatalf("failed adds must not consume ids: got %d", m.ID)
		}
		return nil
	})
}

func TestTransactionRollsBackOnError(t *testing.T) {
	s := newTestStore()
	seedCompanyAndMachine(t, s)
	boom := errors.New("boom")
	_, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.AddCompany(domain.Company{Name: "partial"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	_ = s.View(context.Background(), func(v domain.TransactionView) error {
		if got := len(v.ListCompanies()); got != 1 {
			t.Fatalf("expected rollback to keep 1 company, got %d", got)
		}
		if v.NextID(domain.EntityCompany) != 1 {
			t.Fatalf("expected counter untouched, got %d", v.NextID(domain.EntityCompany))
		}
		if got := len(v.Journal()); got != 2 {
			t.Fatalf("expected journal of 2, got %d", got)
		}
		return nil
	})
}

func TestDryRunMatchesCommitAndLeavesStateUntouched(t *testing.T) {
	s := newTestStore()
	company, _ := seedCompanyAndMachine(t, s)
	ctx := context.Background()

	var preview domain.Recipe
	if _, err := s.DryRun(ctx, func(tx domain.Transaction) error {
		var err error
		preview, err = tx.AddRecipe(domain.Recipe{CompanyID: company.ID, Name: "ricetta 1"})
		return err
	}); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	_ = s.View(ctx, func(v domain.TransactionView) error {
		if len(v.ListRecipes()) != 0 {
			t.Fatalf("dry run must not store records")
		}
		if len(v.Children(domain.RelationCompanyRecipes, company.ID)) != 0 {
			t.Fatalf("dry run must not touch the index")
		}
		return nil
	})

	var committed domain.Recipe
	mustRun(t, s, func(tx domain.Transaction) error {
		var err error
		committed, err = tx.AddRecipe(domain.Recipe{CompanyID: company.ID, Name: "ricetta 1"})
		return err
	})
	if preview.ID != committed.ID {
		t.Fatalf("dry run id %d differs from committed id %d", preview.ID, committed.ID)
	}
}

func TestChildrenPreserveInsertionOrder(t *testing.T) {
	s := newTestStore()
	company, machine := seedCompanyAndMachine(t, s)
	var recipe domain.Recipe
	mustRun(t, s, func(tx domain.Transaction) error {
		var err error
		recipe, err = tx.AddRecipe(domain.Recipe{CompanyID: company.ID, Name: "cube"})
		return err
	})
	for i := 0; i < 5; i++ {
		mustRun(t, s, func(tx domain.Transaction) error {
			_, err := tx.AddRecipeStep(domain.RecipeStep{RecipeID: recipe.ID, MachineID: machine.ID, Name: "step"})
			return err
		})
	}
	_ = s.View(context.Background(), func(v domain.TransactionView) error {
		ids := v.Children(domain.RelationRecipeSteps, recipe.ID)
		if len(ids) != 5 {
			t.Fatalf("expected 5 steps, got %d", len(ids))
		}
		for i, id := range ids {
			if id != uint64(i) {
				t.Fatalf("expected step %d at position %d, got %d", i, i, id)
			}
		}
		if got := v.Children(domain.RelationMachineRecipeSteps, machine.ID); len(got) != 5 {
			t.Fatalf("expected machine index to carry 5 steps, got %d", len(got))
		}
		if got := v.Children(domain.RelationRecipeSteps, 42); got != nil {
			t.Fatalf("expected nil for unknown parent, got %v", got)
		}
		return nil
	})
}

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block_all" }

func (blockAllRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for range changes {
		res.Violations = append(res.Violations, domain.Violation{Rule: "block_all", Severity: domain.SeverityBlock})
	}
	return res, nil
}

func TestBlockingRuleAbortsCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockAllRule{})
	s := NewStore(engine)
	res, err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.AddCompany(domain.Company{Name: "blocked"})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result to be returned")
	}
	if got := len(s.ExportState().Companies); got != 0 {
		t.Fatalf("expected nothing committed, got %d", got)
	}
}

func TestSnapshotRoundTripRebuildsIndex(t *testing.T) {
	s := newTestStore()
	company, machine := seedCompanyAndMachine(t, s)
	mustRun(t, s, func(tx domain.Transaction) error {
		recipe, err := tx.AddRecipe(domain.Recipe{CompanyID: company.ID, Name: "r"})
		if err != nil {
			return err
		}
		step, err := tx.AddRecipeStep(domain.RecipeStep{RecipeID: recipe.ID, MachineID: machine.ID, Name: "s"})
		if err != nil {
			return err
		}
		_, err = tx.AddMeasureConstraint(domain.MeasureConstraint{RecipeStepID: step.ID, MachineID: machine.ID, Name: "c", MinMeasure: 1, MaxMeasure: -1})
		return err
	})
	snapshot := s.ExportState()

	restored := newTestStore()
	if err := restored.ImportState(snapshot); err != nil {
		t.Fatalf("import: %v", err)
	}
	_ = restored.View(context.Background(), func(v domain.TransactionView) error {
		if got := v.Children(domain.RelationCompanyMachines, company.ID); len(got) != 1 {
			t.Fatalf("expected rebuilt machine index, got %v", got)
		}
		c, ok := v.FindMeasureConstraint(0)
		if !ok || c.MinMeasure != 1 || c.MaxMeasure != -1 {
			t.Fatalf("expected inverted bounds preserved, got %+v", c)
		}
		if v.NextID(domain.EntityMeasureConstraint) != 1 {
			t.Fatalf("expected allocator restored")
		}
		return nil
	})
}

func TestImportRejectsTamperedSnapshot(t *testing.T) {
	s := newTestStore()
	seedCompanyAndMachine(t, s)
	snapshot := s.ExportState()
	snapshot.Companies[0].Name = "someone else"

	restored := newTestStore()
	err := restored.ImportState(snapshot)
	if !errors.Is(err, domain.ErrJournalBroken) {
		t.Fatalf("expected journal verification failure, got %v", err)
	}
	if len(restored.ExportState().Companies) != 0 {
		t.Fatalf("rejected import must leave state untouched")
	}
}

func TestImportRejectsDanglingReference(t *testing.T) {
	snapshot := Snapshot{
		Machines: []domain.Machine{{Base: domain.Base{ID: 0}, CompanyID: 7, Name: "orphan"}},
	}
	err := newTestStore().ImportState(snapshot)
	if !errors.Is(err, domain.ErrReferenceNotFound) {
		t.Fatalf("expected reference error, got %v", err)
	}
}

func TestImportHonoursCountersAboveRecords(t *testing.T) {
	s := newTestStore()
	if err := s.ImportState(Snapshot{Counters: map[domain.EntityType]uint64{domain.EntityCompany: 5}}); err != nil {
		t.Fatalf("import: %v", err)
	}
	mustRun(t, s, func(tx domain.Transaction) error {
		c, err := tx.AddCompany(domain.Company{Name: "after gap"})
		if err != nil {
			return err
		}
		if c.ID != 5 {
			t.Fatalf("expected id 5, got %d", c.ID)
		}
		return nil
	})
	_ = s.View(context.Background(), func(v domain.TransactionView) error {
		if _, ok := v.FindCompany(5); !ok {
			t.Fatalf("expected company 5 to be found")
		}
		if _, ok := v.FindCompany(0); ok {
			t.Fatalf("expected no company 0")
		}
		return nil
	})
}

func TestCancelledContextIsRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestStore().RunInTransaction(ctx, func(domain.Transaction) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCommitHookSeesCandidateAndCanReject(t *testing.T) {
	ctx := context.Background()
	var seen []Snapshot
	fail := false
	s := NewStore(nil, WithNow(fixedNow), WithCommitHook(func(_ context.Context, candidate Snapshot) error {
		if fail {
			return errors.New("disk full")
		}
		seen = append(seen, candidate)
		return nil
	}))
	seedCompanyAndMachine(t, s)
	if len(seen) != 1 || len(seen[0].Companies) != 1 || len(seen[0].Machines) != 1 {
		t.Fatalf("expected hook to receive the committed records, got %+v", seen)
	}

	fail = true
	_, err := s.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.AddCompany(domain.Company{Name: "rejected"})
		return err
	})
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("expected hook error, got %v", err)
	}
	_ = s.View(ctx, func(v domain.TransactionView) error {
		if _, ok := v.FindCompany(1); ok {
			t.Fatalf("rejected commit must not be visible")
		}
		if next := v.NextID(domain.EntityCompany); next != 1 {
			t.Fatalf("rejected commit consumed an id: next %d", next)
		}
		if n := len(v.Journal()); n != 2 {
			t.Fatalf("rejected commit reached the journal: %d entries", n)
		}
		return nil
	})

	if _, err := s.DryRun(ctx, func(tx domain.Transaction) error {
		_, err := tx.AddCompany(domain.Company{Name: "simulated"})
		return err
	}); err != nil {
		t.Fatalf("dry run must not invoke the commit hook: %v", err)
	}
}

func TestRestoreRunsCommitHookBeforeSwap(t *testing.T) {
	ctx := context.Background()
	source := newTestStore()
	seedCompanyAndMachine(t, source)

	hookErr := errors.New("write failed")
	target := NewStore(nil, WithCommitHook(func(context.Context, Snapshot) error { return hookErr }))
	if err := target.Restore(ctx, source.ExportState()); !errors.Is(err, hookErr) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if !target.ExportState().Empty() {
		t.Fatalf("failed restore must leave state untouched")
	}

	plain := newTestStore()
	if err := plain.Restore(ctx, source.ExportState()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := plain.ExportState().Machines; len(got) != 1 || got[0].Name != "tornio" {
		t.Fatalf("expected restored machine, got %+v", got)
	}
}

func TestViewIsIsolatedFromLaterCommits(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	company, _ := seedCompanyAndMachine(t, s)
	err := s.View(ctx, func(v domain.TransactionView) error {
		mustRun(t, s, func(tx domain.Transaction) error {
			_, err := tx.AddMachine(domain.Machine{CompanyID: company.ID, Name: "forno"})
			return err
		})
		if ids := v.Children(domain.RelationCompanyMachines, company.ID); len(ids) != 1 {
			t.Fatalf("view observed a later commit: %v", ids)
		}
		if _, ok := v.FindMachine(1); ok {
			t.Fatalf("view observed machine 1 committed after it was opened")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	_ = s.View(ctx, func(v domain.TransactionView) error {
		if ids := v.Children(domain.RelationCompanyMachines, company.ID); len(ids) != 2 {
			t.Fatalf("expected both machines in a fresh view, got %v", ids)
		}
		return nil
	})
}

func TestSnapshotEmpty(t *testing.T) {
	if !(Snapshot{}).Empty() {
		t.Fatalf("zero snapshot should be empty")
	}
	if (Snapshot{Counters: map[domain.EntityType]uint64{domain.EntityCompany: 2}}).Empty() {
		t.Fatalf("counters alone make a snapshot non-empty")
	}
	s := newTestStore()
	seedCompanyAndMachine(t, s)
	if s.ExportState().Empty() {
		t.Fatalf("seeded snapshot should not be empty")
	}
}
