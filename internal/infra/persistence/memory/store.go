// Package memory provides the in-memory registry store: per-kind id allocation,
// record tables, the relationship index and the hash-chained journal. The durable
// backends embed it and persist each candidate state before it is committed.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"icetrace/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store provides an in-memory transactional store for the registry.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *domain.RulesEngine
	nowFn  func() time.Time
	commit CommitHook
}

// CommitHook receives the candidate state of a transaction or restore while the
// write lock is held. A non-nil error aborts the commit and leaves the live state
// untouched.
type CommitHook func(ctx context.Context, candidate Snapshot) error

// Option customizes a Store.
type Option func(*Store)

// WithNow overrides the clock used to stamp CreatedAt.
func WithNow(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// WithCommitHook installs fn to run before every commit.
func WithCommitHook(fn CommitHook) Option {
	return func(s *Store) {
		s.commit = fn
	}
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot. The snapshot is
// rejected, leaving the current state in place, if it breaks referential closure
// or its journal fails to verify.
func (s *Store) ImportState(snapshot Snapshot) error {
	state, err := memoryStateFromSnapshot(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

// Restore verifies snapshot like ImportState, runs the commit hook on it and only
// then replaces the live state.
func (s *Store) Restore(ctx context.Context, snapshot Snapshot) error {
	state, err := memoryStateFromSnapshot(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.runCommitHook(ctx, state); err != nil {
		return err
	}
	s.state = state
	return nil
}

func (s *Store) runCommitHook(ctx context.Context, candidate memoryState) error {
	if s.commit == nil {
		return nil
	}
	return s.commit(ctx, snapshotFromMemoryState(candidate))
}

// RunInTransaction executes fn within a transactional copy of the store state and
// swaps it in only when fn succeeds, no rule blocks and the commit hook accepts it.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, result, err := s.execute(ctx, fn)
	if err != nil {
		return result, err
	}
	if err := s.runCommitHook(ctx, tx.state); err != nil {
		return result, err
	}
	s.state = tx.state
	return result, nil
}

// DryRun executes fn exactly as RunInTransaction would and discards the outcome.
// It only needs the read lock because the live state is never touched.
func (s *Store) DryRun(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, result, err := s.execute(ctx, fn)
	return result, err
}

func (s *Store) execute(ctx context.Context, fn func(tx domain.Transaction) error) (*transaction, domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Result{}, err
	}
	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return nil, domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil && len(tx.changes) > 0 {
		res, err := s.engine.Evaluate(ctx, newTransactionView(&tx.state), tx.changes)
		if err != nil {
			return nil, domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return nil, res, domain.RuleViolationError{Result: res}
		}
	}
	return tx, result, nil
}

// View executes fn against the committed state current at the time of the call.
// Committed states are replaced wholesale and never mutated, so no copy is taken.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	committed := s.state
	s.mu.RUnlock()
	return fn(newTransactionView(&committed))
}

// transaction represents a mutation set applied to a private copy of the store state.
type transaction struct {
	state   memoryState
	changes []domain.Change
	now     time.Time
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() domain.TransactionView {
	return newTransactionView(&tx.state)
}

// checkParents verifies every parent referenced by rec exists.
func (tx *transaction) checkParents(rec any) error {
	for _, ref := range domain.ParentRefs(rec) {
		parent := ref.Relation.Parent()
		if !tx.state.exists(parent, ref.ID) {
			return domain.ReferenceNotFoundError{Entity: parent, ID: ref.ID}
		}
	}
	return nil
}

func requireText(kind domain.EntityType, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.InvalidArgumentError{Entity: kind, Field: field}
	}
	return nil
}

// admit runs the pre-allocation checks. Nothing is reserved until both pass.
func (tx *transaction) admit(kind domain.EntityType, rec any, name string) error {
	if err := tx.checkParents(rec); err != nil {
		return err
	}
	return requireText(kind, "name", name)
}

func (tx *transaction) base(kind domain.EntityType) domain.Base {
	return domain.Base{ID: tx.state.ids.Next(kind), CreatedAt: tx.now}
}

// store writes rec via put, then indexes, journals and records the change.
func (tx *transaction) store(kind domain.EntityType, id uint64, rec any, put func() error) error {
	if err := put(); err != nil {
		return err
	}
	tx.state.link(rec, id)
	if err := tx.state.appendJournal(kind, id, rec); err != nil {
		return err
	}
	tx.changes = append(tx.changes, domain.Change{Entity: kind, Action: domain.ActionCreate, After: rec})
	return nil
}

// AddCompany stores a new company.
func (tx *transaction) AddCompany(c domain.Company) (domain.Company, error) {
	if err := tx.admit(domain.EntityCompany, c, c.Name); err != nil {
		return domain.Company{}, err
	}
	c.Base = tx.base(domain.EntityCompany)
	if err := tx.store(domain.EntityCompany, c.ID, c, func() error { return tx.state.companies.put(c.ID, c) }); err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

// AddMachine stores a new machine under its company.
func (tx *transaction) AddMachine(m domain.Machine) (domain.Machine, error) {
	if err := tx.admit(domain.EntityMachine, m, m.Name); err != nil {
		return domain.Machine{}, err
	}
	m.Base = tx.base(domain.EntityMachine)
	if err := tx.store(domain.EntityMachine, m.ID, m, func() error { return tx.state.machines.put(m.ID, m) }); err != nil {
		return domain.Machine{}, err
	}
	return m, nil
}

// AddRecipe stores a new recipe under its company.
func (tx *transaction) AddRecipe(r domain.Recipe) (domain.Recipe, error) {
	if err := tx.admit(domain.EntityRecipe, r, r.Name); err != nil {
		return domain.Recipe{}, err
	}
	r.Base = tx.base(domain.EntityRecipe)
	if err := tx.store(domain.EntityRecipe, r.ID, r, func() error { return tx.state.recipes.put(r.ID, r) }); err != nil {
		return domain.Recipe{}, err
	}
	return r, nil
}

// AddRecipeStep appends a step to its recipe.
func (tx *transaction) AddRecipeStep(st domain.RecipeStep) (domain.RecipeStep, error) {
	if err := tx.admit(domain.EntityRecipeStep, st, st.Name); err != nil {
		return domain.RecipeStep{}, err
	}
	st.Base = tx.base(domain.EntityRecipeStep)
	if err := tx.store(domain.EntityRecipeStep, st.ID, st, func() error { return tx.state.recipeSteps.put(st.ID, st) }); err != nil {
		return domain.RecipeStep{}, err
	}
	return st, nil
}

// AddMeasureConstraint stores a constraint for a recipe step. Bounds are kept as given.
func (tx *transaction) AddMeasureConstraint(c domain.MeasureConstraint) (domain.MeasureConstraint, error) {
	if err := tx.admit(domain.EntityMeasureConstraint, c, c.Name); err != nil {
		return domain.MeasureConstraint{}, err
	}
	c.Base = tx.base(domain.EntityMeasureConstraint)
	if err := tx.store(domain.EntityMeasureConstraint, c.ID, c, func() error { return tx.state.measureConstraints.put(c.ID, c) }); err != nil {
		return domain.MeasureConstraint{}, err
	}
	return c, nil
}

// AddProduct stores a new product made by a company following a recipe.
func (tx *transaction) AddProduct(p domain.Product) (domain.Product, error) {
	if err := tx.admit(domain.EntityProduct, p, p.Name); err != nil {
		return domain.Product{}, err
	}
	p.Base = tx.base(domain.EntityProduct)
	if err := tx.store(domain.EntityProduct, p.ID, p, func() error { return tx.state.products.put(p.ID, p) }); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// AddPhase appends a phase to its product.
func (tx *transaction) AddPhase(ph domain.Phase) (domain.Phase, error) {
	if err := tx.admit(domain.EntityPhase, ph, ph.Name); err != nil {
		return domain.Phase{}, err
	}
	ph.Base = tx.base(domain.EntityPhase)
	if err := tx.store(domain.EntityPhase, ph.ID, ph, func() error { return tx.state.phases.put(ph.ID, ph) }); err != nil {
		return domain.Phase{}, err
	}
	return ph, nil
}

// AddMeasure appends a measure to its phase.
func (tx *transaction) AddMeasure(m domain.Measure) (domain.Measure, error) {
	if err := tx.admit(domain.EntityMeasure, m, m.Name); err != nil {
		return domain.Measure{}, err
	}
	m.Base = tx.base(domain.EntityMeasure)
	if err := tx.store(domain.EntityMeasure, m.ID, m, func() error { return tx.state.measures.put(m.ID, m) }); err != nil {
		return domain.Measure{}, err
	}
	return m, nil
}
