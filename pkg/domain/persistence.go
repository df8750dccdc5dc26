package domain

import "context"

// Transaction exposes the registry operations a persistence implementation
// must support within an atomic scope. Each Add validates parent references,
// allocates the next id for its kind, stores the record and indexes it under
// every parent.
type Transaction interface {
	Snapshot() TransactionView
	AddCompany(Company) (Company, error)
	AddMachine(Machine) (Machine, error)
	AddRecipe(Recipe) (Recipe, error)
	AddRecipeStep(RecipeStep) (RecipeStep, error)
	AddMeasureConstraint(MeasureConstraint) (MeasureConstraint, error)
	AddProduct(Product) (Product, error)
	AddPhase(Phase) (Phase, error)
	AddMeasure(Measure) (Measure, error)
}

// TransactionView provides read-only access to registry state for rules and queries.
type TransactionView interface {
	FindCompany(id uint64) (Company, bool)
	FindMachine(id uint64) (Machine, bool)
	FindRecipe(id uint64) (Recipe, bool)
	FindRecipeStep(id uint64) (RecipeStep, bool)
	FindMeasureConstraint(id uint64) (MeasureConstraint, bool)
	FindProduct(id uint64) (Product, bool)
	FindPhase(id uint64) (Phase, bool)
	FindMeasure(id uint64) (Measure, bool)

	ListCompanies() []Company
	ListMachines() []Machine
	ListRecipes() []Recipe
	ListRecipeSteps() []RecipeStep
	ListMeasureConstraints() []MeasureConstraint
	ListProducts() []Product
	ListPhases() []Phase
	ListMeasures() []Measure

	// Children returns the ids appended under parentID for the relation, in insertion order.
	Children(relation Relation, parentID uint64) []uint64
	// NextID returns the id the next successful add of kind would receive.
	NextID(kind EntityType) uint64
	Journal() []JournalEntry
}

// PersistentStore is the abstraction implemented by every backend.
type PersistentStore interface {
	// RunInTransaction applies fn atomically; state is untouched when fn or a blocking rule fails.
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	// DryRun executes fn and the rules exactly as RunInTransaction would, then discards the effects.
	DryRun(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
