package memory

import "icetrace/pkg/domain"

// transactionView exposes a read-only snapshot of the state to rules and queries.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) domain.TransactionView {
	return transactionView{state: state}
}

// FindCompany retrieves a company by id.
func (v transactionView) FindCompany(id uint64) (domain.Company, bool) {
	return v.state.companies.get(id)
}

// FindMachine retrieves a machine by id.
func (v transactionView) FindMachine(id uint64) (domain.Machine, bool) {
	return v.state.machines.get(id)
}

// FindRecipe retrieves a recipe by id.
func (v transactionView) FindRecipe(id uint64) (domain.Recipe, bool) {
	return v.state.recipes.get(id)
}

// FindRecipeStep retrieves a recipe step by id.
func (v transactionView) FindRecipeStep(id uint64) (domain.RecipeStep, bool) {
	return v.state.recipeSteps.get(id)
}

// FindMeasureConstraint retrieves a measure constraint by id.
func (v transactionView) FindMeasureConstraint(id uint64) (domain.MeasureConstraint, bool) {
	return v.state.measureConstraints.get(id)
}

// FindProduct retrieves a product by id.
func (v transactionView) FindProduct(id uint64) (domain.Product, bool) {
	return v.state.products.get(id)
}

// FindPhase retrieves a phase by id.
func (v transactionView) FindPhase(id uint64) (domain.Phase, bool) {
	return v.state.phases.get(id)
}

// FindMeasure retrieves a measure by id.
func (v transactionView) FindMeasure(id uint64) (domain.Measure, bool) {
	return v.state.measures.get(id)
}

func (v transactionView) ListCompanies() []domain.Company { return v.state.companies.all() }
func (v transactionView) ListMachines() []domain.Machine  { return v.state.machines.all() }
func (v transactionView) ListRecipes() []domain.Recipe    { return v.state.recipes.all() }
func (v transactionView) ListRecipeSteps() []domain.RecipeStep {
	return v.state.recipeSteps.all()
}
func (v transactionView) ListMeasureConstraints() []domain.MeasureConstraint {
	return v.state.measureConstraints.all()
}
func (v transactionView) ListProducts() []domain.Product { return v.state.products.all() }
func (v transactionView) ListPhases() []domain.Phase     { return v.state.phases.all() }
func (v transactionView) ListMeasures() []domain.Measure { return v.state.measures.all() }

// Children returns the child ids indexed under parentID for rel, in insertion order.
func (v transactionView) Children(rel domain.Relation, parentID uint64) []uint64 {
	return v.state.index.children(rel, parentID)
}

// NextID returns the id the next successful add of kind would receive.
func (v transactionView) NextID(kind domain.EntityType) uint64 {
	return v.state.ids.Peek(kind)
}

// Journal returns a copy of the hash chain.
func (v transactionView) Journal() []domain.JournalEntry {
	out := make([]domain.JournalEntry, len(v.state.journal))
	copy(out, v.state.journal)
	return out
}
