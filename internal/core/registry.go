package core

import (
	"context"
	"fmt"

	"icetrace/pkg/domain"
)

type record interface {
	Identity() uint64
}

func addRecord[T record](ctx context.Context, s *Service, kind EntityType, in T, insert func(Transaction, T) (T, error)) (T, Result, error) {
	op := "add_" + string(kind)
	var (
		created T
		res     Result
	)
	duration, err := s.observe(ctx, op, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = insert(tx, in)
			return err
		})
		return err
	})
	if err != nil {
		s.recordAuditError(ctx, op, kind, err, duration)
		var zero T
		return zero, res, err
	}
	s.logViolations(op, res)
	s.recordAuditSuccess(ctx, op, kind, created.Identity(), duration)
	s.publishAdded(kind, created.Identity(), created)
	return created, res, nil
}

func simulateRecord[T record](ctx context.Context, s *Service, kind EntityType, in T, insert func(Transaction, T) (T, error)) (T, Result, error) {
	var (
		simulated T
		res       Result
	)
	_, err := s.observe(ctx, "simulate_add_"+string(kind), func(ctx context.Context) error {
		var err error
		res, err = s.store.DryRun(ctx, func(tx Transaction) error {
			var err error
			simulated, err = insert(tx, in)
			return err
		})
		return err
	})
	if err != nil {
		var zero T
		return zero, res, err
	}
	return simulated, res, nil
}

func getRecord[T record](ctx context.Context, s *Service, kind EntityType, id uint64, find func(TransactionView, uint64) (T, bool)) (T, error) {
	var out T
	_, err := s.observe(ctx, "get_"+string(kind), func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			rec, ok := find(v, id)
			if !ok {
				return domain.NotFoundError{Entity: kind, ID: id}
			}
			out = rec
			return nil
		})
	})
	return out, err
}

func childRecords[T record](ctx context.Context, s *Service, relation Relation, parentID uint64, find func(TransactionView, uint64) (T, bool)) ([]T, error) {
	out := []T{}
	_, err := s.observe(ctx, "list_"+string(relation), func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			ids := v.Children(relation, parentID)
			out = make([]T, 0, len(ids))
			for _, id := range ids {
				rec, ok := find(v, id)
				if !ok {
					return fmt.Errorf("index %s lists missing %s %d", relation, relation.Child(), id)
				}
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func listRecords[T record](ctx context.Context, s *Service, kind EntityType, all func(TransactionView) []T) ([]T, error) {
	out := []T{}
	_, err := s.observe(ctx, "list_"+string(kind), func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			if recs := all(v); len(recs) > 0 {
				out = recs
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ChildIDs returns the ids indexed under parentID for any relation, including
// the secondary ones (machine to recipe steps, phases and so on).
func (s *Service) ChildIDs(ctx context.Context, relation Relation, parentID uint64) ([]uint64, error) {
	if !relation.Valid() {
		return nil, domain.InvalidArgumentError{Field: "relation"}
	}
	out := []uint64{}
	_, err := s.observe(ctx, "children_"+string(relation), func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			if ids := v.Children(relation, parentID); len(ids) > 0 {
				out = ids
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddCompany registers a company.
func (s *Service) AddCompany(ctx context.Context, c Company) (Company, Result, error) {
	return addRecord(ctx, s, EntityCompany, c, Transaction.AddCompany)
}

// SimulateAddCompany reports what AddCompany would return without committing.
func (s *Service) SimulateAddCompany(ctx context.Context, c Company) (Company, Result, error) {
	return simulateRecord(ctx, s, EntityCompany, c, Transaction.AddCompany)
}

// GetCompanyByID returns a company or a domain.NotFoundError.
func (s *Service) GetCompanyByID(ctx context.Context, id uint64) (Company, error) {
	return getRecord(ctx, s, EntityCompany, id, TransactionView.FindCompany)
}

// ListCompanies returns every company in creation order.
func (s *Service) ListCompanies(ctx context.Context) ([]Company, error) {
	return listRecords(ctx, s, EntityCompany, TransactionView.ListCompanies)
}

// AddMachine registers a machine under an existing company.
func (s *Service) AddMachine(ctx context.Context, m Machine) (Machine, Result, error) {
	return addRecord(ctx, s, EntityMachine, m, Transaction.AddMachine)
}

// SimulateAddMachine is the dry-run twin of AddMachine.
func (s *Service) SimulateAddMachine(ctx context.Context, m Machine) (Machine, Result, error) {
	return simulateRecord(ctx, s, EntityMachine, m, Transaction.AddMachine)
}

// GetMachineByID returns a machine or a domain.NotFoundError.
func (s *Service) GetMachineByID(ctx context.Context, id uint64) (Machine, error) {
	return getRecord(ctx, s, EntityMachine, id, TransactionView.FindMachine)
}

// GetMachinesByCompanyID returns the company's machines in creation order.
func (s *Service) GetMachinesByCompanyID(ctx context.Context, companyID uint64) ([]Machine, error) {
	return childRecords(ctx, s, domain.RelationCompanyMachines, companyID, TransactionView.FindMachine)
}

// ListMachines returns every machine in creation order.
func (s *Service) ListMachines(ctx context.Context) ([]Machine, error) {
	return listRecords(ctx, s, EntityMachine, TransactionView.ListMachines)
}

// AddRecipe registers a recipe under an existing company.
func (s *Service) AddRecipe(ctx context.Context, r Recipe) (Recipe, Result, error) {
	return addRecord(ctx, s, EntityRecipe, r, Transaction.AddRecipe)
}

// SimulateAddRecipe is the dry-run twin of AddRecipe.
func (s *Service) SimulateAddRecipe(ctx context.Context, r Recipe) (Recipe, Result, error) {
	return simulateRecord(ctx, s, EntityRecipe, r, Transaction.AddRecipe)
}

// GetRecipeByID returns a recipe or a domain.NotFoundError.
func (s *Service) GetRecipeByID(ctx context.Context, id uint64) (Recipe, error) {
	return getRecord(ctx, s, EntityRecipe, id, TransactionView.FindRecipe)
}

// GetRecipesByCompanyID returns the company's recipes in creation order.
func (s *Service) GetRecipesByCompanyID(ctx context.Context, companyID uint64) ([]Recipe, error) {
	return childRecords(ctx, s, domain.RelationCompanyRecipes, companyID, TransactionView.FindRecipe)
}

// ListRecipes returns every recipe in creation order.
func (s *Service) ListRecipes(ctx context.Context) ([]Recipe, error) {
	return listRecords(ctx, s, EntityRecipe, TransactionView.ListRecipes)
}

// AddRecipeStep appends a step to a recipe. Steps are ordered by creation.
func (s *Service) AddRecipeStep(ctx context.Context, step RecipeStep) (RecipeStep, Result, error) {
	return addRecord(ctx, s, EntityRecipeStep, step, Transaction.AddRecipeStep)
}

// SimulateAddRecipeStep is the dry-run twin of AddRecipeStep.
func (s *Service) SimulateAddRecipeStep(ctx context.Context, step RecipeStep) (RecipeStep, Result, error) {
	return simulateRecord(ctx, s, EntityRecipeStep, step, Transaction.AddRecipeStep)
}

// GetRecipeStepByID returns a recipe step or a domain.NotFoundError.
func (s *Service) GetRecipeStepByID(ctx context.Context, id uint64) (RecipeStep, error) {
	return getRecord(ctx, s, EntityRecipeStep, id, TransactionView.FindRecipeStep)
}

// GetRecipeStepsByRecipeID returns the recipe's steps in order.
func (s *Service) GetRecipeStepsByRecipeID(ctx context.Context, recipeID uint64) ([]RecipeStep, error) {
	return childRecords(ctx, s, domain.RelationRecipeSteps, recipeID, TransactionView.FindRecipeStep)
}

// ListRecipeSteps returns every recipe step in creation order.
func (s *Service) ListRecipeSteps(ctx context.Context) ([]RecipeStep, error) {
	return listRecords(ctx, s, EntityRecipeStep, TransactionView.ListRecipeSteps)
}

// AddMeasureConstraint attaches a constraint to a recipe step and machine.
// Inverted bounds are stored as given and reported by the measure_constraint_range rule.
func (s *Service) AddMeasureConstraint(ctx context.Context, mc MeasureConstraint) (MeasureConstraint, Result, error) {
	return addRecord(ctx, s, EntityMeasureConstraint, mc, Transaction.AddMeasureConstraint)
}

// SimulateAddMeasureConstraint is the dry-run twin of AddMeasureConstraint.
func (s *Service) SimulateAddMeasureConstraint(ctx context.Context, mc MeasureConstraint) (MeasureConstraint, Result, error) {
	return simulateRecord(ctx, s, EntityMeasureConstraint, mc, Transaction.AddMeasureConstraint)
}

// GetMeasureConstraintByID returns a constraint or a domain.NotFoundError.
func (s *Service) GetMeasureConstraintByID(ctx context.Context, id uint64) (MeasureConstraint, error) {
	return getRecord(ctx, s, EntityMeasureConstraint, id, TransactionView.FindMeasureConstraint)
}

// GetMeasureConstraintsByRecipeStepID returns the step's constraints in creation order.
func (s *Service) GetMeasureConstraintsByRecipeStepID(ctx context.Context, stepID uint64) ([]MeasureConstraint, error) {
	return childRecords(ctx, s, domain.RelationRecipeStepMeasureConstraints, stepID, TransactionView.FindMeasureConstraint)
}

// ListMeasureConstraints returns every constraint in creation order.
func (s *Service) ListMeasureConstraints(ctx context.Context) ([]MeasureConstraint, error) {
	return listRecords(ctx, s, EntityMeasureConstraint, TransactionView.ListMeasureConstraints)
}

// AddProduct registers a product made by a company following one of its recipes.
func (s *Service) AddProduct(ctx context.Context, p Product) (Product, Result, error) {
	return addRecord(ctx, s, EntityProduct, p, Transaction.AddProduct)
}

// SimulateAddProduct is the dry-run twin of AddProduct.
func (s *Service) SimulateAddProduct(ctx context.Context, p Product) (Product, Result, error) {
	return simulateRecord(ctx, s, EntityProduct, p, Transaction.AddProduct)
}

// GetProductByID returns a product or a domain.NotFoundError.
func (s *Service) GetProductByID(ctx context.Context, id uint64) (Product, error) {
	return getRecord(ctx, s, EntityProduct, id, TransactionView.FindProduct)
}

// GetProductsByCompanyID returns the company's products in creation order.
func (s *Service) GetProductsByCompanyID(ctx context.Context, companyID uint64) ([]Product, error) {
	return childRecords(ctx, s, domain.RelationCompanyProducts, companyID, TransactionView.FindProduct)
}

// ListProducts returns every product in creation order.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return listRecords(ctx, s, EntityProduct, TransactionView.ListProducts)
}

// AddPhase records a production phase of a product on a machine.
func (s *Service) AddPhase(ctx context.Context, p Phase) (Phase, Result, error) {
	return addRecord(ctx, s, EntityPhase, p, Transaction.AddPhase)
}

// SimulateAddPhase is the dry-run twin of AddPhase.
func (s *Service) SimulateAddPhase(ctx context.Context, p Phase) (Phase, Result, error) {
	return simulateRecord(ctx, s, EntityPhase, p, Transaction.AddPhase)
}

// GetPhaseByID returns a phase or a domain.NotFoundError.
func (s *Service) GetPhaseByID(ctx context.Context, id uint64) (Phase, error) {
	return getRecord(ctx, s, EntityPhase, id, TransactionView.FindPhase)
}

// GetPhasesByProductID returns the product's phases in creation order.
func (s *Service) GetPhasesByProductID(ctx context.Context, productID uint64) ([]Phase, error) {
	return childRecords(ctx, s, domain.RelationProductPhases, productID, TransactionView.FindPhase)
}

// ListPhases returns every phase in creation order.
func (s *Service) ListPhases(ctx context.Context) ([]Phase, error) {
	return listRecords(ctx, s, EntityPhase, TransactionView.ListPhases)
}

// AddMeasure records a measure taken during a phase.
func (s *Service) AddMeasure(ctx context.Context, m Measure) (Measure, Result, error) {
	return addRecord(ctx, s, EntityMeasure, m, Transaction.AddMeasure)
}

// SimulateAddMeasure is the dry-run twin of AddMeasure.
func (s *Service) SimulateAddMeasure(ctx context.Context, m Measure) (Measure, Result, error) {
	return simulateRecord(ctx, s, EntityMeasure, m, Transaction.AddMeasure)
}

// GetMeasureByID returns a measure or a domain.NotFoundError.
func (s *Service) GetMeasureByID(ctx context.Context, id uint64) (Measure, error) {
	return getRecord(ctx, s, EntityMeasure, id, TransactionView.FindMeasure)
}

// GetMeasuresByPhaseID returns the phase's measures in creation order.
func (s *Service) GetMeasuresByPhaseID(ctx context.Context, phaseID uint64) ([]Measure, error) {
	return childRecords(ctx, s, domain.RelationPhaseMeasures, phaseID, TransactionView.FindMeasure)
}

// ListMeasures returns every measure in creation order.
func (s *Service) ListMeasures(ctx context.Context) ([]Measure, error) {
	return listRecords(ctx, s, EntityMeasure, TransactionView.ListMeasures)
}
