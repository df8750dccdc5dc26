package domain

// Relation names a parent to child edge maintained by the relationship index.
type Relation string

// Relations maintained for every stored record. Each child is appended to the
// list of every parent it references.
const (
	RelationCompanyMachines              Relation = "company_machines"
	RelationCompanyRecipes               Relation = "company_recipes"
	RelationCompanyProducts              Relation = "company_products"
	RelationRecipeSteps                  Relation = "recipe_steps"
	RelationRecipeProducts               Relation = "recipe_products"
	RelationMachineRecipeSteps           Relation = "machine_recipe_steps"
	RelationMachineMeasureConstraints    Relation = "machine_measure_constraints"
	RelationMachinePhases                Relation = "machine_phases"
	RelationMachineMeasures              Relation = "machine_measures"
	RelationRecipeStepMeasureConstraints Relation = "recipe_step_measure_constraints"
	RelationProductPhases                Relation = "product_phases"
	RelationPhaseMeasures                Relation = "phase_measures"
)

type relationKinds struct {
	parent EntityType
	child  EntityType
}

var relationTable = map[Relation]relationKinds{
	RelationCompanyMachines:              {EntityCompany, EntityMachine},
	RelationCompanyRecipes:               {EntityCompany, EntityRecipe},
	RelationCompanyProducts:              {EntityCompany, EntityProduct},
	RelationRecipeSteps:                  {EntityRecipe, EntityRecipeStep},
	RelationRecipeProducts:               {EntityRecipe, EntityProduct},
	RelationMachineRecipeSteps:           {EntityMachine, EntityRecipeStep},
	RelationMachineMeasureConstraints:    {EntityMachine, EntityMeasureConstraint},
	RelationMachinePhases:                {EntityMachine, EntityPhase},
	RelationMachineMeasures:              {EntityMachine, EntityMeasure},
	RelationRecipeStepMeasureConstraints: {EntityRecipeStep, EntityMeasureConstraint},
	RelationProductPhases:                {EntityProduct, EntityPhase},
	RelationPhaseMeasures:                {EntityPhase, EntityMeasure},
}

// Parent returns the entity kind on the parent side of the relation.
func (r Relation) Parent() EntityType { return relationTable[r].parent }

// Child returns the entity kind on the child side of the relation.
func (r Relation) Child() EntityType { return relationTable[r].child }

// Valid reports whether r is a known relation.
func (r Relation) Valid() bool {
	_, ok := relationTable[r]
	return ok
}

// ParentRef is a reference from a child record to one of its parents.
type ParentRef struct {
	Relation Relation
	ID       uint64
}

// ParentRefs returns the parent references carried by a record in validation order.
// Unknown record types have no parents.
func ParentRefs(record any) []ParentRef {
	switch r := record.(type) {
	case Machine:
		return []ParentRef{{RelationCompanyMachines, r.CompanyID}}
	case Recipe:
		return []ParentRef{{RelationCompanyRecipes, r.CompanyID}}
	case RecipeStep:
		return []ParentRef{
			{RelationRecipeSteps, r.RecipeID},
			{RelationMachineRecipeSteps, r.MachineID},
		}
	case MeasureConstraint:
		return []ParentRef{
			{RelationRecipeStepMeasureConstraints, r.RecipeStepID},
			{RelationMachineMeasureConstraints, r.MachineID},
		}
	case Product:
		return []ParentRef{
			{RelationCompanyProducts, r.CompanyID},
			{RelationRecipeProducts, r.RecipeID},
		}
	case Phase:
		return []ParentRef{
			{RelationProductPhases, r.ProductID},
			{RelationMachinePhases, r.MachineID},
		}
	case Measure:
		return []ParentRef{
			{RelationPhaseMeasures, r.PhaseID},
			{RelationMachineMeasures, r.MachineID},
		}
	default:
		return nil
	}
}
