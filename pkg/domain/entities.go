// Package domain contains the registry's entity records, relation identifiers,
// rule contracts and the persistence interfaces implemented by the storage
// backends.
package domain

import "time"

// EntityType identifies one of the record kinds held by the registry.
type EntityType string

// Supported entity type identifiers used in Change records, journal entries and persistence buckets.
const (
	// EntityCompany identifies a manufacturing company.
	EntityCompany EntityType = "company"
	// EntityMachine identifies a machine owned by a company.
	EntityMachine EntityType = "machine"
	// EntityRecipe identifies a production recipe.
	EntityRecipe EntityType = "recipe"
	// EntityRecipeStep identifies an ordered step within a recipe.
	EntityRecipeStep EntityType = "recipe_step"
	// EntityMeasureConstraint identifies a measurement bound attached to a recipe step.
	EntityMeasureConstraint EntityType = "measure_constraint"
	// EntityProduct identifies a manufactured product.
	EntityProduct EntityType = "product"
	// EntityPhase identifies an execution phase of a product.
	EntityPhase EntityType = "phase"
	// EntityMeasure identifies a measure recorded during a phase.
	EntityMeasure EntityType = "measure"
)

// EntityTypes lists every kind in dependency order: a kind only references kinds listed before it.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityCompany,
		EntityMachine,
		EntityRecipe,
		EntityRecipeStep,
		EntityMeasureConstraint,
		EntityProduct,
		EntityPhase,
		EntityMeasure,
	}
}

// Base holds the identity shared by every record. ID is unique within its kind and never reused.
type Base struct {
	ID        uint64    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity returns the record id.
func (b Base) Identity() uint64 { return b.ID }

// Company is the root owner of machines, recipes and products.
type Company struct {
	Base
	Name string `json:"name"`
}

// Machine is a piece of equipment registered by a company.
type Machine struct {
	Base
	CompanyID   uint64 `json:"company_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Recipe describes how a company produces something.
type Recipe struct {
	Base
	CompanyID   uint64 `json:"company_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RecipeStep is one step of a recipe executed on a machine. Step order is creation order.
type RecipeStep struct {
	Base
	RecipeID    uint64 `json:"recipe_id"`
	MachineID   uint64 `json:"machine_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// MeasureConstraint bounds a measurement taken on a machine during a recipe step.
// MinMeasure and MaxMeasure are stored exactly as supplied, even when inverted.
type MeasureConstraint struct {
	Base
	RecipeStepID uint64 `json:"recipe_step_id"`
	MachineID    uint64 `json:"machine_id"`
	Name         string `json:"name"`
	MinMeasure   int64  `json:"min_measure"`
	MaxMeasure   int64  `json:"max_measure"`
	Unit         string `json:"unit"`
}

// Inverted reports whether the bounds are stored in reverse order.
func (c MeasureConstraint) Inverted() bool {
	return c.MinMeasure > c.MaxMeasure
}

// Product is an item manufactured by a company following a recipe.
type Product struct {
	Base
	CompanyID   uint64 `json:"company_id"`
	RecipeID    uint64 `json:"recipe_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Phase records the execution of part of a product's production on a machine.
// SequenceNumber is supplied by the caller and is not required to be unique.
type Phase struct {
	Base
	ProductID      uint64 `json:"product_id"`
	MachineID      uint64 `json:"machine_id"`
	SequenceNumber uint64 `json:"sequence_number"`
	Name           string `json:"name"`
	Description    string `json:"description"`
}

// Measure is a value pair recorded on a machine during a phase.
type Measure struct {
	Base
	PhaseID   uint64 `json:"phase_id"`
	MachineID uint64 `json:"machine_id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Value1    int64  `json:"value1"`
	Value2    int64  `json:"value2"`
}

// Change describes a committed mutation. The registry is append-only so only creates occur.
type Change struct {
	Entity EntityType
	Action Action
	After  any
}

// Action indicates the type of modification performed.
type Action string

// ActionCreate is the only action the registry records.
const ActionCreate Action = "create"
