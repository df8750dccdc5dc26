package core

import "icetrace/pkg/domain"

type (
	EntityType         = domain.EntityType
	Relation           = domain.Relation
	Severity           = domain.Severity
	Base               = domain.Base
	Company            = domain.Company
	Machine            = domain.Machine
	Recipe             = domain.Recipe
	RecipeStep         = domain.RecipeStep
	MeasureConstraint  = domain.MeasureConstraint
	Product            = domain.Product
	Phase              = domain.Phase
	Measure            = domain.Measure
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	JournalEntry       = domain.JournalEntry
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityCompany           = domain.EntityCompany
	EntityMachine           = domain.EntityMachine
	EntityRecipe            = domain.EntityRecipe
	EntityRecipeStep        = domain.EntityRecipeStep
	EntityMeasureConstraint = domain.EntityMeasureConstraint
	EntityProduct           = domain.EntityProduct
	EntityPhase             = domain.EntityPhase
	EntityMeasure           = domain.EntityMeasure
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const ActionCreate = domain.ActionCreate

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
