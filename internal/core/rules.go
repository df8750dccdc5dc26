package core

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
// None of the default rules block a commit.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewMeasureConstraintRangeRule())
	engine.Register(NewPhaseSequenceRule())
	engine.Register(NewMachineOwnershipRule())
	return engine
}
