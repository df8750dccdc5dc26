package core

import (
	"context"
	"fmt"

	"icetrace/pkg/domain"
)

// NewMeasureConstraintRangeRule warns when a new constraint has its bounds inverted.
// The stored values are left as supplied.
func NewMeasureConstraintRangeRule() domain.Rule {
	return measureConstraintRangeRule{}
}

type measureConstraintRangeRule struct{}

func (measureConstraintRangeRule) Name() string { return "measure_constraint_range" }

func (measureConstraintRangeRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		mc, ok := change.After.(domain.MeasureConstraint)
		if !ok || !mc.Inverted() {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "measure_constraint_range",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("measure constraint %s (%d) has min %d above max %d", mc.Name, mc.ID, mc.MinMeasure, mc.MaxMeasure),
			Entity:   domain.EntityMeasureConstraint,
			EntityID: mc.ID,
		})
	}
	return res, nil
}
