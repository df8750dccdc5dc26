package core

import (
	"context"
	"fmt"

	"icetrace/pkg/domain"
)

// NewPhaseSequenceRule warns when a new phase reuses a sequence number already
// taken by another phase of the same product.
func NewPhaseSequenceRule() domain.Rule {
	return phaseSequenceRule{}
}

type phaseSequenceRule struct{}

func (phaseSequenceRule) Name() string { return "phase_sequence" }

func (phaseSequenceRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		phase, ok := change.After.(domain.Phase)
		if !ok {
			continue
		}
		for _, siblingID := range view.Children(domain.RelationProductPhases, phase.ProductID) {
			if siblingID == phase.ID {
				continue
			}
			sibling, ok := view.FindPhase(siblingID)
			if !ok || sibling.SequenceNumber != phase.SequenceNumber {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "phase_sequence",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("phase %d reuses sequence %d of phase %d on product %d", phase.ID, phase.SequenceNumber, sibling.ID, phase.ProductID),
				Entity:   domain.EntityPhase,
				EntityID: phase.ID,
			})
			break
		}
	}
	return res, nil
}
