package core

import (
	"context"
	"fmt"

	"icetrace/pkg/domain"
)

// NewMachineOwnershipRule warns when a step, phase or measure runs on a machine
// owned by a company other than the one owning its recipe or product.
func NewMachineOwnershipRule() domain.Rule {
	return machineOwnershipRule{}
}

type machineOwnershipRule struct{}

func (machineOwnershipRule) Name() string { return "machine_ownership" }

func (machineOwnershipRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		var (
			owner     uint64
			machineID uint64
			id        uint64
			found     bool
		)
		switch rec := change.After.(type) {
		case domain.RecipeStep:
			var recipe domain.Recipe
			recipe, found = view.FindRecipe(rec.RecipeID)
			owner, machineID, id = recipe.CompanyID, rec.MachineID, rec.ID
		case domain.Phase:
			var product domain.Product
			product, found = view.FindProduct(rec.ProductID)
			owner, machineID, id = product.CompanyID, rec.MachineID, rec.ID
		case domain.Measure:
			var product domain.Product
			if phase, ok := view.FindPhase(rec.PhaseID); ok {
				product, found = view.FindProduct(phase.ProductID)
			}
			owner, machineID, id = product.CompanyID, rec.MachineID, rec.ID
		default:
			continue
		}
		if !found {
			continue
		}
		machine, ok := view.FindMachine(machineID)
		if !ok || machine.CompanyID == owner {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "machine_ownership",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("%s %d uses machine %d of company %d, expected company %d", change.Entity, id, machineID, machine.CompanyID, owner),
			Entity:   change.Entity,
			EntityID: id,
		})
	}
	return res, nil
}
