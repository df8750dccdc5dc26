package core

import (
	"context"
	"fmt"

	"icetrace/pkg/domain"
)

// StepTrace is a recipe step with the machine that runs it and its constraints.
type StepTrace struct {
	Step        RecipeStep          `json:"step"`
	Machine     Machine             `json:"machine"`
	Constraints []MeasureConstraint `json:"constraints"`
}

// PhaseTrace is an executed phase with its machine and recorded measures.
type PhaseTrace struct {
	Phase    Phase     `json:"phase"`
	Machine  Machine   `json:"machine"`
	Measures []Measure `json:"measures"`
}

// ProductTrace is the full provenance of a product: who made it, following
// which recipe, and what was measured along the way.
type ProductTrace struct {
	Product Product      `json:"product"`
	Company Company      `json:"company"`
	Recipe  Recipe       `json:"recipe"`
	Steps   []StepTrace  `json:"steps"`
	Phases  []PhaseTrace `json:"phases"`
}

// TraceProduct assembles the provenance of productID from a single consistent view.
func (s *Service) TraceProduct(ctx context.Context, productID uint64) (ProductTrace, error) {
	var out ProductTrace
	_, err := s.observe(ctx, "trace_product", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			trace, err := buildTrace(v, productID)
			if err != nil {
				return err
			}
			out = trace
			return nil
		})
	})
	return out, err
}

func buildTrace(v TransactionView, productID uint64) (ProductTrace, error) {
	product, ok := v.FindProduct(productID)
	if !ok {
		return ProductTrace{}, domain.NotFoundError{Entity: EntityProduct, ID: productID}
	}
	trace := ProductTrace{Product: product, Steps: []StepTrace{}, Phases: []PhaseTrace{}}
	if trace.Company, ok = v.FindCompany(product.CompanyID); !ok {
		return ProductTrace{}, danglingRef(EntityProduct, productID, EntityCompany, product.CompanyID)
	}
	if trace.Recipe, ok = v.FindRecipe(product.RecipeID); !ok {
		return ProductTrace{}, danglingRef(EntityProduct, productID, EntityRecipe, product.RecipeID)
	}

	for _, stepID := range v.Children(domain.RelationRecipeSteps, product.RecipeID) {
		step, ok := v.FindRecipeStep(stepID)
		if !ok {
			return ProductTrace{}, danglingRef(EntityRecipe, product.RecipeID, EntityRecipeStep, stepID)
		}
		st := StepTrace{Step: step, Constraints: []MeasureConstraint{}}
		st.Machine, _ = v.FindMachine(step.MachineID)
		for _, id := range v.Children(domain.RelationRecipeStepMeasureConstraints, stepID) {
			if mc, ok := v.FindMeasureConstraint(id); ok {
				st.Constraints = append(st.Constraints, mc)
			}
		}
		trace.Steps = append(trace.Steps, st)
	}

	for _, phaseID := range v.Children(domain.RelationProductPhases, productID) {
		phase, ok := v.FindPhase(phaseID)
		if !ok {
			return ProductTrace{}, danglingRef(EntityProduct, productID, EntityPhase, phaseID)
		}
		pt := PhaseTrace{Phase: phase, Measures: []Measure{}}
		pt.Machine, _ = v.FindMachine(phase.MachineID)
		for _, id := range v.Children(domain.RelationPhaseMeasures, phaseID) {
			if m, ok := v.FindMeasure(id); ok {
				pt.Measures = append(pt.Measures, m)
			}
		}
		trace.Phases = append(trace.Phases, pt)
	}
	return trace, nil
}

func danglingRef(owner EntityType, ownerID uint64, kind EntityType, id uint64) error {
	return fmt.Errorf("%s %d references missing %s %d", owner, ownerID, kind, id)
}
