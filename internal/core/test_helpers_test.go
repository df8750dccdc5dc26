package core

import (
	"context"
	"testing"
	"time"
)

type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 5, 27, 9, 0, 0, 0, time.UTC), step: time.Millisecond}
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	opts = append([]ServiceOption{WithClock(newStepClock())}, opts...)
	return NewInMemoryService(NewDefaultRulesEngine(), opts...)
}

type added[T any] struct {
	value  T
	result Result
	err    error
}

func addResult[T any](value T, result Result, err error) added[T] {
	return added[T]{value: value, result: result, err: err}
}

func (a added[T]) must(t *testing.T) T {
	t.Helper()
	if a.err != nil {
		t.Fatalf("unexpected error: %v", a.err)
	}
	return a.value
}

// fixture is a small but complete production history.
type fixture struct {
	company    Company
	lathe      Machine
	oven       Machine
	recipe     Recipe
	cut        RecipeStep
	bake       RecipeStep
	constraint MeasureConstraint
	product    Product
	phase      Phase
	measure    Measure
}

func seedFixture(t *testing.T, svc *Service) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	f.company = addResult(svc.AddCompany(ctx, Company{Name: "azienda di giovanni"})).must(t)
	f.lathe = addResult(svc.AddMachine(ctx, Machine{CompanyID: f.company.ID, Name: "tornio", Description: "lathe"})).must(t)
	f.oven = addResult(svc.AddMachine(ctx, Machine{CompanyID: f.company.ID, Name: "forno", Description: "oven"})).must(t)
	f.recipe = addResult(svc.AddRecipe(ctx, Recipe{CompanyID: f.company.ID, Name: "ricetta", Description: "bread"})).must(t)
	f.cut = addResult(svc.AddRecipeStep(ctx, RecipeStep{RecipeID: f.recipe.ID, MachineID: f.lathe.ID, Name: "cut"})).must(t)
	f.bake = addResult(svc.AddRecipeStep(ctx, RecipeStep{RecipeID: f.recipe.ID, MachineID: f.oven.ID, Name: "bake"})).must(t)
	f.constraint = addResult(svc.AddMeasureConstraint(ctx, MeasureConstraint{
		RecipeStepID: f.bake.ID, MachineID: f.oven.ID, Name: "temperature", MinMeasure: 180, MaxMeasure: 220, Unit: "C",
	})).must(t)
	f.product = addResult(svc.AddProduct(ctx, Product{CompanyID: f.company.ID, RecipeID: f.recipe.ID, Name: "pagnotta"})).must(t)
	f.phase = addResult(svc.AddPhase(ctx, Phase{ProductID: f.product.ID, MachineID: f.oven.ID, SequenceNumber: 0, Name: "baking"})).must(t)
	f.measure = addResult(svc.AddMeasure(ctx, Measure{PhaseID: f.phase.ID, MachineID: f.oven.ID, Name: "temperature", Unit: "C", Value1: 200, Value2: 205})).must(t)
	return f
}
