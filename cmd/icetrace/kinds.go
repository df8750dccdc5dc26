package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"icetrace/internal/core"
)

type (
	addFunc[T any]      func(*core.Service, context.Context, T) (T, core.Result, error)
	getFunc[T any]      func(*core.Service, context.Context, uint64) (T, error)
	listFunc[T any]     func(*core.Service, context.Context) ([]T, error)
	childrenFunc[T any] func(*core.Service, context.Context, uint64) ([]T, error)
)

// kindOps erases the record type so commands can dispatch on the kind name.
// parent is the kind whose id list --parent expects; empty for top-level kinds.
type kindOps struct {
	parent   core.EntityType
	add      func(ctx context.Context, svc *core.Service, payload []byte, dryRun bool) (any, core.Result, error)
	get      func(ctx context.Context, svc *core.Service, id uint64) (any, error)
	list     func(ctx context.Context, svc *core.Service) (any, error)
	children func(ctx context.Context, svc *core.Service, parentID uint64) (any, error)
}

func ops[T any](parent core.EntityType, add, simulate addFunc[T], get getFunc[T], list listFunc[T], children childrenFunc[T]) kindOps {
	k := kindOps{
		parent: parent,
		add: func(ctx context.Context, svc *core.Service, payload []byte, dryRun bool) (any, core.Result, error) {
			var in T
			dec := json.NewDecoder(bytes.NewReader(payload))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&in); err != nil {
				return nil, core.Result{}, fmt.Errorf("decode record: %w", err)
			}
			fn := add
			if dryRun {
				fn = simulate
			}
			rec, res, err := fn(svc, ctx, in)
			if err != nil {
				return nil, res, err
			}
			return rec, res, nil
		},
		get: func(ctx context.Context, svc *core.Service, id uint64) (any, error) {
			rec, err := get(svc, ctx, id)
			if err != nil {
				return nil, err
			}
			return rec, nil
		},
		list: func(ctx context.Context, svc *core.Service) (any, error) {
			recs, err := list(svc, ctx)
			if err != nil {
				return nil, err
			}
			return recs, nil
		},
	}
	if children != nil {
		k.children = func(ctx context.Context, svc *core.Service, parentID uint64) (any, error) {
			recs, err := children(svc, ctx, parentID)
			if err != nil {
				return nil, err
			}
			return recs, nil
		}
	}
	return k
}

var kinds = map[core.EntityType]kindOps{
	core.EntityCompany: ops("", (*core.Service).AddCompany, (*core.Service).SimulateAddCompany,
		(*core.Service).GetCompanyByID, (*core.Service).ListCompanies, nil),
	core.EntityMachine: ops(core.EntityCompany, (*core.Service).AddMachine, (*core.Service).SimulateAddMachine,
		(*core.Service).GetMachineByID, (*core.Service).ListMachines, (*core.Service).GetMachinesByCompanyID),
	core.EntityRecipe: ops(core.EntityCompany, (*core.Service).AddRecipe, (*core.Service).SimulateAddRecipe,
		(*core.Service).GetRecipeByID, (*core.Service).ListRecipes, (*core.Service).GetRecipesByCompanyID),
	core.EntityRecipeStep: ops(core.EntityRecipe, (*core.Service).AddRecipeStep, (*core.Service).SimulateAddRecipeStep,
		(*core.Service).GetRecipeStepByID, (*core.Service).ListRecipeSteps, (*core.Service).GetRecipeStepsByRecipeID),
	core.EntityMeasureConstraint: ops(core.EntityRecipeStep, (*core.Service).AddMeasureConstraint, (*core.Service).SimulateAddMeasureConstraint,
		(*core.Service).GetMeasureConstraintByID, (*core.Service).ListMeasureConstraints, (*core.Service).GetMeasureConstraintsByRecipeStepID),
	core.EntityProduct: ops(core.EntityCompany, (*core.Service).AddProduct, (*core.Service).SimulateAddProduct,
		(*core.Service).GetProductByID, (*core.Service).ListProducts, (*core.Service).GetProductsByCompanyID),
	core.EntityPhase: ops(core.EntityProduct, (*core.Service).AddPhase, (*core.Service).SimulateAddPhase,
		(*core.Service).GetPhaseByID, (*core.Service).ListPhases, (*core.Service).GetPhasesByProductID),
	core.EntityMeasure: ops(core.EntityPhase, (*core.Service).AddMeasure, (*core.Service).SimulateAddMeasure,
		(*core.Service).GetMeasureByID, (*core.Service).ListMeasures, (*core.Service).GetMeasuresByPhaseID),
}

func lookupKind(name string) (core.EntityType, kindOps, error) {
	kind := core.EntityType(strings.ReplaceAll(strings.ToLower(name), "-", "_"))
	k, ok := kinds[kind]
	if !ok {
		return "", kindOps{}, fmt.Errorf("unknown kind %q (want one of %s)", name, strings.Join(kindNames(), ", "))
	}
	return kind, k, nil
}

func kindNames() []string {
	names := make([]string, 0, len(kinds))
	for kind := range kinds {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return names
}

// parentHelp lists, per kind, the kind of record --parent refers to.
func parentHelp() string {
	var b strings.Builder
	for _, name := range kindNames() {
		k := kinds[core.EntityType(name)]
		if k.parent == "" {
			fmt.Fprintf(&b, "  %-20s no parent\n", name)
			continue
		}
		fmt.Fprintf(&b, "  %-20s --parent is a %s id\n", name, k.parent)
	}
	return b.String()
}
