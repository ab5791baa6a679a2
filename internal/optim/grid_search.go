// Package optim searches parameter grids for the cheapest setting that
// still meets an accuracy target.
package optim

import (
	"context"
	"math"
	"sort"

	"github.com/san-kum/gravtree/internal/analysis"
	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/force"
)

// Objective scores one grid point; lower is better. +Inf marks a point
// as infeasible.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Point is one evaluated grid point.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// Search evaluates every grid point and returns the best one together
// with all evaluations in grid order. Points whose objective fails are
// recorded and skipped; cancellation stops the search. Ties keep the
// first point. When nothing is feasible best is nil and value is +Inf.
func (g *GridSearch) Search(ctx context.Context, obj Objective) (best map[string]float64, value float64, all []Point, err error) {
	value = math.Inf(1)
	err = g.searchRecursive(ctx, 0, make(map[string]float64), obj, func(p Point) {
		all = append(all, p)
		if p.Err == nil && p.Value < value {
			value = p.Value
			best = p.Params
		}
	})
	return best, value, all, err
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	obj Objective,
	visit func(Point),
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		params := make(map[string]float64, len(current))
		for k, v := range current {
			params[k] = v
		}
		val, err := obj(ctx, params)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		visit(Point{Params: params, Value: val, Err: err})
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[paramName] = val
		if err := g.searchRecursive(ctx, depth+1, current, obj, visit); err != nil {
			return err
		}
	}
	delete(current, paramName)
	return nil
}

// Cost selects what a tree setting is charged for.
type Cost int

const (
	// CostInteractions counts direct plus approximate interactions.
	CostInteractions Cost = iota
	// CostTime is the wall time of one tree pass in seconds.
	CostTime
)

// TreeObjective scores "theta" (and "fork_threshold" when present) by
// cost, making any setting whose relative RMS force error exceeds tol
// infeasible. The exact pass runs once, on the first evaluation.
func TreeObjective(bodies []*body.Body, tol float64, cost Cost, base force.Options) Objective {
	var ref *analysis.Reference
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		if ref == nil {
			r, err := analysis.NewReference(ctx, bodies, base)
			if err != nil {
				return 0, err
			}
			ref = r
		}

		opts := base
		if theta, ok := params["theta"]; ok {
			opts.Theta = theta
		}
		if ft, ok := params["fork_threshold"]; ok {
			opts.ForkThreshold = int(ft)
		}

		acc, err := ref.Compare(ctx, bodies, opts.Theta, opts)
		if err != nil {
			return 0, err
		}
		if acc.RMS > tol {
			return math.Inf(1), nil
		}
		if cost == CostTime {
			return acc.TreeTime.Seconds(), nil
		}
		return float64(acc.Interactions.Total()), nil
	}
}

// SortedKeys returns the parameter names of p in order, for printing.
func SortedKeys(p map[string]float64) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
