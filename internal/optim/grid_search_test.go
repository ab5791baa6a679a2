package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/force"
	"github.com/san-kum/gravtree/internal/initcond"
	"github.com/san-kum/gravtree/internal/logger"
	"github.com/san-kum/gravtree/internal/workers"
)

func TestGridSearch(t *testing.T) {
	g := NewGridSearch([]string{"x", "y"}, [][]float64{{-1, 0, 1, 2}, {0, 3}})
	obj := func(_ context.Context, p map[string]float64) (float64, error) {
		if p["x"] == 2 {
			return 0, errors.New("out of domain")
		}
		return (p["x"]-1)*(p["x"]-1) + p["y"], nil
	}

	best, val, all, err := g.Search(context.Background(), obj)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 8 {
		t.Errorf("evaluated %d points, want 8", len(all))
	}
	if val != 0 || best["x"] != 1 || best["y"] != 0 {
		t.Errorf("best %v = %v", best, val)
	}

	failed := 0
	for _, p := range all {
		if p.Err != nil {
			failed++
		}
	}
	if failed != 2 {
		t.Errorf("%d failed points recorded, want 2", failed)
	}
}

func TestGridSearchInfeasible(t *testing.T) {
	g := NewGridSearch([]string{"x"}, [][]float64{{1, 2}})
	best, val, _, err := g.Search(context.Background(), func(context.Context, map[string]float64) (float64, error) {
		return math.Inf(1), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if best != nil || !math.IsInf(val, 1) {
		t.Errorf("expected no feasible point, got %v = %v", best, val)
	}
}

func TestGridSearchCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := NewGridSearch([]string{"x"}, [][]float64{{1, 2, 3}})
	calls := 0
	_, _, _, err := g.Search(ctx, func(context.Context, map[string]float64) (float64, error) {
		calls++
		cancel()
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("search kept going after cancel: %d calls", calls)
	}
}

func TestTreeObjective(t *testing.T) {
	bodies := initcond.Plummer(400, 3, &body.Law{G: 1, Softening: 0.01})
	opts := force.Options{Pool: workers.New(2), Logger: logger.Discard()}
	obj := TreeObjective(bodies, 0.02, CostInteractions, opts)

	g := NewGridSearch([]string{"theta"}, [][]float64{{0, 0.1, 0.3, 1.5}})
	best, val, all, err := g.Search(context.Background(), obj)
	if err != nil {
		t.Fatal(err)
	}

	exact := all[0].Value
	if exact != float64(len(bodies)*(len(bodies)-1)) {
		t.Errorf("theta 0 cost %v, want all pairs", exact)
	}
	if !math.IsInf(all[3].Value, 1) {
		t.Errorf("theta 1.5 should miss a 2%% tolerance, cost %v", all[3].Value)
	}
	if best == nil || best["theta"] == 0 || val >= exact {
		t.Errorf("best %v = %v should beat the exact sum", best, val)
	}
}

func TestSortedKeys(t *testing.T) {
	got := SortedKeys(map[string]float64{"theta": 1, "fork_threshold": 2})
	if len(got) != 2 || got[0] != "fork_threshold" || got[1] != "theta" {
		t.Errorf("SortedKeys = %v", got)
	}
}
