package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/force"
	"github.com/san-kum/gravtree/internal/initcond"
	"github.com/san-kum/gravtree/internal/logger"
	"github.com/san-kum/gravtree/internal/workers"
)

func testOptions() force.Options {
	return force.Options{Pool: workers.New(2), Logger: logger.Discard()}
}

func TestCompareForces(t *testing.T) {
	bs := initcond.Plummer(600, 1, &body.Law{G: 1, Softening: 0.01})

	acc, err := CompareForces(context.Background(), bs, 0.5, testOptions())
	if err != nil {
		t.Fatalf("CompareForces failed: %v", err)
	}
	if acc.RMS <= 0 || acc.RMS > 0.1 {
		t.Errorf("rms error %g outside (0, 0.1]", acc.RMS)
	}
	if acc.Max < acc.RMS {
		t.Errorf("max %g below rms %g", acc.Max, acc.RMS)
	}
	if acc.Exact.Direct != 600*599 {
		t.Errorf("expected %d exact interactions, got %+v", 600*599, acc.Exact)
	}
	if acc.Speedup() <= 1 {
		t.Errorf("expected fewer tree interactions than exact, speedup %g", acc.Speedup())
	}
	if bs[0].AX != 0 || bs[0].AY != 0 {
		t.Error("CompareForces must not touch the caller's bodies")
	}
}

func TestThetaSweep(t *testing.T) {
	bs := initcond.Uniform(500, 2, nil)
	thetas := []float64{1.0, 0.5, 0.2, 0}

	res, err := ThetaSweep(context.Background(), bs, thetas, testOptions())
	if err != nil {
		t.Fatalf("ThetaSweep failed: %v", err)
	}
	if len(res) != len(thetas) {
		t.Fatalf("expected %d results, got %d", len(thetas), len(res))
	}
	for i := 1; i < len(res); i++ {
		if res[i].Interactions.Total() < res[i-1].Interactions.Total() {
			t.Errorf("theta %g did less work than theta %g", res[i].Theta, res[i-1].Theta)
		}
	}
	if res[0].RMS <= res[2].RMS {
		t.Errorf("theta 1.0 error %g not above theta 0.2 error %g", res[0].RMS, res[2].RMS)
	}
	if res[3].RMS > 1e-10 {
		t.Errorf("theta 0 error %g", res[3].RMS)
	}
}

func TestScalingIsSubQuadratic(t *testing.T) {
	pts, err := Scaling(context.Background(), "barneshut", initcond.Uniform,
		[]int{500, 2000, 8000}, 3, nil, 1, force.Options{Theta: 0.5, Pool: workers.New(2), Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("Scaling failed: %v", err)
	}
	if len(pts) != 3 {
		t.Fatalf("expected 3 points, got %d", len(pts))
	}
	if k := InteractionExponent(pts); k >= 1.7 || k < 1 {
		t.Errorf("interaction exponent %g, want in [1, 1.7)", k)
	}
	if pts[2].PerBody() <= pts[0].PerBody() {
		t.Error("per-body work should still grow with N")
	}
}

func TestExponent(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		ys   []float64
		want float64
	}{
		{"linear", []float64{1, 2, 4, 8}, []float64{3, 6, 12, 24}, 1},
		{"quadratic", []float64{10, 100, 1000}, []float64{100, 1e4, 1e6}, 2},
		{"skips zeros", []float64{0, 2, 4}, []float64{5, 4, 16}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Exponent(tt.xs, tt.ys); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %g, want %g", got, tt.want)
			}
		})
	}

	if !math.IsNaN(Exponent([]float64{1}, []float64{1})) {
		t.Error("expected NaN for a single point")
	}
}
