package analysis

import (
	"context"
	"math"
	"time"

	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/force"
	"github.com/san-kum/gravtree/internal/initcond"
)

type ScalePoint struct {
	N            int
	Prepare      time.Duration
	Query        time.Duration
	Interactions int
}

// PerBody is the mean interaction count per body.
func (p ScalePoint) PerBody() float64 {
	if p.N == 0 {
		return 0
	}
	return float64(p.Interactions) / float64(p.N)
}

// Scaling times one full force pass of method for each N, taking the
// fastest of reps repetitions.
func Scaling(ctx context.Context, method string, gen initcond.Generator, ns []int, seed int64, law *body.Law, reps int, opts force.Options) ([]ScalePoint, error) {
	if reps < 1 {
		reps = 1
	}
	out := make([]ScalePoint, 0, len(ns))
	for _, n := range ns {
		calc, err := force.New(method, opts)
		if err != nil {
			return nil, err
		}
		bs := gen(n, seed, law)

		p := ScalePoint{N: n, Prepare: time.Duration(math.MaxInt64), Query: time.Duration(math.MaxInt64)}
		for r := 0; r < reps; r++ {
			for _, b := range bs {
				b.ResetAcc()
			}
			start := time.Now()
			if err := calc.Prepare(ctx, bs); err != nil {
				return nil, err
			}
			mid := time.Now()
			in, err := calc.AccumulateAll(ctx)
			if err != nil {
				return nil, err
			}
			end := time.Now()

			p.Prepare = min(p.Prepare, mid.Sub(start))
			p.Query = min(p.Query, end.Sub(mid))
			p.Interactions = in.Total()
		}
		out = append(out, p)
	}
	return out, nil
}

// Exponent fits y = c*x^k by least squares on log-log and returns k.
// Non-positive samples are skipped; fewer than two usable points give NaN.
func Exponent(xs, ys []float64) float64 {
	var sx, sy, sxx, sxy float64
	n := 0
	for i := range xs {
		if i >= len(ys) || xs[i] <= 0 || ys[i] <= 0 {
			continue
		}
		lx, ly := math.Log(xs[i]), math.Log(ys[i])
		sx += lx
		sy += ly
		sxx += lx * lx
		sxy += lx * ly
		n++
	}
	if n < 2 {
		return math.NaN()
	}
	fn := float64(n)
	den := fn*sxx - sx*sx
	if den == 0 {
		return math.NaN()
	}
	return (fn*sxy - sx*sy) / den
}

// InteractionExponent is Exponent over N and interaction counts.
func InteractionExponent(points []ScalePoint) float64 {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.N)
		ys[i] = float64(p.Interactions)
	}
	return Exponent(xs, ys)
}
