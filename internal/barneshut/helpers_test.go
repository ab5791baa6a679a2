package barneshut

import (
	"math"
	"math/rand"

	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/logger"
)

func newTestModel(opts ...Option) *Model {
	return New(append([]Option{WithLogger(logger.Discard())}, opts...)...)
}

func uniform(n int, seed int64) []*body.Body {
	rng := rand.New(rand.NewSource(seed))
	out := make([]*body.Body, n)
	for i := range out {
		out[i] = body.New(i, rng.Float64(), rng.Float64(), 0, 0, 0.5+rng.Float64(), nil)
	}
	return out
}

func asBodies(bs []*body.Body) []Body {
	out := make([]Body, len(bs))
	for i, b := range bs {
		out[i] = b
	}
	return out
}

func resetAll(bs []*body.Body) {
	for _, b := range bs {
		b.ResetAcc()
	}
}

// bruteForce returns the exact pairwise accelerations, indexed by body ID.
func bruteForce(bs []*body.Body) [][2]float64 {
	cp := make([]*body.Body, len(bs))
	for i, b := range bs {
		cp[i] = b.Clone()
		cp[i].ResetAcc()
	}
	out := make([][2]float64, len(bs))
	for _, t := range cp {
		for _, s := range cp {
			t.AccGravityFrom(s)
		}
		out[t.ID] = [2]float64{t.AX, t.AY}
	}
	return out
}

// relRMS is the RMS of |a - ref| over the RMS of |ref|.
func relRMS(bs []*body.Body, ref [][2]float64) float64 {
	var num, den float64
	for _, b := range bs {
		r := ref[b.ID]
		dx, dy := b.AX-r[0], b.AY-r[1]
		num += dx*dx + dy*dy
		den += r[0]*r[0] + r[1]*r[1]
	}
	return math.Sqrt(num / den)
}
