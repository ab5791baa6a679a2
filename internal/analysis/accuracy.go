package analysis

import (
	"context"
	"math"
	"time"

	"github.com/san-kum/gravtree/internal/barneshut"
	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/force"
)

// Accuracy compares one tree pass with the exact sum.
type Accuracy struct {
	Theta        float64
	RMS          float64
	Max          float64
	Interactions barneshut.Interactions
	Exact        barneshut.Interactions
	TreeTime     time.Duration
	ExactTime    time.Duration
}

// Speedup is the ratio of exact to tree interaction counts.
func (a Accuracy) Speedup() float64 {
	if a.Interactions.Total() == 0 {
		return 0
	}
	return float64(a.Exact.Total()) / float64(a.Interactions.Total())
}

// Reference is one exact force pass that tree passes are compared with.
type Reference struct {
	acc  [][2]float64
	in   barneshut.Interactions
	took time.Duration
}

// NewReference runs the exact sum over a copy of bodies.
func NewReference(ctx context.Context, bodies []*body.Body, opts force.Options) (*Reference, error) {
	bs := body.CloneAll(bodies)
	start := time.Now()
	in, err := force.Compute(ctx, force.NewDirect(opts.Pool), bs)
	if err != nil {
		return nil, err
	}
	ref := &Reference{acc: make([][2]float64, len(bs)), in: in, took: time.Since(start)}
	for i, b := range bs {
		ref.acc[i] = [2]float64{b.AX, b.AY}
	}
	return ref, nil
}

// Compare runs one tree pass at theta over a copy of bodies, which must
// be the set the reference was built from.
func (r *Reference) Compare(ctx context.Context, bodies []*body.Body, theta float64, opts force.Options) (Accuracy, error) {
	opts.Theta = theta
	calc, err := force.New("barneshut", opts)
	if err != nil {
		return Accuracy{}, err
	}

	bs := body.CloneAll(bodies)
	start := time.Now()
	in, err := force.Compute(ctx, calc, bs)
	if err != nil {
		return Accuracy{}, err
	}
	a := Accuracy{Theta: theta, Interactions: in, Exact: r.in, TreeTime: time.Since(start), ExactTime: r.took}

	var sum float64
	n := 0
	for i, b := range bs {
		want := r.acc[i]
		mag := math.Hypot(want[0], want[1])
		if mag == 0 {
			continue
		}
		e := math.Hypot(b.AX-want[0], b.AY-want[1]) / mag
		sum += e * e
		a.Max = math.Max(a.Max, e)
		n++
	}
	if n > 0 {
		a.RMS = math.Sqrt(sum / float64(n))
	}
	return a, nil
}

// CompareForces runs one tree pass at theta and one exact pass over
// copies of bodies and reports the per-body relative error.
func CompareForces(ctx context.Context, bodies []*body.Body, theta float64, opts force.Options) (Accuracy, error) {
	ref, err := NewReference(ctx, bodies, opts)
	if err != nil {
		return Accuracy{}, err
	}
	return ref.Compare(ctx, bodies, theta, opts)
}

// ThetaSweep is CompareForces for each theta, sharing one exact pass.
func ThetaSweep(ctx context.Context, bodies []*body.Body, thetas []float64, opts force.Options) ([]Accuracy, error) {
	ref, err := NewReference(ctx, bodies, opts)
	if err != nil {
		return nil, err
	}
	out := make([]Accuracy, 0, len(thetas))
	for _, theta := range thetas {
		a, err := ref.Compare(ctx, bodies, theta, opts)
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}
