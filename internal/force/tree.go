package force

import (
	"context"

	"github.com/san-kum/gravtree/internal/barneshut"
	"github.com/san-kum/gravtree/internal/body"
)

// BarnesHut adapts the tree model to the Calculator contract. The model
// sorts its own view of the bodies; the caller's slice keeps its order.
type BarnesHut struct {
	model *barneshut.Model
	theta float64
	view  []barneshut.Body
}

func NewBarnesHut(theta float64, opts ...barneshut.Option) *BarnesHut {
	return &BarnesHut{model: barneshut.New(opts...), theta: theta}
}

func (t *BarnesHut) Name() string { return "barneshut" }

func (t *BarnesHut) Model() *barneshut.Model { return t.model }

func (t *BarnesHut) Theta() float64 { return t.theta }

// SetTheta changes the opening angle used from the next Prepare on.
func (t *BarnesHut) SetTheta(theta float64) error {
	if err := barneshut.ValidateTheta(theta); err != nil {
		return err
	}
	t.theta = theta
	return nil
}

func (t *BarnesHut) Prepare(ctx context.Context, bodies []*body.Body) error {
	if cap(t.view) < len(bodies) {
		t.view = make([]barneshut.Body, len(bodies))
	}
	t.view = t.view[:len(bodies)]
	for i, b := range bodies {
		t.view[i] = b
	}
	return t.model.Build(ctx, t.view, t.theta)
}

func (t *BarnesHut) Accumulate(b *body.Body) barneshut.Interactions {
	return t.model.Accumulate(b)
}

func (t *BarnesHut) AccumulateAll(ctx context.Context) (barneshut.Interactions, error) {
	return t.model.AccumulateAll(ctx)
}
