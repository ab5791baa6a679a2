// Package force computes the per-body gravitational accelerations that the
// integrators consume, either exactly or through the Barnes-Hut tree.
package force

import (
	"context"
	"log/slog"

	"github.com/san-kum/gravtree/internal/barneshut"
	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/metrics"
	"github.com/san-kum/gravtree/internal/workers"
)

// Calculator fills the acceleration accumulators of a body set.
// Prepare must run after positions change and before any Accumulate.
type Calculator interface {
	Name() string
	Prepare(ctx context.Context, bodies []*body.Body) error
	Accumulate(b *body.Body) barneshut.Interactions
	AccumulateAll(ctx context.Context) (barneshut.Interactions, error)
}

// Options configure calculators built through the registry.
type Options struct {
	Theta         float64
	Pool          *workers.Pool
	ForkThreshold int
	Logger        *slog.Logger
	Metrics       *metrics.Recorder
}

func (o Options) pool() *workers.Pool {
	if o.Pool == nil {
		return workers.New(0)
	}
	return o.Pool
}

// Compute resets every accumulator, prepares calc and runs a full pass.
func Compute(ctx context.Context, calc Calculator, bodies []*body.Body) (barneshut.Interactions, error) {
	for _, b := range bodies {
		b.ResetAcc()
	}
	if err := calc.Prepare(ctx, bodies); err != nil {
		return barneshut.Interactions{}, err
	}
	return calc.AccumulateAll(ctx)
}
