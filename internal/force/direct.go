package force

import (
	"context"

	"github.com/san-kum/gravtree/internal/barneshut"
	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/workers"
)

// Direct sums every pair. O(N^2), used as the reference.
type Direct struct {
	pool   *workers.Pool
	bodies []*body.Body
}

func NewDirect(pool *workers.Pool) *Direct {
	if pool == nil {
		pool = workers.New(0)
	}
	return &Direct{pool: pool}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Prepare(_ context.Context, bodies []*body.Body) error {
	d.bodies = bodies
	return nil
}

func (d *Direct) Accumulate(b *body.Body) barneshut.Interactions {
	n := 0
	for _, src := range d.bodies {
		if src == b {
			continue
		}
		b.AccGravityFrom(src)
		n++
	}
	return barneshut.Interactions{Direct: n}
}

func (d *Direct) AccumulateAll(ctx context.Context) (barneshut.Interactions, error) {
	return workers.Reduce(ctx, d.pool, len(d.bodies), 16, barneshut.Interactions{},
		func(lo, hi int) barneshut.Interactions {
			var in barneshut.Interactions
			for _, b := range d.bodies[lo:hi] {
				in.Add(d.Accumulate(b))
			}
			return in
		},
		func(a, b barneshut.Interactions) barneshut.Interactions {
			a.Add(b)
			return a
		},
	)
}
