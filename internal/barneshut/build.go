package barneshut

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/gravtree/internal/morton"
	"github.com/san-kum/gravtree/internal/workers"
)

type keyed struct {
	key uint64
	b   Body
}

var (
	keyedScratch = workers.NewScratchPool[keyed]()
	keyScratch   = workers.NewScratchPool[uint64]()
)

// ValidateTheta rejects opening angles a query cannot use.
func ValidateTheta(theta float64) error {
	if theta < 0 || math.IsNaN(theta) || math.IsInf(theta, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidTheta, theta)
	}
	return nil
}

func validate(bodies []Body, theta float64) error {
	if len(bodies) == 0 {
		return ErrNoBodies
	}
	if err := ValidateTheta(theta); err != nil {
		return err
	}
	for i, b := range bodies {
		x, y, m := b.X(), b.Y(), b.M()
		if !finite(x) || !finite(y) || !finite(m) || m <= 0 {
			return fmt.Errorf("%w: index %d at (%v, %v) mass %v", ErrInvalidBody, i, x, y, m)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sortByKey orders bodies in place along the curve and returns the keys
// in the same order. The keys slice comes from keyScratch.
func sortByKey(ctx context.Context, pool *workers.Pool, mapper *morton.Mapper, bodies []Body) ([]uint64, error) {
	n := len(bodies)
	buf := keyedScratch.Get(n)
	defer keyedScratch.Put(buf)

	err := pool.For(ctx, n, 4096, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			buf[i] = keyed{key: mapper.KeyOf(bodies[i]), b: bodies[i]}
		}
	})
	if err != nil {
		return nil, err
	}

	err = workers.Sort(ctx, pool, buf, func(a, b keyed) int {
		return cmp.Compare(a.key, b.key)
	})
	if err != nil {
		return nil, err
	}

	keys := keyScratch.Get(n)
	for i := range buf {
		bodies[i] = buf[i].b
		keys[i] = buf[i].key
		buf[i].b = nil
	}
	return keys, nil
}

type builder struct {
	bodies    []Body
	keys      []uint64
	pool      *workers.Pool
	threshold int
}

// recalculate builds the node for [lo, hi), which holds at least two
// bodies sharing every key bit above mask. d is the cell width at this
// level; the node stores half of it.
func (t *builder) recalculate(ctx context.Context, lo, hi int, mask uint32, d float64) (*Node, error) {
	c := morton.Classifier{Mask: mask}

	var bounds [5]int
	bounds[0], bounds[4] = lo, hi
	for q := 1; q < 4; q++ {
		bounds[q] = lo + sort.Search(hi-lo, func(i int) bool {
			return !c.Below(t.keys[lo+i], q)
		})
	}

	mask >>= 1
	d /= 2

	n := &Node{HalfWidth: d, Lo: lo, Hi: hi, bodies: t.bodies}
	var tasks []func(context.Context) error

	for q := 0; q < 4; q++ {
		a, b := bounds[q], bounds[q+1]
		s := &n.Slots[q]
		s.Lo, s.Hi = a, b

		switch {
		case b == a:
			s.Kind = SlotEmpty
		case b-a == 1:
			s.Kind = SlotBody
		case mask == 0:
			// keys identical down to bit 0
			s.Kind = SlotBucket
		default:
			s.Kind = SlotNode
			tasks = append(tasks, func(ctx context.Context) error {
				child, err := t.recalculate(ctx, a, b, mask, d)
				if err != nil {
					return err
				}
				s.Node = child
				return nil
			})
		}
	}

	if err := t.run(ctx, hi-lo, tasks); err != nil {
		return nil, err
	}
	n.aggregate()
	return n, nil
}

// run forks the quadrant sub-builds of a large range and runs small
// ones on the caller.
func (t *builder) run(ctx context.Context, size int, tasks []func(context.Context) error) error {
	if len(tasks) == 0 {
		return nil
	}
	if size >= t.threshold && len(tasks) > 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return t.pool.Fork(ctx, tasks...)
	}
	for _, task := range tasks {
		if err := task(ctx); err != nil {
			return err
		}
	}
	return nil
}

// singleton is the tree of a one-body set: a root with one body slot.
func singleton(bodies []Body) *Node {
	n := &Node{Lo: 0, Hi: 1, bodies: bodies}
	n.Slots[0] = Slot{Kind: SlotBody, Lo: 0, Hi: 1}
	n.aggregate()
	return n
}
