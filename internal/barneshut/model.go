package barneshut

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/gravtree/internal/logger"
	"github.com/san-kum/gravtree/internal/metrics"
	"github.com/san-kum/gravtree/internal/morton"
	"github.com/san-kum/gravtree/internal/tracing"
	"github.com/san-kum/gravtree/internal/workers"
)

// DefaultForkThreshold is the smallest range whose quadrants are built
// concurrently.
const DefaultForkThreshold = 2048

// Model is a Barnes-Hut force model. Build replaces the tree; queries are
// safe to run concurrently between builds.
type Model struct {
	pool          *workers.Pool
	forkThreshold int
	log           *slog.Logger
	rec           *metrics.Recorder

	root   *Node
	bodies []Body
	mapper *morton.Mapper
	theta  float64
	stats  Stats
}

type Option func(*Model)

func WithPool(p *workers.Pool) Option {
	return func(m *Model) { m.pool = p }
}

func WithForkThreshold(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.forkThreshold = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.log = l }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Model) { m.rec = r }
}

func New(opts ...Option) *Model {
	m := &Model{forkThreshold: DefaultForkThreshold}
	for _, opt := range opts {
		opt(m)
	}
	if m.pool == nil {
		m.pool = workers.New(0)
	}
	if m.log == nil {
		m.log = logger.WithComponent("barneshut")
	}
	return m
}

// Stats describes the shape of the current tree.
type Stats struct {
	Bodies   int
	Nodes    int
	Buckets  int
	MaxDepth int
}

// Build sorts bodies in place along the Morton curve and builds a fresh
// tree over them. On error the model holds no tree; the slice may have
// been reordered but is otherwise untouched.
func (m *Model) Build(ctx context.Context, bodies []Body, theta float64) (err error) {
	ctx, span := tracing.StartSpan(ctx, "barneshut.Build", trace.WithAttributes(
		attribute.Int("bodies", len(bodies)),
		attribute.Float64("theta", theta),
	))
	start := time.Now()
	defer func() {
		m.rec.ObserveBuild(time.Since(start), err)
		tracing.End(span, err)
	}()

	m.root, m.bodies, m.mapper, m.stats = nil, nil, nil, Stats{}

	if err := validate(bodies, theta); err != nil {
		return &BuildError{Stage: "validate", N: len(bodies), Wrapped: err}
	}

	var root *Node
	var mapper *morton.Mapper
	if len(bodies) == 1 {
		root = singleton(bodies)
	} else {
		mapper, err = morton.NewMapperParallel(ctx, m.pool, bodies)
		if err != nil {
			switch {
			case errors.Is(err, morton.ErrDegenerate):
				err = fmt.Errorf("%w: %w", ErrDegenerate, err)
			case errors.Is(err, morton.ErrOverflow):
				err = fmt.Errorf("%w: %w", ErrExtentOverflow, err)
			}
			return &BuildError{Stage: "bounds", N: len(bodies), Wrapped: err}
		}

		var keys []uint64
		keys, err = sortByKey(ctx, m.pool, mapper, bodies)
		if err != nil {
			return &BuildError{Stage: "sort", N: len(bodies), Wrapped: err}
		}
		defer keyScratch.Put(keys)

		t := &builder{bodies: bodies, keys: keys, pool: m.pool, threshold: m.forkThreshold}
		err = m.pool.Fork(ctx, func(ctx context.Context) error {
			var err error
			root, err = t.recalculate(ctx, 0, len(bodies), morton.RootMask, mapper.CellWidth(1))
			return err
		})
		if err != nil {
			return &BuildError{Stage: "tree", N: len(bodies), Wrapped: err}
		}
	}

	m.root, m.bodies, m.mapper, m.theta = root, bodies, mapper, theta
	m.stats = m.collectStats()
	m.rec.SetTree(m.stats.Bodies, m.stats.Nodes, m.stats.Buckets, m.stats.MaxDepth)

	m.log.Debug("tree built",
		"bodies", m.stats.Bodies,
		"nodes", m.stats.Nodes,
		"buckets", m.stats.Buckets,
		"depth", m.stats.MaxDepth,
		"elapsed", time.Since(start),
	)
	return nil
}

func (m *Model) collectStats() Stats {
	st := Stats{Bodies: len(m.bodies)}
	m.Walk(func(n *Node, depth int) bool {
		st.Nodes++
		if depth > st.MaxDepth {
			st.MaxDepth = depth
		}
		for i := range n.Slots {
			if n.Slots[i].Kind == SlotBucket {
				st.Buckets++
			}
		}
		return true
	})
	return st
}

// Accumulate applies the pull of the whole set to target at the build
// theta. Without a tree it does nothing.
func (m *Model) Accumulate(target Body) Interactions {
	return m.AccumulateTheta(target, m.theta)
}

// AccumulateTheta is Accumulate with an explicit opening angle. A
// negative or NaN theta never opens a node, which is the exact sum.
func (m *Model) AccumulateTheta(target Body, theta float64) Interactions {
	if m.root == nil {
		return Interactions{}
	}
	return m.root.Accumulate(target, theta)
}

// AccumulateAll runs Accumulate for every body on the pool. Each body's
// accumulator is written by one worker only.
func (m *Model) AccumulateAll(ctx context.Context) (total Interactions, err error) {
	if m.root == nil {
		return Interactions{}, nil
	}

	ctx, span := tracing.StartSpan(ctx, "barneshut.AccumulateAll", trace.WithAttributes(
		attribute.Int("bodies", len(m.bodies)),
	))
	start := time.Now()
	defer func() { tracing.End(span, err) }()

	total, err = workers.Reduce(ctx, m.pool, len(m.bodies), 64, Interactions{},
		func(lo, hi int) Interactions {
			var in Interactions
			for _, b := range m.bodies[lo:hi] {
				in.Add(m.root.Accumulate(b, m.theta))
			}
			return in
		},
		func(a, b Interactions) Interactions {
			a.Add(b)
			return a
		},
	)
	if err != nil {
		return Interactions{}, err
	}

	m.rec.ObserveQuery(time.Since(start), total.Direct, total.Approx)
	return total, nil
}

func (m *Model) Root() *Node { return m.root }

// Bodies is the sorted view the tree indexes into.
func (m *Model) Bodies() []Body { return m.bodies }

func (m *Model) Theta() float64 { return m.theta }

// Mapper is the quantizer of the last build; nil for a one-body tree.
func (m *Model) Mapper() *morton.Mapper { return m.mapper }

func (m *Model) Stats() Stats { return m.stats }

// Walk visits every node in pre-order. Returning false skips the
// subtree below that node.
func (m *Model) Walk(fn func(n *Node, depth int) bool) {
	if m.root == nil {
		return
	}
	m.root.walk(0, fn)
}
