package barneshut

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/morton"
	"github.com/san-kum/gravtree/internal/workers"
)

func TestBuildErrors(t *testing.T) {
	good := asBodies(uniform(10, 1))

	tests := []struct {
		name   string
		bodies []Body
		theta  float64
		want   error
	}{
		{"no bodies", nil, 0.5, ErrNoBodies},
		{"nan position", asBodies([]*body.Body{body.New(0, math.NaN(), 0, 0, 0, 1, nil), body.New(1, 1, 1, 0, 0, 1, nil)}), 0.5, ErrInvalidBody},
		{"zero mass", asBodies([]*body.Body{body.New(0, 0, 0, 0, 0, 0, nil), body.New(1, 1, 1, 0, 0, 1, nil)}), 0.5, ErrInvalidBody},
		{"negative theta", good, -0.1, ErrInvalidTheta},
		{"infinite theta", good, math.Inf(1), ErrInvalidTheta},
		{"coincident", asBodies([]*body.Body{body.New(0, 2, 2, 0, 0, 1, nil), body.New(1, 2, 2, 0, 0, 1, nil)}), 0.5, ErrDegenerate},
		{"overflowing extent", asBodies([]*body.Body{body.New(0, -1e308, 0, 0, 0, 1, nil), body.New(1, 1e308, 0, 0, 0, 1, nil)}), 0.5, ErrExtentOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(WithPool(workers.Serial()))
			if err := m.Build(context.Background(), asBodies(uniform(5, 2)), 0.5); err != nil {
				t.Fatalf("setup build failed: %v", err)
			}

			err := m.Build(context.Background(), tt.bodies, tt.theta)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var be *BuildError
			if !errors.As(err, &be) {
				t.Errorf("expected *BuildError, got %T", err)
			}
			if m.Root() != nil || m.Bodies() != nil {
				t.Error("failed build must leave no tree behind")
			}
			if in := m.Accumulate(body.New(99, 0, 0, 0, 0, 1, nil)); in.Total() != 0 {
				t.Errorf("query on empty model made %d interactions", in.Total())
			}
		})
	}
}

func TestDegenerateWrapsMortonError(t *testing.T) {
	m := newTestModel()
	bs := asBodies([]*body.Body{body.New(0, 1, 1, 0, 0, 1, nil), body.New(1, 1, 1, 0, 0, 2, nil), body.New(2, 1, 1, 0, 0, 3, nil)})
	err := m.Build(context.Background(), bs, 0.5)
	if !errors.Is(err, morton.ErrDegenerate) {
		t.Errorf("expected morton.ErrDegenerate in chain, got %v", err)
	}
}

func TestTreeInvariants(t *testing.T) {
	bs := uniform(3000, 7)
	m := newTestModel(WithPool(workers.New(4)), WithForkThreshold(64))
	if err := m.Build(context.Background(), asBodies(bs), 0.5); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var total float64
	for _, b := range bs {
		total += b.Mass
	}
	root := m.Root()
	if math.Abs(root.M()-total) > 1e-9*total {
		t.Errorf("root mass %f, want %f", root.M(), total)
	}
	if root.HalfWidth != m.Mapper().MaxRange/2 {
		t.Errorf("root half-width %f, want %f", root.HalfWidth, m.Mapper().MaxRange/2)
	}

	sorted := m.Bodies()
	mapper := m.Mapper()
	for i := 1; i < len(sorted); i++ {
		if mapper.Less(sorted[i], sorted[i-1]) {
			t.Fatalf("bodies out of order at %d", i)
		}
	}

	m.Walk(func(n *Node, depth int) bool {
		if n.Slots[0].Lo != n.Lo || n.Slots[3].Hi != n.Hi {
			t.Fatalf("slots of [%d,%d) do not span the node", n.Lo, n.Hi)
		}
		var mass, cx, cy float64
		for q := range n.Slots {
			s := n.Slots[q]
			if q < 3 && s.Hi != n.Slots[q+1].Lo {
				t.Fatalf("gap between slots %d and %d", q, q+1)
			}
			switch s.Kind {
			case SlotEmpty:
				if s.Hi != s.Lo {
					t.Fatalf("empty slot covers %d bodies", s.Hi-s.Lo)
				}
			case SlotBody:
				if s.Hi-s.Lo != 1 {
					t.Fatalf("body slot covers %d bodies", s.Hi-s.Lo)
				}
			case SlotNode:
				if s.Node.Lo != s.Lo || s.Node.Hi != s.Hi {
					t.Fatalf("child range mismatch")
				}
				if s.Node.HalfWidth != n.HalfWidth/2 {
					t.Fatalf("child half-width %g, parent %g", s.Node.HalfWidth, n.HalfWidth)
				}
			}
		}
		for _, b := range sorted[n.Lo:n.Hi] {
			mass += b.M()
			cx += b.X() * b.M()
			cy += b.Y() * b.M()
		}
		cx, cy = cx/mass, cy/mass
		if math.Abs(n.M()-mass) > 1e-9*mass || math.Abs(n.X()-cx) > 1e-9 || math.Abs(n.Y()-cy) > 1e-9 {
			t.Fatalf("node [%d,%d) aggregate (%g,%g,%g), want (%g,%g,%g)", n.Lo, n.Hi, n.X(), n.Y(), n.M(), cx, cy, mass)
		}
		return true
	})

	st := m.Stats()
	if st.Bodies != 3000 || st.Nodes == 0 || st.Buckets != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestThetaZeroIsExact(t *testing.T) {
	bs := uniform(400, 3)
	ref := bruteForce(bs)

	m := newTestModel()
	if err := m.Build(context.Background(), asBodies(bs), 0); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	in, err := m.AccumulateAll(context.Background())
	if err != nil {
		t.Fatalf("AccumulateAll failed: %v", err)
	}

	if in.Approx != 0 || in.Direct != 400*399 {
		t.Errorf("expected %d direct and no approx, got %+v", 400*399, in)
	}
	if e := relRMS(bs, ref); e > 1e-12 {
		t.Errorf("relative error %g at theta 0", e)
	}
}

func TestConvergesAsThetaShrinks(t *testing.T) {
	bs := uniform(2000, 5)
	ref := bruteForce(bs)

	m := newTestModel()
	if err := m.Build(context.Background(), asBodies(bs), 1.0); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	prevErr := math.Inf(1)
	prevWork := math.MaxInt
	for _, theta := range []float64{1.0, 0.7, 0.4, 0.1, 0} {
		resetAll(bs)
		work := 0
		for _, b := range bs {
			work += m.AccumulateTheta(b, theta).Total()
		}
		e := relRMS(bs, ref)
		if e > prevErr*1.05 {
			t.Errorf("theta %.1f: error %g grew from %g", theta, e, prevErr)
		}
		if work < prevWork && theta < 1.0 {
			t.Errorf("theta %.1f: work %d dropped below %d", theta, work, prevWork)
		}
		prevErr, prevWork = e, work
	}
	if prevErr > 1e-12 {
		t.Errorf("theta 0 error %g", prevErr)
	}
}

func TestInteractionsMonotoneInTheta(t *testing.T) {
	bs := uniform(1500, 13)
	m := newTestModel()
	if err := m.Build(context.Background(), asBodies(bs), 0.5); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	probe := body.New(-1, 0.31, 0.77, 0, 0, 1, nil)

	prev := 0
	for _, theta := range []float64{2, 1, 0.5, 0.25, 0.1, 0} {
		got := m.AccumulateTheta(probe, theta).Total()
		if got < prev {
			t.Errorf("theta %g: %d interactions, fewer than %d at a larger theta", theta, got, prev)
		}
		prev = got
	}
	if prev != 1500 {
		t.Errorf("exact pass touched %d bodies, want 1500", prev)
	}
}

func TestSingleBody(t *testing.T) {
	b := body.New(0, 0, 0, 0, 0, 1, nil)
	m := newTestModel()
	if err := m.Build(context.Background(), []Body{b}, 0.5); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if m.Root().M() != 1 || m.Stats().Nodes != 1 {
		t.Errorf("unexpected single-body tree: mass %f stats %+v", m.Root().M(), m.Stats())
	}
	if in := m.Accumulate(b); in.Total() != 0 {
		t.Errorf("self query made %d interactions", in.Total())
	}
	if b.AX != 0 || b.AY != 0 {
		t.Errorf("self force (%g,%g), want zero", b.AX, b.AY)
	}
}

func TestCoincidentBodiesBucket(t *testing.T) {
	bs := []*body.Body{
		body.New(0, 0, 0, 0, 0, 1, nil),
		body.New(1, 0, 0, 0, 0, 1, nil),
		body.New(2, 0, 0, 0, 0, 1, nil),
		body.New(3, 1, 1, 0, 0, 1, nil),
	}
	m := newTestModel()
	if err := m.Build(context.Background(), asBodies(bs), 0.5); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	st := m.Stats()
	if st.Buckets != 1 || st.MaxDepth != 31 {
		t.Errorf("expected one bucket at depth 31, got %+v", st)
	}

	m.Accumulate(bs[0])
	want := body.New(9, 0, 0, 0, 0, 1, nil)
	want.AccGravityFrom(bs[3])
	if bs[0].AX != want.AX || bs[0].AY != want.AY {
		t.Errorf("acc (%g,%g), want (%g,%g)", bs[0].AX, bs[0].AY, want.AX, want.AY)
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	bs := uniform(1000, 17)
	m := newTestModel()
	ctx := context.Background()

	if err := m.Build(ctx, asBodies(bs), 0.6); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	first := m.Stats()
	x, y, mass := m.Root().X(), m.Root().Y(), m.Root().M()

	if err := m.Build(ctx, m.Bodies(), 0.6); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if m.Stats() != first {
		t.Errorf("stats changed: %+v -> %+v", first, m.Stats())
	}
	if m.Root().X() != x || m.Root().Y() != y || m.Root().M() != mass {
		t.Error("root aggregate changed across rebuild")
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	serialBodies := uniform(20000, 23)
	parallelBodies := uniform(20000, 23)
	ctx := context.Background()

	serial := newTestModel(WithPool(workers.Serial()))
	parallel := newTestModel(WithPool(workers.New(8)), WithForkThreshold(32))

	if err := serial.Build(ctx, asBodies(serialBodies), 0.5); err != nil {
		t.Fatalf("serial build failed: %v", err)
	}
	if err := parallel.Build(ctx, asBodies(parallelBodies), 0.5); err != nil {
		t.Fatalf("parallel build failed: %v", err)
	}
	if serial.Stats() != parallel.Stats() {
		t.Fatalf("stats differ: %+v vs %+v", serial.Stats(), parallel.Stats())
	}

	a, err := serial.AccumulateAll(ctx)
	if err != nil {
		t.Fatalf("serial query failed: %v", err)
	}
	b, err := parallel.AccumulateAll(ctx)
	if err != nil {
		t.Fatalf("parallel query failed: %v", err)
	}
	if a != b {
		t.Errorf("interaction counts differ: %+v vs %+v", a, b)
	}
	for i := range serialBodies {
		if serialBodies[i].AX != parallelBodies[i].AX || serialBodies[i].AY != parallelBodies[i].AY {
			t.Fatalf("body %d: acc differs", i)
		}
	}
}

type panicky struct {
	*body.Body
	calls atomic.Int32
}

// M panics on its second call, after validation has read it once.
func (p *panicky) M() float64 {
	if p.calls.Add(1) > 1 {
		panic("mass lookup failed")
	}
	return p.Mass
}

func TestBuildPanicAbortsBuild(t *testing.T) {
	bs := uniform(50, 29)
	in := asBodies(bs)
	in[17] = &panicky{Body: bs[17]}

	m := newTestModel(WithPool(workers.New(4)), WithForkThreshold(2))
	err := m.Build(context.Background(), in, 0.5)
	if !errors.Is(err, workers.ErrPanic) {
		t.Fatalf("expected ErrPanic, got %v", err)
	}
	if m.Root() != nil {
		t.Error("panicked build must leave no tree behind")
	}
}

func TestBuildCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := newTestModel(WithPool(workers.New(4)))
	err := m.Build(ctx, asBodies(uniform(100000, 31)), 0.5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrDegenerate) {
		t.Error("cancellation must not be reported as degenerate")
	}
}

func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{1000, 10000, 100000} {
		bs := asBodies(uniform(n, 1))
		m := newTestModel()
		b.Run(benchName(n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if err := m.Build(context.Background(), bs, 0.5); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkAccumulateAll(b *testing.B) {
	for _, n := range []int{1000, 10000, 100000} {
		bs := asBodies(uniform(n, 1))
		m := newTestModel()
		if err := m.Build(context.Background(), bs, 0.5); err != nil {
			b.Fatal(err)
		}
		b.Run(benchName(n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := m.AccumulateAll(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
