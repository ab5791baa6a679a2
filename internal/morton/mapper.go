package morton

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/gravtree/internal/workers"
)

var (
	ErrEmpty      = errors.New("morton: no points to map")
	ErrDegenerate = errors.New("morton: degenerate extent (points coincide)")
	ErrNonFinite  = errors.New("morton: non-finite coordinate")
	// ErrOverflow marks finite points whose spread exceeds the float64 range.
	ErrOverflow = errors.New("morton: extent overflows float64")
)

type Point interface {
	X() float64
	Y() float64
}

type Bounds struct {
	XMin, YMin float64
	XMax, YMax float64
}

func (b Bounds) union(o Bounds) Bounds {
	return Bounds{
		XMin: math.Min(b.XMin, o.XMin),
		YMin: math.Min(b.YMin, o.YMin),
		XMax: math.Max(b.XMax, o.XMax),
		YMax: math.Max(b.YMax, o.YMax),
	}
}

func emptyBounds() Bounds {
	return Bounds{
		XMin: math.Inf(1), YMin: math.Inf(1),
		XMax: math.Inf(-1), YMax: math.Inf(-1),
	}
}

// Mapper is the quantizer for one body set. Immutable once built.
type Mapper struct {
	Bounds
	MaxRange float64

	scale float64
}

// gridCells is 2^32, the number of cells per axis.
const gridCells = float64(1 << 32)

func NewMapper[P Point](pts []P) (*Mapper, error) {
	if len(pts) == 0 {
		return nil, ErrEmpty
	}
	return FromBounds(extent(pts))
}

// NewMapperParallel computes the extent reductions on the pool.
func NewMapperParallel[P Point](ctx context.Context, pool *workers.Pool, pts []P) (*Mapper, error) {
	if len(pts) == 0 {
		return nil, ErrEmpty
	}

	b, err := workers.Reduce(ctx, pool, len(pts), 8192, emptyBounds(),
		func(lo, hi int) Bounds { return extent(pts[lo:hi]) },
		Bounds.union,
	)
	if err != nil {
		return nil, err
	}
	return FromBounds(b)
}

func FromBounds(b Bounds) (*Mapper, error) {
	for _, v := range []float64{b.XMin, b.XMax, b.YMin, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: x [%v, %v] y [%v, %v]", ErrNonFinite, b.XMin, b.XMax, b.YMin, b.YMax)
		}
	}
	r := math.Max(b.XMax-b.XMin, b.YMax-b.YMin)
	switch {
	case math.IsInf(r, 0):
		return nil, fmt.Errorf("%w: x [%v, %v] y [%v, %v]", ErrOverflow, b.XMin, b.XMax, b.YMin, b.YMax)
	case r == 0:
		return nil, fmt.Errorf("%w: all at (%v, %v)", ErrDegenerate, b.XMin, b.YMin)
	}
	return &Mapper{Bounds: b, MaxRange: r, scale: gridCells / r}, nil
}

func extent[P Point](pts []P) Bounds {
	b := emptyBounds()
	for _, p := range pts {
		x, y := p.X(), p.Y()
		if x < b.XMin {
			b.XMin = x
		}
		if x > b.XMax {
			b.XMax = x
		}
		if y < b.YMin {
			b.YMin = y
		}
		if y > b.YMax {
			b.YMax = y
		}
	}
	return b
}

// quantize saturates: the far edge of the box lands in the last cell.
func (m *Mapper) quantize(v, min float64) uint32 {
	q := (v - min) * m.scale
	if !(q > 0) {
		return 0
	}
	if q >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(q)
}

func (m *Mapper) QuantizeX(x float64) uint32 { return m.quantize(x, m.XMin) }
func (m *Mapper) QuantizeY(y float64) uint32 { return m.quantize(y, m.YMin) }

// Key returns the Morton key of (x, y).
func (m *Mapper) Key(x, y float64) uint64 {
	return Interleave(m.QuantizeX(x), m.QuantizeY(y))
}

func (m *Mapper) KeyOf(p Point) uint64 { return m.Key(p.X(), p.Y()) }

// Less reports whether a sorts strictly before b on the Z-order curve.
func (m *Mapper) Less(a, b Point) bool {
	return m.KeyOf(a) < m.KeyOf(b)
}

// CellWidth is the side of a grid square at the given level; level 1 is
// the whole bounding box.
func (m *Mapper) CellWidth(level int) float64 {
	return m.MaxRange / float64(uint64(1)<<(level-1))
}
