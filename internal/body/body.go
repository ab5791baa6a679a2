// Package body holds the point-mass collaborator consumed by the force
// models: position, velocity, mass and an acceleration accumulator.
package body

import "math"

// Source is anything that exerts gravity: a real body or a tree aggregate.
type Source interface {
	X() float64
	Y() float64
	M() float64
}

// Law is the softened inverse-square gravity shared by a body set.
type Law struct {
	G         float64
	Softening float64
}

// DefaultLaw uses unit G and no softening.
var DefaultLaw = &Law{G: 1.0}

type Body struct {
	PX, PY float64
	VX, VY float64
	Mass   float64
	AX, AY float64
	ID     int

	law *Law
}

func New(id int, x, y, vx, vy, m float64, law *Law) *Body {
	if law == nil {
		law = DefaultLaw
	}
	return &Body{ID: id, PX: x, PY: y, VX: vx, VY: vy, Mass: m, law: law}
}

func (b *Body) X() float64 { return b.PX }
func (b *Body) Y() float64 { return b.PY }
func (b *Body) M() float64 { return b.Mass }

func (b *Body) Law() *Law {
	if b.law == nil {
		return DefaultLaw
	}
	return b.law
}

// AccGravityFrom adds the acceleration exerted by src onto b.
// A source at zero separation contributes nothing when softening is zero,
// and a body never pulls on itself.
func (b *Body) AccGravityFrom(src Source) {
	if s, ok := src.(*Body); ok && s == b {
		return
	}
	law := b.Law()
	rx := src.X() - b.PX
	ry := src.Y() - b.PY
	r2 := rx*rx + ry*ry + law.Softening*law.Softening
	if r2 == 0 {
		return
	}
	rInv := 1.0 / math.Sqrt(r2)
	f := law.G * src.M() * rInv * rInv * rInv
	b.AX += f * rx
	b.AY += f * ry
}

func (b *Body) ResetAcc() {
	b.AX, b.AY = 0, 0
}

// Kick advances velocity by dt using the accumulated acceleration.
func (b *Body) Kick(dt float64) {
	b.VX += b.AX * dt
	b.VY += b.AY * dt
}

// Drift advances position by dt using the current velocity.
func (b *Body) Drift(dt float64) {
	b.PX += b.VX * dt
	b.PY += b.VY * dt
}

func (b *Body) Kinetic() float64 {
	return 0.5 * b.Mass * (b.VX*b.VX + b.VY*b.VY)
}

func (b *Body) Clone() *Body {
	c := *b
	return &c
}

// CloneAll deep-copies a body set, preserving the shared law.
func CloneAll(bodies []*Body) []*Body {
	out := make([]*Body, len(bodies))
	for i, b := range bodies {
		out[i] = b.Clone()
	}
	return out
}

// IsFinite reports whether position and mass are usable.
func (b *Body) IsFinite() bool {
	for _, v := range [...]float64{b.PX, b.PY, b.VX, b.VY, b.Mass} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
