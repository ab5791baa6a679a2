package metrics

import (
	"math"

	"github.com/san-kum/gravtree/internal/body"
)

// Energy returns the kinetic and softened potential energy of bs.
// The potential is an exact pairwise sum.
func Energy(bs []*body.Body) (kinetic, potential float64) {
	for i, a := range bs {
		kinetic += a.Kinetic()
		law := a.Law()
		eps2 := law.Softening * law.Softening
		for _, b := range bs[i+1:] {
			dx, dy := a.PX-b.PX, a.PY-b.PY
			r := math.Sqrt(dx*dx + dy*dy + eps2)
			if r == 0 {
				continue
			}
			potential -= law.G * a.Mass * b.Mass / r
		}
	}
	return kinetic, potential
}

func Momentum(bs []*body.Body) (px, py float64) {
	for _, b := range bs {
		px += b.Mass * b.VX
		py += b.Mass * b.VY
	}
	return px, py
}

// TotalEnergy reports the energy at the latest observation.
type TotalEnergy struct {
	name    string
	last    float64
	samples int
}

func NewTotalEnergy() *TotalEnergy {
	return &TotalEnergy{name: "energy"}
}

func (e *TotalEnergy) Name() string { return e.name }

func (e *TotalEnergy) Observe(bs []*body.Body, t float64) {
	k, p := Energy(bs)
	e.last = k + p
	e.samples++
}

func (e *TotalEnergy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.last
}

func (e *TotalEnergy) Reset() {
	e.last = 0
	e.samples = 0
}

// EnergyDrift is the largest relative departure from the first observed
// total energy.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(bs []*body.Body, t float64) {
	k, p := Energy(bs)
	energy := k + p

	if e.samples == 0 {
		e.initialEnergy = energy
	}

	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

// Current is the drift at the latest observation.
func (e *EnergyDrift) Current() float64 {
	if e.initialEnergy == 0 {
		return 0
	}
	return math.Abs(e.currentEnergy-e.initialEnergy) / math.Abs(e.initialEnergy)
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// MomentumError is the largest |P| seen. A closed system should keep it
// at the round-off floor; tree forces are not exactly antisymmetric.
type MomentumError struct {
	name string
	max  float64
}

func NewMomentumError() *MomentumError {
	return &MomentumError{name: "momentum_error"}
}

func (m *MomentumError) Name() string { return m.name }

func (m *MomentumError) Observe(bs []*body.Body, t float64) {
	px, py := Momentum(bs)
	m.max = math.Max(m.max, math.Hypot(px, py))
}

func (m *MomentumError) Value() float64 { return m.max }

func (m *MomentumError) Reset() { m.max = 0 }
