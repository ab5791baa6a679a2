package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/gravtree/internal/barneshut"
	"github.com/san-kum/gravtree/internal/body"
)

// ErrInvalidState indicates a body whose position, velocity or mass
// became NaN or Inf.
var ErrInvalidState = errors.New("sim: invalid state (NaN or Inf detected)")

type Metric interface {
	Name() string
	Observe(bodies []*body.Body, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnSnapshot(s Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) OnSnapshot(s Snapshot) { f(s) }

type Config struct {
	Dt            float64
	Duration      float64
	OutputEvery   int
	ValidateState bool
}

// BodyState is one body as recorded in a snapshot.
type BodyState struct {
	ID     int
	X, Y   float64
	VX, VY float64
	Mass   float64
}

type Snapshot struct {
	Step   int
	Time   float64
	Bodies []BodyState
}

func TakeSnapshot(step int, t float64, bodies []*body.Body) Snapshot {
	s := Snapshot{Step: step, Time: t, Bodies: make([]BodyState, len(bodies))}
	for i, b := range bodies {
		s.Bodies[i] = BodyState{ID: b.ID, X: b.PX, Y: b.PY, VX: b.VX, VY: b.VY, Mass: b.Mass}
	}
	return s
}

type Result struct {
	Snapshots    []Snapshot
	Metrics      map[string]float64
	StepsTaken   int
	Interactions barneshut.Interactions
	ForceTime    time.Duration
	WallTime     time.Duration
	EnergyDrift  float64
}

// SimError wraps a failure with the step it happened on.
type SimError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("sim: step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimError) Unwrap() error {
	return e.Wrapped
}
