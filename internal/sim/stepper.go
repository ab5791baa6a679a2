package sim

import (
	"context"
	"time"

	"github.com/san-kum/gravtree/internal/barneshut"
	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/force"
	"github.com/san-kum/gravtree/internal/integrators"
)

// Stepper advances a body set one step at a time for interactive use.
// It owns a copy of the initial bodies so Reset can rewind.
type Stepper struct {
	calc       force.Calculator
	integrator integrators.Integrator
	initial    []*body.Body
	bodies     []*body.Body
	dt         float64

	t         float64
	steps     int
	last      barneshut.Interactions
	lastForce time.Duration
}

func NewStepper(ctx context.Context, calc force.Calculator, integ integrators.Integrator, bodies []*body.Body, dt float64) (*Stepper, error) {
	s := &Stepper{
		calc:       calc,
		integrator: integ,
		initial:    body.CloneAll(bodies),
		dt:         dt,
	}
	return s, s.Reset(ctx)
}

// Reset rewinds to the initial bodies and recomputes their accelerations.
func (s *Stepper) Reset(ctx context.Context) error {
	s.bodies = body.CloneAll(s.initial)
	s.t, s.steps = 0, 0
	in, err := force.Compute(ctx, s.calc, s.bodies)
	s.last = in
	return err
}

func (s *Stepper) Step(ctx context.Context) error {
	start := time.Now()
	in, err := s.integrator.Step(ctx, s.calc, s.bodies, s.dt)
	if err != nil {
		return &SimError{Step: s.steps, Time: s.t, Wrapped: err}
	}
	if !allFinite(s.bodies) {
		return &SimError{Step: s.steps, Time: s.t, Wrapped: ErrInvalidState}
	}
	s.lastForce = time.Since(start)
	s.last = in
	s.t += s.dt
	s.steps++
	return nil
}

func (s *Stepper) Bodies() []*body.Body                     { return s.bodies }
func (s *Stepper) Time() float64                            { return s.t }
func (s *Stepper) Steps() int                               { return s.steps }
func (s *Stepper) LastInteractions() barneshut.Interactions { return s.last }
func (s *Stepper) LastStepTime() time.Duration              { return s.lastForce }
func (s *Stepper) Calculator() force.Calculator             { return s.calc }
