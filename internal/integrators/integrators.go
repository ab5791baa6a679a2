// Package integrators advances a body set by one time step, calling the
// force calculator for fresh accelerations.
package integrators

import (
	"context"
	"fmt"
	"sort"

	"github.com/san-kum/gravtree/internal/barneshut"
	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/force"
)

// Integrator moves bodies forward by dt. Accelerations on entry are
// those of the current positions; Step leaves them current again.
type Integrator interface {
	Name() string
	Step(ctx context.Context, calc force.Calculator, bodies []*body.Body, dt float64) (barneshut.Interactions, error)
}

var registry = map[string]func() Integrator{
	"leapfrog": func() Integrator { return NewLeapfrog() },
	"euler":    func() Integrator { return NewEuler() },
}

func New(name string) (Integrator, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Leapfrog is kick-drift-kick: second order and symplectic.
type Leapfrog struct{}

func NewLeapfrog() *Leapfrog {
	return &Leapfrog{}
}

func (l *Leapfrog) Name() string { return "leapfrog" }

func (l *Leapfrog) Step(ctx context.Context, calc force.Calculator, bodies []*body.Body, dt float64) (barneshut.Interactions, error) {
	halfDt := 0.5 * dt
	for _, b := range bodies {
		b.Kick(halfDt)
		b.Drift(dt)
	}

	in, err := force.Compute(ctx, calc, bodies)
	if err != nil {
		return in, err
	}

	for _, b := range bodies {
		b.Kick(halfDt)
	}
	return in, nil
}

// Euler is the semi-implicit (symplectic) Euler step: kick with the
// current accelerations, then drift with the new velocities.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(ctx context.Context, calc force.Calculator, bodies []*body.Body, dt float64) (barneshut.Interactions, error) {
	for _, b := range bodies {
		b.Kick(dt)
		b.Drift(dt)
	}
	return force.Compute(ctx, calc, bodies)
}
