package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/force"
	"github.com/san-kum/gravtree/internal/integrators"
	"github.com/san-kum/gravtree/internal/logger"
	"github.com/san-kum/gravtree/internal/metrics"
	"github.com/san-kum/gravtree/internal/tracing"
)

// MaxEnergyBodies bounds the set size for which Run evaluates the exact
// pairwise potential to report energy drift.
const MaxEnergyBodies = 20000

type Simulator struct {
	calc       force.Calculator
	integrator integrators.Integrator
	metrics    []Metric
	observers  []Observer
	rec        *metrics.Recorder
	log        *slog.Logger
}

func New(calc force.Calculator, integrator integrators.Integrator) *Simulator {
	return &Simulator{
		calc:       calc,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
		log:        logger.WithComponent("sim"),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) SetRecorder(r *metrics.Recorder) { s.rec = r }
func (s *Simulator) SetLogger(l *slog.Logger)        { s.log = l }

// Run integrates a copy of bodies for cfg.Duration. Metrics and observers
// see every snapshot. On cancellation the partial result is returned
// with ctx.Err().
func (s *Simulator) Run(ctx context.Context, bodies []*body.Body, cfg Config) (res *Result, err error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "sim.Run", trace.WithAttributes(
		attribute.Int("bodies", len(bodies)),
		attribute.String("force", s.calc.Name()),
		attribute.String("integrator", s.integrator.Name()),
	))
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	steps := int(math.Round(cfg.Duration / cfg.Dt))
	every := cfg.OutputEvery
	if every <= 0 {
		every = 1
	}

	result := &Result{
		Snapshots: make([]Snapshot, 0, steps/every+2),
		Metrics:   make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	bs := body.CloneAll(bodies)
	t := 0.0
	trackEnergy := len(bs) <= MaxEnergyBodies

	forceStart := time.Now()
	in, err := force.Compute(ctx, s.calc, bs)
	if err != nil {
		return nil, &SimError{Step: 0, Time: 0, Wrapped: err}
	}
	result.ForceTime += time.Since(forceStart)
	result.Interactions.Add(in)

	var initialEnergy float64
	if trackEnergy {
		k, p := metrics.Energy(bs)
		initialEnergy = k + p
	}
	s.snapshot(result, 0, t, bs)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			result.WallTime = time.Since(start)
			return result, ctx.Err()
		default:
		}

		stepStart := time.Now()
		in, err := s.integrator.Step(ctx, s.calc, bs, cfg.Dt)
		if err != nil {
			return result, &SimError{Step: i, Time: t, Wrapped: err}
		}
		result.ForceTime += time.Since(stepStart)
		result.Interactions.Add(in)
		s.rec.ObserveStep(time.Since(stepStart))

		if cfg.ValidateState && !allFinite(bs) {
			return result, &SimError{Step: i, Time: t, Wrapped: ErrInvalidState}
		}

		t += cfg.Dt
		result.StepsTaken++

		if result.StepsTaken%every == 0 || i == steps-1 {
			s.snapshot(result, result.StepsTaken, t, bs)
		}
	}

	if trackEnergy && initialEnergy != 0 {
		k, p := metrics.Energy(bs)
		result.EnergyDrift = math.Abs(k+p-initialEnergy) / math.Abs(initialEnergy)
		s.rec.SetEnergy(k+p, result.EnergyDrift)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	result.WallTime = time.Since(start)

	s.log.Info("run complete",
		"bodies", len(bs),
		"steps", result.StepsTaken,
		"interactions", result.Interactions.Total(),
		"energy_drift", result.EnergyDrift,
		"elapsed", result.WallTime,
	)
	return result, nil
}

func (s *Simulator) snapshot(result *Result, step int, t float64, bs []*body.Body) {
	snap := TakeSnapshot(step, t, bs)
	result.Snapshots = append(result.Snapshots, snap)
	for _, m := range s.metrics {
		m.Observe(bs, t)
	}
	for _, obs := range s.observers {
		obs.OnSnapshot(snap)
	}
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.OutputEvery < 0 {
		return fmt.Errorf("output_every must not be negative, got %d", cfg.OutputEvery)
	}
	return nil
}

func allFinite(bs []*body.Body) bool {
	for _, b := range bs {
		if !b.IsFinite() {
			return false
		}
	}
	return true
}
