// Package automation runs configurations without a human at the
// terminal: scripted scenario files and seed ensembles.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/gravtree/internal/body"
	"github.com/san-kum/gravtree/internal/config"
	"github.com/san-kum/gravtree/internal/force"
	"github.com/san-kum/gravtree/internal/initcond"
	"github.com/san-kum/gravtree/internal/integrators"
	"github.com/san-kum/gravtree/internal/logger"
	"github.com/san-kum/gravtree/internal/metrics"
	"github.com/san-kum/gravtree/internal/sim"
	"github.com/san-kum/gravtree/internal/workers"
)

// Runner builds and runs one simulation from a configuration.
type Runner func(ctx context.Context, cfg *config.Config) (*sim.Result, error)

// Env holds the collaborators shared by every run it starts. Zero
// fields get defaults: a pool sized from the config, no metrics and the
// package logger.
type Env struct {
	Pool    *workers.Pool
	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// Simulate generates the initial bodies of cfg and integrates them.
func (e Env) Simulate(ctx context.Context, cfg *config.Config) (*sim.Result, error) {
	gen, err := initcond.Get(cfg.Distribution)
	if err != nil {
		return nil, err
	}

	pool := e.Pool
	if pool == nil {
		pool = workers.New(cfg.Workers)
	}
	log := e.Logger
	if log == nil {
		log = logger.WithComponent("automation")
	}

	calc, err := force.New(cfg.Method, force.Options{
		Theta:         cfg.Theta,
		Pool:          pool,
		ForkThreshold: cfg.ForkThreshold,
		Logger:        log,
		Metrics:       e.Metrics,
	})
	if err != nil {
		return nil, err
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	s := sim.New(calc, integ)
	s.SetRecorder(e.Metrics)
	s.SetLogger(log)
	if cfg.Bodies <= sim.MaxEnergyBodies {
		s.AddMetric(metrics.NewTotalEnergy())
		s.AddMetric(metrics.NewEnergyDrift())
		s.AddMetric(metrics.NewMomentumError())
	}

	bodies := gen(cfg.Bodies, cfg.Seed, &body.Law{G: cfg.G, Softening: cfg.Softening})
	return s.Run(ctx, bodies, sim.Config{
		Dt:            cfg.Dt,
		Duration:      cfg.Duration,
		OutputEvery:   cfg.OutputEvery,
		ValidateState: true,
	})
}

// Scenario is a scripted sequence of runs. Base is laid over the caller's
// configuration and every step's Config over Base; both may name a preset.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Base        yaml.Node      `yaml:"base"`
	Steps       []ScenarioStep `yaml:"steps"`
}

type ScenarioStep struct {
	Name   string    `yaml:"name"`
	Config yaml.Node `yaml:"config"`
	SaveAs string    `yaml:"save_as"`
}

// StepResult pairs a step's resolved configuration with its run.
type StepResult struct {
	Name   string
	SaveAs string
	Config *config.Config
	Result *sim.Result
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	return &sc, nil
}

// Configs resolves and validates the configuration of every step.
func (sc *Scenario) Configs(base *config.Config) ([]*config.Config, error) {
	shared := *base
	if err := overlay(&shared, &sc.Base); err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}

	out := make([]*config.Config, len(sc.Steps))
	for i := range sc.Steps {
		cfg := shared
		if err := overlay(&cfg, &sc.Steps[i].Config); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		out[i] = &cfg
	}
	return out, nil
}

// overlay decodes node over cfg. A preset named in node replaces cfg
// before the node's own fields apply.
func overlay(cfg *config.Config, node *yaml.Node) error {
	if node.Kind == 0 {
		return nil
	}
	var probe struct {
		Preset string `yaml:"preset"`
	}
	if err := node.Decode(&probe); err != nil {
		return err
	}
	if probe.Preset != "" {
		p := config.GetPreset(probe.Preset)
		if p == nil {
			return fmt.Errorf("%w: unknown preset %q", config.ErrInvalidConfig, probe.Preset)
		}
		*cfg = *p
	}
	return node.Decode(cfg)
}

// RunScenario runs every step in order and stops at the first failure,
// returning the steps completed so far.
func RunScenario(ctx context.Context, sc *Scenario, base *config.Config, run Runner) ([]StepResult, error) {
	configs, err := sc.Configs(base)
	if err != nil {
		return nil, err
	}

	log := logger.WithComponent("automation")
	results := make([]StepResult, 0, len(configs))
	for i, cfg := range configs {
		step := sc.Steps[i]
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		log.Info("scenario step", "scenario", sc.Name, "step", i+1, "of", len(configs), "name", name,
			"bodies", cfg.Bodies, "method", cfg.Method, "theta", cfg.Theta)

		result, err := run(ctx, cfg)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}
		results = append(results, StepResult{Name: name, SaveAs: step.SaveAs, Config: cfg, Result: result})
	}
	return results, nil
}

// EscapeRadius is the distance from the origin past which an ensemble
// member counts as unstable.
const EscapeRadius = 1e6

type EnsembleResult struct {
	Seed        int64
	Steps       int
	EnergyDrift float64
	Stable      bool
	Wall        time.Duration
}

// RunEnsemble repeats cfg over trials consecutive seeds starting at
// cfg.Seed. A run that blows up is recorded as unstable; any other
// failure aborts the ensemble.
func RunEnsemble(ctx context.Context, cfg *config.Config, trials int, run Runner) ([]EnsembleResult, error) {
	log := logger.WithComponent("automation")
	results := make([]EnsembleResult, 0, trials)

	for trial := 0; trial < trials; trial++ {
		c := *cfg
		c.Seed = cfg.Seed + int64(trial)

		start := time.Now()
		result, err := run(ctx, &c)
		r := EnsembleResult{Seed: c.Seed, Stable: true, Wall: time.Since(start)}
		switch {
		case errors.Is(err, sim.ErrInvalidState):
			r.Stable = false
		case err != nil:
			return results, fmt.Errorf("seed %d: %w", c.Seed, err)
		}
		if result != nil {
			r.Steps = result.StepsTaken
			r.EnergyDrift = result.EnergyDrift
			if r.Stable {
				r.Stable = bounded(result)
			}
		}
		results = append(results, r)

		if (trial+1)%10 == 0 {
			log.Info("ensemble progress", "done", trial+1, "of", trials)
		}
	}
	return results, nil
}

func bounded(result *sim.Result) bool {
	final, ok := finalSnapshot(result)
	if !ok {
		return true
	}
	for _, b := range final.Bodies {
		if math.Hypot(b.X, b.Y) > EscapeRadius {
			return false
		}
	}
	return true
}

func finalSnapshot(result *sim.Result) (sim.Snapshot, bool) {
	if len(result.Snapshots) == 0 {
		return sim.Snapshot{}, false
	}
	return result.Snapshots[len(result.Snapshots)-1], true
}

// EnsembleStats summarises an ensemble. Drift statistics cover stable
// members only.
func EnsembleStats(results []EnsembleResult) (stable, unstable int, meanDrift, maxDrift float64) {
	for _, r := range results {
		if !r.Stable {
			unstable++
			continue
		}
		stable++
		meanDrift += r.EnergyDrift
		maxDrift = math.Max(maxDrift, r.EnergyDrift)
	}
	if stable > 0 {
		meanDrift /= float64(stable)
	}
	return stable, unstable, meanDrift, maxDrift
}
