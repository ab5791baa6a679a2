package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDistribution  = "plummer"
	DefaultMethod        = "barneshut"
	DefaultIntegrator    = "leapfrog"
	DefaultBodies        = 1000
	DefaultDt            = 0.001
	DefaultDuration      = 1.0
	DefaultTheta         = 0.5
	DefaultSoftening     = 0.01
	DefaultG             = 1.0
	DefaultForkThreshold = 2048
	DefaultOutputEvery   = 10
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Preset        string  `yaml:"preset,omitempty" json:"preset,omitempty"`
	Distribution  string  `yaml:"distribution" json:"distribution"`
	Method        string  `yaml:"method" json:"method"`
	Integrator    string  `yaml:"integrator" json:"integrator"`
	Bodies        int     `yaml:"bodies" json:"bodies"`
	Seed          int64   `yaml:"seed" json:"seed"`
	Dt            float64 `yaml:"dt" json:"dt"`
	Duration      float64 `yaml:"duration" json:"duration"`
	Theta         float64 `yaml:"theta" json:"theta"`
	Softening     float64 `yaml:"softening" json:"softening"`
	G             float64 `yaml:"g" json:"g"`
	Workers       int     `yaml:"workers" json:"workers"`
	ForkThreshold int     `yaml:"fork_threshold" json:"fork_threshold"`
	OutputEvery   int     `yaml:"output_every" json:"output_every"`
	LogLevel      string  `yaml:"log_level" json:"log_level"`
	MetricsAddr   string  `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Distribution:  DefaultDistribution,
		Method:        DefaultMethod,
		Integrator:    DefaultIntegrator,
		Bodies:        DefaultBodies,
		Seed:          1,
		Dt:            DefaultDt,
		Duration:      DefaultDuration,
		Theta:         DefaultTheta,
		Softening:     DefaultSoftening,
		G:             DefaultG,
		ForkThreshold: DefaultForkThreshold,
		OutputEvery:   DefaultOutputEvery,
		LogLevel:      "info",
	}
}

// Load reads path over the defaults. A preset named in the file is
// applied first and the file's own fields win over it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto reads path over cfg. Fields the file leaves out keep their
// current values unless the file names a preset, which replaces cfg first.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var probe struct {
		Preset string `yaml:"preset" json:"preset"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if probe.Preset != "" {
		p := GetPreset(probe.Preset)
		if p == nil {
			return fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, probe.Preset)
		}
		*cfg = *p
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Encode writes c as YAML.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

func (c *Config) Validate() error {
	switch {
	case c.Bodies < 1:
		return fmt.Errorf("%w: bodies must be >= 1, got %d", ErrInvalidConfig, c.Bodies)
	case !(c.Dt > 0):
		return fmt.Errorf("%w: dt must be positive, got %v", ErrInvalidConfig, c.Dt)
	case !(c.Duration > 0):
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidConfig, c.Duration)
	case c.Theta < 0 || math.IsNaN(c.Theta) || math.IsInf(c.Theta, 0):
		return fmt.Errorf("%w: theta must be finite and >= 0, got %v", ErrInvalidConfig, c.Theta)
	case c.Softening < 0:
		return fmt.Errorf("%w: softening must not be negative, got %v", ErrInvalidConfig, c.Softening)
	case !(c.G > 0):
		return fmt.Errorf("%w: g must be positive, got %v", ErrInvalidConfig, c.G)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	case c.OutputEvery < 0:
		return fmt.Errorf("%w: output_every must not be negative, got %d", ErrInvalidConfig, c.OutputEvery)
	}
	return nil
}

// Steps is the number of integration steps the run will take.
func (c *Config) Steps() int {
	return int(math.Round(c.Duration / c.Dt))
}
