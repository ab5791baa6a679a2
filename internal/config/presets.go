package config

import "sort"

// Presets are named starting points; GetPreset hands out copies.
var Presets = map[string]*Config{
	"cluster": {
		Distribution: "plummer", Method: "barneshut", Integrator: "leapfrog",
		Bodies: 2000, Seed: 1, Dt: 0.001, Duration: 2.0, Theta: 0.5, Softening: 0.02, G: 1,
		ForkThreshold: DefaultForkThreshold, OutputEvery: 20, LogLevel: "info",
	},
	"galaxy": {
		Distribution: "disk", Method: "barneshut", Integrator: "leapfrog",
		Bodies: 5000, Seed: 2, Dt: 0.0005, Duration: 3.0, Theta: 0.6, Softening: 0.005, G: 1,
		ForkThreshold: DefaultForkThreshold, OutputEvery: 40, LogLevel: "info",
	},
	"collision": {
		Distribution: "collision", Method: "barneshut", Integrator: "leapfrog",
		Bodies: 4000, Seed: 3, Dt: 0.001, Duration: 8.0, Theta: 0.6, Softening: 0.01, G: 1,
		ForkThreshold: DefaultForkThreshold, OutputEvery: 50, LogLevel: "info",
	},
	"cold-collapse": {
		Distribution: "uniform", Method: "barneshut", Integrator: "leapfrog",
		Bodies: 3000, Seed: 4, Dt: 0.0005, Duration: 1.5, Theta: 0.5, Softening: 0.02, G: 1,
		ForkThreshold: DefaultForkThreshold, OutputEvery: 20, LogLevel: "info",
	},
	"lattice": {
		Distribution: "grid", Method: "barneshut", Integrator: "leapfrog",
		Bodies: 1024, Seed: 5, Dt: 0.001, Duration: 1.0, Theta: 0.4, Softening: 0.05, G: 1,
		ForkThreshold: DefaultForkThreshold, OutputEvery: 10, LogLevel: "info",
	},
	"reference": {
		Distribution: "plummer", Method: "direct", Integrator: "leapfrog",
		Bodies: 500, Seed: 1, Dt: 0.001, Duration: 1.0, Theta: 0, Softening: 0.02, G: 1,
		ForkThreshold: DefaultForkThreshold, OutputEvery: 10, LogLevel: "info",
	},
}

func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *p
	cfg.Preset = name
	return &cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
