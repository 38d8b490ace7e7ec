// Package config loads batch-run configuration from YAML files: the
// parameter grid (fixed values or min/max/step ranges per parameter),
// worker-pool sizing, output selection and logging.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kleroscope/kleroscope/internal/params"
	"github.com/kleroscope/kleroscope/internal/payoff"
)

// Config models a batch configuration file.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Batch   BatchConfig   `yaml:"batch"`
	Grid    GridConfig    `yaml:"grid"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	Level string `yaml:"level"`
}

// BatchConfig configures execution and persistence of a sweep.
type BatchConfig struct {
	// Simulations is the number of rounds per parameter combination.
	Simulations int `yaml:"simulations"`

	// Workers is the pool size; 0 selects the runner default (NumCPU-1).
	Workers int `yaml:"workers"`

	// ChunkSize bounds jobs per dispatch unit; 0 selects the default.
	ChunkSize int `yaml:"chunk_size"`

	// Seed is the batch-level RNG seed.
	Seed uint64 `yaml:"seed"`

	Output OutputConfig `yaml:"output"`
}

// OutputConfig selects where result rows go.
type OutputConfig struct {
	// Format is "csv" (default) or "sqlite".
	Format string `yaml:"format"`

	// Path is the output file. Defaults to results.csv / results.db
	// depending on format.
	Path string `yaml:"path"`
}

// Axis describes one swept parameter: either a single fixed value or an
// inclusive min/max/step range. Exactly one form must be set.
type Axis struct {
	Fixed *float64 `yaml:"fixed,omitempty"`
	Min   *float64 `yaml:"min,omitempty"`
	Max   *float64 `yaml:"max,omitempty"`
	Step  *float64 `yaml:"step,omitempty"`
}

// Values expands the axis into its ordered concrete values.
func (a Axis) Values(name string) ([]float64, error) {
	switch {
	case a.Fixed != nil:
		if a.Min != nil || a.Max != nil || a.Step != nil {
			return nil, fmt.Errorf("axis %s: fixed and range forms are mutually exclusive", name)
		}
		return []float64{*a.Fixed}, nil
	case a.Min != nil && a.Max != nil && a.Step != nil:
		vals, err := params.Range{Min: *a.Min, Max: *a.Max, Step: *a.Step}.Expand()
		if err != nil {
			return nil, fmt.Errorf("axis %s: %w", name, err)
		}
		return vals, nil
	default:
		return nil, fmt.Errorf("axis %s: set either fixed or all of min/max/step", name)
	}
}

// GridConfig is the YAML form of the parameter sweep.
type GridConfig struct {
	Mechanism   string  `yaml:"mechanism"`
	Attack      bool    `yaml:"attack"`
	Epsilon     float64 `yaml:"epsilon"`
	XGuessNoise float64 `yaml:"x_guess_noise"`

	Jurors  Axis `yaml:"jurors"`
	Reward  Axis `yaml:"reward"`
	Deposit Axis `yaml:"deposit"`
	Lambda  Axis `yaml:"lambda"`
	Noise   Axis `yaml:"noise"`
	XMean   Axis `yaml:"x_mean"`
}

// DefaultConfig returns the configuration used when no file is given: the
// symmetric single-combination baseline.
func DefaultConfig() Config {
	fixed := func(v float64) Axis { return Axis{Fixed: &v} }
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Batch: BatchConfig{
			Simulations: 100,
			Seed:        1,
			Output:      OutputConfig{Format: "csv", Path: "results.csv"},
		},
		Grid: GridConfig{
			Mechanism: string(payoff.Basic),
			Jurors:    fixed(9),
			Reward:    fixed(1.0),
			Deposit:   fixed(0.0),
			Lambda:    fixed(1.5),
			Noise:     fixed(0.1),
			XMean:     fixed(0.5),
		},
	}
}

// Load reads a configuration file, layering it over the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the execution settings. Grid values are validated during
// expansion, where the offending combination can be named.
func (c Config) Validate() error {
	if c.Batch.Simulations < 1 {
		return fmt.Errorf("batch.simulations = %d, want >= 1", c.Batch.Simulations)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers = %d, want >= 0", c.Batch.Workers)
	}
	if c.Batch.ChunkSize < 0 {
		return fmt.Errorf("batch.chunk_size = %d, want >= 0", c.Batch.ChunkSize)
	}
	switch c.Batch.Output.Format {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("batch.output.format = %q, want csv or sqlite", c.Batch.Output.Format)
	}
	if c.Batch.Output.Path == "" {
		return fmt.Errorf("batch.output.path is empty")
	}
	return nil
}

// BuildGrid expands the YAML grid into the sweep specification.
func (c Config) BuildGrid() (params.Grid, error) {
	mech, err := payoff.ParseMechanism(c.Grid.Mechanism)
	if err != nil {
		return params.Grid{}, err
	}

	g := params.Grid{
		Mechanism:   mech,
		Attack:      c.Grid.Attack,
		Epsilon:     c.Grid.Epsilon,
		XGuessNoise: c.Grid.XGuessNoise,
	}

	jurors, err := c.Grid.Jurors.Values("jurors")
	if err != nil {
		return params.Grid{}, err
	}
	for _, v := range jurors {
		n := int(math.Round(v))
		if math.Abs(v-float64(n)) > 1e-9 {
			return params.Grid{}, fmt.Errorf("axis jurors: %v is not an integer", v)
		}
		g.Jurors = append(g.Jurors, n)
	}

	if g.Reward, err = c.Grid.Reward.Values("reward"); err != nil {
		return params.Grid{}, err
	}
	if g.Deposit, err = c.Grid.Deposit.Values("deposit"); err != nil {
		return params.Grid{}, err
	}
	if g.Lambda, err = c.Grid.Lambda.Values("lambda"); err != nil {
		return params.Grid{}, err
	}
	if g.Noise, err = c.Grid.Noise.Values("noise"); err != nil {
		return params.Grid{}, err
	}
	if g.XMean, err = c.Grid.XMean.Values("x_mean"); err != nil {
		return params.Grid{}, err
	}
	return g, nil
}
