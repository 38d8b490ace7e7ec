package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	g, err := cfg.BuildGrid()
	if err != nil {
		t.Fatalf("BuildGrid: %v", err)
	}
	if g.Size() != 1 {
		t.Errorf("default grid size = %d, want 1", g.Size())
	}
	if len(g.Jurors) != 1 || g.Jurors[0] != 9 {
		t.Errorf("default jurors = %v, want [9]", g.Jurors)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
batch:
  simulations: 250
  workers: 3
  output:
    format: sqlite
    path: sweep.db
grid:
  mechanism: Redistributive
  deposit:
    min: 0.0
    max: 0.4
    step: 0.2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Batch.Simulations != 250 || cfg.Batch.Workers != 3 {
		t.Errorf("batch = %+v", cfg.Batch)
	}
	if cfg.Batch.Output.Format != "sqlite" || cfg.Batch.Output.Path != "sweep.db" {
		t.Errorf("output = %+v", cfg.Batch.Output)
	}
	// Unset fields keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level = %q, want default info", cfg.Logging.Level)
	}

	g, err := cfg.BuildGrid()
	if err != nil {
		t.Fatalf("BuildGrid: %v", err)
	}
	if len(g.Deposit) != 3 {
		t.Errorf("deposit axis = %v, want 3 values", g.Deposit)
	}
	if g.Size() != 3 {
		t.Errorf("grid size = %d, want 3", g.Size())
	}
}

func TestLoadRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name, content string
	}{
		{"zero simulations", "batch:\n  simulations: 0\n"},
		{"bad format", "batch:\n  output:\n    format: parquet\n"},
		{"empty path", "batch:\n  output:\n    path: \"\"\n"},
		{"malformed yaml", "batch: ["},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, c.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBuildGridRejections(t *testing.T) {
	t.Run("unknown mechanism", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Grid.Mechanism = "Quadratic"
		if _, err := cfg.BuildGrid(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("fractional jurors", func(t *testing.T) {
		cfg := DefaultConfig()
		half := 4.5
		cfg.Grid.Jurors = Axis{Fixed: &half}
		if _, err := cfg.BuildGrid(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("axis with both forms", func(t *testing.T) {
		cfg := DefaultConfig()
		v := 1.0
		cfg.Grid.Reward = Axis{Fixed: &v, Min: &v, Max: &v, Step: &v}
		if _, err := cfg.BuildGrid(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("axis with partial range", func(t *testing.T) {
		cfg := DefaultConfig()
		v := 1.0
		cfg.Grid.Lambda = Axis{Min: &v, Max: &v}
		if _, err := cfg.BuildGrid(); err == nil {
			t.Error("expected error")
		}
	})
}
