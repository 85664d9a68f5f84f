package config

import (
	"os"
	"path/filepath"
	"testing"

	"ringstat/domain/sweep"
	"ringstat/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ENGINE_KIND", "ENGINE_COMMAND", "ENGINE_ARGS", "ENGINE_COEFF", "ENGINE_COORD_PRIME", "TRIAL_COUNT", "TRIAL_WORKERS", "TRIAL_RETRIES", "TRIAL_SEED", "LANDMARKS", "DATABASE_URL", "LISTEN_ADDR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EngineSubprocess, cfg.Engine.Kind)
	assert.Equal(t, "python3", cfg.Engine.Command)
	assert.Equal(t, []string{"scripts/engine_bridge.py"}, cfg.Engine.Args)
	assert.Equal(t, 3, cfg.Engine.Coefficient)
	assert.Equal(t, 41, cfg.Engine.CoordinatePrime)
	assert.Equal(t, 100, cfg.Trials.Count)
	assert.Equal(t, 1, cfg.Trials.Workers)
	assert.Equal(t, 1000, cfg.Trials.Landmarks)
	assert.Equal(t, int64(0), cfg.Trials.Seed)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENGINE_KIND", "Probe")
	t.Setenv("ENGINE_COEFF", "5")
	t.Setenv("ENGINE_COORD_PRIME", "47")
	t.Setenv("TRIAL_WORKERS", "8")
	t.Setenv("TRIAL_SEED", "12345")
	t.Setenv("ENGINE_ARGS", "-m  bridge --fast")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EngineProbe, cfg.Engine.Kind)
	assert.Equal(t, 5, cfg.Engine.Coefficient)
	assert.Equal(t, 47, cfg.Engine.CoordinatePrime)
	assert.Equal(t, 8, cfg.Trials.Workers)
	assert.Equal(t, int64(12345), cfg.Trials.Seed)
	assert.Equal(t, []string{"-m", "bridge", "--fast"}, cfg.Engine.Args)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"ENGINE_KIND":        "gpu",
		"ENGINE_COEFF":       "4",
		"ENGINE_COORD_PRIME": "42",
		"TRIAL_WORKERS":      "0",
		"TRIAL_COUNT":        "-2",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
		})
	}
}

func writePlan(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadPlan(t *testing.T) {
	path := writePlan(t, `
name: merged
kind: cells_two
sources: [a.csv, b.csv]
output: out/merged
target: 1
max_time: 2000
trials: 25
cells_a: [0, 10, 20]
cells_b: [5, 10]
`)
	plan, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, sweep.KindCellsTwo, plan.Kind)
	assert.Equal(t, []int{0, 10, 20}, plan.CellsA)
	assert.Equal(t, 2000, plan.MaxTime)

	plan.ApplyDefaults(TrialConfig{Count: 100, Workers: 4, Landmarks: 500, Seed: 9})
	assert.Equal(t, 25, plan.Trials)
	assert.Equal(t, 4, plan.Workers)
	assert.Equal(t, 500, plan.Landmarks)
	assert.Equal(t, int64(9), plan.Seed)
}

func TestLoadPlanErrors(t *testing.T) {
	_, err := LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.HasCode(err, errors.CodeDataNotFound))

	_, err = LoadPlan(writePlan(t, "kind: cells\nsources: [a.csv]\noutput: x\ncells: [5]\nbogus: 1\n"))
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid), "unknown keys are rejected")

	_, err = LoadPlan(writePlan(t, "kind: times\nsources: [a.csv]\noutput: x\ntimes: [100, 0]\n"))
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))

	_, err = LoadPlan(writePlan(t, "kind: cells_two\nsources: [a.csv]\noutput: x\ncells_a: [1]\ncells_b: [1]\n"))
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
}
