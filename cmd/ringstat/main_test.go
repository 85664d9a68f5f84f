package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"ringstat/domain/sweep"
	"ringstat/internal/config"
	"ringstat/internal/errors"
	"ringstat/internal/synth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSweepTablesTwoAxes(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out", "merged")
	grid := &sweep.Grid{
		Axes: []sweep.Axis{{Name: "cells_a", Values: []int{0, 10}}, {Name: "cells_b", Values: []int{5, 20}}},
		Cells: []sweep.Cell{
			sweep.NewCell([]int{0, 0}, []int{0, 5}, 0, 4),
			sweep.NewCell([]int{0, 1}, []int{0, 20}, 1, 4),
			sweep.NewCell([]int{1, 0}, []int{10, 5}, 2, 4),
			sweep.NewCell([]int{1, 1}, []int{10, 20}, 4, 4),
		},
	}
	require.NoError(t, writeSweepTables(root, grid))

	success, err := os.ReadFile(root + "_success.csv")
	require.NoError(t, err)
	assert.Equal(t, "0.000,0.250\n0.500,1.000\n", string(success))

	n, err := os.ReadFile(root + "_n.csv")
	require.NoError(t, err)
	assert.Equal(t, "0\n10\n", string(n))

	n2, err := os.ReadFile(root + "_n2.csv")
	require.NoError(t, err)
	assert.Equal(t, "5\n20\n", string(n2))
}

func TestWriteSweepTablesSingleRowGrid(t *testing.T) {
	root := filepath.Join(t.TempDir(), "merged")
	grid := &sweep.Grid{
		Axes: []sweep.Axis{{Name: "cells_a", Values: []int{5}}, {Name: "cells_b", Values: []int{1, 2, 3}}},
		Cells: []sweep.Cell{
			sweep.NewCell([]int{0, 0}, []int{5, 1}, 1, 10),
			sweep.NewCell([]int{0, 1}, []int{5, 2}, 2, 10),
			sweep.NewCell([]int{0, 2}, []int{5, 3}, 3, 10),
		},
	}
	require.NoError(t, writeSweepTables(root, grid))

	success, err := os.ReadFile(root + "_success.csv")
	require.NoError(t, err)
	assert.Equal(t, "0.100,0.200,0.300\n", string(success))
}

func TestGenerateActivity(t *testing.T) {
	cfg := synth.DefaultRingConfig()
	cfg.Timepoints, cfg.Channels = 40, 6

	for _, noiseOnly := range []bool{false, true} {
		m, err := generateActivity(cfg, noiseOnly)
		require.NoError(t, err)
		assert.Equal(t, 40, m.Timepoints())
		assert.Equal(t, 6, m.Channels())
	}

	cfg.Channels = 0
	for _, noiseOnly := range []bool{false, true} {
		_, err := generateActivity(cfg, noiseOnly)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidInput), "noiseOnly=%v", noiseOnly)
	}
}

func TestResolveSeed(t *testing.T) {
	assert.Equal(t, int64(7), resolveSeed(7, config.TrialConfig{Seed: 3}))
	assert.Equal(t, int64(3), resolveSeed(0, config.TrialConfig{Seed: 3}))
	assert.NotZero(t, resolveSeed(0, config.TrialConfig{}))
}

func TestCommandsRegistered(t *testing.T) {
	for _, cmd := range []struct {
		name string
		use  string
	}{
		{"diagram", newDiagramCmd().Use},
		{"coords", newCoordsCmd().Use},
		{"sweep-cells", newSweepCellsCmd().Use},
		{"sweep-cells-two", newSweepCellsTwoCmd().Use},
		{"sweep-times", newSweepTimesCmd().Use},
		{"sweep", newSweepPlanCmd().Use},
		{"synth", newSynthCmd().Use},
	} {
		assert.Contains(t, cmd.use, cmd.name)
	}
}

func TestWriteSweepTablesExportsGrid(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cells")
	grid := &sweep.Grid{
		ID:    "0192f0c4-0000-7000-8000-000000000001",
		Kind:  sweep.KindCells,
		Axes:  []sweep.Axis{{Name: "cells", Values: []int{5}}},
		Cells: []sweep.Cell{sweep.NewCell([]int{0}, []int{5}, 3, 4)},
	}
	require.NoError(t, writeSweepTables(root, grid))

	raw, err := os.ReadFile(root + "_grid.json")
	require.NoError(t, err)
	var back sweep.Grid
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, grid.ID, back.ID)
	assert.Equal(t, grid.Cells, back.Cells)
}
