package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"ringstat/adapters/rng"
	"ringstat/domain/activity"
	"ringstat/domain/persistence"
	"ringstat/internal/errors"
	"ringstat/internal/testkit"
	"ringstat/internal/trials"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var threeLoops = persistence.Diagram{
	{Birth: 0.0, Death: 3.0},
	{Birth: 0.2, Death: 2.8},
	{Birth: 0.1, Death: 0.5},
}

func TestCoordinatesConcatenatesTrials(t *testing.T) {
	rows := make([][]float64, 30)
	for i := range rows {
		rows[i] = []float64{1, 1, 1, 1, 1, 1}
	}
	rows[7] = []float64{0, 0, 0, 0, 0, 0}
	path := writeDataset(t, "flat", testkit.Matrix(rows))
	e := testkit.NewScriptedEngine(threeLoops)

	res, err := NewCoordinateService(newLoader(), e, rng.New(), trials.NewPool(2)).Coordinates(context.Background(), CoordinatesRequest{
		Source: path,
		Cells:  4,
		Trials: 3,
		Seed:   5,
	})
	require.NoError(t, err)

	require.Len(t, res.Time, 29)
	assert.Equal(t, 8, res.Time[7], "the silent timepoint is skipped")
	r, c := res.Coords.Dims()
	assert.Equal(t, 29, r)
	assert.Equal(t, 6, c)
	require.Len(t, res.Gaps, 3)
	for _, g := range res.Gaps {
		assert.Equal(t, 2, g.Count)
		assert.InDelta(t, 2.2, g.MaxGap, 1e-9)
	}
	// scripted coordinates are t/n offset by 0.1 per feature index
	assert.InDelta(t, 0.0, res.Coords.At(0, 0), 1e-12)
	assert.InDelta(t, 0.1, res.Coords.At(0, 1), 1e-12)
	assert.Equal(t, 3, e.Closed())
	assert.NotEmpty(t, res.RunID)
}

func TestCoordinatesInsufficientFeatures(t *testing.T) {
	path := writeDataset(t, "flat", testkit.Constant(20, 4, 1))
	e := testkit.NewScriptedEngine(persistence.Diagram{{Birth: 0, Death: 1}})

	_, err := NewCoordinateService(newLoader(), e, rng.New(), trials.NewPool(1)).
		WithRetries(2).
		Coordinates(context.Background(), CoordinatesRequest{Source: path, Trials: 1})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInsufficientFeatures))
	assert.Equal(t, 3, e.Closed(), "one session per attempt")
}

func TestCoordinatesRetryRecovers(t *testing.T) {
	path := writeDataset(t, "flat", testkit.Constant(20, 4, 1))
	var opened atomic.Int32
	e := &testkit.ScriptedEngine{Script: func(activity.Matrix) persistence.Diagram {
		if opened.Add(1) == 1 {
			return persistence.Diagram{{Birth: 0, Death: 1}}
		}
		return threeLoops
	}}

	res, err := NewCoordinateService(newLoader(), e, rng.New(), trials.NewPool(1)).
		WithRetries(1).
		Coordinates(context.Background(), CoordinatesRequest{Source: path, Trials: 1})
	require.NoError(t, err)
	require.Len(t, res.Gaps, 1)
	assert.Equal(t, 2, res.Gaps[0].Count)
}

func TestCoordinatesReproducibleFromSeed(t *testing.T) {
	rows := make([][]float64, 20)
	for i := range rows {
		rows[i] = make([]float64, 8)
		for c := range rows[i] {
			rows[i][c] = float64(1 + (i+3*c)%7)
		}
	}
	path := writeDataset(t, "varied", testkit.Matrix(rows))

	drawn := func() []string {
		var mu sync.Mutex
		var firstRows []string
		e := &testkit.ScriptedEngine{Script: func(m activity.Matrix) persistence.Diagram {
			mu.Lock()
			firstRows = append(firstRows, fmt.Sprint(m.Row(0)))
			mu.Unlock()
			return threeLoops
		}}
		res, err := NewCoordinateService(newLoader(), e, rng.New(), trials.NewPool(3)).Coordinates(context.Background(), CoordinatesRequest{
			Source: path,
			Cells:  3,
			Trials: 6,
			Seed:   42,
		})
		require.NoError(t, err)
		require.Len(t, res.Gaps, 6)
		sort.Strings(firstRows)
		return firstRows
	}

	assert.Equal(t, drawn(), drawn())
}

func TestCoordinatesValidation(t *testing.T) {
	path := writeDataset(t, "flat", testkit.Constant(20, 4, 1))
	svc := NewCoordinateService(newLoader(), testkit.NewScriptedEngine(threeLoops), rng.New(), trials.NewPool(1))

	_, err := svc.Coordinates(context.Background(), CoordinatesRequest{Source: path, Cells: 5, Trials: 1})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))

	_, err = svc.Coordinates(context.Background(), CoordinatesRequest{Source: path, Trials: 0})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))

	_, err = svc.Coordinates(context.Background(), CoordinatesRequest{Source: filepath.Join(t.TempDir(), "x.csv"), Trials: 1})
	assert.True(t, errors.IsFatalInput(err))
}

func TestDiagramService(t *testing.T) {
	path := writeDataset(t, "flat", testkit.Constant(25, 6, 1))
	e := testkit.NewScriptedEngine(threeLoops)
	svc := NewDiagramService(newLoader(), e, rng.New())

	res, err := svc.Diagram(context.Background(), DiagramRequest{Source: path, Cells: 3, MaxDim: 2, Landmarks: 10})
	require.NoError(t, err)

	require.Len(t, res.Diagrams, 3)
	assert.Equal(t, threeLoops, res.Diagrams[1])
	assert.Equal(t, persistence.GapSeparated, res.Gap.State)
	assert.Equal(t, 2, res.Gap.Count)
	assert.Equal(t, 25, res.Points)
	assert.Equal(t, 3, res.Channels)
	assert.Equal(t, []int{10}, e.Landmarks())

	_, err = svc.Diagram(context.Background(), DiagramRequest{Source: path, MaxDim: 0})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}
