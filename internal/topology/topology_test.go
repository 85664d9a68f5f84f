package topology

import (
	"context"
	"fmt"
	"testing"

	"ringstat/domain/persistence"
	"ringstat/internal/errors"
	"ringstat/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampLandmarks(t *testing.T) {
	assert.Equal(t, 50, ClampLandmarks(1000, 50))
	assert.Equal(t, 20, ClampLandmarks(20, 50))
	assert.Equal(t, 50, ClampLandmarks(0, 50))
	assert.Equal(t, 50, ClampLandmarks(-1, 50))
}

func TestDetectFeatureCount(t *testing.T) {
	engine := testkit.NewScriptedEngine(persistence.Diagram{
		{Birth: 0.1, Death: 3.1},
		{Birth: 0.2, Death: 2.8},
		{Birth: 0.1, Death: 0.5},
	})
	m := testkit.Constant(40, 3, 1)

	gap, err := DetectFeatureCount(context.Background(), engine, m, 1000)
	require.NoError(t, err)
	assert.Equal(t, persistence.GapSeparated, gap.State)
	assert.Equal(t, 2, gap.Count)
	assert.InDelta(t, 2.2, gap.MaxGap, 1e-9)
	assert.Equal(t, []int{40}, engine.Landmarks())
}

func TestDetectFeatureCountEngineFailure(t *testing.T) {
	engine := testkit.NewScriptedEngine(nil)
	engine.Err = errors.EngineError("stub", fmt.Errorf("exit status 1"))

	_, err := DetectFeatureCount(context.Background(), engine, testkit.Constant(5, 2, 1), 10)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeEngineError))
}

func TestDetectFeatureCountEmptyDiagram(t *testing.T) {
	engine := testkit.NewScriptedEngine(persistence.Diagram{})
	gap, err := DetectFeatureCount(context.Background(), engine, testkit.Constant(5, 2, 1), 10)
	require.NoError(t, err)
	assert.False(t, gap.Defined())
	assert.Equal(t, -1, gap.Count)
}

func TestExtractCoordinates(t *testing.T) {
	engine := testkit.NewScriptedEngine(persistence.Diagram{
		{Birth: 0.1, Death: 0.4},
		{Birth: 0.2, Death: 2.2},
		{Birth: 0.1, Death: 1.6},
	})
	m := testkit.Constant(10, 4, 1)

	res, err := ExtractCoordinates(context.Background(), engine, m, 1000)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Features)
	assert.Equal(t, 2, res.Gap.Count)

	rows, cols := res.Coords.Dims()
	assert.Equal(t, 10, rows)
	assert.Equal(t, 2, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := res.Coords.At(r, c)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, 1.0)
		}
	}
	// scripted coordinates are offset by 0.1 per feature index
	assert.InDelta(t, 0.1, res.Coords.At(0, 0), 1e-12)
	assert.InDelta(t, 0.2, res.Coords.At(0, 1), 1e-12)
	assert.Equal(t, 1, engine.Closed())
}

func TestExtractCoordinatesInsufficientFeatures(t *testing.T) {
	for _, dgm := range []persistence.Diagram{{}, {{Birth: 0, Death: 1}}} {
		engine := testkit.NewScriptedEngine(dgm)
		res, err := ExtractCoordinates(context.Background(), engine, testkit.Constant(6, 2, 1), 0)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeInsufficientFeatures))
		assert.Nil(t, res.Coords)
		assert.Equal(t, 1, engine.Closed(), "session is closed on failure")
	}
}
