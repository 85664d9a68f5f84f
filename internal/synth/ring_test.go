package synth

import (
	"math"
	"testing"

	"ringstat/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRingShape(t *testing.T) {
	cfg := DefaultRingConfig()
	cfg.Timepoints, cfg.Channels = 40, 12

	ring, err := GenerateRing(cfg)
	require.NoError(t, err)
	assert.Equal(t, 40, ring.Activity.Timepoints())
	assert.Equal(t, 12, ring.Activity.Channels())
	assert.Len(t, ring.Angles, 40)
	assert.Len(t, ring.Phases, 12)
	for _, p := range ring.Phases {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.Less(t, p, 2*math.Pi)
	}
}

func TestGenerateRingNoiseless(t *testing.T) {
	cfg := RingConfig{Timepoints: 16, Channels: 3, Baseline: 2, Amplitude: 1, Noise: 0, Seed: 7}
	ring, err := GenerateRing(cfg)
	require.NoError(t, err)
	for tp := 0; tp < cfg.Timepoints; tp++ {
		for c := 0; c < cfg.Channels; c++ {
			want := 2 + math.Cos(ring.Angles[tp]-ring.Phases[c])
			assert.InDelta(t, want, ring.Activity.At(tp, c), 1e-12)
		}
	}
}

func TestGenerateRingReproducible(t *testing.T) {
	cfg := DefaultRingConfig()
	a, err := GenerateRing(cfg)
	require.NoError(t, err)
	b, err := GenerateRing(cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Activity.Points(), b.Activity.Points())

	cfg.Seed++
	c, err := GenerateRing(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Activity.Points(), c.Activity.Points())
}

func TestRingConfigValidate(t *testing.T) {
	bad := []RingConfig{
		{Timepoints: 0, Channels: 3, Baseline: 1},
		{Timepoints: 3, Channels: 0, Baseline: 1},
		{Timepoints: 3, Channels: 3, Baseline: 1, Noise: -1},
		{Timepoints: 3, Channels: 3, Baseline: 0},
	}
	for _, cfg := range bad {
		_, err := GenerateRing(cfg)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidInput), "%+v", cfg)
	}
}

func TestGenerateNoiseHasNoSignal(t *testing.T) {
	cfg := RingConfig{Timepoints: 5, Channels: 4, Baseline: 3, Amplitude: 5, Noise: 0, Seed: 2}
	m, err := GenerateNoise(cfg)
	require.NoError(t, err)
	for _, row := range m.Points() {
		for _, v := range row {
			assert.Equal(t, 3.0, v)
		}
	}
}
