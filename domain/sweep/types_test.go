package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCellRateAndInterval(t *testing.T) {
	c := NewCell([]int{2}, []int{20}, 45, 50)

	assert.InDelta(t, 0.9, c.Rate, 1e-12)
	assert.Less(t, c.CILow, c.Rate)
	assert.Greater(t, c.CIHigh, c.Rate)
	assert.LessOrEqual(t, c.CIHigh, 1.0)
}

func TestWilsonIntervalEdges(t *testing.T) {
	lo, hi := WilsonInterval(0, 0, 0.95)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	lo, hi = WilsonInterval(0, 100, 0.95)
	assert.InDelta(t, 0.0, lo, 1e-9)
	assert.InDelta(t, 0.037, hi, 0.002)

	lo, hi = WilsonInterval(100, 100, 0.95)
	assert.InDelta(t, 0.963, lo, 0.002)
	assert.InDelta(t, 1.0, hi, 1e-9)
}

func TestGridRatesAndCellAt(t *testing.T) {
	g := &Grid{
		Kind: KindCellsTwo,
		Axes: []Axis{{Name: "cells_a", Values: []int{5, 10}}, {Name: "cells_b", Values: []int{0, 5, 10}}},
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			g.Cells = append(g.Cells, NewCell([]int{i, j}, []int{g.Axes[0].Values[i], g.Axes[1].Values[j]}, i*3+j, 10))
		}
	}

	require.Equal(t, 6, g.Size())
	rates := g.Rates()
	require.Len(t, rates, 2)
	assert.InDelta(t, 0.5, rates[1][2], 1e-12)

	c, err := g.CellAt(1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 5}, c.Params)

	_, err = g.CellAt(2, 0)
	assert.Error(t, err)
}

func TestProgressEventDescribe(t *testing.T) {
	e := ProgressEvent{Labels: []Label{{Axis: "cells_a", Value: 5}, {Axis: "cells_b", Value: 10}}}
	assert.Equal(t, "cells_a=5, cells_b=10", e.Describe())
}
