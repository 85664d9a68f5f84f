package sweep

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// Kind names the parameter being swept
type Kind string

const (
	KindCells    Kind = "cells"
	KindCellsTwo Kind = "cells_two"
	KindTimes    Kind = "times"
)

// Axis is one declared sweep dimension
type Axis struct {
	Name   string `json:"name" yaml:"name"`
	Values []int  `json:"values" yaml:"values"`
}

// Cell is the aggregate of one trial batch at one grid point
type Cell struct {
	Index     []int   `json:"index"`  // position along each axis
	Params    []int   `json:"params"` // axis values at that position
	Successes int     `json:"successes"`
	Trials    int     `json:"trials"`
	Rate      float64 `json:"rate"`
	CILow     float64 `json:"ci_low"`
	CIHigh    float64 `json:"ci_high"`
}

// Grid is the persisted result of a sweep. Cells are stored in row-major
// order over Axes, first axis outermost.
type Grid struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	Sources    []string      `json:"sources"`
	Target     int           `json:"target"`
	Trials     int           `json:"trials"`
	Landmarks  int           `json:"landmarks"`
	Seed       int64         `json:"seed"`
	Axes       []Axis        `json:"axes"`
	Cells      []Cell        `json:"cells"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// Size returns the number of cells implied by the axes
func (g *Grid) Size() int {
	if len(g.Axes) == 0 {
		return 0
	}
	n := 1
	for _, a := range g.Axes {
		n *= len(a.Values)
	}
	return n
}

// Rates returns the success rates shaped by the axes. 1D grids yield one row.
func (g *Grid) Rates() [][]float64 {
	switch len(g.Axes) {
	case 1:
		row := make([]float64, len(g.Cells))
		for i, c := range g.Cells {
			row[i] = c.Rate
		}
		return [][]float64{row}
	case 2:
		rows, cols := len(g.Axes[0].Values), len(g.Axes[1].Values)
		out := make([][]float64, rows)
		for i := range out {
			out[i] = make([]float64, cols)
			for j := range out[i] {
				out[i][j] = g.Cells[i*cols+j].Rate
			}
		}
		return out
	default:
		return nil
	}
}

// CellAt returns the cell at the given axis position
func (g *Grid) CellAt(index ...int) (Cell, error) {
	if len(index) != len(g.Axes) {
		return Cell{}, fmt.Errorf("grid has %d axes, got %d indices", len(g.Axes), len(index))
	}
	flat := 0
	for d, i := range index {
		n := len(g.Axes[d].Values)
		if i < 0 || i >= n {
			return Cell{}, fmt.Errorf("index %d out of range for axis %s", i, g.Axes[d].Name)
		}
		flat = flat*n + i
	}
	if flat >= len(g.Cells) {
		return Cell{}, fmt.Errorf("cell %v not computed", index)
	}
	return g.Cells[flat], nil
}

// NewCell aggregates a batch into a cell with a Wilson 95% interval
func NewCell(index, params []int, successes, trials int) Cell {
	c := Cell{
		Index:     append([]int(nil), index...),
		Params:    append([]int(nil), params...),
		Successes: successes,
		Trials:    trials,
	}
	if trials > 0 {
		c.Rate = float64(successes) / float64(trials)
	}
	c.CILow, c.CIHigh = WilsonInterval(successes, trials, 0.95)
	return c
}

// WilsonInterval returns the Wilson score interval of a binomial proportion
func WilsonInterval(successes, trials int, confidence float64) (float64, float64) {
	if trials <= 0 {
		return 0, 1
	}
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	n := float64(trials)
	p := float64(successes) / n
	denom := 1 + z*z/n
	center := (p + z*z/(2*n)) / denom
	half := z * math.Sqrt(p*(1-p)/n+z*z/(4*n*n)) / denom
	return math.Max(0, center-half), math.Min(1, center+half)
}

// Label is one axis=value pair attached to a progress event
type Label struct {
	Axis  string `json:"axis"`
	Value int    `json:"value"`
}

// ProgressEvent is emitted after each grid cell completes
type ProgressEvent struct {
	SweepID string  `json:"sweep_id"`
	Kind    Kind    `json:"kind"`
	Current int     `json:"current"` // 1-based count of finished cells
	Total   int     `json:"total"`
	Labels  []Label `json:"labels"`
	Rate    float64 `json:"rate"`
}

// Describe renders the labels as "cells=10, time=500"
func (e ProgressEvent) Describe() string {
	parts := make([]string, len(e.Labels))
	for i, l := range e.Labels {
		parts[i] = fmt.Sprintf("%s=%d", l.Axis, l.Value)
	}
	return strings.Join(parts, ", ")
}
