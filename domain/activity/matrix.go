// Package activity holds the timepoints×channels activity matrix that every
// topology computation consumes. Matrices are immutable: selection, stacking,
// filtering and normalization return new values and never touch the receiver.
package activity

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// SilenceEpsilon is the activity level below which a channel counts as silent.
// A row is dropped when every channel is below it.
const SilenceEpsilon = 1e-3

// Matrix is an immutable timepoints×channels activity matrix
type Matrix struct {
	rows, cols int
	data       *mat.Dense // nil when rows or cols is zero
}

// TimeIndex maps matrix rows back to original timepoint indices
type TimeIndex []int

// Sequence returns the identity index 0..n-1
func Sequence(n int) TimeIndex {
	t := make(TimeIndex, n)
	for i := range t {
		t[i] = i
	}
	return t
}

// Keep returns the entries whose keep flag is set
func (t TimeIndex) Keep(keep []bool) TimeIndex {
	out := make(TimeIndex, 0, len(t))
	for i, v := range t {
		if keep[i] {
			out = append(out, v)
		}
	}
	return out
}

// NewMatrix builds a matrix from row-major data (one slice per timepoint)
func NewMatrix(rows [][]float64) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, nil
	}
	cols := len(rows[0])
	flat := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return Matrix{}, fmt.Errorf("row %d has %d values, expected %d", i, len(r), cols)
		}
		flat = append(flat, r...)
	}
	return fromFlat(len(rows), cols, flat), nil
}

// FromDense copies a gonum matrix into an activity matrix
func FromDense(d mat.Matrix) Matrix {
	r, c := d.Dims()
	if r == 0 || c == 0 {
		return Matrix{rows: r, cols: c}
	}
	return Matrix{rows: r, cols: c, data: mat.DenseCopyOf(d)}
}

func fromFlat(r, c int, flat []float64) Matrix {
	if r == 0 || c == 0 {
		return Matrix{rows: r, cols: c}
	}
	return Matrix{rows: r, cols: c, data: mat.NewDense(r, c, flat)}
}

// Dims returns (timepoints, channels)
func (m Matrix) Dims() (int, int) { return m.rows, m.cols }

// Timepoints returns the number of rows
func (m Matrix) Timepoints() int { return m.rows }

// Channels returns the number of columns
func (m Matrix) Channels() int { return m.cols }

// Empty reports whether the matrix has no values
func (m Matrix) Empty() bool { return m.data == nil }

// At returns the activity of channel c at row t
func (m Matrix) At(t, c int) float64 { return m.data.At(t, c) }

// Row returns a copy of row t
func (m Matrix) Row(t int) []float64 {
	out := make([]float64, m.cols)
	mat.Row(out, t, m.data)
	return out
}

// Column returns a copy of channel c
func (m Matrix) Column(c int) []float64 {
	out := make([]float64, m.rows)
	mat.Col(out, c, m.data)
	return out
}

// Points returns the rows as a point cloud, one point per timepoint
func (m Matrix) Points() [][]float64 {
	points := make([][]float64, m.rows)
	for t := range points {
		points[t] = m.Row(t)
	}
	return points
}

// Dense returns a mutable copy for numerical routines
func (m Matrix) Dense() *mat.Dense {
	if m.data == nil {
		return nil
	}
	return mat.DenseCopyOf(m.data)
}

// T returns the transpose as a new matrix
func (m Matrix) T() Matrix {
	if m.data == nil {
		return Matrix{rows: m.cols, cols: m.rows}
	}
	return FromDense(m.data.T())
}

// Truncate keeps the first n timepoints. n <= 0 or n >= Timepoints keeps all.
func (m Matrix) Truncate(n int) Matrix {
	if n <= 0 || n >= m.rows {
		return m
	}
	return FromDense(m.data.Slice(0, n, 0, m.cols))
}

// SelectChannels returns the given columns in the given order
func (m Matrix) SelectChannels(idx []int) (Matrix, error) {
	flat := make([]float64, 0, m.rows*len(idx))
	for _, c := range idx {
		if c < 0 || c >= m.cols {
			return Matrix{}, fmt.Errorf("channel index %d out of range [0,%d)", c, m.cols)
		}
	}
	for t := 0; t < m.rows; t++ {
		for _, c := range idx {
			flat = append(flat, m.data.At(t, c))
		}
	}
	return fromFlat(m.rows, len(idx), flat), nil
}

// HStack concatenates the channels of a and b. Both must have the same timepoints.
func HStack(a, b Matrix) (Matrix, error) {
	if a.cols == 0 {
		return b, nil
	}
	if b.cols == 0 {
		return a, nil
	}
	if a.rows != b.rows {
		return Matrix{}, fmt.Errorf("cannot stack %d and %d timepoints", a.rows, b.rows)
	}
	out := mat.NewDense(a.rows, a.cols+b.cols, nil)
	out.Augment(a.data, b.data)
	return Matrix{rows: a.rows, cols: a.cols + b.cols, data: out}, nil
}

// SilentRows flags rows where every channel is below SilenceEpsilon
func (m Matrix) SilentRows() []bool {
	silent := make([]bool, m.rows)
	for t := 0; t < m.rows; t++ {
		all := m.cols > 0
		for c := 0; c < m.cols; c++ {
			if m.data.At(t, c) >= SilenceEpsilon {
				all = false
				break
			}
		}
		silent[t] = all
	}
	return silent
}

// KeepRows returns the rows whose keep flag is set
func (m Matrix) KeepRows(keep []bool) Matrix {
	flat := make([]float64, 0, m.rows*m.cols)
	n := 0
	for t := 0; t < m.rows; t++ {
		if !keep[t] {
			continue
		}
		for c := 0; c < m.cols; c++ {
			flat = append(flat, m.data.At(t, c))
		}
		n++
	}
	return fromFlat(n, m.cols, flat)
}

// DropSilent removes silent rows and the matching time index entries
func (m Matrix) DropSilent(t TimeIndex) (Matrix, TimeIndex) {
	silent := m.SilentRows()
	keep := make([]bool, len(silent))
	for i, s := range silent {
		keep[i] = !s
	}
	return m.KeepRows(keep), t.Keep(keep)
}

// ChannelMeans returns the mean of every channel over all rows
func (m Matrix) ChannelMeans() ([]float64, error) {
	means := make([]float64, m.cols)
	for c := 0; c < m.cols; c++ {
		mean, err := stats.Mean(m.Column(c))
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}
		means[c] = mean
	}
	return means, nil
}

// Normalize divides every channel by its mean. Channels whose mean is zero or
// not finite cannot be scaled and are removed; their indices are returned.
func (m Matrix) Normalize() (Matrix, []int, error) {
	means, err := m.ChannelMeans()
	if err != nil {
		return Matrix{}, nil, err
	}
	var kept, dropped []int
	for c, mean := range means {
		if mean == 0 || math.IsNaN(mean) || math.IsInf(mean, 0) {
			dropped = append(dropped, c)
			continue
		}
		kept = append(kept, c)
	}
	out, err := m.SelectChannels(kept)
	if err != nil {
		return Matrix{}, nil, err
	}
	for j, c := range kept {
		for t := 0; t < out.rows; t++ {
			out.data.Set(t, j, out.data.At(t, j)/means[c])
		}
	}
	return out, dropped, nil
}
