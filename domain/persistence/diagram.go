package persistence

import (
	"math"
	"sort"
)

// Point is one (birth, death) pair of a persistence diagram.
// Death may be +Inf for features that never die.
type Point struct {
	Birth float64 `json:"birth"`
	Death float64 `json:"death"`
}

// Lifetime is death minus birth
func (p Point) Lifetime() float64 {
	return p.Death - p.Birth
}

// Diagram is the unordered point set of one homological dimension
type Diagram []Point

// Lifetimes returns the lifetime of every point in diagram order
func (d Diagram) Lifetimes() []float64 {
	out := make([]float64, len(d))
	for i, p := range d {
		out[i] = p.Lifetime()
	}
	return out
}

// Finite returns the points whose death is finite
func (d Diagram) Finite() Diagram {
	out := make(Diagram, 0, len(d))
	for _, p := range d {
		if !math.IsInf(p.Death, 1) {
			out = append(out, p)
		}
	}
	return out
}

// MostPersistent returns the diagram indices of the k longest-lived points.
// Ties keep diagram order. Fewer than k indices are returned when the diagram is small.
func (d Diagram) MostPersistent(k int) []int {
	idx := make([]int, len(d))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return d[idx[a]].Lifetime() > d[idx[b]].Lifetime()
	})
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}
