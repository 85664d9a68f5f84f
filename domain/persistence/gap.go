package persistence

import (
	"fmt"
	"sort"
)

// GapState distinguishes the three shapes a gap decision can take
type GapState int

const (
	// GapUndefined means the diagram was empty and no decision exists.
	GapUndefined GapState = iota
	// GapSingle means the diagram held one point; zero features clear a gap.
	GapSingle
	// GapSeparated means a largest gap split the lifetimes; Count features sit above it.
	GapSeparated
)

func (s GapState) String() string {
	switch s {
	case GapUndefined:
		return "undefined"
	case GapSingle:
		return "single"
	case GapSeparated:
		return "separated"
	default:
		return fmt.Sprintf("GapState(%d)", int(s))
	}
}

// GapResult is the outcome of the largest-gap rule.
// Count is -1 for GapUndefined and 0 for GapSingle so that tables keep the integer form.
type GapResult struct {
	MaxGap float64
	Count  int
	State  GapState
}

// Defined reports whether the diagram had any points
func (g GapResult) Defined() bool {
	return g.State != GapUndefined
}

// Matches reports whether the decided feature count equals target
func (g GapResult) Matches(target int) bool {
	return g.Defined() && g.Count == target
}

// FindMaxGap decides how many features of d are significant.
//
// Lifetimes are sorted in descending order and the largest drop between
// consecutive lifetimes is located. Count is the number of lifetimes above
// that drop (1-based), so lifetimes [5, 1] yield gap 4 and count 1. The first
// maximum wins on ties. The result does not depend on the order of d.
func FindMaxGap(d Diagram) GapResult {
	if len(d) == 0 {
		return GapResult{MaxGap: 0, Count: -1, State: GapUndefined}
	}
	lifetimes := d.Lifetimes()
	sort.Sort(sort.Reverse(sort.Float64Slice(lifetimes)))
	if len(lifetimes) == 1 {
		return GapResult{MaxGap: lifetimes[0], Count: 0, State: GapSingle}
	}

	best, count := lifetimes[0]-lifetimes[1], 1
	for i := 1; i < len(lifetimes)-1; i++ {
		if g := lifetimes[i] - lifetimes[i+1]; g > best {
			best, count = g, i+1
		}
	}
	return GapResult{MaxGap: best, Count: count, State: GapSeparated}
}
