// Package sampling draws random channel subsets from activity matrices.
// Every function takes its random source explicitly so that a trial can be
// replayed from its seed.
package sampling

import (
	"fmt"
	"math/rand"

	"ringstat/domain/activity"
	"ringstat/internal/errors"
)

// Choose returns k distinct integers from [0, n) drawn uniformly without
// replacement, in draw order.
func Choose(rng *rand.Rand, n, k int) []int {
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	// partial Fisher-Yates
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// Subsample keeps k channels of m chosen uniformly without replacement.
// k <= 0 keeps every channel. k larger than the channel count is an error.
func Subsample(rng *rand.Rand, m activity.Matrix, k int) (activity.Matrix, error) {
	n := m.Channels()
	if k <= 0 {
		return m, nil
	}
	if k > n {
		return activity.Matrix{}, errors.InvalidInput(fmt.Sprintf("cannot subsample %d channels from %d", k, n))
	}
	return m.SelectChannels(Choose(rng, n, k))
}

// MergeSubsamples draws kA channels from a and kB channels from b
// independently, concatenates them, and drops rows that became silent
// across the merged channels. The returned index maps rows to t.
//
// A nil or empty source, or a non-positive count, contributes no channels:
// a grid axis value of 0 means "this dataset is left out".
func MergeSubsamples(rng *rand.Rand, a activity.Matrix, kA int, b activity.Matrix, kB int, t activity.TimeIndex) (activity.Matrix, activity.TimeIndex, error) {
	var parts []activity.Matrix
	for _, src := range []struct {
		m activity.Matrix
		k int
	}{{a, kA}, {b, kB}} {
		if src.k <= 0 || src.m.Empty() {
			continue
		}
		sub, err := Subsample(rng, src.m, src.k)
		if err != nil {
			return activity.Matrix{}, nil, err
		}
		parts = append(parts, sub)
	}
	if len(parts) == 0 {
		return activity.Matrix{}, nil, errors.InvalidInput("merge needs at least one channel")
	}

	merged := parts[0]
	if len(parts) == 2 {
		var err error
		if merged, err = activity.HStack(parts[0], parts[1]); err != nil {
			return activity.Matrix{}, nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to merge subsamples")
		}
	}
	if t == nil {
		t = activity.Sequence(merged.Timepoints())
	}
	out, ti := merged.DropSilent(t)
	return out, ti, nil
}
