package trials

import (
	"context"
	"fmt"

	"ringstat/domain/persistence"

	"gonum.org/v1/gonum/mat"
)

// Outcome is the success count of one boolean batch
type Outcome struct {
	Successes int
	Trials    int
	Rate      float64
}

// SuccessRate runs n boolean trials and returns the fraction that succeeded
func SuccessRate(ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) (bool, error)) (Outcome, error) {
	results, err := Run(ctx, p, n, fn)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Trials: n}
	for _, ok := range results {
		if ok {
			out.Successes++
		}
	}
	if n > 0 {
		out.Rate = float64(out.Successes) / float64(n)
	}
	return out, nil
}

// CoordinateTrial is the result of one coordinate-mode trial
type CoordinateTrial struct {
	Coords *mat.Dense // timepoints × 2
	Gap    persistence.GapResult
}

// CoordinateBatch concatenates coordinate trials column-wise; Gaps[i] belongs
// to columns 2i and 2i+1.
type CoordinateBatch struct {
	Coords *mat.Dense
	Gaps   []persistence.GapResult
}

// CollectCoordinates runs n coordinate trials and concatenates them in trial order
func CollectCoordinates(ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) (CoordinateTrial, error)) (CoordinateBatch, error) {
	results, err := Run(ctx, p, n, fn)
	if err != nil {
		return CoordinateBatch{}, err
	}
	if len(results) == 0 {
		return CoordinateBatch{}, nil
	}

	rows, _ := results[0].Coords.Dims()
	cols := 0
	for i, r := range results {
		rr, rc := r.Coords.Dims()
		if rr != rows {
			return CoordinateBatch{}, fmt.Errorf("trial %d has %d timepoints, trial 0 has %d", i, rr, rows)
		}
		cols += rc
	}

	batch := CoordinateBatch{
		Coords: mat.NewDense(rows, cols, nil),
		Gaps:   make([]persistence.GapResult, len(results)),
	}
	offset := 0
	for i, r := range results {
		_, rc := r.Coords.Dims()
		batch.Coords.Slice(0, rows, offset, offset+rc).(*mat.Dense).Copy(r.Coords)
		offset += rc
		batch.Gaps[i] = r.Gap
	}
	return batch, nil
}
