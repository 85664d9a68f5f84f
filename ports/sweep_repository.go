package ports

import (
	"context"

	"ringstat/domain/sweep"
)

// SweepRepository persists finished sweep grids
type SweepRepository interface {
	Save(ctx context.Context, grid *sweep.Grid) error
	Get(ctx context.Context, id string) (*sweep.Grid, error)
	List(ctx context.Context, limit int) ([]SweepSummary, error)
}

// SweepSummary is a list entry of stored sweeps
type SweepSummary struct {
	ID     string     `db:"id" json:"id"`
	Kind   sweep.Kind `db:"kind" json:"kind"`
	Target int        `db:"target" json:"target"`
	Trials int        `db:"trials" json:"trials"`
	Cells  int        `db:"cell_count" json:"cells"`
}
