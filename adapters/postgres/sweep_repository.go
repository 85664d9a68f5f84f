package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"ringstat/domain/sweep"
	"ringstat/internal/errors"
	"ringstat/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SweepRepositoryImpl implements SweepRepository for PostgreSQL
type SweepRepositoryImpl struct {
	db *sqlx.DB
}

// NewSweepRepository creates a new PostgreSQL sweep repository
func NewSweepRepository(db *sqlx.DB) ports.SweepRepository {
	return &SweepRepositoryImpl{db: db}
}

type sweepRow struct {
	ID         string         `db:"id"`
	Kind       string         `db:"kind"`
	Sources    pq.StringArray `db:"sources"`
	Target     int            `db:"target"`
	Trials     int            `db:"trials"`
	Landmarks  int            `db:"landmarks"`
	Seed       int64          `db:"seed"`
	Axes       []byte         `db:"axes"`
	StartedAt  time.Time      `db:"started_at"`
	FinishedAt time.Time      `db:"finished_at"`
	DurationMS int64          `db:"duration_ms"`
}

type cellRow struct {
	SweepID   string        `db:"sweep_id"`
	Position  int           `db:"position"`
	AxisIndex pq.Int64Array `db:"axis_index"`
	Params    pq.Int64Array `db:"params"`
	Successes int           `db:"successes"`
	Trials    int           `db:"trials"`
	Rate      float64       `db:"rate"`
	CILow     float64       `db:"ci_low"`
	CIHigh    float64       `db:"ci_high"`
}

// Save stores a finished grid and its cells in one transaction
func (r *SweepRepositoryImpl) Save(ctx context.Context, grid *sweep.Grid) error {
	row, cells, err := toRows(grid)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO sweeps (id, kind, sources, target, trials, landmarks, seed, axes, started_at, finished_at, duration_ms)
		VALUES (:id, :kind, :sources, :target, :trials, :landmarks, :seed, :axes, :started_at, :finished_at, :duration_ms)
	`, row)
	if err != nil {
		return errors.DatabaseError(fmt.Sprintf("failed to insert sweep %s", grid.ID), err)
	}

	for _, c := range cells {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO sweep_cells (sweep_id, position, axis_index, params, successes, trials, rate, ci_low, ci_high)
			VALUES (:sweep_id, :position, :axis_index, :params, :successes, :trials, :rate, :ci_low, :ci_high)
		`, c)
		if err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to insert cell %d of sweep %s", c.Position, grid.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit sweep", err)
	}
	return nil
}

// Get loads a grid with its cells in grid order
func (r *SweepRepositoryImpl) Get(ctx context.Context, id string) (*sweep.Grid, error) {
	var row sweepRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, kind, sources, target, trials, landmarks, seed, axes, started_at, finished_at, duration_ms
		FROM sweeps
		WHERE id = $1
	`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.CodeDataNotFound, fmt.Sprintf("sweep %s not found", id))
	}
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to load sweep %s", id), err)
	}

	var cells []cellRow
	err = r.db.SelectContext(ctx, &cells, `
		SELECT sweep_id, position, axis_index, params, successes, trials, rate, ci_low, ci_high
		FROM sweep_cells
		WHERE sweep_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to load cells of sweep %s", id), err)
	}

	return fromRows(row, cells)
}

// List returns the most recent sweeps first
func (r *SweepRepositoryImpl) List(ctx context.Context, limit int) ([]ports.SweepSummary, error) {
	query := `
		SELECT s.id, s.kind, s.target, s.trials, COUNT(c.position) AS cell_count
		FROM sweeps s
		LEFT JOIN sweep_cells c ON c.sweep_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	var summaries []ports.SweepSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, errors.DatabaseError("failed to list sweeps", err)
	}
	return summaries, nil
}

func toRows(grid *sweep.Grid) (sweepRow, []cellRow, error) {
	axes, err := json.Marshal(grid.Axes)
	if err != nil {
		return sweepRow{}, nil, errors.InternalError(fmt.Sprintf("failed to encode axes: %v", err))
	}
	row := sweepRow{
		ID:         grid.ID,
		Kind:       string(grid.Kind),
		Sources:    pq.StringArray(grid.Sources),
		Target:     grid.Target,
		Trials:     grid.Trials,
		Landmarks:  grid.Landmarks,
		Seed:       grid.Seed,
		Axes:       axes,
		StartedAt:  grid.StartedAt,
		FinishedAt: grid.FinishedAt,
		DurationMS: grid.Duration.Milliseconds(),
	}
	if row.Sources == nil {
		row.Sources = pq.StringArray{}
	}

	cells := make([]cellRow, len(grid.Cells))
	for i, c := range grid.Cells {
		cells[i] = cellRow{
			SweepID:   grid.ID,
			Position:  i,
			AxisIndex: toInt64s(c.Index),
			Params:    toInt64s(c.Params),
			Successes: c.Successes,
			Trials:    c.Trials,
			Rate:      c.Rate,
			CILow:     c.CILow,
			CIHigh:    c.CIHigh,
		}
	}
	return row, cells, nil
}

func fromRows(row sweepRow, cells []cellRow) (*sweep.Grid, error) {
	grid := &sweep.Grid{
		ID:         row.ID,
		Kind:       sweep.Kind(row.Kind),
		Sources:    []string(row.Sources),
		Target:     row.Target,
		Trials:     row.Trials,
		Landmarks:  row.Landmarks,
		Seed:       row.Seed,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
		Duration:   time.Duration(row.DurationMS) * time.Millisecond,
		Cells:      make([]sweep.Cell, len(cells)),
	}
	if err := json.Unmarshal(row.Axes, &grid.Axes); err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("sweep %s has malformed axes", row.ID), err)
	}
	for i, c := range cells {
		grid.Cells[i] = sweep.Cell{
			Index:     toInts(c.AxisIndex),
			Params:    toInts(c.Params),
			Successes: c.Successes,
			Trials:    c.Trials,
			Rate:      c.Rate,
			CILow:     c.CILow,
			CIHigh:    c.CIHigh,
		}
	}
	return grid, nil
}

func toInt64s(v []int) pq.Int64Array {
	out := make(pq.Int64Array, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}

func toInts(v pq.Int64Array) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
