package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"ringstat/domain/sweep"
	"ringstat/internal/errors"
	"ringstat/internal/migration"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGrid() *sweep.Grid {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &sweep.Grid{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      sweep.KindCellsTwo,
		Sources:   []string{"a.csv", "b.csv"},
		Target:    1,
		Trials:    10,
		Landmarks: 1000,
		Seed:      42,
		Axes: []sweep.Axis{
			{Name: "cells_a", Values: []int{0, 5}},
			{Name: "cells_b", Values: []int{5}},
		},
		Cells: []sweep.Cell{
			sweep.NewCell([]int{0, 0}, []int{0, 5}, 3, 10),
			sweep.NewCell([]int{1, 0}, []int{5, 5}, 8, 10),
		},
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Duration:   90 * time.Second,
	}
}

func TestRowConversionRoundTrip(t *testing.T) {
	grid := sampleGrid()
	row, cells, err := toRows(grid)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, 1, cells[1].Position)
	assert.Equal(t, int64(90000), row.DurationMS)

	back, err := fromRows(row, cells)
	require.NoError(t, err)
	assert.Equal(t, grid, back)
}

func TestFromRowsRejectsMalformedAxes(t *testing.T) {
	row, cells, err := toRows(sampleGrid())
	require.NoError(t, err)
	row.Axes = []byte("{not json")

	_, err = fromRows(row, cells)
	assert.True(t, errors.HasCode(err, errors.CodeDatabaseError))
}

// TestSweepRepositoryPostgres runs against a live database when TEST_DATABASE_URL is set
func TestSweepRepositoryPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migration.NewRunner().Run(ctx, db))

	repo := NewSweepRepository(db)
	grid := sampleGrid()
	require.NoError(t, repo.Save(ctx, grid))

	got, err := repo.Get(ctx, grid.ID)
	require.NoError(t, err)
	assert.Equal(t, grid.Cells, got.Cells)
	assert.Equal(t, grid.Axes, got.Axes)
	assert.True(t, grid.StartedAt.Equal(got.StartedAt))

	list, err := repo.List(ctx, 50)
	require.NoError(t, err)
	found := false
	for _, s := range list {
		if s.ID == grid.ID {
			found = true
			assert.Equal(t, 2, s.Cells)
		}
	}
	assert.True(t, found)

	_, err = repo.Get(ctx, uuid.Must(uuid.NewV7()).String())
	assert.True(t, errors.HasCode(err, errors.CodeDataNotFound))
}
