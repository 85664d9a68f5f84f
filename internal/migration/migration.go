package migration

import (
	"context"

	"ringstat/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. Every statement is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, step := range r.steps() {
		if _, err := db.ExecContext(ctx, step.sql); err != nil {
			return errors.DatabaseError("failed to "+step.name, err)
		}
	}
	return nil
}

type step struct {
	name string
	sql  string
}

func (r *MigrationRunner) steps() []step {
	return []step{
		{name: "create sweeps table", sql: createSweepsTable},
		{name: "create sweep_cells table", sql: createSweepCellsTable},
		{name: "create indexes", sql: createIndexes},
	}
}

const createSweepsTable = `
	CREATE TABLE IF NOT EXISTS sweeps (
		id UUID PRIMARY KEY,
		kind VARCHAR(32) NOT NULL,
		sources TEXT[] NOT NULL,
		target INTEGER NOT NULL,
		trials INTEGER NOT NULL,
		landmarks INTEGER NOT NULL,
		seed BIGINT NOT NULL,
		axes JSONB NOT NULL,
		started_at TIMESTAMP WITH TIME ZONE NOT NULL,
		finished_at TIMESTAMP WITH TIME ZONE NOT NULL,
		duration_ms BIGINT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)
`

const createSweepCellsTable = `
	CREATE TABLE IF NOT EXISTS sweep_cells (
		sweep_id UUID NOT NULL REFERENCES sweeps(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		axis_index INTEGER[] NOT NULL,
		params INTEGER[] NOT NULL,
		successes INTEGER NOT NULL,
		trials INTEGER NOT NULL,
		rate DOUBLE PRECISION NOT NULL,
		ci_low DOUBLE PRECISION NOT NULL,
		ci_high DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (sweep_id, position)
	)
`

const createIndexes = `
	CREATE INDEX IF NOT EXISTS idx_sweeps_kind ON sweeps(kind);
	CREATE INDEX IF NOT EXISTS idx_sweeps_started_at ON sweeps(started_at DESC);
`
