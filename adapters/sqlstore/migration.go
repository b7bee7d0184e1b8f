package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"schoolprep/internal/errors"
)

// MigrationRunner creates the run ledger schema
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

// Run executes all migrations in order. Every statement is idempotent and
// valid on both SQLite and PostgreSQL.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create analysis_runs table")
	}

	if err := r.createRowsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create analysis_rows table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			run_id VARCHAR(64) PRIMARY KEY,
			seed BIGINT NOT NULL,
			top_race_mode VARCHAR(32) NOT NULL,
			source_rows INTEGER NOT NULL,
			excluded_rows INTEGER NOT NULL,
			real_rows INTEGER NOT NULL,
			synthetic_rows INTEGER NOT NULL,
			total_rows INTEGER NOT NULL,
			content_hash VARCHAR(64) NOT NULL,
			manifest TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createRowsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_rows (
			run_id VARCHAR(64) NOT NULL REFERENCES analysis_runs(run_id) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			data_source VARCHAR(16) NOT NULL,
			cells TEXT NOT NULL,
			PRIMARY KEY (run_id, row_index)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at)`)
	return err
}
