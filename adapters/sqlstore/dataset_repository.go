package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"schoolprep/adapters/datareadiness/coercer"
	"schoolprep/domain/core"
	"schoolprep/domain/incident"
	"schoolprep/internal/errors"
	"schoolprep/ports"
)

// ErrRunNotFound is returned when no recorded run matches the request
var ErrRunNotFound = stderrors.New("run not found")

// datasetRepository implements the DatasetRepository interface
type datasetRepository struct {
	db     *sqlx.DB
	schema incident.Schema
}

// NewDatasetRepository creates a new dataset repository. schema supplies the
// column kinds used to type rows on Load.
func NewDatasetRepository(db *sqlx.DB, schema incident.Schema) ports.DatasetRepository {
	return &datasetRepository{db: db, schema: schema}
}

type rowRecord struct {
	RowIndex   int    `db:"row_index"`
	DataSource string `db:"data_source"`
	Cells      string `db:"cells"`
}

// Save records the manifest and every row in one transaction
func (r *datasetRepository) Save(ctx context.Context, manifest *incident.Manifest, table *incident.Table) error {
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO analysis_runs (
		run_id, seed, top_race_mode, source_rows, excluded_rows, real_rows,
		synthetic_rows, total_rows, content_hash, manifest, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		manifest.RunID.String(), manifest.Seed, manifest.TopRaceMode, manifest.SourceRows, manifest.ExcludedRows,
		manifest.RealRows, manifest.SyntheticRows, manifest.TotalRows, manifest.ContentHash.String(),
		string(manifestJSON), manifest.CreatedAt,
	)
	if err != nil {
		return errors.DatabaseError("failed to insert run", err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO analysis_rows (run_id, row_index, data_source, cells) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return errors.DatabaseError("failed to prepare row insert", err)
	}
	defer stmt.Close()

	for i := 0; i < table.Len(); i++ {
		cells, err := json.Marshal(table.Strings(i))
		if err != nil {
			return fmt.Errorf("failed to marshal row %d: %w", i, err)
		}
		source := table.Value(i, incident.ColDataSource).Text
		if _, err := stmt.ExecContext(ctx, manifest.RunID.String(), i, source, string(cells)); err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to insert row %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit run", err)
	}
	return nil
}

// Load reads a recorded run back into a typed table
func (r *datasetRepository) Load(ctx context.Context, runID core.RunID) (*incident.Table, *incident.Manifest, error) {
	var manifestJSON string
	err := r.db.GetContext(ctx, &manifestJSON, r.db.Rebind(`SELECT manifest FROM analysis_runs WHERE run_id = ?`), runID.String())
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, nil, errors.DatabaseError("failed to get run", err)
	}

	var manifest incident.Manifest
	if err := json.Unmarshal([]byte(manifestJSON), &manifest); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}

	var records []rowRecord
	err = r.db.SelectContext(ctx, &records, r.db.Rebind(`SELECT row_index, data_source, cells
		FROM analysis_rows WHERE run_id = ? ORDER BY row_index`), runID.String())
	if err != nil {
		return nil, nil, errors.DatabaseError("failed to query rows", err)
	}

	raw := &incident.RawTable{Headers: manifest.Columns, Rows: make([]incident.RawRow, len(records))}
	for i, rec := range records {
		var cells []string
		if err := json.Unmarshal([]byte(rec.Cells), &cells); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal row %d: %w", rec.RowIndex, err)
		}
		if len(cells) != len(manifest.Columns) {
			return nil, nil, core.NewSchemaMismatchError(manifest.Columns, cells)
		}
		row := make(incident.RawRow, len(cells))
		for j, name := range manifest.Columns {
			row[name] = cells[j]
		}
		raw.Rows[i] = row
	}

	table, err := coercer.NewTypeCoercer(coercer.DefaultCoercionConfig()).TypeTable(raw, r.schema)
	if err != nil {
		return nil, nil, err
	}
	return table, &manifest, nil
}

// Latest returns the manifest of the most recently recorded run
func (r *datasetRepository) Latest(ctx context.Context) (*incident.Manifest, error) {
	var manifestJSON string
	err := r.db.GetContext(ctx, &manifestJSON, `SELECT manifest FROM analysis_runs ORDER BY created_at DESC, run_id DESC LIMIT 1`)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, errors.DatabaseError("failed to get latest run", err)
	}

	var manifest incident.Manifest
	if err := json.Unmarshal([]byte(manifestJSON), &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &manifest, nil
}

// List returns recorded run manifests, newest first
func (r *datasetRepository) List(ctx context.Context, limit int) ([]*incident.Manifest, error) {
	query := `SELECT manifest FROM analysis_runs ORDER BY created_at DESC, run_id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var manifestsJSON []string
	if err := r.db.SelectContext(ctx, &manifestsJSON, r.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}

	manifests := make([]*incident.Manifest, 0, len(manifestsJSON))
	for _, raw := range manifestsJSON {
		var manifest incident.Manifest
		if err := json.Unmarshal([]byte(raw), &manifest); err != nil {
			return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
		}
		manifests = append(manifests, &manifest)
	}
	return manifests, nil
}
