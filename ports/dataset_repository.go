package ports

import (
	"context"

	"schoolprep/domain/core"
	"schoolprep/domain/incident"
)

// DatasetRepository persists analysis datasets together with their manifest
type DatasetRepository interface {
	Save(ctx context.Context, manifest *incident.Manifest, table *incident.Table) error
	Load(ctx context.Context, runID core.RunID) (*incident.Table, *incident.Manifest, error)
	Latest(ctx context.Context) (*incident.Manifest, error)

	// List returns up to limit manifests, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*incident.Manifest, error)
}

// TableSink writes an analysis dataset to one columnar file in two phases so a
// run can place every output or none of them
type TableSink interface {
	// Name identifies the sink in logs, e.g. "csv"
	Name() string

	// Stage renders the table beside its destination without touching the
	// destination itself
	Stage(ctx context.Context, table *incident.Table) (StagedOutput, error)
}

// StagedOutput is a rendered file waiting to be moved into place
type StagedOutput interface {
	// Path is the destination the output is committed to
	Path() string

	// Commit moves the rendered file over its destination
	Commit() error

	// Discard removes the rendered file, or the destination when it was
	// already committed
	Discard() error
}

// SourceReader loads the raw incident table
type SourceReader interface {
	Read(ctx context.Context) (*incident.RawTable, error)
}
