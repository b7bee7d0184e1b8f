package incident

import (
	"bytes"
	"encoding/csv"
	"time"

	"schoolprep/domain/core"
)

// Manifest captures how an analysis dataset was produced
type Manifest struct {
	RunID         core.RunID `json:"run_id"`
	Seed          int64      `json:"seed"`
	TopRaceMode   string     `json:"top_race_mode"`
	SourceRows    int        `json:"source_rows"`
	ExcludedRows  int        `json:"excluded_rows"`
	RealRows      int        `json:"real_rows"`
	SyntheticRows int        `json:"synthetic_rows"`
	TotalRows     int        `json:"total_rows"`
	Columns       []string   `json:"columns"`
	ContentHash   core.Hash  `json:"content_hash"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewManifest describes an assembled table
func NewManifest(runID core.RunID, seed int64, topRaceMode string, sourceRows, excludedRows int, analysis *Table) *Manifest {
	realRows, synthetic := CountBySource(analysis)
	return &Manifest{
		RunID:         runID,
		Seed:          seed,
		TopRaceMode:   topRaceMode,
		SourceRows:    sourceRows,
		ExcludedRows:  excludedRows,
		RealRows:      realRows,
		SyntheticRows: synthetic,
		TotalRows:     analysis.Len(),
		Columns:       analysis.ColumnNames(),
		ContentHash:   ContentHash(analysis),
		CreatedAt:     time.Now().UTC(),
	}
}

// CountBySource counts raw and synthetic rows by the data_source column
func CountBySource(t *Table) (realRows, synthetic int) {
	for i := 0; i < t.Len(); i++ {
		switch DataSource(t.Value(i, ColDataSource).Text) {
		case SourceRaw:
			realRows++
		case SourceSynthetic:
			synthetic++
		}
	}
	return realRows, synthetic
}

// ContentHash hashes the canonical CSV rendering of a table. Identical tables hash identically.
func ContentHash(t *Table) core.Hash {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(t.ColumnNames())
	for i := 0; i < t.Len(); i++ {
		_ = w.Write(t.Strings(i))
	}
	w.Flush()
	return core.NewHash(buf.Bytes())
}
