package excel

import (
	"context"
	"path/filepath"
	"strings"

	"schoolprep/adapters/datareadiness/coercer"
	"schoolprep/domain/incident"
	"schoolprep/internal"
)

// LoadAnalysisTable reads a persisted analysis dataset (.csv or .xlsx) back into
// a typed table, taking column kinds from schema
func LoadAnalysisTable(ctx context.Context, path string, schema incident.Schema, logger *internal.Logger) (*incident.Table, error) {
	sheet := ""
	if strings.ToLower(filepath.Ext(path)) != ".csv" {
		sheet = AnalysisSheet
	}
	raw, err := NewDataReader(path, sheet, logger).Read(ctx)
	if err != nil {
		return nil, err
	}
	return TypeRawTable(raw, schema)
}

// TypeRawTable converts an untyped table whose headers are canonical column names
func TypeRawTable(raw *incident.RawTable, schema incident.Schema) (*incident.Table, error) {
	return coercer.NewTypeCoercer(coercer.DefaultCoercionConfig()).TypeTable(raw, schema)
}
