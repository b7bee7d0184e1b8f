package profiling

import (
	"errors"

	"schoolprep/domain/incident"
)

// TableProfile holds per-column profiles of a cleaned table
type TableProfile struct {
	Rows        int
	Numeric     map[string]NumericProfile
	Categorical map[string]CategoricalProfile
}

// DataProfiler profiles the columns a caller asks for
type DataProfiler struct {
	numeric     []string
	categorical []string
}

// NewDataProfiler creates a profiler for the given numeric and categorical columns
func NewDataProfiler(numeric, categorical []string) *DataProfiler {
	return &DataProfiler{numeric: numeric, categorical: categorical}
}

// ProfileTable profiles every configured column. Columns with no values are
// skipped rather than failing so callers can decide how to treat them.
func (dp *DataProfiler) ProfileTable(t *incident.Table) (*TableProfile, error) {
	profile := &TableProfile{
		Rows:        t.Len(),
		Numeric:     make(map[string]NumericProfile, len(dp.numeric)),
		Categorical: make(map[string]CategoricalProfile, len(dp.categorical)),
	}

	for _, column := range dp.numeric {
		p, err := ProfileNumeric(t, column)
		if errors.Is(err, ErrNoValues) {
			continue
		}
		if err != nil {
			return nil, err
		}
		profile.Numeric[column] = p
	}

	for _, column := range dp.categorical {
		p, err := ProfileCategorical(t, column)
		if errors.Is(err, ErrNoValues) {
			continue
		}
		if err != nil {
			return nil, err
		}
		profile.Categorical[column] = p
	}

	return profile, nil
}
