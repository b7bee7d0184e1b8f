package dataset

import (
	"fmt"

	"schoolprep/domain/core"
	"schoolprep/domain/incident"
)

// Verify checks an assembled analysis table: the schema matches, both sources
// are balanced, labels agree with provenance and every row has a top race.
func Verify(t *incident.Table, schema incident.Schema) error {
	if !incident.SameColumns(schema.ColumnNames(), t.ColumnNames()) {
		return core.NewSchemaMismatchError(schema.ColumnNames(), t.ColumnNames())
	}

	realRows, synthetic := CountBySourceChecked(t)
	if realRows < 0 {
		return core.NewDataQualityError(incident.ColDataSource, "unknown data_source label")
	}
	if realRows != synthetic {
		return core.NewBalanceError(realRows, synthetic)
	}

	for i := 0; i < t.Len(); i++ {
		source := incident.DataSource(t.Value(i, incident.ColDataSource).Text)
		want := labelValue(incident.ColShooting, source)
		if got := t.Value(i, incident.ColShooting); !got.Equal(want) {
			return core.NewDataQualityError(incident.ColShooting,
				fmt.Sprintf("row %d: %s row labeled %s", i+1, source, got.Format(incident.KindInteger)))
		}
		if t.Value(i, incident.ColTopRace).IsMissing() {
			return core.NewDataQualityError(incident.ColTopRace, fmt.Sprintf("row %d: missing", i+1))
		}
		for _, category := range schema.EthnicityOrder {
			share := t.Value(i, category)
			if share.IsNumeric() && (share.Num < 0 || share.Num > 1) {
				return core.NewDataQualityError(category, fmt.Sprintf("row %d: share %g outside [0, 1]", i+1, share.Num))
			}
		}
	}
	return nil
}

// CountBySourceChecked counts rows per provenance; realRows is -1 when any row
// carries an unknown label
func CountBySourceChecked(t *incident.Table) (realRows, synthetic int) {
	for i := 0; i < t.Len(); i++ {
		switch incident.DataSource(t.Value(i, incident.ColDataSource).Text) {
		case incident.SourceRaw:
			realRows++
		case incident.SourceSynthetic:
			synthetic++
		default:
			return -1, -1
		}
	}
	return realRows, synthetic
}
