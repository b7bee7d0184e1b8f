package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"schoolprep/adapters/datareadiness/coercer"
	"schoolprep/domain/core"
	"schoolprep/domain/incident"
	"schoolprep/internal"
	"schoolprep/internal/profiling"
)

// colSourceRow carries the 1-based source row number through cleaning. It is
// not part of the output schema and is removed by DropIrrelevantColumns.
const colSourceRow = "_source_row"

// EmptyColumnPolicy decides what FillMissing does with a wholly-missing column
type EmptyColumnPolicy string

const (
	EmptyColumnFail EmptyColumnPolicy = "fail"
	EmptyColumnSkip EmptyColumnPolicy = "skip"
)

// ExclusionReason classifies why a source row was dropped
type ExclusionReason string

const (
	ReasonUnparseableNumeric ExclusionReason = "unparseable_numeric"
	ReasonMissingCategorical ExclusionReason = "missing_categorical"
	ReasonUnparseableDate    ExclusionReason = "unparseable_date"
	ReasonMissingYear        ExclusionReason = "missing_year"
	ReasonUnconvertibleCount ExclusionReason = "unconvertible_head_count"
)

// Exclusion records one dropped source row
type Exclusion struct {
	Row    int
	Reason ExclusionReason
	Err    error
}

// CleanReport tells the caller what cleaning did to the source
type CleanReport struct {
	SourceRows     int
	Excluded       []Exclusion
	Imputed        map[string]int
	SkippedColumns []string
}

// ExcludedByReason counts exclusions per reason
func (r *CleanReport) ExcludedByReason() map[ExclusionReason]int {
	counts := make(map[ExclusionReason]int)
	for _, e := range r.Excluded {
		counts[e.Reason]++
	}
	return counts
}

// CleanRows returns the number of rows that survived cleaning
func (r *CleanReport) CleanRows() int {
	return r.SourceRows - len(r.Excluded)
}

// headCountSum is the largest row total still read as fractions. Rows above
// it, or with any single value above 1, report head counts.
const headCountSum = 1.05

// fillColumns are mean-filled before the ethnicity values are normalized.
// Ethnicity shares are filled afterwards so their mean is taken over shares.
var fillColumns = []string{
	incident.ColEnrollment,
	incident.ColLatitude,
	incident.ColLongitude,
	incident.ColStaffing,
	incident.ColLunch,
	incident.ColKilled,
	incident.ColInjured,
	incident.ColCasualties,
	incident.ColResource,
}

// requiredCategoricals must be present on every kept row
var requiredCategoricals = []string{incident.ColState, incident.ColSchoolType, incident.ColLocaleDesc}

// CleanerConfig holds the cleaning rules
type CleanerConfig struct {
	Schema            incident.Schema
	Coercion          coercer.CoercionConfig
	EmptyColumnPolicy EmptyColumnPolicy
}

// DefaultCleanerConfig returns the rules used for the published dataset
func DefaultCleanerConfig() CleanerConfig {
	return CleanerConfig{
		Schema:            incident.DefaultSchema(),
		Coercion:          coercer.DefaultCoercionConfig(),
		EmptyColumnPolicy: EmptyColumnFail,
	}
}

// Cleaner normalizes a raw incident table into the analysis schema
type Cleaner struct {
	config  CleanerConfig
	coercer *coercer.TypeCoercer
	logger  *internal.Logger
}

// NewCleaner creates a cleaner
func NewCleaner(config CleanerConfig, logger *internal.Logger) *Cleaner {
	if config.EmptyColumnPolicy == "" {
		config.EmptyColumnPolicy = EmptyColumnFail
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Cleaner{
		config:  config,
		coercer: coercer.NewTypeCoercer(config.Coercion),
		logger:  logger.With(zap.String("stage", "clean")),
	}
}

// Clean runs every cleaning step and labels the surviving rows as raw incidents.
// Row-level problems are reported as exclusions; table-level problems are returned as errors.
func (c *Cleaner) Clean(ctx context.Context, raw *incident.RawTable) (*incident.Table, *CleanReport, error) {
	start := time.Now()
	report := &CleanReport{SourceRows: len(raw.Rows)}

	if len(raw.Rows) == 0 {
		return nil, report, core.NewDataQualityError("*", "source has no incident rows")
	}

	parsed, excluded, err := c.ParseRows(raw)
	if err != nil {
		return nil, report, err
	}
	report.Excluded = append(report.Excluded, excluded...)
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	dated, excluded, err := c.NormalizeDates(parsed)
	if err != nil {
		return nil, report, err
	}
	report.Excluded = append(report.Excluded, excluded...)

	filled, imputed, skipped, err := c.FillMissing(dated, fillColumns)
	if err != nil {
		return nil, report, err
	}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	order := c.config.Schema.EthnicityOrder
	normalized, excluded, err := NormalizeShares(filled, order)
	if err != nil {
		return nil, report, err
	}
	report.Excluded = append(report.Excluded, excluded...)

	shares, imputedShares, skippedShares, err := c.FillMissing(normalized, order)
	if err != nil {
		return nil, report, err
	}
	for column, n := range imputedShares {
		imputed[column] = n
	}
	report.Imputed = imputed
	report.SkippedColumns = append(skipped, skippedShares...)

	withRace, err := WithDominantRace(shares, order)
	if err != nil {
		return nil, report, err
	}

	labeled, err := Label(withRace, incident.SourceRaw)
	if err != nil {
		return nil, report, err
	}

	cleaned, err := c.DropIrrelevantColumns(labeled)
	if err != nil {
		return nil, report, err
	}

	for reason, n := range report.ExcludedByReason() {
		c.logger.Warn("rows excluded", zap.String("reason", string(reason)), zap.Int("count", n))
	}
	c.logger.Info("incident table cleaned",
		zap.Int("source_rows", report.SourceRows),
		zap.Int("clean_rows", cleaned.Len()),
		zap.Int("excluded_rows", len(report.Excluded)),
		zap.Any("imputed", report.Imputed),
		zap.Strings("skipped_columns", report.SkippedColumns),
		zap.Duration("elapsed", time.Since(start)))

	return cleaned, report, nil
}

// ParseRows renames raw headers, types numeric cells and resolves the locale
// label. Rows with unparseable numbers or missing required categoricals are excluded.
func (c *Cleaner) ParseRows(raw *incident.RawTable) (*incident.Table, []Exclusion, error) {
	schema := c.config.Schema

	// canonical name -> raw header
	sources := make(map[string]string, len(raw.Headers))
	canonical := make([]string, 0, len(raw.Headers))
	for _, h := range raw.Headers {
		name := schema.Canonical(h)
		if prev, dup := sources[name]; dup {
			return nil, nil, core.NewDataQualityError(name, fmt.Sprintf("ambiguous source columns %q and %q", prev, h))
		}
		sources[name] = h
		canonical = append(canonical, name)
	}

	if err := checkRequiredHeaders(sources, schema.EthnicityOrder); err != nil {
		return nil, nil, err
	}

	// Raw columns keep their position; allow-listed columns the source lacks are
	// appended as all-missing so every later step sees the full schema
	columns := make([]incident.Column, 0, len(canonical)+len(schema.Columns)+1)
	for _, name := range canonical {
		kind := schema.KindOf(name)
		if kind == incident.KindDate {
			kind = incident.KindText
		}
		columns = append(columns, incident.Column{Name: name, Kind: kind})
	}
	for _, col := range schema.Columns {
		if _, ok := sources[col.Name]; ok {
			continue
		}
		kind := col.Kind
		if kind == incident.KindDate {
			kind = incident.KindText
		}
		columns = append(columns, incident.Column{Name: col.Name, Kind: kind})
	}
	columns = append(columns, incident.Column{Name: colSourceRow, Kind: incident.KindInteger})

	var excluded []Exclusion
	rows := make([][]incident.Value, 0, len(raw.Rows))

	for i, rawRow := range raw.Rows {
		rowNum := i + 1
		row := make([]incident.Value, len(columns))
		var rowErr *Exclusion

		for j, col := range columns {
			if col.Name == colSourceRow {
				row[j] = incident.NewNumericValue(float64(rowNum))
				continue
			}
			header, present := sources[col.Name]
			if !present {
				continue
			}
			cell := rawRow[header]

			switch col.Kind {
			case incident.KindInteger, incident.KindNumeric:
				v, ok := c.coercer.CoerceNumeric(cell)
				if !ok && rowErr == nil {
					rowErr = &Exclusion{Row: rowNum, Reason: ReasonUnparseableNumeric,
						Err: core.NewParseError(col.Name, rowNum, cell, string(col.Kind))}
				}
				row[j] = v
			default:
				row[j] = c.coercer.CoerceText(cell)
			}
		}

		if rowErr == nil {
			rowErr = c.resolveCategoricals(columns, row, rowNum)
		}
		if rowErr != nil {
			c.logger.Trace("row excluded", zap.Int("row", rowNum), zap.String("reason", string(rowErr.Reason)), zap.Error(rowErr.Err))
			excluded = append(excluded, *rowErr)
			continue
		}
		rows = append(rows, row)
	}

	table, err := incident.NewTable(columns, rows)
	if err != nil {
		return nil, nil, err
	}
	return table, excluded, nil
}

// resolveCategoricals fills ulocale_desc from the NCES code when needed,
// normalizes school_type and checks the required categoricals
func (c *Cleaner) resolveCategoricals(columns []incident.Column, row []incident.Value, rowNum int) *Exclusion {
	index := make(map[string]int, len(columns))
	for j, col := range columns {
		index[col.Name] = j
	}

	descIdx := index[incident.ColLocaleDesc]
	if row[descIdx].IsMissing() {
		if codeIdx, ok := index[incident.ColLocaleCode]; ok && !row[codeIdx].IsMissing() {
			if code, ok := c.coercer.CoerceNumeric(row[codeIdx].Text); ok && code.IsNumeric() {
				if desc, known := c.config.Schema.LocaleDescription(int(math.Round(code.Num))); known {
					row[descIdx] = incident.NewTextValue(desc)
				}
			}
		}
	}

	typeIdx := index[incident.ColSchoolType]
	if !row[typeIdx].IsMissing() {
		row[typeIdx] = incident.NewTextValue(strings.ToLower(row[typeIdx].Text))
	}

	for _, name := range requiredCategoricals {
		if row[index[name]].IsMissing() {
			return &Exclusion{Row: rowNum, Reason: ReasonMissingCategorical,
				Err: fmt.Errorf("row %d: required column %s is empty", rowNum, name)}
		}
	}
	return nil
}

// checkRequiredHeaders fails when the source cannot feed the analysis schema
func checkRequiredHeaders(sources map[string]string, ethnicities []string) error {
	required := []string{incident.ColState, incident.ColSchoolType, incident.ColEnrollment, incident.ColLatitude, incident.ColLongitude}
	required = append(required, ethnicities...)
	for _, name := range required {
		if _, ok := sources[name]; !ok {
			return core.NewDataQualityError(name, "required column missing from source")
		}
	}

	_, hasDesc := sources[incident.ColLocaleDesc]
	_, hasCode := sources[incident.ColLocaleCode]
	if !hasDesc && !hasCode {
		return core.NewDataQualityError(incident.ColLocaleDesc, "source has neither ulocale nor ulocale_desc")
	}

	_, hasDate := sources[incident.ColDate]
	_, hasYear := sources[incident.ColYear]
	if !hasDate && !hasYear {
		return core.NewDataQualityError(incident.ColYear, "source has neither date nor year")
	}
	return nil
}

// NormalizeDates parses the date column into its canonical calendar form and
// derives a missing year from it. Rows with unparseable dates, or with neither
// a date nor a year, are excluded.
func (c *Cleaner) NormalizeDates(t *incident.Table) (*incident.Table, []Exclusion, error) {
	if !t.Has(incident.ColDate) || !t.Has(incident.ColYear) {
		return nil, nil, core.NewDataQualityError(incident.ColDate, "date and year columns are required")
	}

	dates := make([]incident.Value, t.Len())
	years := make([]incident.Value, t.Len())
	keep := make([]bool, t.Len())
	var excluded []Exclusion

	for i := 0; i < t.Len(); i++ {
		rowNum := int(t.Value(i, colSourceRow).Num)
		cell := t.Value(i, incident.ColDate)
		year := t.Value(i, incident.ColYear)

		date := cell
		if cell.Type == incident.ValueTypeText {
			parsed, ok := c.coercer.CoerceDate(cell.Text)
			if !ok {
				excluded = append(excluded, Exclusion{Row: rowNum, Reason: ReasonUnparseableDate,
					Err: core.NewParseError(incident.ColDate, rowNum, cell.Text, "date")})
				continue
			}
			date = parsed
		}

		if year.IsMissing() {
			if date.IsMissing() {
				excluded = append(excluded, Exclusion{Row: rowNum, Reason: ReasonMissingYear,
					Err: fmt.Errorf("row %d: neither date nor year is set", rowNum)})
				continue
			}
			year = incident.NewNumericValue(float64(date.Date.Year()))
		}

		dates[i], years[i], keep[i] = date, year, true
	}

	withDates, err := t.WithColumn(incident.Column{Name: incident.ColDate, Kind: incident.KindDate}, dates)
	if err != nil {
		return nil, nil, err
	}
	withYears, err := withDates.WithColumn(incident.Column{Name: incident.ColYear, Kind: incident.KindInteger}, years)
	if err != nil {
		return nil, nil, err
	}
	return withYears.Filter(func(i int) bool { return keep[i] }), excluded, nil
}

// FillMissing replaces missing cells of the given numeric columns with the
// column mean over the non-missing cells. It returns imputed-cell counts per
// column and the columns skipped under the skip policy.
func (c *Cleaner) FillMissing(t *incident.Table, columns []string) (*incident.Table, map[string]int, []string, error) {
	imputed := make(map[string]int)
	var skipped []string

	out := t
	for _, column := range columns {
		if !out.Has(column) {
			continue
		}
		profile, err := profiling.ProfileNumeric(out, column)
		if errors.Is(err, profiling.ErrNoValues) {
			if c.config.EmptyColumnPolicy == EmptyColumnSkip {
				c.logger.Warn("column has no values, left missing", zap.String("column", column))
				skipped = append(skipped, column)
				continue
			}
			return nil, nil, nil, core.NewDataQualityError(column, "every value is missing, mean is undefined")
		}
		if err != nil {
			return nil, nil, nil, err
		}
		if profile.Missing == 0 {
			continue
		}

		cells, _ := out.Column(column)
		for i, v := range cells {
			if v.IsMissing() {
				cells[i] = incident.NewNumericValue(profile.Mean)
			}
		}
		kind, _ := out.Kind(column)
		if out, err = out.WithColumn(incident.Column{Name: column, Kind: kind}, cells); err != nil {
			return nil, nil, nil, err
		}
		imputed[column] = profile.Missing
		c.logger.Debug("mean-filled column", zap.String("column", column), zap.Int("cells", profile.Missing), zap.Float64("mean", profile.Mean))
	}

	return out, imputed, skipped, nil
}

// DropIrrelevantColumns projects the table onto the schema allow-list
func (c *Cleaner) DropIrrelevantColumns(t *incident.Table) (*incident.Table, error) {
	for _, col := range c.config.Schema.Columns {
		if !t.Has(col.Name) {
			return nil, core.NewDataQualityError(col.Name, "allow-listed column not produced by cleaning")
		}
	}
	return t.Project(c.config.Schema.Columns)
}

// NormalizeShares reads each row's ethnicity values as either fractions or
// head counts. A row holds head counts when any value exceeds 1 or the values
// sum past headCountSum; every value of such a row is divided by enrollment.
// Missing cells stay missing and shares are clipped to [0, 1]. Head-count rows
// without a positive enrollment cannot be converted and are excluded.
func NormalizeShares(t *incident.Table, order []string) (*incident.Table, []Exclusion, error) {
	columns := make([][]incident.Value, len(order))
	for j, column := range order {
		cells, err := t.Column(column)
		if err != nil {
			return nil, nil, err
		}
		columns[j] = cells
	}

	keep := make([]bool, t.Len())
	var excluded []Exclusion

	for i := 0; i < t.Len(); i++ {
		total, counts := 0.0, false
		for j := range order {
			if v := columns[j][i]; v.IsNumeric() {
				total += v.Num
				counts = counts || v.Num > 1
			}
		}
		counts = counts || total > headCountSum

		divisor := 1.0
		if counts {
			enrollment := t.Value(i, incident.ColEnrollment)
			if !enrollment.IsNumeric() || enrollment.Num <= 0 {
				rowNum := int(t.Value(i, colSourceRow).Num)
				excluded = append(excluded, Exclusion{Row: rowNum, Reason: ReasonUnconvertibleCount,
					Err: fmt.Errorf("row %d: ethnicity head counts without a positive enrollment", rowNum)})
				continue
			}
			divisor = enrollment.Num
		}

		for j := range order {
			if v := columns[j][i]; v.IsNumeric() {
				columns[j][i] = incident.NewNumericValue(math.Min(math.Max(v.Num/divisor, 0), 1))
			}
		}
		keep[i] = true
	}

	out := t
	for j, column := range order {
		var err error
		if out, err = out.WithColumn(incident.Column{Name: column, Kind: incident.KindNumeric}, columns[j]); err != nil {
			return nil, nil, err
		}
	}
	return out.Filter(func(i int) bool { return keep[i] }), excluded, nil
}

// ComputeDominantRace returns the category with the maximal share. Exact ties
// resolve to the category that comes first in order; missing shares never win.
func ComputeDominantRace(shares map[string]incident.Value, order []string) (string, error) {
	best := ""
	bestShare := math.Inf(-1)
	for _, category := range order {
		v, ok := shares[category]
		if !ok || !v.IsNumeric() {
			continue
		}
		if v.Num > bestShare {
			best, bestShare = category, v.Num
		}
	}
	if best == "" {
		return "", core.NewDataQualityError(incident.ColTopRace, "row has no ethnicity shares")
	}
	return best, nil
}

// WithDominantRace adds the top_1_races column computed per row
func WithDominantRace(t *incident.Table, order []string) (*incident.Table, error) {
	values := make([]incident.Value, t.Len())
	for i := 0; i < t.Len(); i++ {
		shares := make(map[string]incident.Value, len(order))
		for _, category := range order {
			shares[category] = t.Value(i, category)
		}
		top, err := ComputeDominantRace(shares, order)
		if err != nil {
			return nil, err
		}
		values[i] = incident.NewTextValue(top)
	}
	return t.WithColumn(incident.Column{Name: incident.ColTopRace, Kind: incident.KindText}, values)
}

// Label sets school_shooting and data_source as a function of the provenance
func Label(t *incident.Table, source incident.DataSource) (*incident.Table, error) {
	shooting := make([]incident.Value, t.Len())
	sources := make([]incident.Value, t.Len())
	for i := range shooting {
		shooting[i] = labelValue(incident.ColShooting, source)
		sources[i] = labelValue(incident.ColDataSource, source)
	}

	out, err := t.WithColumn(incident.Column{Name: incident.ColShooting, Kind: incident.KindInteger}, shooting)
	if err != nil {
		return nil, err
	}
	return out.WithColumn(incident.Column{Name: incident.ColDataSource, Kind: incident.KindText}, sources)
}
