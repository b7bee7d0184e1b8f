package coercer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"schoolprep/domain/core"
	"schoolprep/domain/incident"
)

// TypeCoercer handles deterministic type coercion of raw source cells
type TypeCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines the coercion thresholds and rules
type CoercionConfig struct {
	NumericThreshold float64  `json:"numeric_threshold"` // share of values that must parse as numbers
	DateThreshold    float64  `json:"date_threshold"`    // share of values that must parse as dates
	DateLayouts      []string `json:"date_layouts"`
	MissingTokens    []string `json:"missing_tokens"` // cell texts treated as missing
	ExcelSerialDates bool     `json:"excel_serial_dates"`
}

// DefaultCoercionConfig returns sensible defaults
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		NumericThreshold: 0.8,
		DateThreshold:    0.8,
		DateLayouts: []string{
			"2006-01-02",
			"1/2/2006",
			"01/02/2006",
			"1/2/06",
			"2006/01/02",
			"Jan 2, 2006",
			"January 2, 2006",
			"02-Jan-2006",
			"2-Jan-06",
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
		},
		MissingTokens:    []string{"na", "n/a", "nan", "null", "none", "-"},
		ExcelSerialDates: true,
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	return &TypeCoercer{config: config}
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	thousandsOnly = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
)

// IsMissing reports whether a raw cell carries no value
func (c *TypeCoercer) IsMissing(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return true
	}
	for _, token := range c.config.MissingTokens {
		if s == token {
			return true
		}
	}
	return false
}

// CoerceText normalizes a raw text cell; missing tokens become missing values
func (c *TypeCoercer) CoerceText(raw string) incident.Value {
	if c.IsMissing(raw) {
		return incident.NewMissingValue()
	}
	return incident.NewTextValue(c.normalizeString(raw))
}

// CoerceNumeric parses a numeric cell. ok is false only when a non-missing
// cell cannot be parsed.
func (c *TypeCoercer) CoerceNumeric(raw string) (v incident.Value, ok bool) {
	if c.IsMissing(raw) {
		return incident.NewMissingValue(), true
	}
	n, ok := c.tryParseNumeric(raw)
	if !ok {
		return incident.NewMissingValue(), false
	}
	return incident.NewNumericValue(n), true
}

// CoerceDate parses a date cell into its canonical calendar form. ok is false
// only when a non-missing cell cannot be parsed.
func (c *TypeCoercer) CoerceDate(raw string) (v incident.Value, ok bool) {
	if c.IsMissing(raw) {
		return incident.NewMissingValue(), true
	}
	t, ok := c.tryParseDate(strings.TrimSpace(raw))
	if !ok {
		return incident.NewMissingValue(), false
	}
	return incident.NewDateValue(t), true
}

// tryParseNumeric attempts to parse as numeric with strict rules.
// Handles parentheses for negatives, currency symbols, percent signs and
// comma thousands separators.
func (c *TypeCoercer) tryParseNumeric(strVal string) (float64, bool) {
	cleanVal := strings.TrimSpace(strVal)

	// Handle parentheses for negative numbers: (123) -> -123
	isNegative := false
	if strings.HasPrefix(cleanVal, "(") && strings.HasSuffix(cleanVal, ")") {
		cleanVal = strings.TrimSuffix(strings.TrimPrefix(cleanVal, "("), ")")
		isNegative = true
	}

	for _, symbol := range []string{"$", "USD", "%"} {
		cleanVal = strings.ReplaceAll(cleanVal, symbol, "")
	}
	cleanVal = strings.TrimSpace(cleanVal)

	// 1,234 and 12,345.5 are US thousands groupings; a lone comma is a decimal mark
	if thousandsOnly.MatchString(cleanVal) {
		cleanVal = strings.ReplaceAll(cleanVal, ",", "")
	} else if strings.Count(cleanVal, ",") == 1 && !strings.Contains(cleanVal, ".") {
		cleanVal = strings.ReplaceAll(cleanVal, ",", ".")
	}

	if isNegative {
		cleanVal = "-" + cleanVal
	}

	val, err := strconv.ParseFloat(cleanVal, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

// Excel serial day numbers accepted as dates. Serials below 10000 (1927-05-18)
// would swallow bare years such as 2019.
const (
	minExcelSerial = 10000
	maxExcelSerial = 2958466
)

// tryParseDate attempts to parse a date with the configured layouts, then as
// an Excel serial day number
func (c *TypeCoercer) tryParseDate(strVal string) (time.Time, bool) {
	for _, layout := range c.config.DateLayouts {
		if t, err := time.Parse(layout, strVal); err == nil {
			return t, true
		}
	}

	if c.config.ExcelSerialDates {
		// Excel day 1 is 1900-01-01; the 1900 leap-year bug puts the usable epoch at 1899-12-30
		if serial, err := strconv.ParseFloat(strVal, 64); err == nil && serial >= minExcelSerial && serial < maxExcelSerial {
			epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
			return epoch.AddDate(0, 0, int(math.Floor(serial))), true
		}
	}

	return time.Time{}, false
}

// normalizeString applies deterministic string normalization
func (c *TypeCoercer) normalizeString(s string) string {
	s = strings.TrimSpace(s)
	s = whitespaceRun.ReplaceAllString(s, " ")

	// Remove control characters
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}

// AnalyzeTypeDistribution analyzes a column sample to recommend a column kind
func (c *TypeCoercer) AnalyzeTypeDistribution(values []string) TypeAnalysis {
	analysis := TypeAnalysis{TotalCount: len(values)}

	for _, val := range values {
		if c.IsMissing(val) {
			continue
		}
		analysis.ValidCount++
		if _, ok := c.tryParseNumeric(val); ok {
			analysis.NumericCount++
		}
		if _, ok := c.tryParseDate(strings.TrimSpace(val)); ok {
			analysis.DateCount++
		}
	}

	if analysis.ValidCount > 0 {
		analysis.NumericRatio = float64(analysis.NumericCount) / float64(analysis.ValidCount)
		analysis.DateRatio = float64(analysis.DateCount) / float64(analysis.ValidCount)
		analysis.MissingRatio = float64(analysis.TotalCount-analysis.ValidCount) / float64(analysis.TotalCount)
	} else if analysis.TotalCount > 0 {
		analysis.MissingRatio = 1
	}

	analysis.RecommendedKind = c.determineRecommendedKind(analysis)
	return analysis
}

// determineRecommendedKind chooses the best kind based on analysis
func (c *TypeCoercer) determineRecommendedKind(analysis TypeAnalysis) incident.Kind {
	if analysis.ValidCount == 0 {
		return incident.KindText
	}
	// Excel serial numbers also parse as dates, so numbers win first
	if analysis.NumericRatio >= c.config.NumericThreshold {
		return incident.KindNumeric
	}
	if analysis.DateRatio >= c.config.DateThreshold {
		return incident.KindDate
	}
	return incident.KindText
}

// TypeAnalysis contains the results of type distribution analysis
type TypeAnalysis struct {
	TotalCount      int           `json:"total_count"`
	ValidCount      int           `json:"valid_count"`
	NumericCount    int           `json:"numeric_count"`
	DateCount       int           `json:"date_count"`
	NumericRatio    float64       `json:"numeric_ratio"`
	DateRatio       float64       `json:"date_ratio"`
	MissingRatio    float64       `json:"missing_ratio"`
	RecommendedKind incident.Kind `json:"recommended_kind"`
}

// TypeTable converts an untyped table whose headers are canonical column names,
// taking column kinds from schema. Any unparseable cell fails the whole table.
func (c *TypeCoercer) TypeTable(raw *incident.RawTable, schema incident.Schema) (*incident.Table, error) {
	columns := make([]incident.Column, len(raw.Headers))
	for j, h := range raw.Headers {
		columns[j] = incident.Column{Name: h, Kind: schema.KindOf(h)}
	}

	rows := make([][]incident.Value, len(raw.Rows))
	for i, rawRow := range raw.Rows {
		row := make([]incident.Value, len(columns))
		for j, col := range columns {
			cell := rawRow[col.Name]
			switch col.Kind {
			case incident.KindInteger, incident.KindNumeric:
				v, ok := c.CoerceNumeric(cell)
				if !ok {
					return nil, core.NewParseError(col.Name, i+1, cell, string(col.Kind))
				}
				row[j] = v
			case incident.KindDate:
				v, ok := c.CoerceDate(cell)
				if !ok {
					return nil, core.NewParseError(col.Name, i+1, cell, string(col.Kind))
				}
				row[j] = v
			default:
				row[j] = c.CoerceText(cell)
			}
		}
		rows[i] = row
	}
	return incident.NewTable(columns, rows)
}
