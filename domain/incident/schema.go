package incident

import (
	"fmt"
)

// Kind is the statistical kind of a column
type Kind string

const (
	KindInteger Kind = "integer"
	KindNumeric Kind = "numeric"
	KindDate    Kind = "date"
	KindText    Kind = "text"
)

// Column describes one column of a table
type Column struct {
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// DataSource tags the provenance of an analysis row
type DataSource string

const (
	SourceRaw       DataSource = "raw"
	SourceSynthetic DataSource = "synthetic"
)

// Canonical column names
const (
	ColYear          = "year"
	ColDate          = "date"
	ColSchoolYear    = "school_year"
	ColDayOfWeek     = "day_of_week"
	ColCity          = "city"
	ColState         = "state"
	ColSchoolType    = "school_type"
	ColEnrollment    = "enrollment"
	ColKilled        = "killed"
	ColInjured       = "injured"
	ColCasualties    = "casualties"
	ColShootingType  = "shooting_type"
	ColWhite         = "white"
	ColBlack         = "black"
	ColHispanic      = "hispanic"
	ColAsian         = "asian"
	ColNativeAmerica = "american_indian_alaska_native"
	ColPacificIsland = "hawaiian_native_pacific_islander"
	ColTwoOrMore     = "two_or_more"
	ColResource      = "resource_officer"
	ColLatitude      = "latitude"
	ColLongitude     = "longitude"
	ColStaffing      = "staffing"
	ColLowGrade      = "low_grade"
	ColHighGrade     = "high_grade"
	ColLunch         = "lunch"
	ColCounty        = "county"
	ColLocaleDesc    = "ulocale_desc"
	ColTopRace       = "top_1_races"
	ColShooting      = "school_shooting"
	ColDataSource    = "data_source"

	// raw-only columns
	ColLocaleCode = "ulocale"
)

// DefaultEthnicityOrder is the fixed category precedence. Exact ties in the
// dominant-category selection resolve to the earliest entry.
var DefaultEthnicityOrder = []string{
	ColWhite,
	ColBlack,
	ColHispanic,
	ColAsian,
	ColNativeAmerica,
	ColPacificIsland,
	ColTwoOrMore,
}

// analysisColumns is the 31-column allow-list, in output order
var analysisColumns = []Column{
	{ColYear, KindInteger},
	{ColDate, KindDate},
	{ColSchoolYear, KindText},
	{ColDayOfWeek, KindText},
	{ColCity, KindText},
	{ColState, KindText},
	{ColSchoolType, KindText},
	{ColEnrollment, KindNumeric},
	{ColKilled, KindNumeric},
	{ColInjured, KindNumeric},
	{ColCasualties, KindNumeric},
	{ColShootingType, KindText},
	{ColWhite, KindNumeric},
	{ColBlack, KindNumeric},
	{ColHispanic, KindNumeric},
	{ColAsian, KindNumeric},
	{ColNativeAmerica, KindNumeric},
	{ColPacificIsland, KindNumeric},
	{ColTwoOrMore, KindNumeric},
	{ColResource, KindNumeric},
	{ColLatitude, KindNumeric},
	{ColLongitude, KindNumeric},
	{ColStaffing, KindNumeric},
	{ColLowGrade, KindText},
	{ColHighGrade, KindText},
	{ColLunch, KindNumeric},
	{ColCounty, KindText},
	{ColLocaleDesc, KindText},
	{ColTopRace, KindText},
	{ColShooting, KindInteger},
	{ColDataSource, KindText},
}

// DefaultLocaleCodes maps NCES urban-centric locale codes to their labels
var DefaultLocaleCodes = map[int]string{
	11: "City: Large",
	12: "City: Midsize",
	13: "City: Small",
	21: "Suburb: Large",
	22: "Suburb: Midsize",
	23: "Suburb: Small",
	31: "Town: Fringe",
	32: "Town: Distant",
	33: "Town: Remote",
	41: "Rural: Fringe",
	42: "Rural: Distant",
	43: "Rural: Remote",
}

// DefaultRenames maps raw source headers onto canonical names
var DefaultRenames = map[string]string{
	"lat":  ColLatitude,
	"long": ColLongitude,
}

// Schema carries every rule that shapes the analysis dataset
type Schema struct {
	Columns        []Column
	EthnicityOrder []string
	Renames        map[string]string
	LocaleCodes    map[int]string
}

// DefaultSchema returns the schema of the published analysis dataset
func DefaultSchema() Schema {
	renames := make(map[string]string, len(DefaultRenames))
	for k, v := range DefaultRenames {
		renames[k] = v
	}
	codes := make(map[int]string, len(DefaultLocaleCodes))
	for k, v := range DefaultLocaleCodes {
		codes[k] = v
	}
	return Schema{
		Columns:        append([]Column(nil), analysisColumns...),
		EthnicityOrder: append([]string(nil), DefaultEthnicityOrder...),
		Renames:        renames,
		LocaleCodes:    codes,
	}
}

// ColumnNames returns the allow-listed column names in order
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// KindOf returns the declared kind of a canonical column, defaulting to text
func (s Schema) KindOf(name string) Kind {
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Kind
		}
	}
	return KindText
}

// Canonical maps a raw header to its canonical column name
func (s Schema) Canonical(header string) string {
	if renamed, ok := s.Renames[header]; ok {
		return renamed
	}
	return header
}

// LocaleDescription returns the urbanicity label for an NCES locale code
func (s Schema) LocaleDescription(code int) (string, bool) {
	desc, ok := s.LocaleCodes[code]
	return desc, ok
}

// Validate checks that the schema can produce a model-ready dataset
func (s Schema) Validate() error {
	if len(s.EthnicityOrder) == 0 {
		return fmt.Errorf("ethnicity order cannot be empty")
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("column name cannot be empty")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %s", c.Name)
		}
		switch c.Kind {
		case KindInteger, KindNumeric, KindDate, KindText:
		default:
			return fmt.Errorf("column %s has unknown kind %q", c.Name, c.Kind)
		}
		seen[c.Name] = true
	}
	for _, name := range s.EthnicityOrder {
		if !seen[name] {
			return fmt.Errorf("ethnicity category %s is not an output column", name)
		}
	}
	for _, required := range []string{ColTopRace, ColShooting, ColDataSource, ColLocaleDesc, ColState, ColSchoolType, ColEnrollment, ColYear} {
		if !seen[required] {
			return fmt.Errorf("required column %s missing from schema", required)
		}
	}
	return nil
}
