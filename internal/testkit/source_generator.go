package testkit

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"schoolprep/domain/incident"
)

// SourceHeaders is the column layout of the raw incident export
var SourceHeaders = []string{
	"uid", "date", "year", "school_year", "day_of_week", "city", "state", "school_type",
	"enrollment", "killed", "injured", "casualties", "shooting_type",
	"white", "black", "hispanic", "asian", "american_indian_alaska_native",
	"hawaiian_native_pacific_islander", "two_or_more", "resource_officer",
	"lat", "long", "staffing", "low_grade", "high_grade", "lunch", "county", "ulocale",
}

// SourceConfig configures the raw incident export generator
type SourceConfig struct {
	Rows      int    `json:"rows"`
	Seed      uint64 `json:"seed"`
	StartYear int    `json:"start_year"`
	EndYear   int    `json:"end_year"`

	// HeadCountRate is the share of rows reporting ethnicity as head counts instead of fractions
	HeadCountRate float64 `json:"head_count_rate"`
	// MissingRate is the share of staffing and lunch cells left blank
	MissingRate float64 `json:"missing_rate"`
	// CorruptDateRate is the share of rows whose date cannot be parsed
	CorruptDateRate float64 `json:"corrupt_date_rate"`
}

// DefaultSourceConfig returns a clean export of 40 incidents
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		Rows:      40,
		Seed:      42,
		StartYear: 1999,
		EndYear:   2023,
	}
}

type place struct {
	city, state, county string
	lat, long           float64
}

var places = []place{
	{"Littleton", "Colorado", "Jefferson County", 39.61, -105.02},
	{"Parkland", "Florida", "Broward County", 26.31, -80.26},
	{"Uvalde", "Texas", "Uvalde County", 29.21, -99.79},
	{"Oxford", "Michigan", "Oakland County", 42.82, -83.26},
	{"Newtown", "Connecticut", "Fairfield County", 41.41, -73.31},
	{"Santa Fe", "Texas", "Galveston County", 29.38, -95.1},
	{"Marysville", "Washington", "Snohomish County", 48.05, -122.18},
	{"Chardon", "Ohio", "Geauga County", 41.58, -81.2},
}

var (
	schoolTypes   = []string{"public", "public", "public", "private"}
	shootingTypes = []string{"targeted", "indiscriminate", "accidental", "unclear"}
	localeCodes   = []int{11, 12, 13, 21, 22, 23, 31, 32, 33, 41, 42, 43}
)

// SourceGenerator produces seeded raw incident exports for tests
type SourceGenerator struct {
	config    SourceConfig
	rng       *rand.Rand
	corrupted []int
}

// NewSourceGenerator creates a generator. Equal configs produce equal exports.
func NewSourceGenerator(config SourceConfig) *SourceGenerator {
	return &SourceGenerator{
		config: config,
		rng:    rand.New(rand.NewPCG(config.Seed, 0x5c4001)),
	}
}

// Generate builds the export
func (g *SourceGenerator) Generate() *incident.RawTable {
	g.corrupted = nil
	table := &incident.RawTable{
		Headers: append([]string(nil), SourceHeaders...),
		Rows:    make([]incident.RawRow, 0, g.config.Rows),
	}
	for i := 0; i < g.config.Rows; i++ {
		table.Rows = append(table.Rows, g.row(i))
	}
	return table
}

// Corrupted returns the 1-based data row numbers given an unparseable date by the last Generate
func (g *SourceGenerator) Corrupted() []int {
	return append([]int(nil), g.corrupted...)
}

func (g *SourceGenerator) row(i int) incident.RawRow {
	p := places[g.rng.IntN(len(places))]
	year := g.config.StartYear + g.rng.IntN(g.config.EndYear-g.config.StartYear+1)
	date := time.Date(year, time.Month(1+g.rng.IntN(12)), 1+g.rng.IntN(28), 0, 0, 0, 0, time.UTC)

	enrollment := distuv.Uniform{Min: 150, Max: 2500, Src: g.rng}.Rand()
	enrollment = math.Round(enrollment)
	killed := g.rng.IntN(3)
	injured := g.rng.IntN(5)

	row := incident.RawRow{
		"uid":              fmt.Sprint(i + 1),
		"date":             date.Format("1/2/2006"),
		"year":             fmt.Sprint(year),
		"school_year":      fmt.Sprintf("%d-%d", year-1, year),
		"day_of_week":      date.Weekday().String(),
		"city":             p.city,
		"state":            p.state,
		"school_type":      schoolTypes[g.rng.IntN(len(schoolTypes))],
		"enrollment":       fmt.Sprint(enrollment),
		"killed":           fmt.Sprint(killed),
		"injured":          fmt.Sprint(injured),
		"casualties":       fmt.Sprint(killed + injured),
		"shooting_type":    shootingTypes[g.rng.IntN(len(shootingTypes))],
		"resource_officer": fmt.Sprint(g.rng.IntN(2)),
		"lat":              fmt.Sprintf("%.4f", p.lat+g.rng.Float64()*0.1),
		"long":             fmt.Sprintf("%.4f", p.long-g.rng.Float64()*0.1),
		"staffing":         fmt.Sprintf("%.1f", enrollment/(12+g.rng.Float64()*8)),
		"low_grade":        "9",
		"high_grade":       "12",
		"lunch":            fmt.Sprint(math.Round(enrollment * g.rng.Float64() * 0.6)),
		"county":           p.county,
		"ulocale":          fmt.Sprint(localeCodes[g.rng.IntN(len(localeCodes))]),
	}

	headCounts := g.rng.Float64() < g.config.HeadCountRate
	for j, share := range g.shares() {
		column := incident.DefaultEthnicityOrder[j]
		if headCounts {
			row[column] = fmt.Sprint(math.Round(share * enrollment))
			continue
		}
		row[column] = fmt.Sprintf("%.3f", share)
	}

	if g.rng.Float64() < g.config.MissingRate {
		row["staffing"] = ""
	}
	if g.rng.Float64() < g.config.MissingRate {
		row["lunch"] = ""
	}
	if g.rng.Float64() < g.config.CorruptDateRate {
		row["date"] = "sometime in spring"
		g.corrupted = append(g.corrupted, i+1)
	}
	return row
}

// shares draws one fraction per ethnicity summing to one
func (g *SourceGenerator) shares() []float64 {
	out := make([]float64, len(incident.DefaultEthnicityOrder))
	total := 0.0
	for j := range out {
		out[j] = -math.Log(1 - g.rng.Float64())
		total += out[j]
	}
	for j := range out {
		out[j] /= total
	}
	return out
}

// WriteCSV writes the export to path
func WriteCSV(path string, table *incident.RawTable) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(table.Headers); err != nil {
		return err
	}
	record := make([]string, len(table.Headers))
	for _, row := range table.Rows {
		for j, h := range table.Headers {
			record[j] = row[h]
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
