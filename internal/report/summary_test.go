package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolprep/adapters/datareadiness/synthesizer"
	"schoolprep/domain/core"
	"schoolprep/domain/incident"
	"schoolprep/internal/dataset"
	"schoolprep/internal/profiling"
)

var testColumns = []incident.Column{
	{Name: incident.ColState, Kind: incident.KindText},
	{Name: incident.ColEnrollment, Kind: incident.KindNumeric},
	{Name: incident.ColShooting, Kind: incident.KindInteger},
	{Name: incident.ColDataSource, Kind: incident.KindText},
}

func table(t *testing.T, source string, shooting float64, enrollments ...float64) *incident.Table {
	t.Helper()
	rows := make([][]incident.Value, len(enrollments))
	for i, e := range enrollments {
		rows[i] = []incident.Value{
			incident.NewTextValue("Texas"),
			incident.NewNumericValue(e),
			incident.NewNumericValue(shooting),
			incident.NewTextValue(source),
		}
	}
	out, err := incident.NewTable(testColumns, rows)
	require.NoError(t, err)
	return out
}

func sampleResult(t *testing.T) *dataset.Result {
	t.Helper()
	incidents := table(t, "raw", 1, 100, 200)
	synthetic := table(t, "synthetic", 0, 150, 170)
	analysis, err := incidents.Concat(synthetic)
	require.NoError(t, err)

	enrollment, err := profiling.ProfileNumeric(incidents, incident.ColEnrollment)
	require.NoError(t, err)

	return &dataset.Result{
		Real:      incidents,
		Synthetic: synthetic,
		Analysis:  analysis,
		Report: &dataset.CleanReport{
			SourceRows: 3,
			Excluded:   []dataset.Exclusion{{Row: 2, Reason: dataset.ReasonUnparseableDate}},
			Imputed:    map[string]int{incident.ColStaffing: 4},
		},
		Plans: []synthesizer.ColumnPlan{
			{Column: testColumns[1], Strategy: synthesizer.StrategyUniform, Numeric: &enrollment, Reasoning: "uniform over observed range [100, 200]"},
			{Column: testColumns[0], Strategy: synthesizer.StrategyMissing},
		},
		Manifest: incident.NewManifest(core.NewRunID(), 42, "resample", 3, 1, analysis),
		Outputs:  []string{"out/analysis.csv"},
	}
}

func TestSummary(t *testing.T) {
	md, err := Summary(sampleResult(t))
	require.NoError(t, err)

	assert.Contains(t, md, "# School shooting dataset preparation")
	assert.Contains(t, md, "| real | 2 |")
	assert.Contains(t, md, "| synthetic | 2 |")
	assert.Contains(t, md, "| unparseable_date | 1 |")
	assert.Contains(t, md, "| staffing | 4 |")
	assert.Contains(t, md, "| enrollment | uniform |")
	assert.Contains(t, md, "| enrollment | 150 | 160 | [100, 200] |")
	assert.Contains(t, md, "`out/analysis.csv`")
	assert.NotContains(t, md, "| state | missing |")
	assert.Contains(t, md, "| Column | Real mean | Synthetic mean | Range | Welch t | p |")
}

func TestSummaryCategoricalResampling(t *testing.T) {
	result := sampleResult(t)
	result.Plans = append(result.Plans, synthesizer.ColumnPlan{
		Column:   testColumns[0],
		Strategy: synthesizer.StrategyCategorical,
	})

	md, err := Summary(result)
	require.NoError(t, err)

	assert.Contains(t, md, "## Categorical resampling")
	assert.Contains(t, md, "| state | 1 | 0.000 | 1 | 0.000 |")
}

func TestRenderHTML(t *testing.T) {
	out := string(RenderHTML("# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"))

	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>1</td>")
}

func TestWriteSummary(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	paths, err := WriteSummary(dir, "# Run\n")
	require.NoError(t, err)
	require.Len(t, paths, 2)

	md, err := os.ReadFile(filepath.Join(dir, SummaryMarkdown))
	require.NoError(t, err)
	assert.Equal(t, "# Run\n", string(md))

	page, err := os.ReadFile(filepath.Join(dir, SummaryHTML))
	require.NoError(t, err)
	assert.Contains(t, string(page), "Run</h1>")
}

func TestProfileMarkdown(t *testing.T) {
	incidents := table(t, "raw", 1, 100, 200, 300)
	profile, err := profiling.NewDataProfiler(
		[]string{incident.ColEnrollment},
		[]string{incident.ColState},
	).ProfileTable(incidents)
	require.NoError(t, err)

	md := ProfileMarkdown("Cleaned incidents", profile)
	assert.Contains(t, md, "3 rows")
	assert.Contains(t, md, "| enrollment | 0 | 100 | 300 | 200 | 200 |")
	assert.Contains(t, md, "| state | 0 | 1 | Texas |")
}
