package excel

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"schoolprep/domain/incident"
)

func analysisFixture(t *testing.T) *incident.Table {
	t.Helper()
	cols := []incident.Column{
		{Name: incident.ColYear, Kind: incident.KindInteger},
		{Name: incident.ColDate, Kind: incident.KindDate},
		{Name: incident.ColState, Kind: incident.KindText},
		{Name: incident.ColEnrollment, Kind: incident.KindNumeric},
		{Name: incident.ColDataSource, Kind: incident.KindText},
	}
	table, err := incident.NewTable(cols, [][]incident.Value{
		{incident.NewNumericValue(2018), incident.NewDateValue(time.Date(2018, 5, 18, 0, 0, 0, 0, time.UTC)), incident.NewTextValue("TX"), incident.NewNumericValue(1462.5), incident.NewTextValue("raw")},
		{incident.NewNumericValue(2004), incident.NewMissingValue(), incident.NewTextValue("WA"), incident.NewNumericValue(90), incident.NewTextValue("synthetic")},
	})
	require.NoError(t, err)
	return table
}

func TestReadCSV_HeadersAndShortRows(t *testing.T) {
	src := "\ufeffstate, enrollment ,date\nCA,100,1/2/2006\nTX,200\n,,\n"
	raw, err := ReadCSV(strings.NewReader(src), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"state", "enrollment", "date"}, raw.Headers)
	require.Len(t, raw.Rows, 2)
	assert.Equal(t, "", raw.Rows[1]["date"])
	assert.Equal(t, "200", raw.Rows[1]["enrollment"])
}

func TestReadCSV_RejectsDuplicateHeaders(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,a\n1,2\n"), nil)
	assert.Error(t, err)
}

func TestCSVSink_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analysis_dataset.csv")
	table := analysisFixture(t)

	written, err := NewCSVSink(path).Write(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	loaded, err := LoadAnalysisTable(context.Background(), path, incident.DefaultSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, incident.ContentHash(table), incident.ContentHash(loaded))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteCSV_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, analysisFixture(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "year,date,state,enrollment,data_source", lines[0])
	assert.Equal(t, "2018,2018-05-18,TX,1462.5,raw", lines[1])
	assert.Equal(t, "2004,,WA,90,synthetic", lines[2])
}

func TestXLSXSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis_dataset.xlsx")
	table := analysisFixture(t)

	_, err := NewXLSXSink(path).Write(context.Background(), table)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(AnalysisSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "data_source", rows[0][4])

	loaded, err := LoadAnalysisTable(context.Background(), path, incident.DefaultSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, table.Len(), loaded.Len())
	assert.Equal(t, "TX", loaded.Value(0, incident.ColState).Text)
	assert.InDelta(t, 1462.5, loaded.Value(0, incident.ColEnrollment).Num, 1e-9)
}

func TestSink_CancelledContextWritesNothing(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVSink(filepath.Join(dir, "out.csv")).Write(ctx, analysisFixture(t))
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSink_StageCommitDiscard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analysis.csv")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	staged, err := NewCSVSink(path).Stage(context.Background(), analysisFixture(t))
	require.NoError(t, err)
	assert.Equal(t, path, staged.Path())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(data), "staging leaves the destination alone")

	require.NoError(t, staged.Discard())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "discard removes the temp file")

	staged, err = NewCSVSink(path).Stage(context.Background(), analysisFixture(t))
	require.NoError(t, err)
	require.NoError(t, staged.Commit())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "year,"))

	require.NoError(t, staged.Discard())
	assert.NoFileExists(t, path, "discard after commit removes the output")
}

func TestInferColumnTypes(t *testing.T) {
	raw, err := ReadCSV(strings.NewReader("state,enrollment,date\nCA,100,1/2/2006\nTX,200,3/4/2010\n"), nil)
	require.NoError(t, err)

	types := InferColumnTypes(raw)
	assert.Equal(t, incident.KindText, types["state"].RecommendedKind)
	assert.Equal(t, incident.KindNumeric, types["enrollment"].RecommendedKind)
	assert.Equal(t, incident.KindDate, types["date"].RecommendedKind)
}
