package testkit

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolprep/domain/incident"
)

func TestSourceGenerator_Basic(t *testing.T) {
	table := NewSourceGenerator(DefaultSourceConfig()).Generate()

	require.Len(t, table.Rows, 40)
	assert.Equal(t, SourceHeaders, table.Headers)

	for i, row := range table.Rows {
		for _, h := range SourceHeaders {
			assert.NotEmpty(t, row[h], "row %d column %s", i, h)
		}
		year, err := strconv.Atoi(row["year"])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, year, 1999)
		assert.LessOrEqual(t, year, 2023)

		total := 0.0
		for _, column := range incident.DefaultEthnicityOrder {
			share, err := strconv.ParseFloat(row[column], 64)
			require.NoError(t, err)
			total += share
		}
		assert.InDelta(t, 1.0, total, 0.01, "row %d shares", i)
	}
}

func TestSourceGenerator_Deterministic(t *testing.T) {
	config := DefaultSourceConfig()
	config.CorruptDateRate = 0.2

	a := NewSourceGenerator(config)
	b := NewSourceGenerator(config)
	assert.Equal(t, a.Generate(), b.Generate())
	assert.Equal(t, a.Corrupted(), b.Corrupted())

	config.Seed++
	assert.NotEqual(t, a.Generate(), NewSourceGenerator(config).Generate())
}

func TestSourceGenerator_Corruption(t *testing.T) {
	config := DefaultSourceConfig()
	config.Rows = 100
	config.CorruptDateRate = 0.3
	config.MissingRate = 0.3
	config.HeadCountRate = 1

	gen := NewSourceGenerator(config)
	table := gen.Generate()
	corrupted := gen.Corrupted()
	require.NotEmpty(t, corrupted)

	for _, n := range corrupted {
		assert.Equal(t, "sometime in spring", table.Rows[n-1]["date"])
	}

	blank := 0
	for _, row := range table.Rows {
		if row["staffing"] == "" {
			blank++
		}
		enrollment, err := strconv.ParseFloat(row["enrollment"], 64)
		require.NoError(t, err)
		white, err := strconv.ParseFloat(row[incident.ColWhite], 64)
		require.NoError(t, err)
		assert.Equal(t, white, float64(int(white)), "head counts are whole")
		assert.LessOrEqual(t, white, enrollment)
	}
	assert.Positive(t, blank)
}

func TestWriteCSV(t *testing.T) {
	table := NewSourceGenerator(DefaultSourceConfig()).Generate()
	path := filepath.Join(t.TempDir(), "nested", "source.csv")

	require.NoError(t, WriteCSV(path, table))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 41)
	assert.Equal(t, strings.Join(SourceHeaders, ","), lines[0])
}
