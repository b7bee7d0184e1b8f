package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolprep/domain/incident"
	"schoolprep/internal"
	"schoolprep/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Source:   config.SourceConfig{Path: filepath.Join(dir, "source.csv"), Sheet: "Sheet1"},
		Output:   config.OutputConfig{Dir: filepath.Join(dir, "out"), Formats: []string{"csv", "xlsx"}},
		Database: config.DatabaseConfig{URL: "sqlite://" + filepath.Join(dir, "runs.db")},
		Prepare: config.PrepareConfig{
			Seed:              42,
			TopRaceMode:       "derive",
			EmptyColumnPolicy: "skip",
			Schema:            incident.DefaultSchema(),
		},
		LogLevel: internal.LogLevelError,
	}
}

func TestNew_WiresEverything(t *testing.T) {
	c, err := New(context.Background(), testConfig(t), internal.NewNopLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.DB)
	assert.NotNil(t, c.DatasetRepo)
	assert.NotNil(t, c.Source)
	assert.NotNil(t, c.Pipeline)
	require.Len(t, c.Sinks, 2)
	assert.Equal(t, "csv", c.Sinks[0].Name())
	assert.Equal(t, "xlsx", c.Sinks[1].Name())
}

func TestNew_WithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.URL = ""

	c, err := New(context.Background(), cfg, internal.NewNopLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.DB)
	assert.Nil(t, c.DatasetRepo)
}

func TestNew_RejectsBadTopRaceMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Prepare.TopRaceMode = "majority"

	_, err := New(context.Background(), cfg, internal.NewNopLogger())
	assert.Error(t, err)
}

func TestBuildSinks(t *testing.T) {
	_, err := BuildSinks(t.TempDir(), []string{"parquet"})
	assert.Error(t, err)

	sinks, err := BuildSinks(t.TempDir(), []string{"csv"})
	require.NoError(t, err)
	assert.Len(t, sinks, 1)
}
