package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolprep/adapters/rng"
	"schoolprep/domain/core"
	"schoolprep/domain/incident"
	"schoolprep/internal"
	"schoolprep/internal/testkit"
	"schoolprep/ports"
)

func newTestPipeline(repo ports.DatasetRepository, sinks ...ports.TableSink) *Pipeline {
	logger := internal.NewNopLogger()
	return NewPipeline(
		NewCleaner(DefaultCleanerConfig(), logger),
		NewGenerator(rng.NewSeededAdapter(), DefaultGeneratorConfig(42), logger),
		NewAssembler(sinks, repo, logger),
		logger,
	)
}

func TestPipeline_BalancedDataset(t *testing.T) {
	repo := &memoryRepo{}
	result, err := newTestPipeline(repo).Run(context.Background(), rawTable(415))
	require.NoError(t, err)

	assert.Equal(t, 830, result.Analysis.Len())
	assert.Equal(t, 415, result.Real.Len())
	assert.Equal(t, 415, result.Synthetic.Len())

	sum := 0.0
	for _, v := range result.Analysis.Floats(incident.ColShooting) {
		sum += v
	}
	assert.Equal(t, 415.0, sum)

	assert.Equal(t, 415, result.Manifest.RealRows)
	assert.Equal(t, 415, result.Manifest.SyntheticRows)
	assert.Equal(t, int64(42), result.Manifest.Seed)
	assert.Equal(t, incident.ContentHash(result.Analysis), result.Manifest.ContentHash)
	require.Len(t, repo.saved, 1)
}

func TestPipeline_BalanceHoldsAfterExclusions(t *testing.T) {
	raw := rawTable(416)
	raw.Rows[100] = rawRow(100, map[string]string{"school_type": ""})

	result, err := newTestPipeline(nil).Run(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, 415, result.Real.Len())
	assert.Equal(t, 415, result.Synthetic.Len())
	assert.Equal(t, 416, result.Manifest.SourceRows)
	assert.Equal(t, 1, result.Manifest.ExcludedRows)
}

func TestPipeline_SameSeedSameDataset(t *testing.T) {
	first, err := newTestPipeline(nil).Run(context.Background(), rawTable(25))
	require.NoError(t, err)
	second, err := newTestPipeline(nil).Run(context.Background(), rawTable(25))
	require.NoError(t, err)

	assert.Equal(t, first.Manifest.ContentHash, second.Manifest.ContentHash)
	assert.NotEqual(t, first.Manifest.RunID, second.Manifest.RunID)
}

func TestPipeline_WritesSinks(t *testing.T) {
	sink := &recordingSink{name: "csv"}
	result, err := newTestPipeline(nil, sink).Run(context.Background(), rawTable(5))
	require.NoError(t, err)

	assert.Equal(t, 1, sink.writes)
	assert.Len(t, result.Outputs, 1)
	assert.NotEmpty(t, result.Plans)
}

func TestPipeline_FatalCleanError(t *testing.T) {
	_, err := newTestPipeline(nil).Run(context.Background(), withoutHeader(rawTable(5), "state"))
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
}

func TestPipeline_GeneratedExport(t *testing.T) {
	config := testkit.DefaultSourceConfig()
	config.Rows = 200
	config.HeadCountRate = 0.2
	config.MissingRate = 0.1
	config.CorruptDateRate = 0.05

	gen := testkit.NewSourceGenerator(config)
	raw := gen.Generate()
	corrupted := gen.Corrupted()
	require.NotEmpty(t, corrupted)

	result, err := newTestPipeline(nil).Run(context.Background(), raw)
	require.NoError(t, err)

	var excludedRows []int
	for _, e := range result.Report.Excluded {
		assert.Equal(t, ReasonUnparseableDate, e.Reason)
		excludedRows = append(excludedRows, e.Row)
	}
	assert.ElementsMatch(t, corrupted, excludedRows)

	kept := config.Rows - len(corrupted)
	assert.Equal(t, kept, result.Real.Len())
	assert.Equal(t, kept, result.Synthetic.Len())
	assert.Positive(t, result.Report.Imputed[incident.ColStaffing])

	for i := 0; i < result.Real.Len(); i++ {
		total := 0.0
		for _, column := range incident.DefaultEthnicityOrder {
			share := result.Real.Value(i, column)
			require.True(t, share.IsNumeric(), "row %d %s", i, column)
			total += share.Num
		}
		assert.InDelta(t, 1.0, total, 0.03, "row %d shares", i)
	}
	require.NoError(t, Verify(result.Analysis, incident.DefaultSchema()))
}
