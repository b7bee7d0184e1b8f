package dataset

import (
	"context"
	"errors"
	"path/filepath"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolprep/adapters/excel"
	"schoolprep/domain/core"
	"schoolprep/domain/incident"
	"schoolprep/ports"
)

type recordingSink struct {
	name string
	err  error

	mu       sync.Mutex
	writes   int
	discards int
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Stage(ctx context.Context, table *incident.Table) (ports.StagedOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &recordedOutput{sink: s, path: filepath.Join("out", "analysis."+s.name)}, nil
}

type recordedOutput struct {
	sink *recordingSink
	path string
}

func (o *recordedOutput) Path() string { return o.path }

func (o *recordedOutput) Commit() error {
	o.sink.mu.Lock()
	defer o.sink.mu.Unlock()
	o.sink.writes++
	return nil
}

func (o *recordedOutput) Discard() error {
	o.sink.mu.Lock()
	defer o.sink.mu.Unlock()
	o.sink.discards++
	return nil
}

// slowFailingSink fails after the other sinks have had time to finish
type slowFailingSink struct{}

func (slowFailingSink) Name() string { return "fail" }

func (slowFailingSink) Stage(ctx context.Context, table *incident.Table) (ports.StagedOutput, error) {
	select {
	case <-time.After(50 * time.Millisecond):
		return nil, errors.New("disk full")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type memoryRepo struct {
	saved    []*incident.Manifest
	saveErr  error
	lastRows int
}

func (r *memoryRepo) Save(ctx context.Context, manifest *incident.Manifest, table *incident.Table) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, manifest)
	r.lastRows = table.Len()
	return nil
}

func (r *memoryRepo) Load(ctx context.Context, runID core.RunID) (*incident.Table, *incident.Manifest, error) {
	return nil, nil, errors.New("not implemented")
}

func (r *memoryRepo) Latest(ctx context.Context) (*incident.Manifest, error) {
	if len(r.saved) == 0 {
		return nil, errors.New("no runs")
	}
	return r.saved[len(r.saved)-1], nil
}

func (r *memoryRepo) List(ctx context.Context, limit int) ([]*incident.Manifest, error) {
	out := make([]*incident.Manifest, 0, len(r.saved))
	for i := len(r.saved) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, r.saved[i])
	}
	return out, nil
}

func labeledFixture(t *testing.T, n int) (*incident.Table, *incident.Table) {
	t.Helper()
	incidents := cleanFixture(t, rawTable(n))
	synthetic, err := newTestGenerator(42, TopRaceResample).Generate(context.Background(), incidents, n)
	require.NoError(t, err)
	return incidents, synthetic
}

func TestAssemble_RealRowsFirst(t *testing.T) {
	incidents, synthetic := labeledFixture(t, 4)

	out, err := Assemble(incidents, synthetic)
	require.NoError(t, err)
	require.Equal(t, 8, out.Len())

	for i := 0; i < 4; i++ {
		assert.Equal(t, "raw", out.Value(i, incident.ColDataSource).Text)
		assert.Equal(t, "synthetic", out.Value(i+4, incident.ColDataSource).Text)
	}
	assert.NoError(t, Verify(out, incident.DefaultSchema()))
}

func TestAssemble_Balance(t *testing.T) {
	incidents := cleanFixture(t, rawTable(10))
	synthetic, err := newTestGenerator(42, TopRaceResample).Generate(context.Background(), incidents, 11)
	require.NoError(t, err)

	_, err = Assemble(incidents, synthetic)
	var balance *core.BalanceError
	require.True(t, errors.As(err, &balance))
	assert.Equal(t, 10, balance.Real)
	assert.Equal(t, 11, balance.Synthetic)
}

func TestAssemble_SchemaMismatch(t *testing.T) {
	incidents, synthetic := labeledFixture(t, 3)
	trimmed, err := synthetic.Project(synthetic.Columns()[1:])
	require.NoError(t, err)

	_, err = Assemble(incidents, trimmed)
	assert.ErrorIs(t, err, core.ErrSchemaMismatch)
}

func TestVerify_RejectsMislabeledRows(t *testing.T) {
	incidents, synthetic := labeledFixture(t, 3)
	relabeled, err := Label(synthetic, incident.SourceRaw)
	require.NoError(t, err)

	out, err := incidents.Concat(relabeled)
	require.NoError(t, err)
	assert.ErrorIs(t, Verify(out, incident.DefaultSchema()), core.ErrBalance)
}

func TestAssembler_Persist(t *testing.T) {
	incidents, synthetic := labeledFixture(t, 3)
	csvSink := &recordingSink{name: "csv"}
	xlsxSink := &recordingSink{name: "xlsx"}
	repo := &memoryRepo{}

	assembler := NewAssembler([]ports.TableSink{xlsxSink, csvSink}, repo, nil)
	out, err := assembler.Assemble(incidents, synthetic)
	require.NoError(t, err)

	manifest := incident.NewManifest(core.NewRunID(), 42, "resample", 3, 0, out)
	paths, err := assembler.Persist(context.Background(), manifest, out)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join("out", "analysis.csv"), filepath.Join("out", "analysis.xlsx")}, paths)
	assert.Equal(t, 1, csvSink.writes)
	assert.Equal(t, 1, xlsxSink.writes)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, 6, repo.lastRows)
}

func TestAssembler_PersistSinkFailure(t *testing.T) {
	incidents, synthetic := labeledFixture(t, 2)
	out, err := Assemble(incidents, synthetic)
	require.NoError(t, err)

	repo := &memoryRepo{}
	healthy := &recordingSink{name: "csv"}
	failing := &recordingSink{name: "xlsx", err: errors.New("disk full")}
	assembler := NewAssembler([]ports.TableSink{healthy, failing}, repo, nil)

	_, err = assembler.Persist(context.Background(), incident.NewManifest(core.NewRunID(), 42, "resample", 2, 0, out), out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx sink")
	assert.Empty(t, repo.saved)
	assert.Zero(t, healthy.writes, "no sink is committed when another fails")
	assert.Equal(t, 1, healthy.discards)
}

func TestAssembler_PersistLeavesNoFilesOnSinkFailure(t *testing.T) {
	incidents, synthetic := labeledFixture(t, 2)
	out, err := Assemble(incidents, synthetic)
	require.NoError(t, err)

	dir := t.TempDir()
	csvSink := excel.NewCSVSink(filepath.Join(dir, "analysis.csv"))
	assembler := NewAssembler([]ports.TableSink{csvSink, slowFailingSink{}}, nil, nil)

	_, err = assembler.Persist(context.Background(), incident.NewManifest(core.NewRunID(), 42, "resample", 2, 0, out), out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssembler_PersistLeavesNoFilesOnSaveFailure(t *testing.T) {
	incidents, synthetic := labeledFixture(t, 2)
	out, err := Assemble(incidents, synthetic)
	require.NoError(t, err)

	dir := t.TempDir()
	sinks := []ports.TableSink{
		excel.NewCSVSink(filepath.Join(dir, "analysis.csv")),
		excel.NewXLSXSink(filepath.Join(dir, "analysis.xlsx")),
	}
	repo := &memoryRepo{saveErr: errors.New("database is locked")}
	assembler := NewAssembler(sinks, repo, nil)

	_, err = assembler.Persist(context.Background(), incident.NewManifest(core.NewRunID(), 42, "resample", 2, 0, out), out)
	require.ErrorContains(t, err, "database is locked")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssembler_PersistKeepsPreviousOutputOnFailure(t *testing.T) {
	incidents, synthetic := labeledFixture(t, 2)
	out, err := Assemble(incidents, synthetic)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "analysis.csv")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0o644))

	assembler := NewAssembler([]ports.TableSink{excel.NewCSVSink(path), slowFailingSink{}}, nil, nil)
	_, err = assembler.Persist(context.Background(), incident.NewManifest(core.NewRunID(), 42, "resample", 2, 0, out), out)
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous run\n", string(data))
}
