package dataset

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"schoolprep/domain/core"
	"schoolprep/domain/incident"
	"schoolprep/internal"
	"schoolprep/ports"
)

// Assemble appends synthetic rows after the real rows. Both tables must share
// the same columns in the same order and hold the same number of rows.
func Assemble(incidents, synthetic *incident.Table) (*incident.Table, error) {
	if !incident.SameColumns(incidents.ColumnNames(), synthetic.ColumnNames()) {
		return nil, core.NewSchemaMismatchError(incidents.ColumnNames(), synthetic.ColumnNames())
	}
	if incidents.Len() != synthetic.Len() {
		return nil, core.NewBalanceError(incidents.Len(), synthetic.Len())
	}
	return incidents.Concat(synthetic)
}

// Assembler combines real and synthetic rows and persists the result
type Assembler struct {
	sinks  []ports.TableSink
	repo   ports.DatasetRepository
	logger *internal.Logger
}

// NewAssembler creates an assembler. repo may be nil when no database is configured.
func NewAssembler(sinks []ports.TableSink, repo ports.DatasetRepository, logger *internal.Logger) *Assembler {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Assembler{
		sinks:  sinks,
		repo:   repo,
		logger: logger.With(zap.String("stage", "assemble")),
	}
}

// Assemble combines the two tables and logs the result
func (a *Assembler) Assemble(incidents, synthetic *incident.Table) (*incident.Table, error) {
	out, err := Assemble(incidents, synthetic)
	if err != nil {
		a.logger.Error("assembly rejected", zap.Error(err))
		return nil, err
	}
	a.logger.Info("analysis dataset assembled",
		zap.Int("real_rows", incidents.Len()),
		zap.Int("synthetic_rows", synthetic.Len()),
		zap.Int("columns", len(out.Columns())))
	return out, nil
}

// Persist renders the table for every sink concurrently, records it in the
// repository and only then moves the files into place. On any failure no
// output of this run is left behind. It returns the written paths sorted by name.
func (a *Assembler) Persist(ctx context.Context, manifest *incident.Manifest, table *incident.Table) ([]string, error) {
	start := time.Now()
	staged := make([]ports.StagedOutput, len(a.sinks))

	g, gctx := errgroup.WithContext(ctx)
	for i, sink := range a.sinks {
		g.Go(func() error {
			out, err := sink.Stage(gctx, table)
			if err != nil {
				return fmt.Errorf("%s sink: %w", sink.Name(), err)
			}
			staged[i] = out
			a.logger.Debug("dataset staged", zap.String("sink", sink.Name()), zap.String("path", out.Path()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.discard(staged)
		return nil, err
	}

	if a.repo != nil {
		if err := a.repo.Save(ctx, manifest, table); err != nil {
			a.discard(staged)
			return nil, err
		}
	}

	paths := make([]string, len(staged))
	for i, out := range staged {
		if err := out.Commit(); err != nil {
			a.discard(staged)
			return nil, fmt.Errorf("%s sink: %w", a.sinks[i].Name(), err)
		}
		paths[i] = out.Path()
	}

	sort.Strings(paths)
	a.logger.Info("analysis dataset persisted",
		zap.Strings("paths", paths),
		zap.Bool("recorded", a.repo != nil),
		zap.Duration("elapsed", time.Since(start)))
	return paths, nil
}

// discard removes every staged or committed output of a failed run
func (a *Assembler) discard(staged []ports.StagedOutput) {
	for _, out := range staged {
		if out == nil {
			continue
		}
		if err := out.Discard(); err != nil {
			a.logger.Warn("failed to remove output", zap.String("path", out.Path()), zap.Error(err))
		}
	}
}
