package dataset

import (
	"context"
	"time"

	"go.uber.org/zap"

	"schoolprep/adapters/datareadiness/synthesizer"
	"schoolprep/domain/core"
	"schoolprep/domain/incident"
	"schoolprep/internal"
)

// Result is everything one pipeline run produced
type Result struct {
	Real      *incident.Table
	Synthetic *incident.Table
	Analysis  *incident.Table
	Report    *CleanReport
	Plans     []synthesizer.ColumnPlan
	Manifest  *incident.Manifest
	Outputs   []string
}

// Pipeline runs clean, generate and assemble in order
type Pipeline struct {
	cleaner   *Cleaner
	generator *Generator
	assembler *Assembler
	logger    *internal.Logger
}

// NewPipeline wires the three stages together
func NewPipeline(cleaner *Cleaner, generator *Generator, assembler *Assembler, logger *internal.Logger) *Pipeline {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Pipeline{
		cleaner:   cleaner,
		generator: generator,
		assembler: assembler,
		logger:    logger,
	}
}

// Run cleans raw, generates as many synthetic rows as there are clean rows,
// assembles and persists the analysis dataset
func (p *Pipeline) Run(ctx context.Context, raw *incident.RawTable) (*Result, error) {
	start := time.Now()
	runID := core.NewRunID()
	logger := p.logger.With(zap.String("run_id", runID.String()))
	logger.Info("pipeline started", zap.Int("source_rows", len(raw.Rows)))

	incidents, report, err := p.cleaner.Clean(ctx, raw)
	if err != nil {
		logger.Error("clean failed", zap.Error(err))
		return nil, err
	}

	plans, err := p.generator.Plans(incidents)
	if err != nil {
		return nil, err
	}
	synthetic, err := p.generator.Generate(ctx, incidents, incidents.Len())
	if err != nil {
		logger.Error("generate failed", zap.Error(err))
		return nil, err
	}

	analysis, err := p.assembler.Assemble(incidents, synthetic)
	if err != nil {
		return nil, err
	}
	if err := Verify(analysis, p.cleaner.config.Schema); err != nil {
		logger.Error("assembled dataset failed verification", zap.Error(err))
		return nil, err
	}

	manifest := incident.NewManifest(runID, p.generator.config.Seed, string(p.generator.config.TopRaceMode),
		report.SourceRows, len(report.Excluded), analysis)

	outputs, err := p.assembler.Persist(ctx, manifest, analysis)
	if err != nil {
		logger.Error("persist failed", zap.Error(err))
		return nil, err
	}

	logger.Info("pipeline finished",
		zap.Int("total_rows", manifest.TotalRows),
		zap.String("content_hash", manifest.ContentHash.Short()),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		Real:      incidents,
		Synthetic: synthetic,
		Analysis:  analysis,
		Report:    report,
		Plans:     plans,
		Manifest:  manifest,
		Outputs:   outputs,
	}, nil
}
