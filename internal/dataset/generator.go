package dataset

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"schoolprep/adapters/datareadiness/synthesizer"
	"schoolprep/domain/core"
	"schoolprep/domain/incident"
	"schoolprep/internal"
	"schoolprep/ports"
)

// TopRaceMode selects how top_1_races is filled on synthetic rows
type TopRaceMode string

const (
	// TopRaceResample draws the label from the real frequency distribution
	TopRaceResample TopRaceMode = "resample"
	// TopRaceDerive recomputes the label from the synthetic shares
	TopRaceDerive TopRaceMode = "derive"
)

// ParseTopRaceMode validates a mode name; empty selects resample
func ParseTopRaceMode(s string) (TopRaceMode, error) {
	switch TopRaceMode(s) {
	case "", TopRaceResample:
		return TopRaceResample, nil
	case TopRaceDerive:
		return TopRaceDerive, nil
	default:
		return "", fmt.Errorf("unknown top race mode %q", s)
	}
}

// streamPrefix namespaces per-column RNG streams
const streamPrefix = "synthetic/"

// GeneratorConfig holds the generation rules
type GeneratorConfig struct {
	Seed           int64
	TopRaceMode    TopRaceMode
	EthnicityOrder []string
	Synthesis      synthesizer.SynthesisConfig
}

// DefaultGeneratorConfig returns the rules used for the published dataset
func DefaultGeneratorConfig(seed int64) GeneratorConfig {
	return GeneratorConfig{
		Seed:           seed,
		TopRaceMode:    TopRaceResample,
		EthnicityOrder: append([]string(nil), incident.DefaultEthnicityOrder...),
		Synthesis:      synthesizer.DefaultSynthesisConfig(),
	}
}

// Generator produces labeled non-incident rows shaped like the real table
type Generator struct {
	rng    ports.RNGPort
	config GeneratorConfig
	logger *internal.Logger
}

// NewGenerator creates a generator drawing from rng
func NewGenerator(rng ports.RNGPort, config GeneratorConfig, logger *internal.Logger) *Generator {
	if config.TopRaceMode == "" {
		config.TopRaceMode = TopRaceResample
	}
	if config.TopRaceMode == TopRaceDerive {
		config.Synthesis = config.Synthesis.WithDerivedTopRace()
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Generator{
		rng:    rng,
		config: config,
		logger: logger.With(zap.String("stage", "generate")),
	}
}

// Plans returns the column recipes Generate would use for incidents
func (g *Generator) Plans(incidents *incident.Table) ([]synthesizer.ColumnPlan, error) {
	return synthesizer.NewColumnSynthesizer(g.config.Synthesis).SynthesizePlans(incidents)
}

// Generate draws count synthetic rows with the same columns as incidents. The same
// real table, count and seed always produce the same output.
func (g *Generator) Generate(ctx context.Context, incidents *incident.Table, count int) (*incident.Table, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidCount, count)
	}
	if count == 0 {
		return incident.EmptyTable(incidents.Columns()), nil
	}
	if incidents.Len() == 0 {
		return nil, core.NewDataQualityError("*", "cannot profile an empty real table")
	}

	start := time.Now()
	plans, err := g.Plans(incidents)
	if err != nil {
		return nil, err
	}

	columns := make([]incident.Column, len(plans))
	cells := make([][]incident.Value, len(plans))
	var derived []int

	for j, plan := range plans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		columns[j] = plan.Column

		if plan.Strategy == synthesizer.StrategyDerived {
			derived = append(derived, j)
			continue
		}
		values, err := g.drawColumn(ctx, plan, count)
		if err != nil {
			return nil, err
		}
		cells[j] = values
	}

	rows := make([][]incident.Value, count)
	for i := range rows {
		row := make([]incident.Value, len(columns))
		for j := range columns {
			if cells[j] != nil {
				row[j] = cells[j][i]
			}
		}
		rows[i] = row
	}

	out, err := incident.NewTable(columns, rows)
	if err != nil {
		return nil, err
	}
	for _, j := range derived {
		if columns[j].Name != incident.ColTopRace {
			return nil, fmt.Errorf("no derivation for column %s", columns[j].Name)
		}
		if out, err = WithDominantRace(out, g.config.EthnicityOrder); err != nil {
			return nil, err
		}
	}

	g.logger.Info("synthetic rows generated",
		zap.Int("rows", count),
		zap.Int64("seed", g.config.Seed),
		zap.String("top_race_mode", string(g.config.TopRaceMode)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// drawColumn fills one column of count cells from its own RNG stream
func (g *Generator) drawColumn(ctx context.Context, plan synthesizer.ColumnPlan, count int) ([]incident.Value, error) {
	values := make([]incident.Value, count)

	switch plan.Strategy {
	case synthesizer.StrategyUniform:
		src, err := g.stream(ctx, plan.Column.Name)
		if err != nil {
			return nil, err
		}
		dist := distuv.Uniform{Min: plan.Numeric.Min, Max: plan.Numeric.Max, Src: src}
		for i := range values {
			values[i] = incident.NewNumericValue(dist.Rand())
		}

	case synthesizer.StrategyCategorical:
		src, err := g.stream(ctx, plan.Column.Name)
		if err != nil {
			return nil, err
		}
		dist := distuv.NewCategorical(plan.Categorical.Weights(), src)
		for i := range values {
			values[i] = plan.Categorical.Values[int(dist.Rand())]
		}

	case synthesizer.StrategyZero:
		for i := range values {
			values[i] = incident.NewNumericValue(0)
		}

	case synthesizer.StrategyLabel:
		for i := range values {
			values[i] = labelValue(plan.Column.Name, incident.SourceSynthetic)
		}

	default:
		// left missing
	}

	g.logger.Trace("column drawn", zap.String("column", plan.Column.Name), zap.String("strategy", string(plan.Strategy)))
	return values, nil
}

func (g *Generator) stream(ctx context.Context, column string) (rand.Source, error) {
	return g.rng.SeededStream(ctx, streamPrefix+column, g.config.Seed)
}

// labelValue returns the label cell for a provenance
func labelValue(column string, source incident.DataSource) incident.Value {
	if column == incident.ColDataSource {
		return incident.NewTextValue(string(source))
	}
	if source == incident.SourceRaw {
		return incident.NewNumericValue(1)
	}
	return incident.NewNumericValue(0)
}
