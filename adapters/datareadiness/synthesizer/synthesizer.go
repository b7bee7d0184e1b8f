package synthesizer

import (
	"errors"
	"fmt"

	"schoolprep/domain/incident"
	"schoolprep/internal/profiling"
)

// Strategy names how a synthetic column is populated
type Strategy string

const (
	StrategyUniform     Strategy = "uniform"
	StrategyCategorical Strategy = "categorical"
	StrategyZero        Strategy = "zero"
	StrategyDerived     Strategy = "derived"
	StrategyLabel       Strategy = "label"
	StrategyMissing     Strategy = "missing"
)

// ColumnSynthesizer plans synthetic columns from profiles of the real table
type ColumnSynthesizer struct {
	config SynthesisConfig
}

// SynthesisConfig defines the synthesis rules
type SynthesisConfig struct {
	UniformColumns     []string `json:"uniform_columns" yaml:"uniform_columns"`
	CategoricalColumns []string `json:"categorical_columns" yaml:"categorical_columns"`
	ZeroColumns        []string `json:"zero_columns" yaml:"zero_columns"`
	DerivedColumns     []string `json:"derived_columns" yaml:"derived_columns"`
	LabelColumns       []string `json:"label_columns" yaml:"label_columns"`
}

// DefaultSynthesisConfig returns the rules used for the published dataset
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		UniformColumns: []string{
			incident.ColLatitude,
			incident.ColLongitude,
			incident.ColWhite,
			incident.ColBlack,
			incident.ColHispanic,
			incident.ColAsian,
			incident.ColNativeAmerica,
			incident.ColPacificIsland,
			incident.ColTwoOrMore,
			incident.ColEnrollment,
			incident.ColLunch,
			incident.ColStaffing,
		},
		CategoricalColumns: []string{
			incident.ColSchoolType,
			incident.ColLocaleDesc,
			incident.ColState,
			incident.ColTopRace,
			incident.ColYear,
		},
		ZeroColumns:  []string{incident.ColKilled, incident.ColInjured, incident.ColCasualties},
		LabelColumns: []string{incident.ColShooting, incident.ColDataSource},
	}
}

// WithDerivedTopRace moves top_1_races from resampling to derivation from the synthetic shares
func (c SynthesisConfig) WithDerivedTopRace() SynthesisConfig {
	out := c
	out.CategoricalColumns = make([]string, 0, len(c.CategoricalColumns))
	for _, name := range c.CategoricalColumns {
		if name != incident.ColTopRace {
			out.CategoricalColumns = append(out.CategoricalColumns, name)
		}
	}
	out.DerivedColumns = append(append([]string(nil), c.DerivedColumns...), incident.ColTopRace)
	return out
}

// NewColumnSynthesizer creates a synthesizer with config
func NewColumnSynthesizer(config SynthesisConfig) *ColumnSynthesizer {
	return &ColumnSynthesizer{config: config}
}

// ColumnPlan is the generation recipe for one output column
type ColumnPlan struct {
	Column      incident.Column               `json:"column"`
	Strategy    Strategy                      `json:"strategy"`
	Numeric     *profiling.NumericProfile     `json:"numeric,omitempty"`
	Categorical *profiling.CategoricalProfile `json:"categorical,omitempty"`
	Reasoning   string                        `json:"reasoning"`
}

// SynthesizePlans returns one plan per column of incidents, in column order
func (s *ColumnSynthesizer) SynthesizePlans(incidents *incident.Table) ([]ColumnPlan, error) {
	columns := incidents.Columns()
	plans := make([]ColumnPlan, 0, len(columns))

	for _, col := range columns {
		plan, err := s.synthesizePlan(incidents, col)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// synthesizePlan picks the strategy for one column and attaches its profile
func (s *ColumnSynthesizer) synthesizePlan(incidents *incident.Table, col incident.Column) (ColumnPlan, error) {
	plan := ColumnPlan{Column: col, Strategy: s.strategyFor(col.Name)}

	switch plan.Strategy {
	case StrategyUniform:
		profile, err := profiling.ProfileNumeric(incidents, col.Name)
		if errors.Is(err, profiling.ErrNoValues) {
			plan.Strategy = StrategyMissing
			break
		}
		if err != nil {
			return plan, err
		}
		plan.Numeric = &profile

	case StrategyCategorical:
		profile, err := profiling.ProfileCategorical(incidents, col.Name)
		if errors.Is(err, profiling.ErrNoValues) {
			plan.Strategy = StrategyMissing
			break
		}
		if err != nil {
			return plan, err
		}
		plan.Categorical = &profile
	}

	plan.Reasoning = s.explainStrategy(plan)
	return plan, nil
}

func (s *ColumnSynthesizer) strategyFor(name string) Strategy {
	switch {
	case contains(s.config.LabelColumns, name):
		return StrategyLabel
	case contains(s.config.DerivedColumns, name):
		return StrategyDerived
	case contains(s.config.UniformColumns, name):
		return StrategyUniform
	case contains(s.config.CategoricalColumns, name):
		return StrategyCategorical
	case contains(s.config.ZeroColumns, name):
		return StrategyZero
	default:
		return StrategyMissing
	}
}

// explainStrategy provides reasoning for a plan, surfaced in the run report
func (s *ColumnSynthesizer) explainStrategy(plan ColumnPlan) string {
	switch plan.Strategy {
	case StrategyUniform:
		return fmt.Sprintf("uniform over observed range [%g, %g]", plan.Numeric.Min, plan.Numeric.Max)
	case StrategyCategorical:
		return fmt.Sprintf("resampled from %d observed categories", len(plan.Categorical.Categories))
	case StrategyZero:
		return "no incident, fixed at 0"
	case StrategyDerived:
		return "derived from synthetic ethnicity shares"
	case StrategyLabel:
		return "non-incident label"
	default:
		return "not simulated"
	}
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}
