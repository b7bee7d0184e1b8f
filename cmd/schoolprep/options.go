package main

import (
	"strings"

	"github.com/spf13/cobra"

	"schoolprep/internal"
	"schoolprep/internal/config"
	"schoolprep/internal/errors"
)

// options are the persistent flags; each one overrides its env variable when set
type options struct {
	envFile     string
	input       string
	sheet       string
	out         string
	formats     []string
	seed        int64
	db          string
	topRace     string
	emptyPolicy string
	schemaFile  string
	verbose     bool
}

func (o *options) bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.envFile, "env-file", ".env", "Optional .env file loaded before reading the environment")
	f.StringVar(&o.input, "input", "", "Raw incident source (.csv or .xlsx) [SCHOOLPREP_INPUT]")
	f.StringVar(&o.sheet, "sheet", "", "Worksheet of an .xlsx source [SCHOOLPREP_SHEET]")
	f.StringVar(&o.out, "out", "", "Output directory [SCHOOLPREP_OUTPUT_DIR]")
	f.StringSliceVar(&o.formats, "format", nil, "Output formats: csv, xlsx [SCHOOLPREP_FORMATS]")
	f.Int64Var(&o.seed, "seed", 42, "Random seed for synthetic generation [SCHOOLPREP_SEED]")
	f.StringVar(&o.db, "db", "", "Run ledger URL, sqlite://path or postgres://... [DATABASE_URL]")
	f.StringVar(&o.topRace, "top-race", "", "Synthetic top_1_races: resample or derive [SCHOOLPREP_TOP_RACE_MODE]")
	f.StringVar(&o.emptyPolicy, "empty-column", "", "Wholly missing columns: fail or skip [SCHOOLPREP_EMPTY_COLUMN_POLICY]")
	f.StringVar(&o.schemaFile, "schema", "", "YAML schema overrides [SCHOOLPREP_SCHEMA_FILE]")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Debug logging")
}

// load reads env configuration and applies the flags the user set
func (o *options) load(cmd *cobra.Command) (*config.Config, *internal.Logger, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Source.Path = o.input
	}
	if flags.Changed("sheet") {
		cfg.Source.Sheet = o.sheet
	}
	if flags.Changed("out") {
		cfg.Output.Dir = o.out
	}
	if flags.Changed("format") {
		cfg.Output.Formats = config.ParseFormats(strings.Join(o.formats, ","))
	}
	if flags.Changed("seed") {
		cfg.Prepare.Seed = o.seed
	}
	if flags.Changed("db") {
		cfg.Database.URL = o.db
	}
	if flags.Changed("top-race") {
		cfg.Prepare.TopRaceMode = o.topRace
	}
	if flags.Changed("empty-column") {
		cfg.Prepare.EmptyColumnPolicy = o.emptyPolicy
	}
	if flags.Changed("schema") {
		cfg.Prepare.SchemaFile = o.schemaFile
	}
	if o.verbose {
		cfg.LogLevel = internal.LogLevelDebug
	}

	if err := cfg.Resolve(); err != nil {
		return nil, nil, err
	}
	return cfg, internal.NewLogger(cfg.LogLevel), nil
}

// requireInput fails early when no source was configured
func requireInput(cfg *config.Config) error {
	if cfg.Source.Path == "" {
		return errors.InvalidInput("no input: pass --input or set SCHOOLPREP_INPUT")
	}
	return nil
}
