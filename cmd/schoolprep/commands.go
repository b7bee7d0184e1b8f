package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"schoolprep/adapters/excel"
	"schoolprep/domain/core"
	"schoolprep/domain/incident"
	"schoolprep/internal"
	"schoolprep/internal/config"
	"schoolprep/internal/container"
	"schoolprep/internal/dataset"
	"schoolprep/internal/errors"
	"schoolprep/internal/profiling"
	"schoolprep/internal/report"
)

func newPrepareCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Clean the raw incidents, add synthetic non-incidents and write the analysis dataset",
		Long: `Clean the raw incident table, generate one synthetic non-incident row per
clean incident and write the balanced analysis dataset plus a summary.

Example: schoolprep prepare --input data/school-shootings-data.csv --out out --format csv,xlsx --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runPrepare(cmd, cfg, logger)
		},
	}
}

func runPrepare(cmd *cobra.Command, cfg *config.Config, logger *internal.Logger) error {
	if err := requireInput(cfg); err != nil {
		return err
	}
	ctx := cmd.Context()

	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	raw, err := c.Source.Read(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read source")
	}

	result, err := c.Pipeline.Run(ctx, raw)
	if err != nil {
		return errors.Wrap(err, "preparation failed")
	}

	md, err := report.Summary(result)
	if err != nil {
		return err
	}
	summaries, err := report.WriteSummary(cfg.Output.Dir, md)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d real + %d synthetic = %d rows (%d excluded)\n",
		result.Manifest.RunID, result.Manifest.RealRows, result.Manifest.SyntheticRows,
		result.Manifest.TotalRows, result.Manifest.ExcludedRows)
	for _, path := range append(result.Outputs, summaries...) {
		fmt.Fprintf(out, "  wrote %s\n", path)
	}
	return nil
}

func newProfileCmd(opts *options) *cobra.Command {
	var rawOnly bool

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print column profiles of the cleaned incident table",
		Long: `Clean the raw source and print per-column statistics as markdown. With --raw,
print the column kinds inferred from the untouched source instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if err := requireInput(cfg); err != nil {
				return err
			}

			c, err := container.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			raw, err := c.Source.Read(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "failed to read source")
			}

			out := cmd.OutOrStdout()
			if rawOnly {
				kinds := excel.InferColumnTypes(raw)
				for _, h := range raw.Headers {
					a := kinds[h]
					fmt.Fprintf(out, "%-36s %-8s numeric=%.2f date=%.2f missing=%.2f\n",
						h, a.RecommendedKind, a.NumericRatio, a.DateRatio, a.MissingRatio)
				}
				return nil
			}

			cleaned, cleanReport, err := c.Cleaner.Clean(cmd.Context(), raw)
			if err != nil {
				return err
			}
			profile, err := profileTable(cleaned, cfg.Prepare.Schema)
			if err != nil {
				return err
			}
			fmt.Fprint(out, report.ProfileMarkdown("Cleaned incidents", profile))
			fmt.Fprintf(out, "%d of %d source rows kept\n", cleanReport.CleanRows(), cleanReport.SourceRows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&rawOnly, "raw", false, "Profile the raw source instead of the cleaned table")
	return cmd
}

// profileTable profiles every numeric and text column of the schema
func profileTable(t *incident.Table, schema incident.Schema) (*profiling.TableProfile, error) {
	var numeric, categorical []string
	for _, col := range schema.Columns {
		switch col.Kind {
		case incident.KindNumeric, incident.KindInteger:
			numeric = append(numeric, col.Name)
		case incident.KindText:
			categorical = append(categorical, col.Name)
		}
	}
	return profiling.NewDataProfiler(numeric, categorical).ProfileTable(t)
}

func newVerifyCmd(opts *options) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "verify [dataset]",
		Short: "Check a written analysis dataset for balance, labels and schema",
		Long: `Verify an analysis dataset file (default <out>/analysis.csv), or with --run a
dataset recorded in the run ledger. When a ledger is configured the content hash
is compared with the recorded manifest.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			path := filepath.Join(cfg.Output.Dir, container.AnalysisBaseName+"."+config.FormatCSV)
			if len(args) == 1 {
				path = args[0]
			}
			return runVerify(cmd, cfg, logger, path, runID)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Verify the dataset recorded under this run id")
	return cmd
}

func runVerify(cmd *cobra.Command, cfg *config.Config, logger *internal.Logger, path, runID string) error {
	ctx := cmd.Context()
	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	var (
		table    *incident.Table
		manifest *incident.Manifest
		source   = path
	)
	switch {
	case runID != "":
		if c.DatasetRepo == nil {
			return errors.InvalidInput("--run needs a run ledger: pass --db or set DATABASE_URL")
		}
		id, err := core.ParseRunID(runID)
		if err != nil {
			return errors.InvalidInput(err.Error())
		}
		if table, manifest, err = c.DatasetRepo.Load(ctx, id); err != nil {
			return err
		}
		source = "run " + runID
	default:
		if table, err = excel.LoadAnalysisTable(ctx, path, cfg.Prepare.Schema, logger); err != nil {
			return err
		}
		if c.DatasetRepo != nil {
			if manifest, err = c.DatasetRepo.Latest(ctx); err != nil {
				logger.Warn("no recorded run to compare against", zap.Error(err))
				manifest = nil
			}
		}
	}

	if err := dataset.Verify(table, cfg.Prepare.Schema); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s failed verification", source))
	}
	if manifest != nil {
		if got := incident.ContentHash(table); got != manifest.ContentHash {
			return errors.New(errors.CodeDataQuality,
				fmt.Sprintf("%s content hash %s does not match run %s (%s)", source, got.Short(), manifest.RunID, manifest.ContentHash.Short()))
		}
	}

	realRows, synthetic := incident.CountBySource(table)
	fmt.Fprintf(cmd.OutOrStdout(), "%s ok: %d real, %d synthetic, %d columns\n", source, realRows, synthetic, len(table.Columns()))
	return nil
}
