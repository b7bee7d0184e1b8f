package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"schoolprep/adapters/sqlstore"
	"schoolprep/internal/config"
	"schoolprep/internal/errors"
)

func requireDatabase(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return errors.InvalidInput("no run ledger: pass --db or set DATABASE_URL")
	}
	return nil
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the run ledger schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if err := requireDatabase(cfg); err != nil {
				return err
			}

			db, err := sqlstore.Open(cmd.Context(), cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "run ledger at schema %s\n", sqlstore.NewRunner().Version())
			return nil
		},
	}
}

func newRunsCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded preparation runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if err := requireDatabase(cfg); err != nil {
				return err
			}

			db, err := sqlstore.Open(cmd.Context(), cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			manifests, err := sqlstore.NewDatasetRepository(db, cfg.Prepare.Schema).List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tCREATED\tSEED\tTOP RACE\tREAL\tSYNTHETIC\tEXCLUDED\tHASH")
			for _, m := range manifests {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%d\t%d\t%s\n",
					m.RunID, m.CreatedAt.Format("2006-01-02 15:04:05"), m.Seed, m.TopRaceMode,
					m.RealRows, m.SyntheticRows, m.ExcludedRows, m.ContentHash.Short())
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list, 0 for all")
	return cmd
}
