package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "schoolprep",
		Short:         "Prepare the school shooting analysis dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(rootCmd)

	rootCmd.AddCommand(
		newPrepareCmd(opts),
		newProfileCmd(opts),
		newVerifyCmd(opts),
		newRunsCmd(opts),
		newMigrateCmd(opts),
	)
	return rootCmd
}
