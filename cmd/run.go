package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCmd(kind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   kind,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env) error {
			report, err := e.app.Run(cmd.Context(), kind)
			fmt.Fprintf(cmd.OutOrStdout(),
				"%s run %s: %d locations (%d skipped), %d dishes, %d writes in %d batches (%d failed)\n",
				kind, report.RunID, report.Locations, report.LocationsSkipped, report.Observations,
				report.OpsQueued, report.BatchesCommitted, report.BatchesFailed)
			if err != nil {
				return fmt.Errorf("%s run: %w", kind, err)
			}
			return nil
		}),
	}
}
