package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/dining-menu-sync/internal/ingest"
)

func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every dining location and its dishes",
		Long: `reset removes the diningHalls and diningPoints collections together
with their dish sub-collections. The global dish collection is kept. Unless
--yes is given the word DELETE must be typed to confirm.`,
		Args: cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env) error {
			out := cmd.OutOrStdout()
			if !yes {
				if err := ingest.Confirm(cmd.InOrStdin(), out, ingest.ResetCollections); err != nil {
					return err
				}
			}
			counts, err := e.app.Reset(cmd.Context(), ingest.ResetCollections)
			for _, c := range ingest.ResetCollections {
				fmt.Fprintf(out, "deleted %d documents from %s\n", counts[c], c)
			}
			return err
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}
