package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the dining court menus for a day",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env) error {
			if date != "" {
				if _, err := time.Parse(time.DateOnly, date); err != nil {
					return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
				}
			}
			return e.app.Show(cmd.Context(), cmd.OutOrStdout(), date)
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "menu date as YYYY-MM-DD (default today)")
	return cmd
}
