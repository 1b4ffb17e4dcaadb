// File: cmd/plan.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/parkbook/internal/runner"
)

// newPlanCmd creates the `plan` command, a dry run that never opens a browser.
func newPlanCmd(a *app) *cobra.Command {
	var days int

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Lists the dates a booking run would try, assuming the site offers every day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			plan, err := runner.LoadPlan(a.cfg.Booking())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			wanted := plan.Preview(a.now(), days)
			if len(wanted) == 0 {
				fmt.Fprintf(out, "Nothing to book in the next %d days.\n", days)
				return nil
			}
			for _, d := range wanted {
				fmt.Fprintf(out, "%s  %s\n", d, d.In(plan.Location).Weekday())
			}
			return nil
		},
	}

	planCmd.Flags().IntVar(&days, "days", 14, "Number of days ahead to consider.")
	planCmd.Flags().String("dates", "", "File listing the dates to book. (Overrides config/env)")
	planCmd.Flags().String("exclusions", "", "File listing dates never to book. (Overrides config/env)")
	bindFlags(planCmd, map[string]string{
		"booking.dates_file":      "dates",
		"booking.exclusions_file": "exclusions",
	})
	return planCmd
}
