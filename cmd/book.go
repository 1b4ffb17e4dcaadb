// File: cmd/book.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/parkbook/internal/reporting"
	"github.com/xkilldash9x/parkbook/internal/runner"
)

const shutdownTimeout = 15 * time.Second

// shutdowner is implemented by factories that own browser processes.
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// newBookCmd creates and configures the `book` command.
func newBookCmd(a *app) *cobra.Command {
	var output, format string

	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Books car park spaces for every wanted date the site offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()

			reporter, err := reporting.NewTo(format, output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer reporter.Close()

			runID := uuid.New().String()
			logger := a.logger.With(zap.String("run_id", runID))
			logger.Info("Starting booking run.",
				zap.String("site", a.cfg.Site().URL),
				zap.Ints("floors", a.cfg.Booking().Floors),
				zap.Duration("time_budget", a.cfg.Retry().TimeBudget),
			)

			factory := a.newFactory(a.cfg.Browser(), a.logger)
			if s, ok := factory.(shutdowner); ok {
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
					defer cancel()
					if err := s.Shutdown(shutdownCtx); err != nil {
						logger.Warn("Error during browser manager shutdown.", zap.Error(err))
					}
				}()
			}

			opts := []runner.Option{runner.WithRunID(runID)}
			if a.now != nil {
				opts = append(opts, runner.WithClock(a.now))
			}
			summary, runErr := runner.New(a.cfg, factory, a.logger, opts...).Run(ctx)

			if err := reporter.Write(summary); err != nil {
				logger.Error("Failed to write run report.", zap.Error(err))
				if runErr == nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
			}
			if runErr != nil {
				if errors.Is(runErr, context.Canceled) {
					logger.Warn("Booking run aborted.")
				}
				return runErr
			}
			logger.Info("Booking run finished.", zap.Int("booked", len(summary.Booked())))
			return nil
		},
	}

	flags := bookCmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "Write the run report to this file instead of stdout.")
	flags.StringVarP(&format, "format", "f", "text", "Format for the run report ('text' or 'json').")

	// Config override flags.
	flags.String("dates", "", "File listing the dates to book. (Overrides config/env)")
	flags.String("exclusions", "", "File listing dates never to book. (Overrides config/env)")
	flags.IntSlice("floors", nil, "Floors to search, in order of preference. (Overrides config/env)")
	flags.Bool("headless", true, "Run Chrome without a window. (Overrides config/env)")
	flags.String("profile", "", "Chrome user data directory holding the signed-in profile. (Overrides config/env)")
	flags.Duration("budget", 0, "Time budget for retrying failed sessions. (Overrides config/env)")
	flags.Int64("seed", 0, "Seed for choosing among equivalent slots. (Overrides config/env)")

	bindFlags(bookCmd, map[string]string{
		"booking.dates_file":      "dates",
		"booking.exclusions_file": "exclusions",
		"booking.floors":          "floors",
		"browser.headless":        "headless",
		"browser.profile_dir":     "profile",
		"retry.time_budget":       "budget",
		"booking.seed":            "seed",
	})
	return bookCmd
}

// bindFlags marks flags as overrides for config keys. The root command binds
// them when the subcommand actually runs, since two subcommands may override
// the same key.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		if err := cmd.Flags().SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
			panic(fmt.Sprintf("annotating flag %q: %v", name, err))
		}
	}
}
