package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cohortly-dev/tracker/pkg/config"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Fetch activity counts since the last poll",
	Long: `Fetch commit, PR, issue, and comment counts since the last recorded
poll timestamp and merge them into the store. Line statistics, merge
times, and rejection rates are left to the daily deep fetch.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		return p.ShallowPoll(cmd.Context())
	},
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Run the full daily pass",
	Long: `Fetch complete metrics for today, then rebuild the leaderboard,
the trailing daily view, and the alert list.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		return p.DeepFetch(cmd.Context())
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fill in historical metrics day by day",
	Long: `Run a deep fetch for every day in the given range, oldest first.
Safe to re-run: already-filled days are rewritten with identical rows.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fromStr := viper.GetString("from")
		if fromStr == "" {
			return fmt.Errorf("--from is required (YYYY-MM-DD)")
		}
		from, err := time.Parse(config.DateFormat, fromStr)
		if err != nil {
			return fmt.Errorf("invalid --from date %q: %w", fromStr, err)
		}

		to := time.Now().UTC()
		if toStr := viper.GetString("to"); toStr != "" {
			to, err = time.Parse(config.DateFormat, toStr)
			if err != nil {
				return fmt.Errorf("invalid --to date %q: %w", toStr, err)
			}
		}

		p, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		return p.Backfill(cmd.Context(), from, to)
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Rebuild the leaderboard and alerts from stored metrics",
	Long: `Recompute summaries, scores, and alerts from rows already in the
store, without fetching new per-day metrics. Threshold changes in the
run configuration take effect immediately.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		return p.Leaderboard(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and API budget status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		return p.Status(cmd.Context())
	},
}
