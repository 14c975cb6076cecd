// Package main implements the tracker CLI: polling, daily deep fetches,
// historical backfills, and leaderboard rebuilds for a cohort of learners
// working in forks of a shared base repository.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
