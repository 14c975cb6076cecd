package pipeline

import (
	"context"

	"github.com/cohortly-dev/tracker/pkg/types"
)

// Sink receives finalized pipeline output. The production writer renders
// to an external spreadsheet; ConsoleSink implements it for local runs.
// Writes are presentation-only mirrors: the store remains the system of
// record for raw metrics.
type Sink interface {
	// UpsertRows mirrors the raw metric writes of a run.
	UpsertRows(ctx context.Context, rows []types.PartialRow) error
	// WriteLeaderboard replaces the leaderboard with ranked rows.
	WriteLeaderboard(ctx context.Context, rows []types.LeaderboardRow) error
	// WriteDailyView replaces the per-day activity view.
	WriteDailyView(ctx context.Context, rows []types.DayActivity) error
	// WriteAlerts replaces the alert list.
	WriteAlerts(ctx context.Context, alerts []types.Alert) error
	// SetConfigValue writes one key back to the run configuration
	// (used for last_poll_timestamp after a successful poll).
	SetConfigValue(ctx context.Context, key, value string) error
}

// ConfigSource provides the raw key-value run configuration, read once
// per run before any writes.
type ConfigSource interface {
	ConfigValues(ctx context.Context) (map[string]string, error)
}
