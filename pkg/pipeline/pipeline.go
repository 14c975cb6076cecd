// Package pipeline orchestrates the tracker's runs: shallow polls for
// fresh counts, deep fetches that rebuild the leaderboard, daily view and
// alerts, and historical backfills.
//
// A per-learner fetch failure is logged and skipped so that one broken
// fork never blocks the rest of the cohort.
package pipeline

import (
	"context"
	"time"

	"github.com/cohortly-dev/tracker/pkg/config"
	"github.com/cohortly-dev/tracker/pkg/github"
	"github.com/cohortly-dev/tracker/pkg/store"
)

// interDayPause is the polite pause between backfill days, keeping a
// long historical run well inside the API budget.
const interDayPause = 2 * time.Second

// Pipeline wires the activity client, metrics store, and output sink
// together for one run configuration.
type Pipeline struct {
	client *github.Client
	store  *store.Store
	sink   Sink
	cfg    *config.Config

	// now and sleep are swappable so tests control time.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a pipeline over the given collaborators.
func New(client *github.Client, st *store.Store, sink Sink, cfg *config.Config) *Pipeline {
	return &Pipeline{
		client: client,
		store:  st,
		sink:   sink,
		cfg:    cfg,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// startOfDay truncates t to UTC midnight.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
