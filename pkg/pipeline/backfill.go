package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cohortly-dev/tracker/pkg/types"
)

// Backfill runs a deep fetch for every day in [from, to] inclusive,
// oldest first. It is resumable: re-running over an already-filled range
// rewrites identical rows, so an interrupted backfill is restarted by
// running it again with the same bounds. A short pause between days keeps
// a long historical run polite on the API budget.
func (p *Pipeline) Backfill(ctx context.Context, from, to time.Time) error {
	from = startOfDay(from)
	to = startOfDay(to)
	if to.Before(from) {
		return fmt.Errorf("backfill range is inverted: %s after %s",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	learners, err := p.client.DiscoverLearners(ctx, p.cfg)
	if err != nil {
		return fmt.Errorf("learner discovery failed: %w", err)
	}

	totalDays := int(to.Sub(from).Hours()/24) + 1
	slog.Info("Starting backfill", "component", "pipeline",
		"learners", len(learners), "from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"), "days", totalDays)

	var written []types.PartialRow
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if day != from {
			if err := p.sleep(ctx, interDayPause); err != nil {
				return err
			}
		}

		failed := 0
		for _, learner := range learners {
			row, err := p.fetchLearnerDay(ctx, learner, day)
			if err != nil {
				slog.Error("Skipping learner after fetch failure",
					"component", "pipeline", "learner", learner.Username,
					"date", day.Format("2006-01-02"), "error", err)
				failed++
				continue
			}
			if err := p.store.Upsert(ctx, row); err != nil {
				return fmt.Errorf("upsert for %s/%s: %w", row.Username, row.Date, err)
			}
			written = append(written, *row)
		}
		slog.Info("Backfilled day", "component", "pipeline",
			"date", day.Format("2006-01-02"), "failed_learners", failed)
	}

	if len(written) > 0 {
		if err := p.sink.UpsertRows(ctx, written); err != nil {
			return fmt.Errorf("sink write failed: %w", err)
		}
	}
	return nil
}
