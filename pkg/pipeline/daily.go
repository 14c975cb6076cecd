package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cohortly-dev/tracker/pkg/alerts"
	"github.com/cohortly-dev/tracker/pkg/metrics"
	"github.com/cohortly-dev/tracker/pkg/scoring"
	"github.com/cohortly-dev/tracker/pkg/types"
)

// DeepFetch runs the full daily pass: complete metric rows for the
// reference day, then the leaderboard, trailing daily view, and alerts,
// all rebuilt from the store and handed to the sink.
func (p *Pipeline) DeepFetch(ctx context.Context) error {
	ref := p.now().UTC()

	learners, err := p.client.DiscoverLearners(ctx, p.cfg)
	if err != nil {
		return fmt.Errorf("learner discovery failed: %w", err)
	}
	slog.Info("Starting deep fetch",
		"component", "pipeline", "learners", len(learners), "date", ref.Format("2006-01-02"))

	var written []types.PartialRow
	failed := 0
	for _, learner := range learners {
		row, err := p.fetchLearnerDay(ctx, learner, ref)
		if err != nil {
			slog.Error("Skipping learner after fetch failure",
				"component", "pipeline", "learner", learner.Username, "error", err)
			failed++
			continue
		}
		if err := p.store.Upsert(ctx, row); err != nil {
			return fmt.Errorf("upsert for %s/%s: %w", row.Username, row.Date, err)
		}
		written = append(written, *row)
	}
	if len(written) > 0 {
		if err := p.sink.UpsertRows(ctx, written); err != nil {
			return fmt.Errorf("sink write failed: %w", err)
		}
	}

	board, alertList, err := p.buildLeaderboard(ctx, learners, ref)
	if err != nil {
		return err
	}
	if err := p.sink.WriteLeaderboard(ctx, board); err != nil {
		return fmt.Errorf("leaderboard write failed: %w", err)
	}

	daily, err := p.buildDailyView(ctx, learners, ref)
	if err != nil {
		return err
	}
	if err := p.sink.WriteDailyView(ctx, daily); err != nil {
		return fmt.Errorf("daily view write failed: %w", err)
	}

	if err := p.sink.WriteAlerts(ctx, alertList); err != nil {
		return fmt.Errorf("alert write failed: %w", err)
	}

	slog.Info("Deep fetch complete", "component", "pipeline",
		"rows", len(written), "failed_learners", failed, "alerts", len(alertList))
	return nil
}

// Leaderboard rebuilds the leaderboard and alerts from stored rows alone,
// without fetching fresh per-day metrics. Useful after threshold edits:
// scores are recomputed from scratch on every run.
func (p *Pipeline) Leaderboard(ctx context.Context) error {
	ref := p.now().UTC()

	learners, err := p.client.DiscoverLearners(ctx, p.cfg)
	if err != nil {
		return fmt.Errorf("learner discovery failed: %w", err)
	}

	board, alertList, err := p.buildLeaderboard(ctx, learners, ref)
	if err != nil {
		return err
	}
	if err := p.sink.WriteLeaderboard(ctx, board); err != nil {
		return fmt.Errorf("leaderboard write failed: %w", err)
	}
	if err := p.sink.WriteAlerts(ctx, alertList); err != nil {
		return fmt.Errorf("alert write failed: %w", err)
	}
	return nil
}

// buildLeaderboard summarizes and scores every learner, producing ranked
// leaderboard rows and the alert list in one pass over the store.
func (p *Pipeline) buildLeaderboard(ctx context.Context, learners []types.Learner, ref time.Time) ([]types.LeaderboardRow, []types.Alert, error) {
	board := make([]types.LeaderboardRow, 0, len(learners))
	var alertList []types.Alert

	for _, learner := range learners {
		rows, err := p.store.Query(ctx, learner.Username, "", "")
		if err != nil {
			return nil, nil, fmt.Errorf("query for %s: %w", learner.Username, err)
		}
		summary := metrics.Summarize(learner.Username, rows, ref)

		extras, err := p.fetchLearnerExtras(ctx, learner)
		if err != nil {
			slog.Warn("Feedback lookup failed, scoring without it",
				"component", "pipeline", "learner", learner.Username, "error", err)
		} else {
			summary.CommentsReceived = extras.commentsReceived
			summary.LastComment = extras.lastComment
		}

		score := scoring.Compute(&summary, p.cfg, ref)
		board = append(board, types.LeaderboardRow{
			Summary:      summary,
			Score:        score,
			MergeTimeStr: FormatMergeTime(summary.AvgMergeTimeHours),
			RejectionStr: FormatRejection(summary.RejectionRate),
		})

		if alert := alerts.Evaluate(&summary, &score, p.cfg, ref); alert != nil {
			alertList = append(alertList, *alert)
		}
	}

	sort.SliceStable(board, func(i, j int) bool {
		if board[i].Score.Total != board[j].Score.Total {
			return board[i].Score.Total > board[j].Score.Total
		}
		return strings.ToLower(board[i].Summary.Username) < strings.ToLower(board[j].Summary.Username)
	})
	for i := range board {
		board[i].Rank = i + 1
	}
	return board, alertList, nil
}

// buildDailyView assembles the trailing-window per-day grid, zero-filling
// dates a learner has no stored row for.
func (p *Pipeline) buildDailyView(ctx context.Context, learners []types.Learner, ref time.Time) ([]types.DayActivity, error) {
	refDay := startOfDay(ref)
	windowStart := refDay.AddDate(0, 0, -(metrics.WindowDays - 1))

	stored, err := p.store.QueryAll(ctx, windowStart.Format("2006-01-02"), refDay.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("window query: %w", err)
	}
	byKey := make(map[string]*types.RawMetricRow, len(stored))
	for i := range stored {
		byKey[strings.ToLower(stored[i].Username)+"|"+stored[i].Date] = &stored[i]
	}

	var view []types.DayActivity
	for day := refDay; !day.Before(windowStart); day = day.AddDate(0, 0, -1) {
		date := day.Format("2006-01-02")
		var dayRows []types.DayActivity
		for _, learner := range learners {
			row := byKey[strings.ToLower(learner.Username)+"|"+date]
			if row == nil {
				row = &types.RawMetricRow{Username: learner.Username, Date: date}
			}
			dayRows = append(dayRows, types.DayActivity{
				Date:          date,
				Username:      learner.Username,
				Commits:       row.Commits,
				PRsOpened:     row.PRsOpened,
				PRsMerged:     row.PRsMerged,
				LinesAdded:    row.LinesAdded,
				LinesDeleted:  row.LinesDeleted,
				Comments:      row.IssueComments + row.ReviewCommentsGiven,
				ActivityScore: scoring.DailyActivityScore(row),
			})
		}
		sort.SliceStable(dayRows, func(i, j int) bool {
			if dayRows[i].ActivityScore != dayRows[j].ActivityScore {
				return dayRows[i].ActivityScore > dayRows[j].ActivityScore
			}
			return strings.ToLower(dayRows[i].Username) < strings.ToLower(dayRows[j].Username)
		})
		view = append(view, dayRows...)
	}
	return view, nil
}
