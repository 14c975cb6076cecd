// Package metrics rolls per-day metric rows into per-learner summaries.
package metrics

import (
	"sort"
	"time"

	"github.com/cohortly-dev/tracker/pkg/config"
	"github.com/cohortly-dev/tracker/pkg/scoring"
	"github.com/cohortly-dev/tracker/pkg/types"
)

// WindowDays is the length of the trailing per-day reporting window,
// inclusive of the run's reference date.
const WindowDays = 14

// recentDays is the shorter trailing window used by the declining-activity
// alert check.
const recentDays = 7

// Summarize rolls a learner's stored rows into all-time totals and the
// trailing window. rows must be ordered by date ascending, as returned by
// the store; ref is the run's reference date.
//
// Averages over avg_merge_time_hours and rejection_rate only include days
// where the raw value is present: a day with no merges contributes nothing
// rather than a zero.
func Summarize(username string, rows []types.RawMetricRow, ref time.Time) types.LearnerSummary {
	s := types.LearnerSummary{Username: username}

	windowStart := ref.AddDate(0, 0, -(WindowDays - 1)).Format(config.DateFormat)
	recentStart := ref.AddDate(0, 0, -(recentDays - 1)).Format(config.DateFormat)
	refDate := ref.Format(config.DateFormat)

	var mergeSum, rejectSum float64
	var mergeN, rejectN int

	for i := range rows {
		r := &rows[i]

		s.TotalCommits += r.Commits
		s.PRsOpened += r.PRsOpened
		s.PRsMerged += r.PRsMerged
		s.IssuesOpened += r.IssuesOpened
		s.LinesAdded += r.LinesAdded
		s.LinesDeleted += r.LinesDeleted
		s.CommentsGiven += r.IssueComments + r.ReviewCommentsGiven

		if r.AvgMergeTimeHours != nil {
			mergeSum += *r.AvgMergeTimeHours
			mergeN++
		}
		if r.RejectionRate != nil {
			rejectSum += *r.RejectionRate
			rejectN++
		}

		if r.HasActivity() {
			s.ActiveDays++
			if r.Date > s.LastActiveDate {
				s.LastActiveDate = r.Date
			}
			if r.Date >= recentStart && r.Date <= refDate {
				s.ActiveDays7++
			}
		}

		if r.Date >= windowStart && r.Date <= refDate {
			s.Window = append(s.Window, *r)
		}
	}

	if mergeN > 0 {
		avg := mergeSum / float64(mergeN)
		s.AvgMergeTimeHours = &avg
	}
	if rejectN > 0 {
		avg := rejectSum / float64(rejectN)
		s.RejectionRate = &avg
	}

	sortWindow(s.Window)
	return s
}

// sortWindow orders window rows by date descending, breaking ties by the
// day's activity score descending.
func sortWindow(window []types.RawMetricRow) {
	sort.SliceStable(window, func(i, j int) bool {
		if window[i].Date != window[j].Date {
			return window[i].Date > window[j].Date
		}
		return scoring.DailyActivityScore(&window[i]) > scoring.DailyActivityScore(&window[j])
	})
}
