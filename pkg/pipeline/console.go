package pipeline

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/cohortly-dev/tracker/pkg/types"
)

// Classification and alert colors.
var (
	excellentColor = color.New(color.FgGreen, color.Bold)
	goodColor      = color.New(color.FgGreen)
	averageColor   = color.New(color.FgYellow)
	needsWorkColor = color.New(color.FgMagenta)
	atRiskColor    = color.New(color.FgRed, color.Bold)

	inactiveColor  = color.New(color.FgRed, color.Bold)
	decliningColor = color.New(color.FgYellow)
)

// ConsoleSink renders pipeline output as tables on a writer. It stands in
// for the production spreadsheet writer on local runs.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a sink writing to out.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out}
}

// UpsertRows prints a one-line summary; raw rows live in the store.
func (s *ConsoleSink) UpsertRows(_ context.Context, rows []types.PartialRow) error {
	_, err := fmt.Fprintf(s.out, "Stored %d metric row(s)\n", len(rows))
	return err
}

// WriteLeaderboard renders the ranked leaderboard table.
func (s *ConsoleSink) WriteLeaderboard(_ context.Context, rows []types.LeaderboardRow) error {
	table := tablewriter.NewWriter(s.out)
	table.Header([]string{
		"Rank", "Learner", "Score", "Class", "Active Days",
		"Commits", "PRs", "Merged", "Lines +/-", "Merge Time", "Rejection",
	})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		data = append(data, []string{
			strconv.Itoa(r.Rank),
			r.Summary.Username,
			fmt.Sprintf("%.1f", r.Score.Total),
			classColor(r.Score.Classification).Sprint(r.Score.Classification),
			strconv.Itoa(r.Summary.ActiveDays),
			strconv.Itoa(r.Summary.TotalCommits),
			strconv.Itoa(r.Summary.PRsOpened),
			strconv.Itoa(r.Summary.PRsMerged),
			fmt.Sprintf("+%d/-%d", r.Summary.LinesAdded, r.Summary.LinesDeleted),
			r.MergeTimeStr,
			r.RejectionStr,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// WriteDailyView renders the trailing per-day activity table.
func (s *ConsoleSink) WriteDailyView(_ context.Context, rows []types.DayActivity) error {
	table := tablewriter.NewWriter(s.out)
	table.Header([]string{
		"Date", "Learner", "Commits", "PRs", "Merged", "Lines +/-", "Comments", "Activity",
	})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		data = append(data, []string{
			r.Date,
			r.Username,
			strconv.Itoa(r.Commits),
			strconv.Itoa(r.PRsOpened),
			strconv.Itoa(r.PRsMerged),
			fmt.Sprintf("+%d/-%d", r.LinesAdded, r.LinesDeleted),
			strconv.Itoa(r.Comments),
			strconv.Itoa(r.ActivityScore),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// WriteAlerts prints one colored line per alert.
func (s *ConsoleSink) WriteAlerts(_ context.Context, alerts []types.Alert) error {
	if len(alerts) == 0 {
		_, err := fmt.Fprintln(s.out, "No alerts")
		return err
	}
	for i := range alerts {
		a := &alerts[i]
		label := alertColor(a.Type).Sprintf("[%s]", a.Type)
		if _, err := fmt.Fprintf(s.out, "%s %s (score %.1f, last active %s): %s\n",
			label, a.Username, a.Score, a.LastActive, a.Details); err != nil {
			return err
		}
	}
	return nil
}

// SetConfigValue echoes the writeback; the console has no config storage.
func (s *ConsoleSink) SetConfigValue(_ context.Context, key, value string) error {
	_, err := fmt.Fprintf(s.out, "Config %s = %s\n", key, value)
	return err
}

func classColor(classification string) *color.Color {
	switch classification {
	case "EXCELLENT":
		return excellentColor
	case "GOOD":
		return goodColor
	case "AVERAGE":
		return averageColor
	case "NEEDS IMPROVEMENT":
		return needsWorkColor
	default:
		return atRiskColor
	}
}

func alertColor(alertType string) *color.Color {
	switch alertType {
	case types.AlertInactive:
		return inactiveColor
	case types.AlertAtRisk:
		return atRiskColor
	default:
		return decliningColor
	}
}
