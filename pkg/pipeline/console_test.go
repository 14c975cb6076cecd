package pipeline

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cohortly-dev/tracker/pkg/types"
)

func TestConsoleSink_Leaderboard(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	err := sink.WriteLeaderboard(context.Background(), []types.LeaderboardRow{
		{
			Rank: 1,
			Summary: types.LearnerSummary{
				Username:     "alice",
				ActiveDays:   12,
				TotalCommits: 40,
			},
			Score:        types.ScoreResult{Total: 72.5, Classification: "GOOD"},
			MergeTimeStr: "3.2 hrs",
			RejectionStr: "25%",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"alice", "72.5", "GOOD", "3.2 hrs", "25%"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestConsoleSink_Alerts(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	err := sink.WriteAlerts(context.Background(), []types.Alert{
		{
			Username:   "ghost",
			Type:       types.AlertInactive,
			Details:    "No activity in 7+ days",
			LastActive: "Never",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "ghost") || !strings.Contains(out, "INACTIVE") {
		t.Errorf("unexpected alert output:\n%s", out)
	}

	buf.Reset()
	if err := sink.WriteAlerts(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No alerts") {
		t.Errorf("expected empty-alert message, got %q", buf.String())
	}
}
