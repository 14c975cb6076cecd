// Package alerts flags learners for inactivity, low scores, or declining
// trends.
//
// Evaluation order is load-bearing: a learner meeting several criteria
// receives only the first matching alert, and dashboards depend on
// INACTIVE beating AT RISK beating DECLINING.
package alerts

import (
	"fmt"
	"time"

	"github.com/cohortly-dev/tracker/pkg/config"
	"github.com/cohortly-dev/tracker/pkg/types"
)

// Evaluate returns at most one alert for a learner, or nil when none of
// the checks fire. ref is the run's reference date. Evaluate is a total
// function: no valid summary can make it fail.
func Evaluate(s *types.LearnerSummary, score *types.ScoreResult, cfg *config.Config, ref time.Time) *types.Alert {
	lastActive := s.LastActiveDate
	display := lastActive
	if display == "" {
		display = "Never"
	}

	inactiveCutoff := ref.AddDate(0, 0, -cfg.InactiveThresholdDays).Format(config.DateFormat)
	if lastActive == "" || lastActive <= inactiveCutoff {
		return &types.Alert{
			Username:   s.Username,
			Type:       types.AlertInactive,
			Details:    fmt.Sprintf("No activity in %d+ days", cfg.InactiveThresholdDays),
			LastActive: display,
			Score:      score.Total,
		}
	}

	if score.Total < cfg.AtRiskScoreThreshold {
		return &types.Alert{
			Username:   s.Username,
			Type:       types.AlertAtRisk,
			Details:    fmt.Sprintf("Score %s below %s", trimFloat(score.Total), trimFloat(cfg.AtRiskScoreThreshold)),
			LastActive: display,
			Score:      score.Total,
		}
	}

	if score.Total < cfg.DecliningScoreThreshold && s.ActiveDays7 < cfg.DecliningActiveDaysMin {
		return &types.Alert{
			Username: s.Username,
			Type:     types.AlertDeclining,
			Details: fmt.Sprintf("Score %s (below %s), only %d active %s in last 7 days",
				trimFloat(score.Total), trimFloat(cfg.DecliningScoreThreshold),
				s.ActiveDays7, dayWord(s.ActiveDays7)),
			LastActive: display,
			Score:      score.Total,
		}
	}

	return nil
}

func dayWord(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

// trimFloat formats a score without trailing zeros ("30" not "30.0",
// "16.2" stays "16.2").
func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
