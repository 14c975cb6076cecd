// Package scoring computes component scores, total score, and
// classification from a learner summary and the run configuration.
//
// Every function here is a total function over its input domain: division
// guards are explicit and no valid summary can cause a fault. Scores are
// recomputed fresh on each run so that threshold edits take effect
// immediately.
package scoring

import (
	"math"
	"time"

	"github.com/cohortly-dev/tracker/pkg/config"
	"github.com/cohortly-dev/tracker/pkg/types"
)

// Daily activity score caps (0-10 scale, used for the day-level view and
// window tie-breaking only).
const (
	dailyCommitsCap   = 3
	dailyPRsOpenedCap = 4
	dailyPRsMergedCap = 2
	dailyMaxScore     = 10
)

// Compute derives the four component scores, the total, and the
// classification label for one learner. ref is the run's reference date.
func Compute(s *types.LearnerSummary, cfg *config.Config, ref time.Time) types.ScoreResult {
	consistency := consistencyScore(s, cfg, ref)
	collaboration := collaborationScore(s, cfg)
	codeVolume := codeVolumeScore(s, cfg)
	quality := qualityScore(s, cfg)

	// Components are already capped, so the 100 clamp cannot fire; it stays
	// as a guard on the score-scale invariant.
	total := consistency + collaboration + codeVolume + quality
	total = math.Min(total, 100)

	return types.ScoreResult{
		Consistency:    consistency,
		Collaboration:  collaboration,
		CodeVolume:     codeVolume,
		Quality:        quality,
		Total:          total,
		Classification: Classify(total, cfg),
	}
}

// consistencyScore rewards regular activity: the share of elapsed days with
// any activity, plus commit frequency.
func consistencyScore(s *types.LearnerSummary, cfg *config.Config, ref time.Time) float64 {
	days := DaysElapsed(cfg.BootcampStartDate, ref)
	activeRatio := math.Min(1, float64(s.ActiveDays)/float64(days))
	commitsPerDay := float64(s.TotalCommits) / float64(days)

	score := activeRatio*cfg.ConsistencyActiveDaysWeight +
		math.Min(cfg.ConsistencyCommitsWeight, commitsPerDay*cfg.ConsistencyCommitsWeight)
	return math.Min(cfg.ConsistencyMaxPoints, score)
}

// collaborationScore sums four independently capped sub-terms: PRs opened,
// review comments given, issues opened, and total comment traffic.
func collaborationScore(s *types.LearnerSummary, cfg *config.Config) float64 {
	prs := math.Min(cfg.CollabPRCap, float64(s.PRsOpened)*cfg.PRPointsEach)
	reviews := math.Min(cfg.CollabReviewCap, float64(s.CommentsGiven)*cfg.ReviewPointsEach)
	issues := math.Min(cfg.CollabIssueCap, float64(s.IssuesOpened)*cfg.IssuePointsEach)
	comments := math.Min(cfg.CollabCommentCap, float64(s.CommentsGiven+s.CommentsReceived)*cfg.CommentPointsEach)

	return math.Min(cfg.CollaborationMaxPoints, prs+reviews+issues+comments)
}

// codeVolumeScore scales lines added and deleted linearly against the
// configured "lines for max score" divisors.
func codeVolumeScore(s *types.LearnerSummary, cfg *config.Config) float64 {
	added := math.Min(cfg.CodeVolumeAddedWeight,
		float64(s.LinesAdded)/cfg.LinesAddedMaxScale*cfg.CodeVolumeAddedWeight)
	deleted := math.Min(cfg.CodeVolumeDeletedWeight,
		float64(s.LinesDeleted)/cfg.LinesDeletedMaxScale*cfg.CodeVolumeDeletedWeight)

	return math.Min(cfg.CodeVolumeMaxPoints, added+deleted)
}

// qualityScore combines PR merge rate with feedback received. The merge
// rate term is exactly zero when no PRs were opened.
func qualityScore(s *types.LearnerSummary, cfg *config.Config) float64 {
	var mergeRate float64
	if s.PRsOpened > 0 {
		mergeRate = float64(s.PRsMerged) / float64(s.PRsOpened)
	}
	merge := math.Min(cfg.MergeRateMaxPoints, mergeRate*cfg.MergeRateMaxPoints)
	feedback := math.Min(cfg.FeedbackMaxPoints, float64(s.CommentsReceived)*cfg.FeedbackPointsEach)

	return math.Min(cfg.QualityMaxPoints, merge+feedback)
}

// Classify returns the highest classification threshold met, evaluated in
// descending order so that ties resolve to the higher label.
func Classify(total float64, cfg *config.Config) string {
	switch {
	case total >= cfg.ClassifyExcellent:
		return "EXCELLENT"
	case total >= cfg.ClassifyGood:
		return "GOOD"
	case total >= cfg.ClassifyAverage:
		return "AVERAGE"
	case total >= cfg.ClassifyNeedsImprovement:
		return "NEEDS IMPROVEMENT"
	default:
		return "AT RISK"
	}
}

// DailyActivityScore computes the 0-10 per-day score used by the daily
// view and for window tie-breaking.
func DailyActivityScore(r *types.RawMetricRow) int {
	score := minInt(dailyCommitsCap, r.Commits) +
		minInt(dailyPRsOpenedCap, r.PRsOpened*2) +
		minInt(dailyPRsMergedCap, r.PRsMerged)
	if r.LinesAdded+r.LinesDeleted > 0 {
		score++
	}
	return minInt(dailyMaxScore, score)
}

// DaysElapsed counts calendar days from the bootcamp start through the
// reference date, floored at 1 to avoid division by zero.
func DaysElapsed(start, ref time.Time) int {
	days := int(ref.Sub(start).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
