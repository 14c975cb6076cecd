// Package config parses the flat key-value run configuration into an
// immutable structure handed to the scoring and alert engines.
//
// The key-value map comes from the external sink (an admin-editable tab);
// it is read once per pipeline run. Missing keys fall back to documented
// defaults. Unparsable values are configuration errors and abort the run
// before any writes.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the calendar-day format used throughout the tracker.
const DateFormat = "2006-01-02"

// Default values for every supported key.
const (
	DefaultBootcampStartDate = "2026-02-23"
	DefaultBaseRepo          = "ed-donner/llm_engineering"

	defaultInactiveThresholdDays   = 7
	defaultAtRiskScoreThreshold    = 30
	defaultDecliningScoreThreshold = 50
	defaultDecliningActiveDaysMin  = 2

	defaultConsistencyMaxPoints        = 30
	defaultConsistencyActiveDaysWeight = 20
	defaultConsistencyCommitsWeight    = 10

	defaultCollaborationMaxPoints = 25
	defaultPRPointsEach           = 2
	defaultReviewPointsEach       = 1.5
	defaultIssuePointsEach        = 1
	defaultCommentPointsEach      = 0.5
	defaultCollabPRCap            = 8
	defaultCollabReviewCap        = 7
	defaultCollabIssueCap         = 5
	defaultCollabCommentCap       = 5

	defaultCodeVolumeMaxPoints     = 25
	defaultLinesAddedMaxScale      = 500
	defaultLinesDeletedMaxScale    = 200
	defaultCodeVolumeAddedWeight   = 15
	defaultCodeVolumeDeletedWeight = 10

	defaultQualityMaxPoints    = 20
	defaultMergeRateMaxPoints  = 15
	defaultFeedbackMaxPoints   = 5
	defaultFeedbackPointsEach  = 1

	defaultClassifyExcellent        = 80
	defaultClassifyGood             = 60
	defaultClassifyAverage          = 40
	defaultClassifyNeedsImprovement = 20
)

// ManualUser is one entry of the manual_users override list.
type ManualUser struct {
	Username string
	ForkRepo string
	BaseRepo string
}

// Config is the parsed, immutable run configuration.
type Config struct {
	BootcampStartDate time.Time
	LastPollTimestamp time.Time // zero when never polled

	BaseRepos     []string
	ExcludedUsers map[string]bool // lowercased usernames
	ManualUsers   []ManualUser

	InactiveThresholdDays   int
	AtRiskScoreThreshold    float64
	DecliningScoreThreshold float64
	DecliningActiveDaysMin  int

	ConsistencyMaxPoints        float64
	ConsistencyActiveDaysWeight float64
	ConsistencyCommitsWeight    float64

	CollaborationMaxPoints float64
	PRPointsEach           float64
	ReviewPointsEach       float64
	IssuePointsEach        float64
	CommentPointsEach      float64
	CollabPRCap            float64
	CollabReviewCap        float64
	CollabIssueCap         float64
	CollabCommentCap       float64

	CodeVolumeMaxPoints     float64
	LinesAddedMaxScale      float64
	LinesDeletedMaxScale    float64
	CodeVolumeAddedWeight   float64
	CodeVolumeDeletedWeight float64

	QualityMaxPoints   float64
	MergeRateMaxPoints float64
	FeedbackMaxPoints  float64
	FeedbackPointsEach float64

	ClassifyExcellent        float64
	ClassifyGood             float64
	ClassifyAverage          float64
	ClassifyNeedsImprovement float64
}

// Parse builds a Config from a flat key-value map. Missing keys use
// defaults; any unparsable value is a fatal configuration error.
func Parse(kv map[string]string) (*Config, error) {
	p := &parser{kv: kv}

	cfg := &Config{
		BootcampStartDate: p.date("bootcamp_start_date", DefaultBootcampStartDate),
		LastPollTimestamp: p.timestamp("last_poll_timestamp"),

		BaseRepos:     p.repoList("base_repos", DefaultBaseRepo),
		ExcludedUsers: p.userSet("excluded_users"),

		InactiveThresholdDays:   p.intval("inactive_threshold_days", defaultInactiveThresholdDays),
		AtRiskScoreThreshold:    p.float("at_risk_score_threshold", defaultAtRiskScoreThreshold),
		DecliningScoreThreshold: p.float("declining_score_threshold", defaultDecliningScoreThreshold),
		DecliningActiveDaysMin:  p.intval("declining_active_days_min", defaultDecliningActiveDaysMin),

		ConsistencyMaxPoints:        p.float("consistency_max_points", defaultConsistencyMaxPoints),
		ConsistencyActiveDaysWeight: p.float("consistency_active_days_weight", defaultConsistencyActiveDaysWeight),
		ConsistencyCommitsWeight:    p.float("consistency_commits_weight", defaultConsistencyCommitsWeight),

		CollaborationMaxPoints: p.float("collaboration_max_points", defaultCollaborationMaxPoints),
		PRPointsEach:           p.float("pr_points_each", defaultPRPointsEach),
		ReviewPointsEach:       p.float("review_points_each", defaultReviewPointsEach),
		IssuePointsEach:        p.float("issue_points_each", defaultIssuePointsEach),
		CommentPointsEach:      p.float("comment_points_each", defaultCommentPointsEach),
		CollabPRCap:            p.float("collab_pr_cap", defaultCollabPRCap),
		CollabReviewCap:        p.float("collab_review_cap", defaultCollabReviewCap),
		CollabIssueCap:         p.float("collab_issue_cap", defaultCollabIssueCap),
		CollabCommentCap:       p.float("collab_comment_cap", defaultCollabCommentCap),

		CodeVolumeMaxPoints:     p.float("code_volume_max_points", defaultCodeVolumeMaxPoints),
		LinesAddedMaxScale:      p.float("lines_added_max_scale", defaultLinesAddedMaxScale),
		LinesDeletedMaxScale:    p.float("lines_deleted_max_scale", defaultLinesDeletedMaxScale),
		CodeVolumeAddedWeight:   p.float("code_volume_added_weight", defaultCodeVolumeAddedWeight),
		CodeVolumeDeletedWeight: p.float("code_volume_deleted_weight", defaultCodeVolumeDeletedWeight),

		QualityMaxPoints:   p.float("quality_max_points", defaultQualityMaxPoints),
		MergeRateMaxPoints: p.float("merge_rate_max_points", defaultMergeRateMaxPoints),
		FeedbackMaxPoints:  p.float("feedback_max_points", defaultFeedbackMaxPoints),
		FeedbackPointsEach: p.float("feedback_points_each", defaultFeedbackPointsEach),

		ClassifyExcellent:        p.float("classify_excellent", defaultClassifyExcellent),
		ClassifyGood:             p.float("classify_good", defaultClassifyGood),
		ClassifyAverage:          p.float("classify_average", defaultClassifyAverage),
		ClassifyNeedsImprovement: p.float("classify_needs_improvement", defaultClassifyNeedsImprovement),
	}

	manual, err := parseManualUsers(kv["manual_users"])
	if err != nil {
		return nil, err
	}
	cfg.ManualUsers = manual

	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// parser accumulates the first parse error while reading keys.
type parser struct {
	err error
	kv  map[string]string
}

func (p *parser) float(key string, def float64) float64 {
	raw, ok := p.kv[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("config key %q: invalid number %q: %w", key, raw, err)
	}
	return v
}

func (p *parser) intval(key string, def int) int {
	raw, ok := p.kv[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("config key %q: invalid integer %q: %w", key, raw, err)
	}
	return v
}

func (p *parser) date(key, def string) time.Time {
	raw, ok := p.kv[key]
	if !ok || strings.TrimSpace(raw) == "" {
		raw = def
	}
	t, err := time.Parse(DateFormat, strings.TrimSpace(raw))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("config key %q: invalid date %q (want YYYY-MM-DD): %w", key, raw, err)
	}
	return t
}

// timestamp parses an optional RFC3339 timestamp; empty means zero time.
func (p *parser) timestamp(key string) time.Time {
	raw := strings.TrimSpace(p.kv[key])
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("config key %q: invalid timestamp %q (want RFC3339): %w", key, raw, err)
	}
	return t
}

func (p *parser) repoList(key, def string) []string {
	raw, ok := p.kv[key]
	if !ok || strings.TrimSpace(raw) == "" {
		raw = def
	}
	var repos []string
	for _, r := range strings.Split(raw, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if !strings.Contains(r, "/") && p.err == nil {
			p.err = fmt.Errorf("config key %q: repo %q is not in owner/repo form", key, r)
		}
		repos = append(repos, r)
	}
	return repos
}

func (p *parser) userSet(key string) map[string]bool {
	set := make(map[string]bool)
	for _, u := range strings.Split(p.kv[key], ",") {
		u = strings.ToLower(strings.TrimSpace(u))
		if u != "" {
			set[u] = true
		}
	}
	return set
}

// parseManualUsers parses semicolon-separated "user,fork,base" triples.
// Fork and base may be blank; discovery fills them in from the first
// configured base repo.
func parseManualUsers(raw string) ([]ManualUser, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var users []ManualUser
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("config key %q: entry %q is not a user,fork,base triple", "manual_users", entry)
		}
		users = append(users, ManualUser{
			Username: strings.TrimSpace(parts[0]),
			ForkRepo: strings.TrimSpace(parts[1]),
			BaseRepo: strings.TrimSpace(parts[2]),
		})
	}
	return users, nil
}
