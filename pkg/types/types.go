// Package types contains shared data structures used across the tracker system.
//
//nolint:revive // "types" is a standard Go package name for shared data structures
package types

import "time"

// Learner represents a cohort member tracked by account handle and fork.
// A learner is discovered once (fork scan or manual entry) and persists
// until explicitly excluded via configuration.
type Learner struct {
	Username string // GitHub account handle
	ForkRepo string // "owner/repo" of the learner's fork
	BaseRepo string // "owner/repo" of the upstream repository
}

// RawMetricRow holds one learner's activity counters for one calendar day.
// The (Username, Date) pair is unique: at most one row per learner per day.
type RawMetricRow struct {
	LastUpdated         time.Time
	AvgMergeTimeHours   *float64
	RejectionRate       *float64
	Username            string
	Date                string // YYYY-MM-DD
	Commits             int
	PRsOpened           int
	PRsMerged           int
	IssuesOpened        int
	IssueComments       int
	ReviewCommentsGiven int
	LinesAdded          int
	LinesDeleted        int
}

// HasActivity reports whether the day counts as an active day: at least one
// commit, PR opened, PR merged, issue opened, or comment. Line counts alone
// do not make a day active.
func (r *RawMetricRow) HasActivity() bool {
	return r.Commits > 0 || r.PRsOpened > 0 || r.PRsMerged > 0 ||
		r.IssuesOpened > 0 || r.IssueComments > 0 || r.ReviewCommentsGiven > 0
}

// Field identifies one mergeable column of RawMetricRow. Field names match
// the store's column names.
type Field string

// Mergeable row fields.
const (
	FieldCommits             Field = "commits"
	FieldPRsOpened           Field = "prs_opened"
	FieldPRsMerged           Field = "prs_merged"
	FieldIssuesOpened        Field = "issues_opened"
	FieldIssueComments       Field = "issue_comments"
	FieldReviewCommentsGiven Field = "review_comments_given"
	FieldLinesAdded          Field = "lines_added"
	FieldLinesDeleted        Field = "lines_deleted"
	FieldAvgMergeTimeHours   Field = "avg_merge_time_hours"
	FieldRejectionRate       Field = "rejection_rate"
)

// PartialRow is a partial write for one (username, date) key. Only the
// fields present in Values are touched by an upsert; absent fields keep
// whatever a previous write stored. A present field with a nil value sets
// the column to NULL (used for avg_merge_time_hours and rejection_rate on
// days with no merged or closed PRs).
type PartialRow struct {
	Values   map[Field]any
	Username string
	Date     string // YYYY-MM-DD
}

// LearnerSummary aggregates a learner's stored rows into all-time totals
// plus a trailing window of per-day rows. Derived, never stored.
type LearnerSummary struct {
	AvgMergeTimeHours *float64
	RejectionRate     *float64
	Username          string
	LastActiveDate    string // YYYY-MM-DD, empty when never active
	LastComment       string // most recent comment on the learner's PRs
	Window            []RawMetricRow
	ActiveDays        int
	ActiveDays7       int // active days in the trailing 7-day window
	TotalCommits      int
	PRsOpened         int
	PRsMerged         int
	IssuesOpened      int
	LinesAdded        int
	LinesDeleted      int
	CommentsGiven     int
	CommentsReceived  int
}

// ScoreResult holds the four component scores, their sum, and the
// classification label. Recomputed fresh on every run.
type ScoreResult struct {
	Classification string
	Consistency    float64
	Collaboration  float64
	CodeVolume     float64
	Quality        float64
	Total          float64
}

// Alert types in precedence order: a learner receives at most one alert and
// INACTIVE beats AT RISK beats DECLINING.
const (
	AlertInactive  = "INACTIVE"
	AlertAtRisk    = "AT RISK"
	AlertDeclining = "DECLINING"
)

// Alert flags one learner for attention.
type Alert struct {
	Username   string
	Type       string
	Details    string
	LastActive string // YYYY-MM-DD or "Never"
	Score      float64
}

// LeaderboardRow is one finalized row of the leaderboard view handed to the
// sink, with display-formatted merge time and rejection rate.
type LeaderboardRow struct {
	MergeTimeStr string // "N/A", "45 min", "3.2 hrs", "1.4 days"
	RejectionStr string // "25%"
	Summary      LearnerSummary
	Score        ScoreResult
	Rank         int
}

// DayActivity is one row of the per-day view for the trailing window,
// including zero rows for learners with no stored activity on a date.
type DayActivity struct {
	Date          string
	Username      string
	Commits       int
	PRsOpened     int
	PRsMerged     int
	LinesAdded    int
	LinesDeleted  int
	Comments      int
	ActivityScore int
}

// Commit represents a commit attributed to a learner.
type Commit struct {
	AuthoredAt time.Time
	SHA        string
	Author     string // GitHub login, empty when the commit has no linked account
	Additions  int
	Deletions  int
}

// PullRequest represents a pull request against a base repository.
type PullRequest struct {
	CreatedAt time.Time
	MergedAt  *time.Time
	ClosedAt  *time.Time
	Author    string
	State     string // "open" or "closed"
	Number    int
	Additions int
	Deletions int
}

// Merged reports whether the PR was merged.
func (p *PullRequest) Merged() bool { return p.MergedAt != nil }

// Issue represents an issue (never a pull request) on a base repository.
type Issue struct {
	CreatedAt time.Time
	Author    string
	Number    int
}

// Comment represents an issue comment or a PR review comment.
type Comment struct {
	CreatedAt time.Time
	Author    string
	Body      string
	IssueURL  string // set for issue comments
	PRURL     string // set for review comments
}

// Fork represents a fork of a base repository.
type Fork struct {
	CreatedAt time.Time
	FullName  string // "owner/repo"
	Owner     string // fork owner's login
}

// RateBudget is a snapshot of the API's remaining-call budget.
type RateBudget struct {
	Reset     time.Time
	Limit     int
	Remaining int
}
