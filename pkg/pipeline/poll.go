package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cohortly-dev/tracker/pkg/github"
	"github.com/cohortly-dev/tracker/pkg/types"
)

// shallowCounts accumulates the counts-only fields for one calendar day.
type shallowCounts struct {
	commits       int
	prsOpened     int
	prsMerged     int
	issuesOpened  int
	issueComments int
}

// ShallowPoll fetches activity counts since the last poll and writes them
// as partial rows that never touch the deep-only fields (line stats, merge
// time, rejection rate). On success the poll timestamp is written back
// through the sink so the next poll resumes where this one ended.
//
// Counts are kept per calendar day, so the fetch window is widened to the
// start of the first day; re-counting a full day is idempotent under the
// store's merge semantics.
func (p *Pipeline) ShallowPoll(ctx context.Context) error {
	ref := p.now().UTC()
	since := p.cfg.LastPollTimestamp
	if since.IsZero() {
		since = ref.Add(-24 * time.Hour)
	}
	pollStart := startOfDay(since)

	learners, err := p.client.DiscoverLearners(ctx, p.cfg)
	if err != nil {
		return fmt.Errorf("learner discovery failed: %w", err)
	}
	slog.Info("Starting shallow poll",
		"component", "pipeline", "learners", len(learners), "since", pollStart.Format(time.RFC3339))

	var written []types.PartialRow
	failed := 0
	for _, learner := range learners {
		rows, err := p.pollLearner(ctx, learner, pollStart, ref)
		if err != nil {
			slog.Error("Skipping learner after poll failure",
				"component", "pipeline", "learner", learner.Username, "error", err)
			failed++
			continue
		}
		for i := range rows {
			if err := p.store.Upsert(ctx, &rows[i]); err != nil {
				return fmt.Errorf("upsert for %s/%s: %w", rows[i].Username, rows[i].Date, err)
			}
		}
		written = append(written, rows...)
	}

	if len(written) > 0 {
		if err := p.sink.UpsertRows(ctx, written); err != nil {
			return fmt.Errorf("sink write failed: %w", err)
		}
	}
	if err := p.sink.SetConfigValue(ctx, "last_poll_timestamp", ref.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("poll timestamp writeback failed: %w", err)
	}

	slog.Info("Shallow poll complete",
		"component", "pipeline", "rows", len(written), "failed_learners", failed)
	return nil
}

// pollLearner gathers per-day count rows for one learner in [from, to).
func (p *Pipeline) pollLearner(ctx context.Context, learner types.Learner, from, to time.Time) ([]types.PartialRow, error) {
	forkOwner, forkRepo, err := splitRepo(learner.ForkRepo)
	if err != nil {
		return nil, err
	}
	baseOwner, baseRepo, err := splitRepo(learner.BaseRepo)
	if err != nil {
		return nil, err
	}

	days := make(map[string]*shallowCounts)
	bucket := func(t time.Time) *shallowCounts {
		date := t.UTC().Format("2006-01-02")
		if days[date] == nil {
			days[date] = &shallowCounts{}
		}
		return days[date]
	}

	commits, err := p.client.Commits(ctx, forkOwner, forkRepo, github.CommitOptions{
		Since:  from,
		Until:  to,
		Author: learner.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("commits: %w", err)
	}
	for i := range commits {
		bucket(commits[i].AuthoredAt).commits++
	}

	prs, err := p.client.PullRequests(ctx, baseOwner, baseRepo)
	if err != nil {
		return nil, fmt.Errorf("PRs: %w", err)
	}
	for i := range prs {
		pr := &prs[i]
		if !strings.EqualFold(pr.Author, learner.Username) {
			continue
		}
		if inRange(pr.CreatedAt, from, to) {
			bucket(pr.CreatedAt).prsOpened++
		}
		if pr.MergedAt != nil && inRange(*pr.MergedAt, from, to) {
			bucket(*pr.MergedAt).prsMerged++
		}
	}

	issues, err := p.client.Issues(ctx, baseOwner, baseRepo)
	if err != nil {
		return nil, fmt.Errorf("issues: %w", err)
	}
	for i := range issues {
		if strings.EqualFold(issues[i].Author, learner.Username) && inRange(issues[i].CreatedAt, from, to) {
			bucket(issues[i].CreatedAt).issuesOpened++
		}
	}

	comments, err := p.client.IssueComments(ctx, baseOwner, baseRepo, from)
	if err != nil {
		return nil, fmt.Errorf("issue comments: %w", err)
	}
	for i := range comments {
		if strings.EqualFold(comments[i].Author, learner.Username) && inRange(comments[i].CreatedAt, from, to) {
			bucket(comments[i].CreatedAt).issueComments++
		}
	}

	rows := make([]types.PartialRow, 0, len(days))
	for date, counts := range days {
		rows = append(rows, types.PartialRow{
			Username: learner.Username,
			Date:     date,
			Values: map[types.Field]any{
				types.FieldCommits:       counts.commits,
				types.FieldPRsOpened:     counts.prsOpened,
				types.FieldPRsMerged:     counts.prsMerged,
				types.FieldIssuesOpened:  counts.issuesOpened,
				types.FieldIssueComments: counts.issueComments,
			},
		})
	}
	return rows, nil
}
