package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cohortly-dev/tracker/pkg/github"
	"github.com/cohortly-dev/tracker/pkg/types"
)

const lastCommentMaxLen = 100

// fetchLearnerDay builds a complete metric row for one learner on one
// calendar day: commit counts and line stats from the fork, PR, issue and
// comment activity from the base repository.
func (p *Pipeline) fetchLearnerDay(ctx context.Context, learner types.Learner, day time.Time) (*types.PartialRow, error) {
	dayStart := startOfDay(day)
	dayEnd := dayStart.Add(24 * time.Hour)

	forkOwner, forkRepo, err := splitRepo(learner.ForkRepo)
	if err != nil {
		return nil, err
	}
	baseOwner, baseRepo, err := splitRepo(learner.BaseRepo)
	if err != nil {
		return nil, err
	}

	commits, err := p.client.Commits(ctx, forkOwner, forkRepo, github.CommitOptions{
		Since:  dayStart,
		Until:  dayEnd,
		Author: learner.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("commits for %s: %w", learner.Username, err)
	}

	var linesAdded, linesDeleted int
	for _, commit := range commits {
		additions, deletions, err := p.client.CommitStats(ctx, forkOwner, forkRepo, commit.SHA)
		if err != nil {
			return nil, fmt.Errorf("commit stats for %s@%s: %w", learner.Username, commit.SHA, err)
		}
		linesAdded += additions
		linesDeleted += deletions
	}

	prs, err := p.client.PullRequests(ctx, baseOwner, baseRepo)
	if err != nil {
		return nil, fmt.Errorf("PRs for %s: %w", learner.BaseRepo, err)
	}

	var prsOpened, prsMerged, prsClosed, prsRejected int
	var mergeHoursSum float64
	for i := range prs {
		pr := &prs[i]
		if !strings.EqualFold(pr.Author, learner.Username) {
			continue
		}
		if inRange(pr.CreatedAt, dayStart, dayEnd) {
			prsOpened++
		}
		if pr.MergedAt != nil && inRange(*pr.MergedAt, dayStart, dayEnd) {
			prsMerged++
			mergeHoursSum += pr.MergedAt.Sub(pr.CreatedAt).Hours()
		}
		if pr.ClosedAt != nil && inRange(*pr.ClosedAt, dayStart, dayEnd) {
			prsClosed++
			if !pr.Merged() {
				prsRejected++
			}
		}
	}

	// Null, not zero, when the day has no merged or closed PRs.
	var avgMergeTime, rejectionRate any
	if prsMerged > 0 {
		avgMergeTime = mergeHoursSum / float64(prsMerged)
	}
	if prsClosed > 0 {
		rejectionRate = float64(prsRejected) / float64(prsClosed)
	}

	issues, err := p.client.Issues(ctx, baseOwner, baseRepo)
	if err != nil {
		return nil, fmt.Errorf("issues for %s: %w", learner.BaseRepo, err)
	}
	var issuesOpened int
	for i := range issues {
		if strings.EqualFold(issues[i].Author, learner.Username) && inRange(issues[i].CreatedAt, dayStart, dayEnd) {
			issuesOpened++
		}
	}

	issueComments, err := p.client.IssueComments(ctx, baseOwner, baseRepo, dayStart)
	if err != nil {
		return nil, fmt.Errorf("issue comments for %s: %w", learner.BaseRepo, err)
	}
	commentCount := countByAuthor(issueComments, learner.Username, dayStart, dayEnd)

	reviewComments, err := p.client.AllReviewComments(ctx, baseOwner, baseRepo, dayStart)
	if err != nil {
		return nil, fmt.Errorf("review comments for %s: %w", learner.BaseRepo, err)
	}
	reviewCount := countByAuthor(reviewComments, learner.Username, dayStart, dayEnd)

	return &types.PartialRow{
		Username: learner.Username,
		Date:     dayStart.Format("2006-01-02"),
		Values: map[types.Field]any{
			types.FieldCommits:             len(commits),
			types.FieldPRsOpened:           prsOpened,
			types.FieldPRsMerged:           prsMerged,
			types.FieldIssuesOpened:        issuesOpened,
			types.FieldIssueComments:       commentCount,
			types.FieldReviewCommentsGiven: reviewCount,
			types.FieldLinesAdded:          linesAdded,
			types.FieldLinesDeleted:        linesDeleted,
			types.FieldAvgMergeTimeHours:   avgMergeTime,
			types.FieldRejectionRate:       rejectionRate,
		},
	}, nil
}

// learnerExtras holds summary inputs that live in the API rather than the
// store: comments other people left on the learner's PRs.
type learnerExtras struct {
	lastComment      string
	commentsReceived int
}

// fetchLearnerExtras collects feedback received on the learner's PRs in
// the base repository. Listings are cached, so the cost is shared across
// the whole cohort pass.
func (p *Pipeline) fetchLearnerExtras(ctx context.Context, learner types.Learner) (learnerExtras, error) {
	var extras learnerExtras

	baseOwner, baseRepo, err := splitRepo(learner.BaseRepo)
	if err != nil {
		return extras, err
	}

	prs, err := p.client.PullRequests(ctx, baseOwner, baseRepo)
	if err != nil {
		return extras, fmt.Errorf("PRs for %s: %w", learner.BaseRepo, err)
	}
	prSuffixes := make(map[string]bool)
	for i := range prs {
		if strings.EqualFold(prs[i].Author, learner.Username) {
			prSuffixes[fmt.Sprintf("/issues/%d", prs[i].Number)] = true
			prSuffixes[fmt.Sprintf("/pulls/%d", prs[i].Number)] = true
		}
	}
	if len(prSuffixes) == 0 {
		return extras, nil
	}

	issueComments, err := p.client.IssueComments(ctx, baseOwner, baseRepo, time.Time{})
	if err != nil {
		return extras, fmt.Errorf("issue comments for %s: %w", learner.BaseRepo, err)
	}
	reviewComments, err := p.client.AllReviewComments(ctx, baseOwner, baseRepo, time.Time{})
	if err != nil {
		return extras, fmt.Errorf("review comments for %s: %w", learner.BaseRepo, err)
	}

	var latest time.Time
	for _, comment := range append(issueComments, reviewComments...) {
		if strings.EqualFold(comment.Author, learner.Username) {
			continue // own comments are not feedback
		}
		target := comment.IssueURL
		if target == "" {
			target = comment.PRURL
		}
		if !matchesSuffix(target, prSuffixes) {
			continue
		}
		extras.commentsReceived++
		if comment.CreatedAt.After(latest) {
			latest = comment.CreatedAt
			extras.lastComment = fmt.Sprintf("%s: %s", comment.Author, truncate(comment.Body, lastCommentMaxLen))
		}
	}
	return extras, nil
}

func countByAuthor(comments []types.Comment, username string, from, to time.Time) int {
	n := 0
	for i := range comments {
		if strings.EqualFold(comments[i].Author, username) && inRange(comments[i].CreatedAt, from, to) {
			n++
		}
	}
	return n
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func matchesSuffix(url string, suffixes map[string]bool) bool {
	for suffix := range suffixes {
		if strings.HasSuffix(url, suffix) {
			return true
		}
	}
	return false
}

func splitRepo(fullName string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repo %q, want owner/repo", fullName)
	}
	return owner, repo, nil
}

// truncate shortens s to at most n bytes, cutting on a rune boundary so
// multi-byte comment bodies stay valid UTF-8.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
