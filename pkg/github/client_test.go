package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cohortly-dev/tracker/pkg/config"
	"github.com/cohortly-dev/tracker/pkg/internal/testutil"
)

func newTestClient(t *testing.T, f *testutil.FakeGitHub) *Client {
	t.Helper()
	c, err := New(context.Background(), Config{
		Token:   "ghp_" + strings.Repeat("x", 36),
		BaseURL: f.URL(),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func commitPayload(sha, login, date string) map[string]any {
	return map[string]any{
		"sha":    sha,
		"author": map[string]any{"login": login},
		"commit": map[string]any{
			"author": map[string]any{"date": date},
		},
	}
}

func requestCount(f *testutil.FakeGitHub, path string) int {
	n := 0
	for _, p := range f.Requests() {
		if p == path {
			n++
		}
	}
	return n
}

func TestNew_RejectsBadToken(t *testing.T) {
	_, err := New(context.Background(), Config{Token: "short"})
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth for short token, got %v", err)
	}

	_, err = New(context.Background(), Config{})
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth for missing token, got %v", err)
	}
}

func TestCommits_ParsesEntries(t *testing.T) {
	f := testutil.NewFakeGitHub()
	defer f.Close()

	f.Handle("/repos/alice/fork/commits", []map[string]any{
		commitPayload("sha1", "alice", "2026-03-01T10:00:00Z"),
		commitPayload("sha2", "alice", "2026-03-01T15:30:00Z"),
	})

	c := newTestClient(t, f)
	commits, err := c.Commits(context.Background(), "alice", "fork", CommitOptions{Author: "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[0].SHA != "sha1" || commits[0].Author != "alice" {
		t.Errorf("unexpected first commit: %+v", commits[0])
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !commits[0].AuthoredAt.Equal(want) {
		t.Errorf("expected authored at %v, got %v", want, commits[0].AuthoredAt)
	}
}

func TestListAll_DrainsPages(t *testing.T) {
	f := testutil.NewFakeGitHub()
	defer f.Close()

	var payload []map[string]any
	for i := 0; i < 150; i++ {
		payload = append(payload, commitPayload(fmt.Sprintf("sha%d", i), "alice", "2026-03-01T10:00:00Z"))
	}
	f.Handle("/repos/alice/fork/commits", payload)

	c := newTestClient(t, f)
	commits, err := c.Commits(context.Background(), "alice", "fork", CommitOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commits) != 150 {
		t.Errorf("expected 150 commits across pages, got %d", len(commits))
	}
	if got := requestCount(f, "/repos/alice/fork/commits"); got != 2 {
		t.Errorf("expected 2 page requests, got %d", got)
	}
}

func TestListAll_ExactPageBoundary(t *testing.T) {
	f := testutil.NewFakeGitHub()
	defer f.Close()

	var payload []map[string]any
	for i := 0; i < 100; i++ {
		payload = append(payload, commitPayload(fmt.Sprintf("sha%d", i), "alice", "2026-03-01T10:00:00Z"))
	}
	f.Handle("/repos/alice/fork/commits", payload)

	c := newTestClient(t, f)
	commits, err := c.Commits(context.Background(), "alice", "fork", CommitOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commits) != 100 {
		t.Errorf("expected 100 commits, got %d", len(commits))
	}
	// A full page forces one more fetch to find the empty page.
	if got := requestCount(f, "/repos/alice/fork/commits"); got != 2 {
		t.Errorf("expected 2 page requests, got %d", got)
	}
}

func TestCommitStats(t *testing.T) {
	f := testutil.NewFakeGitHub()
	defer f.Close()

	f.Handle("/repos/alice/fork/commits/sha1", map[string]any{
		"stats": map[string]any{"additions": 42, "deletions": 7},
	})

	c := newTestClient(t, f)
	additions, deletions, err := c.CommitStats(context.Background(), "alice", "fork", "sha1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if additions != 42 || deletions != 7 {
		t.Errorf("expected 42/7, got %d/%d", additions, deletions)
	}
}

func TestPullRequests_ParsesAndCaches(t *testing.T) {
	f := testutil.NewFakeGitHub()
	defer f.Close()

	f.Handle("/repos/octo/course/pulls", []map[string]any{
		{
			"number":     7,
			"user":       map[string]any{"login": "alice"},
			"state":      "closed",
			"created_at": "2026-03-01T10:00:00Z",
			"merged_at":  "2026-03-02T10:00:00Z",
			"closed_at":  "2026-03-02T10:00:00Z",
		},
		{
			"number":     8,
			"user":       map[string]any{"login": "bob"},
			"state":      "open",
			"created_at": "2026-03-03T09:00:00Z",
		},
	})

	c := newTestClient(t, f)
	prs, err := c.PullRequests(context.Background(), "octo", "course")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prs) != 2 {
		t.Fatalf("expected 2 PRs, got %d", len(prs))
	}
	if !prs[0].Merged() {
		t.Error("expected PR 7 to be merged")
	}
	if prs[1].Merged() {
		t.Error("expected PR 8 not merged")
	}
	if prs[1].MergedAt != nil || prs[1].ClosedAt != nil {
		t.Error("expected nil merge/close times for open PR")
	}

	// A second listing for the same repo must hit the run cache.
	if _, err := c.PullRequests(context.Background(), "octo", "course"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := requestCount(f, "/repos/octo/course/pulls"); got != 1 {
		t.Errorf("expected 1 underlying request, got %d", got)
	}
}

func TestIssues_ExcludesPullRequests(t *testing.T) {
	f := testutil.NewFakeGitHub()
	defer f.Close()

	f.Handle("/repos/octo/course/issues", []map[string]any{
		{
			"number":     1,
			"user":       map[string]any{"login": "alice"},
			"created_at": "2026-03-01T10:00:00Z",
		},
		{
			"number":       2,
			"user":         map[string]any{"login": "bob"},
			"created_at":   "2026-03-01T11:00:00Z",
			"pull_request": map[string]any{"url": "https://example.com/pulls/2"},
		},
	})

	c := newTestClient(t, f)
	issues, err := c.Issues(context.Background(), "octo", "course")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue after PR filtering, got %d", len(issues))
	}
	if issues[0].Number != 1 || issues[0].Author != "alice" {
		t.Errorf("unexpected issue: %+v", issues[0])
	}
}

func TestRateLimit_Introspection(t *testing.T) {
	f := testutil.NewFakeGitHub()
	defer f.Close()

	reset := time.Now().Add(30 * time.Minute).Unix()
	f.Handle("/rate_limit", map[string]any{
		"resources": map[string]any{
			"core": map[string]any{
				"limit":     5000,
				"remaining": 4321,
				"reset":     reset,
			},
		},
	})

	c := newTestClient(t, f)
	budget, err := c.RateLimit(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if budget.Limit != 5000 || budget.Remaining != 4321 {
		t.Errorf("unexpected budget: %+v", budget)
	}
	if budget.Reset.Unix() != reset {
		t.Errorf("unexpected reset time: %v", budget.Reset)
	}
}

func TestDoRequest_AuthFailureFatal(t *testing.T) {
	f := testutil.NewFakeGitHub()
	defer f.Close()

	f.HandleStatus("/rate_limit", http.StatusUnauthorized)

	c := newTestClient(t, f)
	_, err := c.RateLimit(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth on 401, got %v", err)
	}
	if got := requestCount(f, "/rate_limit"); got != 1 {
		t.Errorf("expected no retries on auth failure, got %d requests", got)
	}
}

func TestDiscoverLearners_Filters(t *testing.T) {
	f := testutil.NewFakeGitHub()
	defer f.Close()

	f.Handle("/repos/octo/course/forks", []map[string]any{
		{
			"full_name":  "early/course",
			"owner":      map[string]any{"login": "early"},
			"created_at": "2026-01-15T10:00:00Z", // before bootcamp start
		},
		{
			"full_name":  "alice/course",
			"owner":      map[string]any{"login": "alice"},
			"created_at": "2026-03-01T10:00:00Z",
		},
		{
			"full_name":  "staffer/course",
			"owner":      map[string]any{"login": "staffer"},
			"created_at": "2026-03-01T11:00:00Z",
		},
		{
			"full_name":  "Alice/course-two",
			"owner":      map[string]any{"login": "Alice"},
			"created_at": "2026-03-02T10:00:00Z", // duplicate, first fork wins
		},
	})

	cfg, err := config.Parse(map[string]string{
		"base_repos":     "octo/course",
		"excluded_users": "staffer",
		"manual_users":   "zara,zara/course-fork,octo/course",
	})
	if err != nil {
		t.Fatalf("unexpected config error: %v", err)
	}

	c := newTestClient(t, f)
	learners, err := c.DiscoverLearners(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(learners) != 2 {
		t.Fatalf("expected 2 learners, got %d: %+v", len(learners), learners)
	}
	if learners[0].Username != "alice" || learners[0].ForkRepo != "alice/course" {
		t.Errorf("unexpected first learner: %+v", learners[0])
	}
	if learners[1].Username != "zara" || learners[1].ForkRepo != "zara/course-fork" {
		t.Errorf("unexpected second learner: %+v", learners[1])
	}
}

func TestDiscoverLearners_ExcludedManualUser(t *testing.T) {
	f := testutil.NewFakeGitHub()
	defer f.Close()

	f.Handle("/repos/octo/course/forks", []map[string]any{})

	cfg, err := config.Parse(map[string]string{
		"base_repos":     "octo/course",
		"excluded_users": "Staffer",
		"manual_users":   "staffer,staffer/course-fork,octo/course;zara,zara/course-fork,octo/course",
	})
	if err != nil {
		t.Fatalf("unexpected config error: %v", err)
	}

	c := newTestClient(t, f)
	learners, err := c.DiscoverLearners(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(learners) != 1 || learners[0].Username != "zara" {
		t.Fatalf("expected excluded manual user dropped from roster, got %+v", learners)
	}
}

func TestDiscoverLearners_ManualUserForkFallback(t *testing.T) {
	f := testutil.NewFakeGitHub()
	defer f.Close()

	f.Handle("/repos/octo/course/forks", []map[string]any{})

	cfg, err := config.Parse(map[string]string{
		"base_repos":   "octo/course",
		"manual_users": "nofork,,",
	})
	if err != nil {
		t.Fatalf("unexpected config error: %v", err)
	}

	c := newTestClient(t, f)
	learners, err := c.DiscoverLearners(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(learners) != 1 {
		t.Fatalf("expected 1 learner, got %d", len(learners))
	}
	if learners[0].ForkRepo != "nofork/course" || learners[0].BaseRepo != "octo/course" {
		t.Errorf("expected assumed fork nofork/course on octo/course, got %+v", learners[0])
	}
}
