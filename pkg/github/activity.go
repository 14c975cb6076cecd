package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cohortly-dev/tracker/pkg/types"
)

// CommitOptions filter a commit listing. Zero times and empty strings mean
// no filter.
type CommitOptions struct {
	Since  time.Time
	Until  time.Time
	Author string
}

// Commits lists commits of a repository, optionally filtered by date range
// and author.
func (c *Client) Commits(ctx context.Context, owner, repo string, opts CommitOptions) ([]types.Commit, error) {
	q := url.Values{}
	if !opts.Since.IsZero() {
		q.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}
	if !opts.Until.IsZero() {
		q.Set("until", opts.Until.UTC().Format(time.RFC3339))
	}
	if opts.Author != "" {
		q.Set("author", opts.Author)
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s/commits", c.baseURL, owner, repo)
	if len(q) > 0 {
		apiURL += "?" + q.Encode()
	}

	items, err := c.listAll(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits for %s/%s: %w", owner, repo, err)
	}

	commits := make([]types.Commit, 0, len(items))
	for _, item := range items {
		var data struct {
			SHA    string `json:"sha"`
			Author *struct {
				Login string `json:"login"`
			} `json:"author"`
			Commit struct {
				Author struct {
					Date string `json:"date"`
				} `json:"author"`
			} `json:"commit"`
		}
		if err := json.Unmarshal(item, &data); err != nil {
			slog.Warn("Skipping malformed commit entry", "component", "api", "owner", owner, "repo", repo, "error", err)
			continue
		}

		commit := types.Commit{SHA: data.SHA}
		if data.Author != nil {
			commit.Author = data.Author.Login
		}
		if t, err := time.Parse(time.RFC3339, data.Commit.Author.Date); err == nil {
			commit.AuthoredAt = t
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// CommitStats fetches line addition/deletion counts for a single commit.
func (c *Client) CommitStats(ctx context.Context, owner, repo, sha string) (additions, deletions int, err error) {
	var data struct {
		Stats struct {
			Additions int `json:"additions"`
			Deletions int `json:"deletions"`
		} `json:"stats"`
	}
	apiURL := fmt.Sprintf("%s/repos/%s/%s/commits/%s", c.baseURL, owner, repo, sha)
	if err := c.getJSON(ctx, apiURL, &data); err != nil {
		return 0, 0, fmt.Errorf("failed to fetch commit stats for %s: %w", sha, err)
	}
	return data.Stats.Additions, data.Stats.Deletions, nil
}

// PullRequests lists all PRs of a repository (any state). The listing is
// cached for the run so every learner sharing a base repo reuses it.
func (c *Client) PullRequests(ctx context.Context, owner, repo string) ([]types.PullRequest, error) {
	cacheKey := fmt.Sprintf("prs:%s/%s", owner, repo)
	if cached, ok := c.cache.get(cacheKey); ok {
		if prs, ok := cached.([]types.PullRequest); ok {
			slog.Debug("Using cached PR listing", "component", "api", "owner", owner, "repo", repo)
			return prs, nil
		}
	}

	slog.Info("Fetching all PRs for repository", "component", "api", "owner", owner, "repo", repo)
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls?state=all&sort=created&direction=desc", c.baseURL, owner, repo)
	items, err := c.listAll(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list PRs for %s/%s: %w", owner, repo, err)
	}

	prs := make([]types.PullRequest, 0, len(items))
	for _, item := range items {
		pr, err := parsePR(item)
		if err != nil {
			slog.Warn("Skipping malformed PR entry", "component", "api", "owner", owner, "repo", repo, "error", err)
			continue
		}
		prs = append(prs, pr)
	}

	c.cache.set(cacheKey, prs)
	return prs, nil
}

// PullRequestDetail fetches one PR including its line counts, which the
// list endpoint does not include.
func (c *Client) PullRequestDetail(ctx context.Context, owner, repo string, number int) (*types.PullRequest, error) {
	var data prJSON
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, number)
	if err := c.getJSON(ctx, apiURL, &data); err != nil {
		return nil, fmt.Errorf("failed to fetch PR %d: %w", number, err)
	}
	pr, err := data.toPR()
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

// Issues lists all issues of a repository, excluding pull requests (the
// issues endpoint returns both). Cached for the run.
func (c *Client) Issues(ctx context.Context, owner, repo string) ([]types.Issue, error) {
	cacheKey := fmt.Sprintf("issues:%s/%s", owner, repo)
	if cached, ok := c.cache.get(cacheKey); ok {
		if issues, ok := cached.([]types.Issue); ok {
			return issues, nil
		}
	}

	slog.Info("Fetching issues for repository", "component", "api", "owner", owner, "repo", repo)
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues?state=all", c.baseURL, owner, repo)
	items, err := c.listAll(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues for %s/%s: %w", owner, repo, err)
	}

	issues := make([]types.Issue, 0, len(items))
	for _, item := range items {
		var data struct {
			User struct {
				Login string `json:"login"`
			} `json:"user"`
			CreatedAt   string          `json:"created_at"`
			PullRequest json.RawMessage `json:"pull_request"`
			Number      int             `json:"number"`
		}
		if err := json.Unmarshal(item, &data); err != nil {
			continue
		}
		if len(data.PullRequest) > 0 {
			continue // PRs masquerade as issues on this endpoint
		}

		issue := types.Issue{Number: data.Number, Author: data.User.Login}
		if t, err := time.Parse(time.RFC3339, data.CreatedAt); err == nil {
			issue.CreatedAt = t
		}
		issues = append(issues, issue)
	}

	c.cache.set(cacheKey, issues)
	return issues, nil
}

// IssueComments lists all issue comments of a repository, optionally
// filtered to comments created at or after since. Cached for the run.
func (c *Client) IssueComments(ctx context.Context, owner, repo string, since time.Time) ([]types.Comment, error) {
	cacheKey := fmt.Sprintf("issue-comments:%s/%s:%d", owner, repo, since.Unix())
	if cached, ok := c.cache.get(cacheKey); ok {
		if comments, ok := cached.([]types.Comment); ok {
			return comments, nil
		}
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/comments", c.baseURL, owner, repo)
	if !since.IsZero() {
		apiURL += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}
	comments, err := c.listComments(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list issue comments for %s/%s: %w", owner, repo, err)
	}

	c.cache.set(cacheKey, comments)
	return comments, nil
}

// PRIssueComments lists the issue-style comments on a single PR's
// conversation thread.
func (c *Client) PRIssueComments(ctx context.Context, owner, repo string, number int) ([]types.Comment, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, owner, repo, number)
	comments, err := c.listComments(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments for PR %d: %w", number, err)
	}
	return comments, nil
}

// ReviewComments lists inline review comments on a single PR.
func (c *Client) ReviewComments(ctx context.Context, owner, repo string, number int) ([]types.Comment, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments", c.baseURL, owner, repo, number)
	comments, err := c.listComments(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list review comments for PR %d: %w", number, err)
	}
	return comments, nil
}

// AllReviewComments lists review comments across every PR in a
// repository, optionally filtered by since. Cached for the run.
func (c *Client) AllReviewComments(ctx context.Context, owner, repo string, since time.Time) ([]types.Comment, error) {
	cacheKey := fmt.Sprintf("review-comments:%s/%s:%d", owner, repo, since.Unix())
	if cached, ok := c.cache.get(cacheKey); ok {
		if comments, ok := cached.([]types.Comment); ok {
			return comments, nil
		}
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/comments?sort=created&direction=desc", c.baseURL, owner, repo)
	if !since.IsZero() {
		apiURL += "&since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}
	comments, err := c.listComments(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list review comments for %s/%s: %w", owner, repo, err)
	}

	c.cache.set(cacheKey, comments)
	return comments, nil
}

func (c *Client) listComments(ctx context.Context, apiURL string) ([]types.Comment, error) {
	items, err := c.listAll(ctx, apiURL)
	if err != nil {
		return nil, err
	}

	comments := make([]types.Comment, 0, len(items))
	for _, item := range items {
		var data struct {
			User struct {
				Login string `json:"login"`
			} `json:"user"`
			CreatedAt      string `json:"created_at"`
			Body           string `json:"body"`
			IssueURL       string `json:"issue_url"`
			PullRequestURL string `json:"pull_request_url"`
		}
		if err := json.Unmarshal(item, &data); err != nil {
			continue
		}

		comment := types.Comment{
			Author:   data.User.Login,
			Body:     data.Body,
			IssueURL: data.IssueURL,
			PRURL:    data.PullRequestURL,
		}
		if t, err := time.Parse(time.RFC3339, data.CreatedAt); err == nil {
			comment.CreatedAt = t
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

// prJSON is the wire shape shared by the PR list and detail endpoints.
type prJSON struct {
	User struct {
		Login string `json:"login"`
	} `json:"user"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
	MergedAt  string `json:"merged_at"`
	ClosedAt  string `json:"closed_at"`
	Number    int    `json:"number"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

func (d *prJSON) toPR() (types.PullRequest, error) {
	pr := types.PullRequest{
		Number:    d.Number,
		Author:    d.User.Login,
		State:     d.State,
		Additions: d.Additions,
		Deletions: d.Deletions,
	}

	createdAt, err := time.Parse(time.RFC3339, d.CreatedAt)
	if err != nil {
		return pr, fmt.Errorf("PR %d has invalid created_at %q: %w", d.Number, d.CreatedAt, err)
	}
	pr.CreatedAt = createdAt

	if d.MergedAt != "" {
		if t, err := time.Parse(time.RFC3339, d.MergedAt); err == nil {
			pr.MergedAt = &t
		}
	}
	if d.ClosedAt != "" {
		if t, err := time.Parse(time.RFC3339, d.ClosedAt); err == nil {
			pr.ClosedAt = &t
		}
	}
	return pr, nil
}

func parsePR(item json.RawMessage) (types.PullRequest, error) {
	var data prJSON
	if err := json.Unmarshal(item, &data); err != nil {
		return types.PullRequest{}, err
	}
	return data.toPR()
}
