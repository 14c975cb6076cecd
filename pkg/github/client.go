// Package github fetches learner contribution activity from the GitHub
// REST API, handling pagination, rate budgets, and retry with backoff.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry-go"
)

// Client constants.
const (
	apiBase      = "https://api.github.com"
	perPageLimit = 100 // GitHub API per_page maximum

	defaultHTTPTimeout = 30 * time.Second
	defaultCacheTTL    = 30 * time.Minute

	// Retry parameters for exponential backoff with jitter.
	maxRetryAttempts  = 8
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 2 * time.Minute
)

// ErrAuth marks authentication failures. Auth failures are fatal for the
// run: no amount of retrying fixes a bad token.
var ErrAuth = errors.New("github authentication failed")

// Client handles all GitHub API interactions for a run.
type Client struct {
	httpClient *http.Client
	budget     *budget
	cache      *repoCache
	baseURL    string
	token      string
	appID      string
	privateKey []byte
	isAppAuth  bool
}

// Config holds configuration for creating a new client.
type Config struct {
	Token       string // personal access token
	AppID       string // GitHub App ID (app auth)
	AppKeyPath  string // path to the App private key PEM (app auth)
	BaseURL     string // API base override, empty means api.github.com
	HTTPTimeout time.Duration
	CacheTTL    time.Duration
	UseAppAuth  bool
}

// New creates a GitHub API client using a personal access token or GitHub
// App authentication.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	var c *Client
	var err error
	if cfg.UseAppAuth {
		c, err = newAppAuthClient(ctx, cfg)
	} else {
		c, err = newTokenClient(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	c.baseURL = apiBase
	if cfg.BaseURL != "" {
		c.baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return c, nil
}

// drainAndCloseBody drains and closes a response body to keep connections
// reusable.
func drainAndCloseBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		slog.Warn("Failed to drain response body", "error", err)
	}
	if err := body.Close(); err != nil {
		slog.Warn("Failed to close response body", "error", err)
	}
}

// doRequest makes a GET request to the GitHub API with rate-budget
// suspension and retry with backoff. The caller owns the response body.
func (c *Client) doRequest(ctx context.Context, apiURL string) (*http.Response, error) {
	slog.Debug("HTTP request", "component", "http", "url", apiURL)

	var resp *http.Response
	err := retryWithBackoff(ctx, "GET "+apiURL, func() error {
		// Suspend until the budget window resets when calls are exhausted.
		if err := c.budget.wait(ctx); err != nil {
			return retry.Unrecoverable(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
		}
		if c.isAppAuth {
			req.Header.Set("Authorization", "Bearer "+c.token)
		} else {
			req.Header.Set("Authorization", "token "+c.token)
		}
		req.Header.Set("Accept", "application/vnd.github.v3+json")

		localResp, err := c.httpClient.Do(req) //nolint:bodyclose // closed via drainAndCloseBody or by the caller
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		c.budget.observe(localResp.Header)

		switch {
		case localResp.StatusCode == http.StatusUnauthorized:
			drainAndCloseBody(localResp.Body)
			return retry.Unrecoverable(fmt.Errorf("%w: status 401", ErrAuth))

		case localResp.StatusCode == http.StatusForbidden && c.budget.exhausted():
			// Primary rate limit: the next wait() suspends until reset.
			drainAndCloseBody(localResp.Body)
			slog.Warn("Rate limited - suspending until reset", "component", "http", "url", apiURL, "reset", c.budget.resetAt())
			return fmt.Errorf("http 403: rate limited")

		case localResp.StatusCode == http.StatusTooManyRequests:
			drainAndCloseBody(localResp.Body)
			slog.Warn("Secondary rate limit - will retry with backoff", "component", "http", "url", apiURL)
			return fmt.Errorf("http 429: rate limited")

		case localResp.StatusCode >= http.StatusInternalServerError:
			drainAndCloseBody(localResp.Body)
			slog.Warn("Server error - will retry with backoff", "component", "http", "url", apiURL, "status", localResp.StatusCode)
			return fmt.Errorf("http %d: server error", localResp.StatusCode)
		}

		resp = localResp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// getJSON fetches a single JSON object.
func (c *Client) getJSON(ctx context.Context, apiURL string, v any) error {
	resp, err := c.doRequest(ctx, apiURL)
	if err != nil {
		return err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, apiURL)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", apiURL, err)
	}
	return nil
}

// listAll drains a paginated list endpoint, returning every item across
// all pages. A page that fails to download or decode fails the whole
// listing; partial pages are never returned as results.
func (c *Client) listAll(ctx context.Context, apiURL string) ([]json.RawMessage, error) {
	var all []json.RawMessage
	page := 1

	for {
		pageURL := fmt.Sprintf("%s%spage=%d&per_page=%d", apiURL, querySep(apiURL), page, perPageLimit)

		items, err := func() ([]json.RawMessage, error) {
			resp, err := c.doRequest(ctx, pageURL)
			if err != nil {
				return nil, err
			}
			defer drainAndCloseBody(resp.Body)

			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
			}
			var items []json.RawMessage
			if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
				return nil, fmt.Errorf("failed to decode page %d of %s: %w", page, apiURL, err)
			}
			return items, nil
		}()
		if err != nil {
			return nil, err
		}

		all = append(all, items...)
		if len(items) < perPageLimit {
			return all, nil
		}
		page++
	}
}

func querySep(apiURL string) string {
	if strings.Contains(apiURL, "?") {
		return "&"
	}
	return "?"
}

// retryWithBackoff executes a function with exponential backoff and jitter.
func retryWithBackoff(ctx context.Context, operation string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(maxRetryAttempts),
		retry.Delay(initialRetryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(initialRetryDelay/4),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("Retry attempt", "component", "retry", "operation", operation, "attempt", n+1, "max_attempts", maxRetryAttempts, "error", err)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if err == nil || errors.Is(err, ErrAuth) {
				return false
			}
			errStr := err.Error()
			return strings.Contains(errStr, "rate limited") ||
				strings.Contains(errStr, "server error") ||
				strings.Contains(errStr, "connection refused") ||
				strings.Contains(errStr, "timeout") ||
				strings.Contains(errStr, "EOF")
		}),
	)
}
