package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cohortly-dev/tracker/pkg/types"
)

// rateBudgetFloor is the remaining-call headroom kept in reserve; at or
// below this the client suspends until the window resets instead of
// burning the last calls.
const rateBudgetFloor = 5

// maxResetWait bounds the suspension in case the API reports a reset time
// far in the future; GitHub windows are one hour.
const maxResetWait = 65 * time.Minute

// budget tracks the API's remaining-call budget from response headers.
// The clock and sleep functions are injectable so tests simulate waits
// instantly.
type budget struct {
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	reset     time.Time
	mu        sync.Mutex
	remaining int
	known     bool
}

func newBudget() *budget {
	return &budget{
		now:   time.Now,
		sleep: sleepContext,
	}
}

// sleepContext sleeps for d or until the context is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// observe records the rate-limit headers from a response.
func (b *budget) observe(h http.Header) {
	remaining, err := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	resetUnix, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining = remaining
	b.reset = time.Unix(resetUnix, 0)
	b.known = true
}

// exhausted reports whether the budget is at or below the reserve floor.
func (b *budget) exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.known && b.remaining <= rateBudgetFloor
}

func (b *budget) resetAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reset
}

// wait suspends until the budget window resets when calls are exhausted.
// The wait is bounded by the published reset window and is canceled by the
// run's context deadline.
func (b *budget) wait(ctx context.Context) error {
	b.mu.Lock()
	if !b.known || b.remaining > rateBudgetFloor {
		b.mu.Unlock()
		return nil
	}
	d := b.reset.Sub(b.now()) + time.Second
	b.mu.Unlock()

	if d <= 0 {
		return nil
	}
	if d > maxResetWait {
		d = maxResetWait
	}

	slog.Info("Rate budget exhausted - suspending until reset", "component", "ratelimit", "wait", d.Round(time.Second))
	if err := b.sleep(ctx, d); err != nil {
		return fmt.Errorf("rate-limit wait canceled: %w", err)
	}

	// Assume the window rolled over; the next response's headers correct us.
	b.mu.Lock()
	b.remaining = rateBudgetFloor + 1
	b.mu.Unlock()
	return nil
}

// RateLimit fetches the current remaining-call budget from the API's
// introspection endpoint.
func (c *Client) RateLimit(ctx context.Context) (types.RateBudget, error) {
	var data struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/rate_limit", &data); err != nil {
		return types.RateBudget{}, fmt.Errorf("failed to fetch rate limit: %w", err)
	}

	core := data.Resources.Core
	return types.RateBudget{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Reset:     time.Unix(core.Reset, 0),
	}, nil
}
