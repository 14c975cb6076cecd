package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Status logs the store's row count and the remaining API budget.
func (p *Pipeline) Status(ctx context.Context) error {
	rows, err := p.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("store count failed: %w", err)
	}

	budget, err := p.client.RateLimit(ctx)
	if err != nil {
		return fmt.Errorf("rate limit lookup failed: %w", err)
	}

	slog.Info("Tracker status", "component", "pipeline",
		"stored_rows", rows,
		"api_remaining", budget.Remaining,
		"api_limit", budget.Limit,
		"api_reset", budget.Reset.UTC().Format(time.RFC3339))
	return nil
}
