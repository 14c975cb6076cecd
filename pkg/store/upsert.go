package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cohortly-dev/tracker/pkg/types"
)

// allFields is the set of mergeable columns, used to validate incoming
// partial rows.
var allFields = map[types.Field]bool{
	types.FieldCommits:             true,
	types.FieldPRsOpened:           true,
	types.FieldPRsMerged:           true,
	types.FieldIssuesOpened:        true,
	types.FieldIssueComments:       true,
	types.FieldReviewCommentsGiven: true,
	types.FieldLinesAdded:          true,
	types.FieldLinesDeleted:        true,
	types.FieldAvgMergeTimeHours:   true,
	types.FieldRejectionRate:       true,
}

// Upsert applies a field-level merge for one (username, date) key. It
// either creates the row (provided fields set, absent counters zero,
// absent ratios NULL) or updates only the fields present in the partial
// row, and always refreshes last_updated. The merge runs as a single
// INSERT ... ON CONFLICT statement, so each key's update is atomic and
// safe against a slow deep fetch overlapping the next shallow poll.
//
// Re-applying an identical partial row only moves last_updated; no counter
// or ratio changes, which is what makes backfill re-runs harmless.
func (s *Store) Upsert(ctx context.Context, partial *types.PartialRow) error {
	if partial.Username == "" || partial.Date == "" {
		return fmt.Errorf("upsert requires username and date, got %q/%q", partial.Username, partial.Date)
	}
	if len(partial.Values) == 0 {
		return fmt.Errorf("upsert for %s/%s has no fields", partial.Username, partial.Date)
	}

	// Deterministic column order keeps generated SQL stable.
	fields := make([]string, 0, len(partial.Values))
	for f := range partial.Values {
		if !allFields[f] {
			return fmt.Errorf("upsert for %s/%s: unknown field %q", partial.Username, partial.Date, f)
		}
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	now := time.Now().UTC().Format(time.RFC3339)

	cols := append([]string{"username", "date"}, fields...)
	cols = append(cols, "last_updated")

	args := make([]any, 0, len(cols))
	args = append(args, partial.Username, partial.Date)
	for _, f := range fields {
		args = append(args, partial.Values[types.Field(f)])
	}
	args = append(args, now)

	query := s.upsertQuery(cols, fields)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", partial.Username, partial.Date, err)
	}

	slog.Debug("Upserted metric row", "component", "store", "username", partial.Username, "date", partial.Date, "fields", len(fields))
	return nil
}

// upsertQuery builds the backend-specific merge statement. Only the listed
// fields appear in the UPDATE clause, which is what gives the store its
// merge-isolation property.
func (s *Store) upsertQuery(cols, fields []string) string {
	ph := s.placeholders(1, len(cols))

	switch s.backend {
	case MySQLBackend:
		var sets []string
		for _, f := range fields {
			sets = append(sets, fmt.Sprintf("%s = new.%s", f, f))
		}
		sets = append(sets, "last_updated = new.last_updated")
		return fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) AS new ON DUPLICATE KEY UPDATE %s",
			tableName, columnList(cols), strings.Join(ph, ", "), strings.Join(sets, ", "))

	default: // SQLite and PostgreSQL share ON CONFLICT ... EXCLUDED
		var sets []string
		for _, f := range fields {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", f, f))
		}
		sets = append(sets, "last_updated = excluded.last_updated")
		return fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (username, date) DO UPDATE SET %s",
			tableName, columnList(cols), strings.Join(ph, ", "), strings.Join(sets, ", "))
	}
}
