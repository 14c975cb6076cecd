package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cohortly-dev/tracker/pkg/types"
)

const selectColumns = "username, date, commits, prs_opened, prs_merged, " +
	"issues_opened, issue_comments, review_comments_given, lines_added, " +
	"lines_deleted, avg_merge_time_hours, rejection_rate, last_updated"

// Query returns one learner's rows with from <= date <= to, ordered by
// date ascending. Dates are YYYY-MM-DD strings; an empty bound is open.
func (s *Store) Query(ctx context.Context, username, from, to string) ([]types.RawMetricRow, error) {
	where := []string{"username = " + s.placeholders(1, 1)[0]}
	args := []any{username}
	where, args = s.appendDateBounds(where, args, from, to)

	return s.selectRows(ctx, where, args)
}

// QueryAll returns every learner's rows with from <= date <= to, ordered
// by date ascending then username ascending.
func (s *Store) QueryAll(ctx context.Context, from, to string) ([]types.RawMetricRow, error) {
	var where []string
	var args []any
	where, args = s.appendDateBounds(where, args, from, to)

	return s.selectRows(ctx, where, args)
}

func (s *Store) appendDateBounds(where []string, args []any, from, to string) ([]string, []any) {
	if from != "" {
		where = append(where, fmt.Sprintf("date >= %s", s.placeholders(len(args)+1, 1)[0]))
		args = append(args, from)
	}
	if to != "" {
		where = append(where, fmt.Sprintf("date <= %s", s.placeholders(len(args)+1, 1)[0]))
		args = append(args, to)
	}
	return where, args
}

func (s *Store) selectRows(ctx context.Context, where []string, args []any) ([]types.RawMetricRow, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", selectColumns, tableName)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, username ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.RawMetricRow
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

func scanRow(rows *sql.Rows) (types.RawMetricRow, error) {
	var r types.RawMetricRow
	var mergeTime, rejection sql.NullFloat64
	var lastUpdated string

	err := rows.Scan(&r.Username, &r.Date, &r.Commits, &r.PRsOpened,
		&r.PRsMerged, &r.IssuesOpened, &r.IssueComments,
		&r.ReviewCommentsGiven, &r.LinesAdded, &r.LinesDeleted,
		&mergeTime, &rejection, &lastUpdated)
	if err != nil {
		return r, fmt.Errorf("failed to scan row: %w", err)
	}

	if mergeTime.Valid {
		r.AvgMergeTimeHours = &mergeTime.Float64
	}
	if rejection.Valid {
		r.RejectionRate = &rejection.Float64
	}
	if t, err := time.Parse(time.RFC3339, lastUpdated); err == nil {
		r.LastUpdated = t
	}
	return r, nil
}
