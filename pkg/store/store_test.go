package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortly-dev/tracker/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Backend("oracle"), "")
	assert.Error(t, err)
}

func TestUpsert_InsertAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, &types.PartialRow{
		Username: "alice",
		Date:     "2026-03-01",
		Values: map[types.Field]any{
			types.FieldCommits:           3,
			types.FieldPRsOpened:         1,
			types.FieldLinesAdded:        120,
			types.FieldAvgMergeTimeHours: 2.5,
		},
	})
	require.NoError(t, err)

	rows, err := s.Query(ctx, "alice", "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "alice", r.Username)
	assert.Equal(t, "2026-03-01", r.Date)
	assert.Equal(t, 3, r.Commits)
	assert.Equal(t, 1, r.PRsOpened)
	assert.Equal(t, 120, r.LinesAdded)
	require.NotNil(t, r.AvgMergeTimeHours)
	assert.Equal(t, 2.5, *r.AvgMergeTimeHours)
	// Absent fields: counters zero, ratios NULL.
	assert.Equal(t, 0, r.PRsMerged)
	assert.Nil(t, r.RejectionRate)
	assert.False(t, r.LastUpdated.IsZero())
}

func TestUpsert_MergeIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Deep write with line stats and a ratio.
	require.NoError(t, s.Upsert(ctx, &types.PartialRow{
		Username: "bob",
		Date:     "2026-03-02",
		Values: map[types.Field]any{
			types.FieldCommits:           2,
			types.FieldLinesAdded:        40,
			types.FieldLinesDeleted:      5,
			types.FieldAvgMergeTimeHours: 4.0,
		},
	}))

	// Later shallow write touches counts only.
	require.NoError(t, s.Upsert(ctx, &types.PartialRow{
		Username: "bob",
		Date:     "2026-03-02",
		Values: map[types.Field]any{
			types.FieldCommits:   5,
			types.FieldPRsOpened: 1,
		},
	}))

	rows, err := s.Query(ctx, "bob", "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, 5, r.Commits, "present field takes the newest value")
	assert.Equal(t, 1, r.PRsOpened)
	assert.Equal(t, 40, r.LinesAdded, "absent field keeps the prior value")
	assert.Equal(t, 5, r.LinesDeleted)
	require.NotNil(t, r.AvgMergeTimeHours)
	assert.Equal(t, 4.0, *r.AvgMergeTimeHours)
}

func TestUpsert_ExplicitNullOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, &types.PartialRow{
		Username: "carol",
		Date:     "2026-03-03",
		Values:   map[types.Field]any{types.FieldRejectionRate: 0.25},
	}))
	// Present-with-nil clears the column: no closed PRs means no data.
	require.NoError(t, s.Upsert(ctx, &types.PartialRow{
		Username: "carol",
		Date:     "2026-03-03",
		Values:   map[types.Field]any{types.FieldRejectionRate: nil},
	}))

	rows, err := s.Query(ctx, "carol", "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].RejectionRate)
}

func TestUpsert_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	row := &types.PartialRow{
		Username: "dave",
		Date:     "2026-03-04",
		Values: map[types.Field]any{
			types.FieldCommits:    7,
			types.FieldLinesAdded: 300,
		},
	}
	require.NoError(t, s.Upsert(ctx, row))
	first, err := s.Query(ctx, "dave", "", "")
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, row))
	second, err := s.Query(ctx, "dave", "", "")
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].Commits, second[0].Commits)
	assert.Equal(t, first[0].LinesAdded, second[0].LinesAdded)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-applying must not create a second row")
}

func TestUpsert_Validation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, &types.PartialRow{Date: "2026-03-01", Values: map[types.Field]any{types.FieldCommits: 1}})
	assert.Error(t, err, "missing username")

	err = s.Upsert(ctx, &types.PartialRow{Username: "x", Date: "2026-03-01"})
	assert.Error(t, err, "no fields")

	err = s.Upsert(ctx, &types.PartialRow{
		Username: "x", Date: "2026-03-01",
		Values: map[types.Field]any{types.Field("bogus"): 1},
	})
	assert.Error(t, err, "unknown field")
}

func TestQuery_DateRangeAndOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, date := range []string{"2026-03-05", "2026-03-01", "2026-03-03"} {
		require.NoError(t, s.Upsert(ctx, &types.PartialRow{
			Username: "erin",
			Date:     date,
			Values:   map[types.Field]any{types.FieldCommits: 1},
		}))
	}

	rows, err := s.Query(ctx, "erin", "2026-03-02", "2026-03-05")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-03-03", rows[0].Date, "rows ordered date ascending")
	assert.Equal(t, "2026-03-05", rows[1].Date)
}

func TestQueryAll_MultipleLearners(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, w := range []struct{ user, date string }{
		{"zoe", "2026-03-01"},
		{"adam", "2026-03-01"},
		{"adam", "2026-03-02"},
	} {
		require.NoError(t, s.Upsert(ctx, &types.PartialRow{
			Username: w.user,
			Date:     w.date,
			Values:   map[types.Field]any{types.FieldCommits: 1},
		}))
	}

	rows, err := s.QueryAll(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// Ordered by date, then username.
	assert.Equal(t, "adam", rows[0].Username)
	assert.Equal(t, "zoe", rows[1].Username)
	assert.Equal(t, "2026-03-02", rows[2].Date)
}

func TestQuery_UnknownLearner(t *testing.T) {
	s := openTestStore(t)

	rows, err := s.Query(context.Background(), "nobody", "", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
