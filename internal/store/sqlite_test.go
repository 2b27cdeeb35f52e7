package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkhoa/linear-todo/internal/model"
	"github.com/dkhoa/linear-todo/internal/store"
	"github.com/dkhoa/linear-todo/tests/testutil"
)

func testIssue(id, teamID string, bucket model.Bucket, updatedAt time.Time) model.Issue {
	return model.Issue{
		ID:        id,
		TeamID:    teamID,
		Bucket:    bucket,
		Title:     "Issue " + id,
		StateID:   "s1",
		StateName: "Todo",
		URL:       "https://linear.app/" + id,
		UpdatedAt: updatedAt,
		FetchedAt: time.Now(),
	}
}

func TestReplaceTeamIssues_WholesaleReplace(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	first := []model.Issue{
		testIssue("i1", "team-1", model.BucketTodo, now),
		testIssue("i2", "team-1", model.BucketTodo, now.Add(-time.Hour)),
	}
	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketTodo, first))

	// A later cycle returns a disjoint set; the old rows must be gone,
	// never merged.
	second := []model.Issue{
		testIssue("i3", "team-1", model.BucketTodo, now.Add(time.Hour)),
	}
	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketTodo, second))

	got, err := s.GetTeamIssues(ctx, "team-1", model.BucketTodo)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "i3", got[0].ID)
}

func TestReplaceTeamIssues_EmptyFetchClearsBucket(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()

	issues := []model.Issue{testIssue("i1", "team-1", model.BucketTodo, time.Now())}
	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketTodo, issues))
	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketTodo, nil))

	got, err := s.GetTeamIssues(ctx, "team-1", model.BucketTodo)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReplaceTeamIssues_BucketsAreIndependent(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	todo := []model.Issue{testIssue("i1", "team-1", model.BucketTodo, now)}
	done := []model.Issue{testIssue("i2", "team-1", model.BucketCompleted, now)}
	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketTodo, todo))
	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketCompleted, done))

	// Replacing the todo bucket must not touch the completed bucket.
	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketTodo, nil))

	completed, err := s.GetTeamIssues(ctx, "team-1", model.BucketCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "i2", completed[0].ID)
}

func TestReplaceTeamIssues_TeamsAreIndependent(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketTodo,
		[]model.Issue{testIssue("a1", "team-1", model.BucketTodo, now)}))
	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-2", model.BucketTodo,
		[]model.Issue{testIssue("b1", "team-2", model.BucketTodo, now)}))

	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketTodo, nil))

	other, err := s.GetTeamIssues(ctx, "team-2", model.BucketTodo)
	require.NoError(t, err)
	require.Len(t, other, 1)
}

func TestGetTeamIssues_OrderAndDueDate(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	due := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	older := testIssue("old", "team-1", model.BucketTodo, now.Add(-2*time.Hour))
	newer := testIssue("new", "team-1", model.BucketTodo, now)
	newer.DueDate = &due

	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketTodo,
		[]model.Issue{older, newer}))

	got, err := s.GetTeamIssues(ctx, "team-1", model.BucketTodo)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)

	require.NotNil(t, got[0].DueDate)
	assert.True(t, got[0].DueDate.Equal(due))
	assert.Nil(t, got[1].DueDate)
}

func TestGetSnapshot(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketTodo,
		[]model.Issue{testIssue("i1", "team-1", model.BucketTodo, now)}))
	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketCompleted,
		[]model.Issue{testIssue("i2", "team-1", model.BucketCompleted, now)}))

	snapshot, err := s.GetSnapshot(ctx, []string{"team-1", "team-2"})
	require.NoError(t, err)

	require.Contains(t, snapshot, "team-1")
	assert.Len(t, snapshot["team-1"].Todo, 1)
	assert.Len(t, snapshot["team-1"].Completed, 1)

	// Unknown teams still get an (empty) entry.
	require.Contains(t, snapshot, "team-2")
	assert.Empty(t, snapshot["team-2"].Todo)
}

func TestGetIssueIDs(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketTodo,
		[]model.Issue{testIssue("i1", "team-1", model.BucketTodo, now)}))
	require.NoError(t, s.ReplaceTeamIssues(ctx, "team-1", model.BucketCompleted,
		[]model.Issue{testIssue("i2", "team-1", model.BucketCompleted, now)}))

	ids, err := s.GetIssueIDs(ctx, "team-1")
	require.NoError(t, err)

	assert.True(t, ids["i1"])
	assert.True(t, ids["i2"])
	assert.False(t, ids["i3"])
}

func TestNotifications(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()

	n := model.Notification{
		IssueID:   "i1",
		TeamID:    "team-1",
		Message:   "New Core item: Issue i1",
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateNotification(ctx, n))

	unread, err := s.GetUnreadNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.NotEmpty(t, unread[0].ID)
	assert.Equal(t, "i1", unread[0].IssueID)
	assert.False(t, unread[0].Read)

	require.NoError(t, s.MarkNotificationRead(ctx, unread[0].ID))

	unread, err = s.GetUnreadNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

var _ store.Store = (*store.SQLiteStore)(nil)
