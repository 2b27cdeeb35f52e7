package sync_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkhoa/linear-todo/internal/linear"
	"github.com/dkhoa/linear-todo/internal/model"
	appsync "github.com/dkhoa/linear-todo/internal/sync"
	"github.com/dkhoa/linear-todo/internal/todo"
	"github.com/dkhoa/linear-todo/tests/testutil"
)

type staticToken string

func (s staticToken) Token(_ context.Context) (string, error) {
	return string(s), nil
}

var testTeam = model.TeamConfig{
	ID:   "team-1",
	Name: "Core",
	States: model.StateMapping{
		TodoStates:     []string{"s-todo"},
		CompletedState: "s-done",
	},
}

// issueServer serves issue pages, switching the todo bucket contents
// between cycles via the ids value.
type issueServer struct {
	*httptest.Server
	todoIDs atomic.Value // []string
}

func newIssueServer(t *testing.T) *issueServer {
	t.Helper()

	s := &issueServer{}
	s.todoIDs.Store([]string{})
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		states := req.Variables["filter"].(map[string]any)["state"].(map[string]any)["id"].(map[string]any)["in"].([]any)
		if len(states) == 1 && states[0] == "s-done" {
			fmt.Fprint(w, `{"data": {"issues": {"nodes": [], "pageInfo": {"hasNextPage": false, "endCursor": ""}}}}`)
			return
		}

		nodes := ""
		for i, id := range s.todoIDs.Load().([]string) {
			if i > 0 {
				nodes += ","
			}
			nodes += fmt.Sprintf(
				`{"id": %q, "title": "Issue %s", "state": {"id": "s-todo", "name": "Todo"}, "updatedAt": "2026-08-29T10:00:00.000Z", "url": "https://linear.app/%s"}`,
				id, id, id,
			)
		}
		fmt.Fprintf(w, `{"data": {"issues": {"nodes": [%s], "pageInfo": {"hasNextPage": false, "endCursor": ""}}}}`, nodes)
	}))
	t.Cleanup(s.Server.Close)
	return s
}

func waitResult(t *testing.T, c *appsync.Coordinator, start func() interface{}) appsync.RefreshResultMsg {
	t.Helper()

	msg := start()
	result, ok := msg.(appsync.RefreshResultMsg)
	require.True(t, ok, "expected RefreshResultMsg, got %T", msg)
	return result
}

func TestCoordinator_InitialRefresh(t *testing.T) {
	t.Parallel()

	server := newIssueServer(t)
	server.todoIDs.Store([]string{"i1", "i2"})

	s := testutil.NewTestStore(t)
	client := linear.NewClient(server.URL, staticToken("ok"))
	adapter := todo.NewAdapter(client, testTeam)

	c := appsync.New(s, []*todo.Adapter{adapter}, 3600)
	defer c.Stop()

	cmd := c.Start()
	require.NotNil(t, cmd)

	result := waitResult(t, c, func() interface{} { return cmd() })
	require.NoError(t, result.Error)
	assert.Nil(t, result.AuthError)
	assert.Equal(t, 2, result.NewItemCount)

	snap, ok := result.Snapshot["team-1"]
	require.True(t, ok)
	assert.Len(t, snap.Todo, 2)

	// The cache now holds the fetched snapshot.
	cached, err := s.GetTeamIssues(context.Background(), "team-1", model.BucketTodo)
	require.NoError(t, err)
	assert.Len(t, cached, 2)

	// New open items produced notifications.
	unread, err := s.GetUnreadNotifications(context.Background())
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	status := c.Status()
	assert.Equal(t, appsync.SyncIdle, status.State)
	assert.False(t, status.LastSync.IsZero())
}

func TestCoordinator_RefreshReplacesSnapshot(t *testing.T) {
	t.Parallel()

	server := newIssueServer(t)
	server.todoIDs.Store([]string{"i1"})

	s := testutil.NewTestStore(t)
	client := linear.NewClient(server.URL, staticToken("ok"))
	adapter := todo.NewAdapter(client, testTeam)

	c := appsync.New(s, []*todo.Adapter{adapter}, 3600)
	defer c.Stop()

	cmd := c.Start()
	first := waitResult(t, c, func() interface{} { return cmd() })
	require.NoError(t, first.Error)
	assert.Equal(t, 1, first.NewItemCount)

	// The next cycle returns a different set; the cache must be
	// replaced wholesale, and only the unseen issue is counted as new.
	server.todoIDs.Store([]string{"i2"})
	c.Refresh()

	next := c.WaitForNextResult()
	second := waitResult(t, c, func() interface{} { return next() })
	require.NoError(t, second.Error)
	assert.Equal(t, 1, second.NewItemCount)

	cached, err := s.GetTeamIssues(context.Background(), "team-1", model.BucketTodo)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "i2", cached[0].ID)
}

func TestCoordinator_AuthErrorReported(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	s := testutil.NewTestStore(t)
	client := linear.NewClient(server.URL, staticToken("revoked"))
	adapter := todo.NewAdapter(client, testTeam)

	c := appsync.New(s, []*todo.Adapter{adapter}, 3600)
	defer c.Stop()

	cmd := c.Start()
	result := waitResult(t, c, func() interface{} { return cmd() })

	require.Error(t, result.Error)
	require.NotNil(t, result.AuthError)
	assert.Contains(t, result.AuthError.Message, "authentication expired")
	assert.Equal(t, appsync.SyncReauthRequired, c.Status().State)
}

func TestCoordinator_StartIsIdempotent(t *testing.T) {
	t.Parallel()

	server := newIssueServer(t)

	s := testutil.NewTestStore(t)
	client := linear.NewClient(server.URL, staticToken("ok"))
	adapter := todo.NewAdapter(client, testTeam)

	c := appsync.New(s, []*todo.Adapter{adapter}, 3600)
	defer c.Stop()

	require.NotNil(t, c.Start())
	assert.Nil(t, c.Start())
}

func TestCoordinator_StatusTransitions(t *testing.T) {
	t.Parallel()

	server := newIssueServer(t)

	s := testutil.NewTestStore(t)
	client := linear.NewClient(server.URL, staticToken("ok"))
	adapter := todo.NewAdapter(client, testTeam)

	c := appsync.New(s, []*todo.Adapter{adapter}, 3600)
	assert.Equal(t, appsync.SyncIdle, c.Status().State)
	assert.True(t, c.Status().LastSync.IsZero())

	cmd := c.Start()
	_ = waitResult(t, c, func() interface{} { return cmd() })
	c.Stop()

	require.Eventually(t, func() bool {
		return c.Status().State == appsync.SyncIdle
	}, time.Second, 10*time.Millisecond)
}
