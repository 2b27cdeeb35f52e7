package linear

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticToken is a TokenSource returning a fixed header value.
type staticToken string

func (s staticToken) Token(_ context.Context) (string, error) {
	return string(s), nil
}

// refreshableToken swaps to a new token when refreshed.
type refreshableToken struct {
	current    string
	next       string
	refreshErr error
	refreshed  int
}

func (r *refreshableToken) Token(_ context.Context) (string, error) {
	return r.current, nil
}

func (r *refreshableToken) Refresh(_ context.Context) (string, error) {
	r.refreshed++
	if r.refreshErr != nil {
		return "", r.refreshErr
	}
	r.current = r.next
	return r.current, nil
}

func jsonResponse(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func TestValidateToken_Success(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data": {"viewer": {"id": "u1", "name": "Alex", "email": "alex@example.com"}}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken("lin_api_abc"))
	viewer, err := client.ValidateToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "lin_api_abc", gotAuth)
	assert.Equal(t, "u1", viewer.ID)
	assert.Equal(t, "Alex", viewer.Name)
}

func TestValidateToken_Unauthorized(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken("bad"))
	_, err := client.ValidateToken(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestQuery_GraphQLAuthMessage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(jsonResponse(
		`{"errors": [{"message": "unauthorized: token revoked"}]}`,
	))
	defer server.Close()

	client := NewClient(server.URL, staticToken("revoked"))
	_, err := client.Teams(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "token revoked")
}

func TestQuery_APIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(jsonResponse(
		`{"errors": [{"message": "argument validation failed"}, {"message": "field unknown"}]}`,
	))
	defer server.Close()

	client := NewClient(server.URL, staticToken("ok"))
	_, err := client.Teams(context.Background())
	require.Error(t, err)
	assert.False(t, IsAuthError(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, apiErr.Messages, 2)
}

func TestQuery_CommunicationError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, staticToken("ok"))
	_, err := client.Teams(context.Background())
	require.Error(t, err)
	assert.True(t, IsCommunicationError(err))
}

func TestQuery_RefreshAndRetryOnce(t *testing.T) {
	t.Parallel()

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data": {"teams": {"nodes": [{"id": "t1", "name": "Core", "key": "COR"}]}}}`)
	}))
	defer server.Close()

	tokens := &refreshableToken{current: "Bearer stale", next: "Bearer fresh"}
	client := NewClient(server.URL, tokens)

	teams, err := client.Teams(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, requests)
	assert.Equal(t, 1, tokens.refreshed)
	require.Len(t, teams, 1)
	assert.Equal(t, "Core", teams[0].Name)
}

func TestQuery_RefreshFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &refreshableToken{current: "Bearer stale", refreshErr: fmt.Errorf("grant expired")}
	client := NewClient(server.URL, tokens)

	_, err := client.Teams(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "grant expired")
	assert.Equal(t, 1, tokens.refreshed)
}

func TestQuery_NoRetryWithoutRefresher(t *testing.T) {
	t.Parallel()

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken("bad"))
	_, err := client.Teams(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, requests)
}

func TestIssues_FilterAndPagination(t *testing.T) {
	t.Parallel()

	var requests []graphQLRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		if len(requests) == 1 {
			fmt.Fprint(w, `{"data": {"issues": {
				"nodes": [{"id": "i1", "title": "First", "state": {"id": "s1", "name": "Todo"}, "updatedAt": "2026-08-20T10:00:00.000Z", "url": "https://linear.app/i1"}],
				"pageInfo": {"hasNextPage": true, "endCursor": "cur1"}
			}}}`)
			return
		}
		fmt.Fprint(w, `{"data": {"issues": {
			"nodes": [{"id": "i2", "title": "Second", "dueDate": "2026-09-01", "state": {"id": "s1", "name": "Todo"}, "updatedAt": "2026-08-21T10:00:00.000Z", "url": "https://linear.app/i2"}],
			"pageInfo": {"hasNextPage": false, "endCursor": ""}
		}}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken("ok"))
	since := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	issues, err := client.Issues(context.Background(), "team-1", []string{"s1", "s2"}, &since)
	require.NoError(t, err)

	require.Len(t, issues, 2)
	assert.Equal(t, "i1", issues[0].ID)
	assert.Equal(t, "i2", issues[1].ID)

	require.Len(t, requests, 2)
	filter, ok := requests[0].Variables["filter"].(map[string]any)
	require.True(t, ok)

	team := filter["team"].(map[string]any)["id"].(map[string]any)
	assert.Equal(t, "team-1", team["eq"])

	state := filter["state"].(map[string]any)["id"].(map[string]any)
	assert.ElementsMatch(t, []any{"s1", "s2"}, state["in"])

	updatedAt := filter["updatedAt"].(map[string]any)
	assert.Equal(t, "2026-08-23T12:00:00Z", updatedAt["gte"])

	// The second page carries the cursor; the first must not.
	_, hasCursor := requests[0].Variables["after"]
	assert.False(t, hasCursor)
	assert.Equal(t, "cur1", requests[1].Variables["after"])
}

func TestUpdateIssue_RequiresField(t *testing.T) {
	t.Parallel()

	client := NewClient("http://invalid.localhost", staticToken("ok"))
	_, err := client.UpdateIssue(context.Background(), "i1", IssueUpdate{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one")
}

func TestUpdateIssue_NotAccepted(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(jsonResponse(
		`{"data": {"issueUpdate": {"success": false}}}`,
	))
	defer server.Close()

	client := NewClient(server.URL, staticToken("ok"))
	stateID := "s-done"
	_, err := client.UpdateIssue(context.Background(), "i1", IssueUpdate{StateID: &stateID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not accepted")
}

func TestUpdateIssue_Success(t *testing.T) {
	t.Parallel()

	var req graphQLRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fmt.Fprint(w, `{"data": {"issueUpdate": {"success": true, "issue": {"id": "i1", "title": "First", "state": {"id": "s-done", "name": "Done"}}}}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken("ok"))
	stateID := "s-done"
	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	issue, err := client.UpdateIssue(context.Background(), "i1", IssueUpdate{
		StateID: &stateID,
		DueDate: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "s-done", issue.State.ID)

	assert.Equal(t, "i1", req.Variables["issueId"])
	input := req.Variables["input"].(map[string]any)
	assert.Equal(t, "s-done", input["stateId"])
	assert.Equal(t, "2026-09-15", input["dueDate"])
	_, hasDescription := input["description"]
	assert.False(t, hasDescription)
}

func TestCreateIssue_Success(t *testing.T) {
	t.Parallel()

	var req graphQLRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fmt.Fprint(w, `{"data": {"issueCreate": {"success": true, "issue": {"id": "new-1", "title": "Buy milk", "state": {"id": "s-todo", "name": "Todo"}}}}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, staticToken("ok"))
	issue, err := client.CreateIssue(context.Background(), IssueCreate{
		Title:   "Buy milk",
		TeamID:  "team-1",
		StateID: "s-todo",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-1", issue.ID)

	input := req.Variables["input"].(map[string]any)
	assert.Equal(t, "Buy milk", input["title"])
	assert.Equal(t, "team-1", input["teamId"])
	assert.Equal(t, "s-todo", input["stateId"])
}
