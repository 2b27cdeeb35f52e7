package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dkhoa/linear-todo/internal/model"
)

// DefaultEndpoint is the production Linear GraphQL endpoint.
const DefaultEndpoint = "https://api.linear.app/graphql"

// requestTimeout bounds a single GraphQL request.
const requestTimeout = 10 * time.Second

// Issue list queries page in chunks of pageSize up to maxIssues total.
const (
	pageSize  = 50
	maxIssues = 1000
)

// TokenSource supplies the Authorization header value for each request.
// Implementations return the complete header value, so an OAuth source
// includes the "Bearer " prefix while an API key is passed bare.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// RefreshableTokenSource is a TokenSource that can force a token refresh.
// When a request fails with an auth error and the client's source
// implements this interface, the client refreshes and retries once.
type RefreshableTokenSource interface {
	TokenSource

	// Refresh obtains a fresh token, persisting it as a side effect,
	// and returns the new Authorization header value.
	Refresh(ctx context.Context) (string, error)
}

// Client is a thin client for the Linear GraphQL API. It handles
// authentication, error classification, and a single refresh-and-retry
// on auth failure when the token source supports refreshing.
type Client struct {
	endpoint   string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a Linear API client. Pass DefaultEndpoint outside
// of tests.
func NewClient(endpoint string, tokens TokenSource) *Client {
	return &Client{
		endpoint: endpoint,
		tokens:   tokens,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// ValidateToken verifies the credential by querying the authenticated
// viewer. Returns the viewer on success.
func (c *Client) ValidateToken(ctx context.Context) (*Viewer, error) {
	const query = `query { viewer { id name email } }`

	var data viewerData
	if err := c.query(ctx, query, nil, &data); err != nil {
		return nil, fmt.Errorf("validating token: %w", err)
	}
	return &data.Viewer, nil
}

// Teams returns all teams visible to the authenticated user.
func (c *Client) Teams(ctx context.Context) ([]model.Team, error) {
	const query = `query { teams { nodes { id name key } } }`

	var data teamsData
	if err := c.query(ctx, query, nil, &data); err != nil {
		return nil, fmt.Errorf("fetching teams: %w", err)
	}
	return data.Teams.Nodes, nil
}

// WorkflowStates returns the workflow states of a single team.
func (c *Client) WorkflowStates(ctx context.Context, teamID string) ([]model.WorkflowState, error) {
	const query = `query GetTeamStates($teamId: String!) {
		team(id: $teamId) {
			states {
				nodes { id name type }
			}
		}
	}`

	var data teamStatesData
	err := c.query(ctx, query, map[string]any{"teamId": teamID}, &data)
	if err != nil {
		return nil, fmt.Errorf("fetching workflow states for team %s: %w", teamID, err)
	}
	return data.Team.States.Nodes, nil
}

// issuesQuery pages through issues matching a filter.
const issuesQuery = `query GetIssues($filter: IssueFilter, $after: String) {
	issues(filter: $filter, after: $after, first: 50) {
		nodes {
			id
			title
			description
			dueDate
			state { id name }
			updatedAt
			url
		}
		pageInfo {
			hasNextPage
			endCursor
		}
	}
}`

// Issues returns the issues of a team that sit in any of the given
// workflow states, optionally restricted to issues updated at or after
// updatedSince. Results are paged through transparently.
func (c *Client) Issues(
	ctx context.Context,
	teamID string,
	stateIDs []string,
	updatedSince *time.Time,
) ([]Issue, error) {
	filter := map[string]any{
		"team":  map[string]any{"id": map[string]any{"eq": teamID}},
		"state": map[string]any{"id": map[string]any{"in": stateIDs}},
	}
	if updatedSince != nil {
		filter["updatedAt"] = map[string]any{
			"gte": updatedSince.UTC().Format(time.RFC3339),
		}
	}

	var all []Issue
	var cursor string

	for {
		variables := map[string]any{"filter": filter}
		if cursor != "" {
			variables["after"] = cursor
		}

		var data issuesData
		if err := c.query(ctx, issuesQuery, variables, &data); err != nil {
			return nil, fmt.Errorf("fetching issues for team %s: %w", teamID, err)
		}

		all = append(all, data.Issues.Nodes...)

		if !data.Issues.PageInfo.HasNextPage || len(all) >= maxIssues {
			return all, nil
		}
		cursor = data.Issues.PageInfo.EndCursor
	}
}

// IssueUpdate describes a partial issue update. Nil fields are left
// untouched; at least one field must be set.
type IssueUpdate struct {
	StateID     *string
	Description *string
	DueDate     *time.Time
}

// UpdateIssue applies a partial update to an issue and returns the
// updated issue.
func (c *Client) UpdateIssue(ctx context.Context, issueID string, upd IssueUpdate) (*Issue, error) {
	input := map[string]any{}
	if upd.StateID != nil {
		input["stateId"] = *upd.StateID
	}
	if upd.Description != nil {
		input["description"] = *upd.Description
	}
	if upd.DueDate != nil {
		input["dueDate"] = FormatDueDate(upd.DueDate)
	}
	if len(input) == 0 {
		return nil, fmt.Errorf("updating issue %s: at least one of state, description, or due date must be set", issueID)
	}

	const mutation = `mutation UpdateIssue($issueId: String!, $input: IssueUpdateInput!) {
		issueUpdate(id: $issueId, input: $input) {
			success
			issue {
				id
				title
				description
				dueDate
				state { id name }
				updatedAt
				url
			}
		}
	}`

	var data issueUpdateData
	err := c.query(ctx, mutation, map[string]any{
		"issueId": issueID,
		"input":   input,
	}, &data)
	if err != nil {
		return nil, fmt.Errorf("updating issue %s: %w", issueID, err)
	}
	if !data.IssueUpdate.Success {
		return nil, fmt.Errorf("updating issue %s: update was not accepted", issueID)
	}

	return &data.IssueUpdate.Issue, nil
}

// IssueCreate describes a new issue. Title, TeamID, and StateID are
// required; the rest is optional.
type IssueCreate struct {
	Title       string
	TeamID      string
	StateID     string
	Description string
	DueDate     *time.Time
}

// CreateIssue creates an issue and returns it.
func (c *Client) CreateIssue(ctx context.Context, in IssueCreate) (*Issue, error) {
	input := map[string]any{
		"title":   in.Title,
		"teamId":  in.TeamID,
		"stateId": in.StateID,
	}
	if in.Description != "" {
		input["description"] = in.Description
	}
	if in.DueDate != nil {
		input["dueDate"] = FormatDueDate(in.DueDate)
	}

	const mutation = `mutation CreateIssue($input: IssueCreateInput!) {
		issueCreate(input: $input) {
			success
			issue {
				id
				title
				description
				dueDate
				state { id name }
				updatedAt
				url
			}
		}
	}`

	var data issueCreateData
	err := c.query(ctx, mutation, map[string]any{"input": input}, &data)
	if err != nil {
		return nil, fmt.Errorf("creating issue: %w", err)
	}
	if !data.IssueCreate.Success {
		return nil, fmt.Errorf("creating issue: create was not accepted")
	}

	return &data.IssueCreate.Issue, nil
}

// query executes a GraphQL request. On an auth failure it refreshes the
// token and retries exactly once, provided the token source supports
// refreshing.
func (c *Client) query(ctx context.Context, query string, variables map[string]any, result any) error {
	body, err := json.Marshal(graphQLRequest{
		Query:     query,
		Variables: variables,
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return &AuthError{Message: fmt.Sprintf("obtaining token: %v", err)}
	}

	err = c.do(ctx, token, body, result)
	if err == nil || !IsAuthError(err) {
		return err
	}

	refresher, ok := c.tokens.(RefreshableTokenSource)
	if !ok {
		return err
	}

	token, refreshErr := refresher.Refresh(ctx)
	if refreshErr != nil {
		return &AuthError{Message: fmt.Sprintf("refreshing token: %v", refreshErr)}
	}

	return c.do(ctx, token, body, result)
}

// do performs a single HTTP round trip and classifies the outcome into
// auth, communication, or API errors.
func (c *Client) do(ctx context.Context, token string, body []byte, result any) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.endpoint, bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &CommunicationError{Err: err}
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return &CommunicationError{Err: fmt.Errorf("reading response: %w", readErr)}
	}

	if resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden {
		return &AuthError{Message: "invalid API token"}
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return &CommunicationError{
			Err: fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err),
		}
	}

	if len(envelope.Errors) > 0 {
		messages := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			messages[i] = e.Message
		}
		if containsAuthFailure(messages) {
			return &AuthError{Message: strings.Join(messages, ", ")}
		}
		return &APIError{Messages: messages}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &CommunicationError{
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return &CommunicationError{Err: fmt.Errorf("decoding data: %w", err)}
	}

	return nil
}

// containsAuthFailure reports whether any GraphQL error message looks
// like an authorization failure.
func containsAuthFailure(messages []string) bool {
	for _, msg := range messages {
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "unauthorized") ||
			strings.Contains(msg, "401") ||
			strings.Contains(msg, "403") {
			return true
		}
	}
	return false
}
