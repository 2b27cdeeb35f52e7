package linear

import (
	"encoding/json"
	"time"

	"github.com/dkhoa/linear-todo/internal/model"
)

// graphQLRequest is the JSON envelope posted to the GraphQL endpoint.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphQLResponse is the JSON envelope of every GraphQL response.
// Data is deferred so each operation can unmarshal its own payload shape.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// graphQLError is a single entry of the response "errors" array.
type graphQLError struct {
	Message string `json:"message"`
}

// Viewer is the authenticated user, returned by the viewer query.
type Viewer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// State is an issue workflow state as returned by the API.
type State struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Issue is a Linear issue as returned by the API. Timestamps and due
// dates stay strings on the wire; Normalize parses them.
type Issue struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	State       State  `json:"state"`
	UpdatedAt   string `json:"updatedAt"`
	URL         string `json:"url"`
}

// PageInfo carries cursor pagination metadata for issue queries.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// Payload shapes for unmarshaling each operation's data object.

type viewerData struct {
	Viewer Viewer `json:"viewer"`
}

type teamsData struct {
	Teams struct {
		Nodes []model.Team `json:"nodes"`
	} `json:"teams"`
}

type teamStatesData struct {
	Team struct {
		States struct {
			Nodes []model.WorkflowState `json:"nodes"`
		} `json:"states"`
	} `json:"team"`
}

type issuesData struct {
	Issues struct {
		Nodes    []Issue  `json:"nodes"`
		PageInfo PageInfo `json:"pageInfo"`
	} `json:"issues"`
}

// issueMutationResult is the shared payload of issueCreate and issueUpdate.
type issueMutationResult struct {
	Success bool  `json:"success"`
	Issue   Issue `json:"issue"`
}

type issueUpdateData struct {
	IssueUpdate issueMutationResult `json:"issueUpdate"`
}

type issueCreateData struct {
	IssueCreate issueMutationResult `json:"issueCreate"`
}

// Normalize converts a wire issue into the application's issue model,
// parsing timestamps and truncating the due date to a calendar date.
func (i Issue) Normalize(teamID string, bucket model.Bucket) model.Issue {
	return model.Issue{
		ID:          i.ID,
		TeamID:      teamID,
		Bucket:      bucket,
		Title:       i.Title,
		Description: i.Description,
		StateID:     i.State.ID,
		StateName:   i.State.Name,
		DueDate:     ParseDueDate(i.DueDate),
		URL:         i.URL,
		UpdatedAt:   parseTimestamp(i.UpdatedAt),
		FetchedAt:   time.Now(),
	}
}

// ParseDueDate parses Linear's dueDate value into a date-precision time.
// Linear returns either a bare date (TimelessDate) or a full ISO 8601
// datetime; only the date portion is kept. Returns nil when the value is
// empty or unparseable.
func ParseDueDate(s string) *time.Time {
	if s == "" {
		return nil
	}

	layouts := []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02T15:04:05.000Z07:00",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// FormatDueDate formats a due date the way Linear's TimelessDate scalar
// expects it (YYYY-MM-DD). Returns "" for nil.
func FormatDueDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// parseTimestamp parses an ISO 8601 timestamp, returning the zero time
// when the value is empty or malformed.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z07:00",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
