package model

import "time"

// Bucket identifies which configured state bucket an issue was fetched from.
type Bucket string

const (
	// BucketTodo holds issues sitting in any of the team's todo states.
	BucketTodo Bucket = "todo"

	// BucketCompleted holds issues in the team's completed state.
	BucketCompleted Bucket = "completed"
)

// Team is a Linear team the user can track.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// WorkflowState is a single state in a team's issue workflow.
// Every issue is in exactly one workflow state at a time.
type WorkflowState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Issue is the normalized representation of a Linear issue as tracked
// by this application.
type Issue struct {
	// ID is the Linear issue UUID.
	ID string `json:"id"`

	// TeamID is the team the issue was fetched for.
	TeamID string `json:"team_id"`

	// Bucket records which state bucket the issue belonged to when fetched.
	Bucket Bucket `json:"bucket"`

	// Title is the issue title.
	Title string `json:"title"`

	// Description is the issue body in Markdown, possibly empty.
	Description string `json:"description"`

	// StateID and StateName identify the issue's workflow state.
	StateID   string `json:"state_id"`
	StateName string `json:"state_name"`

	// DueDate is the issue due date truncated to a calendar date,
	// or nil when the issue has no due date.
	DueDate *time.Time `json:"due_date,omitempty"`

	// URL is the direct link to the issue in Linear.
	URL string `json:"url"`

	// UpdatedAt is when the issue was last modified in Linear.
	UpdatedAt time.Time `json:"updated_at"`

	// FetchedAt is when this issue was last retrieved.
	FetchedAt time.Time `json:"fetched_at"`
}

// TeamSnapshot holds the issues fetched for a single team in one refresh
// cycle, split by bucket.
type TeamSnapshot struct {
	TeamID    string  `json:"team_id"`
	Todo      []Issue `json:"todo"`
	Completed []Issue `json:"completed"`
}

// Snapshot is the cached result of one full refresh cycle, keyed by team ID.
// It is replaced wholesale on every successful refresh, never merged.
type Snapshot map[string]TeamSnapshot
