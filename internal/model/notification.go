package model

import "time"

// Notification represents an alert surfaced to the user about an issue
// that newly appeared in a tracked team's todo bucket.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// IssueID links this notification to the originating issue.
	IssueID string `json:"issue_id"`

	// TeamID identifies which team the issue belongs to.
	TeamID string `json:"team_id"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at"`
}
