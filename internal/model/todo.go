package model

import "time"

// Todo item status constants. The todo model is three-valued: an item
// needs action, is completed, or has been deleted (moved to the team's
// removed state, after which it no longer appears in either bucket).
const (
	TodoStatusNeedsAction = "needs_action"
	TodoStatusCompleted   = "completed"
	TodoStatusDeleted     = "deleted"
)

// TodoItem is the todo-list projection of a Linear issue.
type TodoItem struct {
	// UID is the Linear issue ID backing this item.
	UID string `json:"uid"`

	// Summary is the item title.
	Summary string `json:"summary"`

	// Status is one of the TodoStatus* constants.
	Status string `json:"status"`

	// Description is the item body, possibly empty.
	Description string `json:"description"`

	// Due is the due date (date precision only), or nil.
	Due *time.Time `json:"due,omitempty"`

	// URL links back to the issue in Linear.
	URL string `json:"url"`

	// UpdatedAt mirrors the backing issue's update timestamp.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCompleted reports whether the item is in the completed status.
func (t TodoItem) IsCompleted() bool {
	return t.Status == TodoStatusCompleted
}

// IsOverdue reports whether the item has a due date in the past and
// still needs action.
func (t TodoItem) IsOverdue() bool {
	return t.Due != nil &&
		t.Due.Before(time.Now()) &&
		t.Status == TodoStatusNeedsAction
}
