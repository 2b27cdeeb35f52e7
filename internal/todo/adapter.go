package todo

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dkhoa/linear-todo/internal/linear"
	"github.com/dkhoa/linear-todo/internal/model"
)

// CompletedLookbackDays bounds the completed bucket: only issues updated
// within this many days are fetched, keeping done lists from growing
// without bound.
const CompletedLookbackDays = 7

// Adapter maps one team's Linear issues onto the three-state todo model
// and performs todo mutations by moving issues between the configured
// workflow states.
type Adapter struct {
	client   *linear.Client
	teamID   string
	teamName string
	states   model.StateMapping
}

// NewAdapter creates an adapter for a configured team.
func NewAdapter(client *linear.Client, team model.TeamConfig) *Adapter {
	return &Adapter{
		client:   client,
		teamID:   team.ID,
		teamName: team.Name,
		states:   team.States,
	}
}

// TeamID returns the team this adapter serves.
func (a *Adapter) TeamID() string { return a.teamID }

// TeamName returns the team's display name.
func (a *Adapter) TeamName() string { return a.teamName }

// FetchSnapshot fetches the team's todo and completed buckets. A failed
// bucket fetch is logged and leaves that bucket empty for the cycle,
// except for auth failures, which abort the whole refresh.
func (a *Adapter) FetchSnapshot(ctx context.Context) (model.TeamSnapshot, error) {
	snap := model.TeamSnapshot{TeamID: a.teamID}

	if len(a.states.TodoStates) > 0 {
		issues, err := a.client.Issues(ctx, a.teamID, a.states.TodoStates, nil)
		if err != nil {
			if linear.IsAuthError(err) {
				return snap, err
			}
			log.Printf("failed to fetch todo issues for team %s: %v", a.teamID, err)
		} else {
			snap.Todo = normalizeAll(issues, a.teamID, model.BucketTodo)
		}
	}

	if a.states.CompletedState != "" {
		cutoff := time.Now().UTC().AddDate(0, 0, -CompletedLookbackDays)
		issues, err := a.client.Issues(
			ctx, a.teamID, []string{a.states.CompletedState}, &cutoff,
		)
		if err != nil {
			if linear.IsAuthError(err) {
				return snap, err
			}
			log.Printf("failed to fetch completed issues for team %s: %v", a.teamID, err)
		} else {
			snap.Completed = normalizeAll(issues, a.teamID, model.BucketCompleted)
		}
	}

	return snap, nil
}

// Items projects a team snapshot onto todo items: the todo bucket maps
// to needs-action, the completed bucket to completed.
func Items(snap model.TeamSnapshot) []model.TodoItem {
	items := make([]model.TodoItem, 0, len(snap.Todo)+len(snap.Completed))

	for _, issue := range snap.Todo {
		items = append(items, itemFromIssue(issue, model.TodoStatusNeedsAction))
	}
	for _, issue := range snap.Completed {
		items = append(items, itemFromIssue(issue, model.TodoStatusCompleted))
	}

	return items
}

// Create adds a new todo item: a new issue in the team's first todo state.
func (a *Adapter) Create(ctx context.Context, item model.TodoItem) error {
	if len(a.states.TodoStates) == 0 {
		return fmt.Errorf("no todo states configured for team %s", a.teamName)
	}

	_, err := a.client.CreateIssue(ctx, linear.IssueCreate{
		Title:       item.Summary,
		TeamID:      a.teamID,
		StateID:     a.states.TodoStates[0],
		Description: item.Description,
		DueDate:     item.Due,
	})
	if err != nil {
		return fmt.Errorf("creating todo item for team %s: %w", a.teamName, err)
	}
	return nil
}

// Complete moves an item's issue to the team's completed state.
func (a *Adapter) Complete(ctx context.Context, uid string) error {
	if a.states.CompletedState == "" {
		return fmt.Errorf("no completed state configured for team %s", a.teamName)
	}

	_, err := a.client.UpdateIssue(ctx, uid, linear.IssueUpdate{
		StateID: &a.states.CompletedState,
	})
	if err != nil {
		return fmt.Errorf("completing item %s: %w", uid, err)
	}
	return nil
}

// Reopen moves an item's issue back to the team's first todo state.
func (a *Adapter) Reopen(ctx context.Context, uid string) error {
	if len(a.states.TodoStates) == 0 {
		return fmt.Errorf("no todo states configured for team %s", a.teamName)
	}

	_, err := a.client.UpdateIssue(ctx, uid, linear.IssueUpdate{
		StateID: &a.states.TodoStates[0],
	})
	if err != nil {
		return fmt.Errorf("reopening item %s: %w", uid, err)
	}
	return nil
}

// Delete removes items from the todo list by moving their issues to the
// team's removed state.
func (a *Adapter) Delete(ctx context.Context, uids []string) error {
	if a.states.RemovedState == "" {
		return fmt.Errorf("no removed state configured for team %s", a.teamName)
	}

	for _, uid := range uids {
		_, err := a.client.UpdateIssue(ctx, uid, linear.IssueUpdate{
			StateID: &a.states.RemovedState,
		})
		if err != nil {
			return fmt.Errorf("deleting item %s: %w", uid, err)
		}
	}
	return nil
}

// UpdateFields flags which parts of an item an Update call should write.
type UpdateFields struct {
	Description bool
	Due         bool
	Status      bool
}

// Update applies the flagged fields of an item in a single mutation.
// A status change resolves to the matching configured state; other
// statuses are rejected.
func (a *Adapter) Update(ctx context.Context, item model.TodoItem, fields UpdateFields) error {
	var upd linear.IssueUpdate

	if fields.Status {
		switch item.Status {
		case model.TodoStatusCompleted:
			if a.states.CompletedState == "" {
				return fmt.Errorf("no completed state configured for team %s", a.teamName)
			}
			upd.StateID = &a.states.CompletedState
		case model.TodoStatusNeedsAction:
			if len(a.states.TodoStates) == 0 {
				return fmt.Errorf("no todo states configured for team %s", a.teamName)
			}
			upd.StateID = &a.states.TodoStates[0]
		default:
			return fmt.Errorf("unsupported status update %q for item %s", item.Status, item.UID)
		}
	}
	if fields.Description {
		upd.Description = &item.Description
	}
	if fields.Due {
		upd.DueDate = item.Due
	}

	if upd.StateID == nil && upd.Description == nil && upd.DueDate == nil {
		return nil
	}

	if _, err := a.client.UpdateIssue(ctx, item.UID, upd); err != nil {
		return fmt.Errorf("updating item %s: %w", item.UID, err)
	}
	return nil
}

// normalizeAll converts wire issues into model issues for one bucket.
func normalizeAll(issues []linear.Issue, teamID string, bucket model.Bucket) []model.Issue {
	out := make([]model.Issue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Normalize(teamID, bucket))
	}
	return out
}

// itemFromIssue builds the todo projection of a cached issue.
func itemFromIssue(issue model.Issue, status string) model.TodoItem {
	return model.TodoItem{
		UID:         issue.ID,
		Summary:     issue.Title,
		Status:      status,
		Description: issue.Description,
		Due:         issue.DueDate,
		URL:         issue.URL,
		UpdatedAt:   issue.UpdatedAt,
	}
}
