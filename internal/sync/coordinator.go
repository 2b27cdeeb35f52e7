package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/dkhoa/linear-todo/internal/linear"
	"github.com/dkhoa/linear-todo/internal/model"
	"github.com/dkhoa/linear-todo/internal/store"
	"github.com/dkhoa/linear-todo/internal/todo"
)

// SyncState represents the current state of a refresh cycle.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
	SyncReauthRequired
)

// SyncStatus holds the coordinator's current sync state.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// RefreshResultMsg is a tea.Msg sent when a refresh cycle completes.
type RefreshResultMsg struct {
	Snapshot     model.Snapshot
	Error        error
	AuthError    *AuthErrorMsg
	NewItemCount int
}

// AuthErrorMsg is a tea.Msg sent when a refresh fails with an
// authentication error.
type AuthErrorMsg struct {
	Message string
}

// fetchTimeout is the maximum time allowed for a full refresh cycle.
const fetchTimeout = 60 * time.Second

// Coordinator orchestrates background refreshes of all configured
// teams. Teams are always fetched sequentially in one goroutine; a
// cycle produces a complete snapshot that wholesale-replaces the
// cached state of every team it covers.
type Coordinator struct {
	store     store.Store
	adapters  []*todo.Adapter
	interval  time.Duration
	status    SyncStatus
	resultCh  chan RefreshResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a Coordinator over the given store and team adapters.
// intervalSec of zero or less falls back to the default poll interval.
func New(s store.Store, adapters []*todo.Adapter, intervalSec int) *Coordinator {
	if intervalSec <= 0 {
		intervalSec = model.DefaultPollIntervalSec
	}
	return &Coordinator{
		store:     s,
		adapters:  adapters,
		interval:  time.Duration(intervalSec) * time.Second,
		resultCh:  make(chan RefreshResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start returns a tea.Cmd that starts the polling goroutine and
// subscribes to results. The returned command waits on the result
// channel and returns RefreshResultMsg messages to the Bubble Tea
// runtime.
func (c *Coordinator) Start() tea.Cmd {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.mu.Unlock()

	go c.pollLoop()

	return c.waitForResult()
}

// Stop halts the polling goroutine.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	close(c.stopCh)
	c.running = false
}

// Refresh triggers an immediate refresh cycle.
func (c *Coordinator) Refresh() tea.Cmd {
	select {
	case c.triggerCh <- struct{}{}:
	default:
		// A refresh is already pending; skip to avoid blocking.
	}
	return nil
}

// Status returns the coordinator's current sync status.
func (c *Coordinator) Status() SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// pollLoop runs the refresh cycle on a ticker until stopped.
func (c *Coordinator) pollLoop() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Do an initial refresh immediately.
	c.refreshOnce()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.refreshOnce()
		case <-c.triggerCh:
			c.refreshOnce()
		}
	}
}

// refreshOnce fetches every team sequentially, replaces the cached
// snapshot, and sends a RefreshResultMsg on the result channel.
func (c *Coordinator) refreshOnce() {
	c.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	snapshot := make(model.Snapshot, len(c.adapters))
	newItemCount := 0

	for _, adapter := range c.adapters {
		snap, err := adapter.FetchSnapshot(ctx)
		if err != nil {
			if linear.IsAuthError(err) {
				c.setStatus(SyncReauthRequired, err)
				c.sendResult(RefreshResultMsg{
					Error: err,
					AuthError: &AuthErrorMsg{
						Message: "Linear authentication expired. Press 'c' to reconfigure.",
					},
				})
				return
			}

			c.setStatus(SyncError, err)
			c.sendResult(RefreshResultMsg{Error: err})
			return
		}

		added, storeErr := c.replaceAndNotify(ctx, adapter, snap)
		if storeErr != nil {
			c.setStatus(SyncError, storeErr)
			c.sendResult(RefreshResultMsg{Error: storeErr})
			return
		}

		newItemCount += added
		snapshot[adapter.TeamID()] = snap
	}

	c.setStatus(SyncIdle, nil)
	c.sendResult(RefreshResultMsg{
		Snapshot:     snapshot,
		NewItemCount: newItemCount,
	})
}

// replaceAndNotify wholesale-replaces a team's cached buckets and
// creates notifications for issues that were not cached before.
func (c *Coordinator) replaceAndNotify(ctx context.Context, adapter *todo.Adapter, snap model.TeamSnapshot) (int, error) {
	existingIDs, err := c.store.GetIssueIDs(ctx, snap.TeamID)
	if err != nil {
		return 0, err
	}

	if err := c.store.ReplaceTeamIssues(ctx, snap.TeamID, model.BucketTodo, snap.Todo); err != nil {
		return 0, err
	}
	if err := c.store.ReplaceTeamIssues(ctx, snap.TeamID, model.BucketCompleted, snap.Completed); err != nil {
		return 0, err
	}

	// Notify only for new open items. Issues entering the completed
	// bucket for the first time are not new work.
	added := 0
	for _, issue := range snap.Todo {
		if existingIDs[issue.ID] {
			continue
		}
		added++
		notification := model.Notification{
			ID:        uuid.NewString(),
			IssueID:   issue.ID,
			TeamID:    snap.TeamID,
			Message:   fmt.Sprintf("New %s item: %s", adapter.TeamName(), issue.Title),
			CreatedAt: time.Now(),
		}
		_ = c.store.CreateNotification(ctx, notification)
	}

	return added, nil
}

// setStatus updates the coordinator's sync status.
func (c *Coordinator) setStatus(state SyncState, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.State = state
	c.status.Error = err
	if state == SyncIdle && err == nil {
		c.status.LastSync = time.Now()
	}
}

// sendResult sends a RefreshResultMsg on the result channel without
// blocking.
func (c *Coordinator) sendResult(msg RefreshResultMsg) {
	select {
	case c.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller.
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (c *Coordinator) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-c.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next refresh
// result. Call this after processing a RefreshResultMsg to continue
// listening.
func (c *Coordinator) WaitForNextResult() tea.Cmd {
	return c.waitForResult()
}
