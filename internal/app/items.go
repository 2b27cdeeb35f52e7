package app

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dkhoa/linear-todo/internal/model"
)

// itemMutatedMsg reports the outcome of a todo item mutation.
type itemMutatedMsg struct {
	err error
}

// mutationTimeout bounds a single item mutation round-trip.
const mutationTimeout = 15 * time.Second

// createItem returns a command that adds a new todo item to a team.
func (m Model) createItem(teamID, title string) tea.Cmd {
	adapter, ok := m.adapters[teamID]
	if !ok {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()
		err := adapter.Create(ctx, model.TodoItem{Summary: title})
		return itemMutatedMsg{err: err}
	}
}

// toggleItem completes a needs-action item or reopens a completed one.
func (m Model) toggleItem(teamID string, item model.TodoItem) tea.Cmd {
	adapter, ok := m.adapters[teamID]
	if !ok {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()

		var err error
		if item.IsCompleted() {
			err = adapter.Reopen(ctx, item.UID)
		} else {
			err = adapter.Complete(ctx, item.UID)
		}
		return itemMutatedMsg{err: err}
	}
}

// deleteItem removes an item from a team's todo list.
func (m Model) deleteItem(teamID, uid string) tea.Cmd {
	adapter, ok := m.adapters[teamID]
	if !ok {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()
		err := adapter.Delete(ctx, []string{uid})
		return itemMutatedMsg{err: err}
	}
}

// fetchUnreadCount returns a tea.Cmd that queries the store for the
// number of unread notifications.
func (m Model) fetchUnreadCount() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		notifications, err := s.GetUnreadNotifications(context.Background())
		if err != nil {
			return unreadCountMsg{count: 0}
		}
		return unreadCountMsg{count: len(notifications)}
	}
}

// clearUnread marks every unread notification as read.
func (m Model) clearUnread() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx := context.Background()
		notifications, err := s.GetUnreadNotifications(ctx)
		if err != nil {
			return unreadCountMsg{count: 0}
		}
		for _, n := range notifications {
			_ = s.MarkNotificationRead(ctx, n.ID)
		}
		return unreadCountMsg{count: 0}
	}
}

// openURL opens an issue URL in the default browser.
func openURL(url string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
		default:
			cmd = exec.Command("xdg-open", url)
		}
		if err := cmd.Start(); err != nil {
			return itemMutatedMsg{err: fmt.Errorf("opening %s: %w", url, err)}
		}
		return nil
	}
}
