package todolist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dkhoa/linear-todo/internal/model"
	"github.com/dkhoa/linear-todo/internal/theme"
)

// TodoListItem wraps a model.TodoItem so it can be used in a bubbles/list.
type TodoListItem struct {
	Item model.TodoItem
}

// FilterValue returns the string used for fuzzy filtering.
func (i TodoListItem) FilterValue() string { return i.Item.Summary }

// Title returns the item summary for the list.
func (i TodoListItem) Title() string { return i.Item.Summary }

// Description returns a short summary line for the list.
func (i TodoListItem) Description() string {
	return fmt.Sprintf("%s | %s", i.Item.Status, relativeTime(i.Item.UpdatedAt))
}

// ItemDelegate implements list.ItemDelegate for rendering todo items.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single todo item line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	wrapper, ok := item.(TodoListItem)
	if !ok {
		return
	}

	it := wrapper.Item
	isSelected := index == m.Index()

	var prefix string
	if it.IsCompleted() {
		prefix = "✓"
	} else {
		prefix = "○"
	}

	statusBadge := theme.StatusStyle(it.Status).Render(it.Status)

	dueDateStr := ""
	if it.Due != nil {
		dueDateStr = theme.DueDateStyle.Render(" " + it.Due.Format("Jan 02"))
	}

	overdueStr := ""
	if it.IsOverdue() {
		overdueStr = theme.OverdueStyle.Render(" OVERDUE")
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(it.UpdatedAt))

	line := fmt.Sprintf(
		"%s %s %s%s%s  %s",
		prefix, statusBadge, it.Summary, dueDateStr, overdueStr, timeStr,
	)

	// Completed items are dimmed and struck through.
	if it.IsCompleted() {
		line = theme.DimmedStyle.Render(line)
	}

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		weeks := int(d.Hours() / 24 / 7)
		if weeks == 1 {
			return "1w ago"
		}
		return fmt.Sprintf("%dw ago", weeks)
	}
}
