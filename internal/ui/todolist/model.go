package todolist

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dkhoa/linear-todo/internal/keys"
	"github.com/dkhoa/linear-todo/internal/model"
	"github.com/dkhoa/linear-todo/internal/store"
	"github.com/dkhoa/linear-todo/internal/theme"
	"github.com/dkhoa/linear-todo/internal/todo"
)

// ItemsLoadedMsg is sent when the active team's items have been loaded
// from the store.
type ItemsLoadedMsg struct {
	TeamID string
	Items  []model.TodoItem
}

// NewItemMsg is sent when the user submits a new todo item title.
type NewItemMsg struct {
	TeamID string
	Title  string
}

// Model is the todo list view for a single team.
type Model struct {
	list      list.Model
	store     store.Store
	keys      *keys.KeyMap
	teamID    string
	teamName  string
	inputMode bool
	input     textinput.Model
	width     int
	height    int
}

// New creates a todo list model for the given team.
func New(s store.Store, k *keys.KeyMap, teamID, teamName string, width, height int) Model {
	delegate := ItemDelegate{}
	l := list.New([]list.Item{}, delegate, width, height-2)
	l.Title = teamName
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	ti := textinput.New()
	ti.Placeholder = "new todo item..."
	ti.Prompt = "+ "
	ti.Width = width - 4

	return Model{
		list:     l,
		store:    s,
		keys:     k,
		teamID:   teamID,
		teamName: teamName,
		input:    ti,
		width:    width,
		height:   height,
	}
}

// TeamID returns the team this view shows.
func (m Model) TeamID() string { return m.teamID }

// Init returns a command that loads the initial set of items.
func (m Model) Init() tea.Cmd {
	return m.LoadItems()
}

// Update handles messages for the todo list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ItemsLoadedMsg:
		if msg.TeamID != m.teamID {
			return m, nil
		}
		items := make([]list.Item, len(msg.Items))
		for i, it := range msg.Items {
			items[i] = TodoListItem{Item: it}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		if m.inputMode {
			return m.handleInputKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	// Delegate to list model for other messages
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// InputMode reports whether the view is capturing text for a new item.
func (m Model) InputMode() bool { return m.inputMode }

// handleInputKeys processes key input while entering a new item title.
func (m Model) handleInputKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.inputMode = false
		title := m.input.Value()
		m.input.Reset()
		if title == "" {
			return m, nil
		}
		teamID := m.teamID
		return m, func() tea.Msg {
			return NewItemMsg{TeamID: teamID, Title: title}
		}

	case "esc":
		m.inputMode = false
		m.input.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.New) {
		m.inputMode = true
		m.input.Reset()
		return m, m.input.Focus()
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// Selected returns the currently focused item, if any.
func (m Model) Selected() (model.TodoItem, bool) {
	item, ok := m.list.SelectedItem().(TodoListItem)
	if !ok {
		return model.TodoItem{}, false
	}
	return item.Item, true
}

// View renders the todo list view.
func (m Model) View() string {
	if m.inputMode {
		inputBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.input.View())
		return lipgloss.JoinVertical(lipgloss.Left, inputBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when no items are available.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	return style.Render(
		"Nothing to do.\n\n" +
			"Press 'n' to add an item or 'r' to refresh.",
	)
}

// LoadItems returns a tea.Cmd that reads the team's cached buckets from
// the store and projects them onto todo items.
func (m Model) LoadItems() tea.Cmd {
	teamID := m.teamID
	s := m.store
	return func() tea.Msg {
		ctx := context.Background()

		snap := model.TeamSnapshot{TeamID: teamID}
		open, err := s.GetTeamIssues(ctx, teamID, model.BucketTodo)
		if err != nil {
			return ItemsLoadedMsg{TeamID: teamID}
		}
		snap.Todo = open

		done, err := s.GetTeamIssues(ctx, teamID, model.BucketCompleted)
		if err != nil {
			return ItemsLoadedMsg{TeamID: teamID}
		}
		snap.Completed = done

		return ItemsLoadedMsg{TeamID: teamID, Items: todo.Items(snap)}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.input.Width = width - 4
}
