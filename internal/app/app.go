package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dkhoa/linear-todo/internal/auth"
	"github.com/dkhoa/linear-todo/internal/credential"
	"github.com/dkhoa/linear-todo/internal/keys"
	"github.com/dkhoa/linear-todo/internal/linear"
	"github.com/dkhoa/linear-todo/internal/model"
	"github.com/dkhoa/linear-todo/internal/store"
	appsync "github.com/dkhoa/linear-todo/internal/sync"
	"github.com/dkhoa/linear-todo/internal/todo"
	"github.com/dkhoa/linear-todo/internal/ui"
	helpview "github.com/dkhoa/linear-todo/internal/ui/help"
	setupview "github.com/dkhoa/linear-todo/internal/ui/setup"
	"github.com/dkhoa/linear-todo/internal/ui/todolist"
)

// unreadCountMsg carries the number of unread notifications to the UI.
type unreadCountMsg struct {
	count int
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewSetup
	ViewHelp
)

// Model is the root Bubble Tea model that manages view routing, team
// tabs, and the background sync coordinator.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	cfg          model.AppConfig
	configPath   string
	store        *store.SQLiteStore
	keys         *keys.KeyMap

	lists      []todolist.Model
	activeTeam int
	adapters   map[string]*todo.Adapter

	helpView  helpview.Model
	setupView setupview.Model

	coordinator *appsync.Coordinator

	ready            bool
	unreadCount      int
	authErrorMessage string
	statusMsg        string
}

// New creates the root application model. When no teams are configured
// yet, or the stored credential is missing, the app starts in the
// setup wizard.
func New(cfg model.AppConfig, configPath string, s *store.SQLiteStore) Model {
	k := keys.DefaultKeyMap()

	m := Model{
		currentView: ViewList,
		cfg:         cfg,
		configPath:  configPath,
		store:       s,
		keys:        k,
		helpView:    helpview.New(k, 80, 24),
		setupView:   setupview.New(configPath, 80, 24),
	}

	if len(cfg.Teams) == 0 {
		m.currentView = ViewSetup
		return m
	}

	if err := m.buildRuntime(); err != nil {
		m.statusMsg = err.Error()
		m.currentView = ViewSetup
	}
	return m
}

// buildRuntime wires the token source, API client, team adapters, and
// coordinator from the current configuration.
func (m *Model) buildRuntime() error {
	tokens, err := buildTokenSource(m.cfg)
	if err != nil {
		return err
	}

	client := linear.NewClient(linear.DefaultEndpoint, tokens)

	m.adapters = make(map[string]*todo.Adapter, len(m.cfg.Teams))
	adapters := make([]*todo.Adapter, 0, len(m.cfg.Teams))
	m.lists = make([]todolist.Model, 0, len(m.cfg.Teams))
	for _, team := range m.cfg.Teams {
		a := todo.NewAdapter(client, team)
		m.adapters[team.ID] = a
		adapters = append(adapters, a)
		m.lists = append(m.lists, todolist.New(m.store, m.keys, team.ID, team.Name, 80, 24))
	}
	m.activeTeam = 0

	if m.coordinator != nil {
		m.coordinator.Stop()
	}
	m.coordinator = appsync.New(m.store, adapters, m.cfg.PollIntervalSec)
	return nil
}

// buildTokenSource resolves the configured auth method into a token
// source backed by the system keyring.
func buildTokenSource(cfg model.AppConfig) (linear.TokenSource, error) {
	switch cfg.AuthMethod {
	case model.AuthMethodOAuth:
		ts := auth.KeyringTokenStore{Key: credential.KeyOAuthToken}
		return auth.NewOAuthSource(cfg.OAuth.ClientID, ts)
	default:
		apiKey, err := credential.Get(credential.KeyAPIToken)
		if err != nil || apiKey == "" {
			return nil, fmt.Errorf("no stored API key; run setup")
		}
		return auth.APIKey(apiKey), nil
	}
}

// Init returns the initial commands: either the setup wizard or the
// team lists plus the background coordinator.
func (m Model) Init() tea.Cmd {
	if m.currentView == ViewSetup {
		return m.setupView.Init()
	}

	cmds := make([]tea.Cmd, 0, len(m.lists)+1)
	for i := range m.lists {
		cmds = append(cmds, m.lists[i].Init())
	}
	cmds = append(cmds, m.coordinator.Start())
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		for i := range m.lists {
			m.lists[i].SetSize(contentWidth, contentHeight)
		}
		m.helpView.SetSize(contentWidth, contentHeight)
		m.setupView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case appsync.RefreshResultMsg:
		if msg.AuthError != nil {
			m.authErrorMessage = msg.AuthError.Message
		} else if msg.Error == nil {
			m.authErrorMessage = ""
		}

		// After a refresh, reload every team list and update the
		// unread notification count.
		cmds := []tea.Cmd{m.coordinator.WaitForNextResult(), m.fetchUnreadCount()}
		for i := range m.lists {
			cmds = append(cmds, m.lists[i].LoadItems())
		}
		return m, tea.Batch(cmds...)

	case unreadCountMsg:
		m.unreadCount = msg.count
		return m, nil

	case todolist.NewItemMsg:
		return m, m.createItem(msg.TeamID, msg.Title)

	case itemMutatedMsg:
		if msg.err != nil {
			m.statusMsg = msg.err.Error()
			return m, nil
		}
		m.statusMsg = ""
		// The mutation went through; refresh so the cache catches up.
		return m, m.coordinator.Refresh()

	case setupview.DoneMsg:
		m.cfg = msg.Config
		if err := m.buildRuntime(); err != nil {
			m.statusMsg = err.Error()
			return m, nil
		}
		m.currentView = ViewList
		cmds := make([]tea.Cmd, 0, len(m.lists)+1)
		for i := range m.lists {
			m.lists[i].SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
			cmds = append(cmds, m.lists[i].Init())
		}
		cmds = append(cmds, m.coordinator.Start())
		return m, tea.Batch(cmds...)

	case setupview.CancelledMsg:
		if len(m.cfg.Teams) == 0 {
			// Nothing configured yet; there is nothing to go back to.
			return m, tea.Quit
		}
		m.currentView = ViewList
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m.updateActiveView(msg)
}

// handleKeyMsg processes global keys, then delegates to the active view.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		if m.coordinator != nil {
			m.coordinator.Stop()
		}
		return m, tea.Quit
	}

	// While the active list is capturing a new item title, or the setup
	// wizard is open, all other keys belong to that view.
	if m.currentView == ViewSetup || (m.currentView == ViewList && m.activeList().InputMode()) {
		return m.updateActiveView(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.currentView == ViewList {
			if m.coordinator != nil {
				m.coordinator.Stop()
			}
			return m, tea.Quit
		}

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil
		}
		if m.currentView == ViewList {
			// Dismiss the new-item badge.
			return m, m.clearUnread()
		}

	case key.Matches(msg, m.keys.Configure):
		if m.currentView == ViewList {
			m.previousView = m.currentView
			m.currentView = ViewSetup
			m.setupView = setupview.New(m.configPath, m.layout.ContentWidth(), m.layout.ContentHeight())
			return m, m.setupView.Init()
		}

	case key.Matches(msg, m.keys.Refresh):
		if m.currentView == ViewList {
			return m, m.coordinator.Refresh()
		}

	case key.Matches(msg, m.keys.NextTeam):
		if m.currentView == ViewList && len(m.lists) > 0 {
			m.activeTeam = (m.activeTeam + 1) % len(m.lists)
			return m, nil
		}

	case key.Matches(msg, m.keys.PrevTeam):
		if m.currentView == ViewList && len(m.lists) > 0 {
			m.activeTeam--
			if m.activeTeam < 0 {
				m.activeTeam = len(m.lists) - 1
			}
			return m, nil
		}

	case key.Matches(msg, m.keys.Toggle):
		if m.currentView == ViewList {
			if item, ok := m.activeList().Selected(); ok {
				return m, m.toggleItem(m.activeList().TeamID(), item)
			}
		}

	case key.Matches(msg, m.keys.Delete):
		if m.currentView == ViewList {
			if item, ok := m.activeList().Selected(); ok {
				return m, m.deleteItem(m.activeList().TeamID(), item.UID)
			}
		}

	case key.Matches(msg, m.keys.Open):
		if m.currentView == ViewList {
			if item, ok := m.activeList().Selected(); ok && item.URL != "" {
				return m, openURL(item.URL)
			}
		}
	}

	return m.updateActiveView(msg)
}

// activeList returns the todo list for the active team tab.
func (m *Model) activeList() *todolist.Model {
	return &m.lists[m.activeTeam]
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		if len(m.lists) > 0 {
			m.lists[m.activeTeam], cmd = m.lists[m.activeTeam].Update(msg)
		}
	case ViewSetup:
		m.setupView, cmd = m.setupView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerTitle := "Linear Todo"
	if m.unreadCount > 0 {
		headerTitle = fmt.Sprintf("Linear Todo [%d new]", m.unreadCount)
	}
	header := m.layout.RenderHeader(headerTitle, m.syncStatus())
	tabs := m.layout.RenderTabs(m.teamNames(), m.activeTeam)
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, tabs, content, statusBar)
}

// teamNames returns the tab labels for the configured teams.
func (m Model) teamNames() []string {
	names := make([]string, len(m.cfg.Teams))
	for i, t := range m.cfg.Teams {
		names[i] = t.Name
		if names[i] == "" {
			names[i] = t.ID
		}
	}
	return names
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		if len(m.lists) == 0 {
			return ""
		}
		return m.lists[m.activeTeam].View()
	case ViewSetup:
		return m.setupView.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the coordinator state.
func (m Model) syncStatus() string {
	if m.coordinator == nil {
		return "not configured"
	}

	status := m.coordinator.Status()
	switch status.State {
	case appsync.SyncRunning:
		return "syncing"
	case appsync.SyncError:
		return "⚠ sync failed"
	case appsync.SyncReauthRequired:
		return "⚠ auth expired"
	default:
		if status.LastSync.IsZero() {
			return "idle"
		}
		return "synced " + status.LastSync.Format("15:04")
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	// Show errors prominently when present.
	if m.authErrorMessage != "" && m.currentView == ViewList {
		return m.authErrorMessage
	}
	if m.statusMsg != "" && m.currentView == ViewList {
		return m.statusMsg
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewSetup:
		return "enter next | esc cancel"
	default:
		return "q quit | ? help | n new | enter/x toggle | d delete | o open | tab team | r refresh"
	}
}
