package setup

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/dkhoa/linear-todo/internal/auth"
	"github.com/dkhoa/linear-todo/internal/credential"
	"github.com/dkhoa/linear-todo/internal/linear"
	"github.com/dkhoa/linear-todo/internal/model"
	"github.com/dkhoa/linear-todo/internal/theme"
)

// SetupMode represents the current step of the setup wizard.
type SetupMode int

const (
	ModeToken          SetupMode = iota // API key entry
	ModeValidating                      // Testing the key against the API
	ModeValidateResult                  // Show a failed validation
	ModeTeams                           // Team multiselect
	ModeLoadingStates                   // Fetching workflow states for a team
	ModeTodoStates                      // Per-team todo state multiselect
	ModeBucketStates                    // Per-team completed/removed selects
)

// DoneMsg signals the wizard finished and carries the saved configuration.
type DoneMsg struct {
	Config model.AppConfig
}

// CancelledMsg signals the wizard was aborted.
type CancelledMsg struct{}

// validatedMsg carries the result of validating the entered API key.
type validatedMsg struct {
	viewer string
	teams  []model.Team
	err    error
}

// statesLoadedMsg carries the workflow states fetched for one team.
type statesLoadedMsg struct {
	teamID string
	states []model.WorkflowState
	err    error
}

// noneOption marks the "skip this bucket" choice in state selects.
const noneOption = ""

// Model is the Bubble Tea model for the first-run setup wizard. It
// walks through API key entry, team selection, and per-team state
// bucket assignment, then persists the credential and configuration.
type Model struct {
	mode SetupMode

	configPath string

	// Huh forms per step
	tokenForm  *huh.Form
	teamsForm  *huh.Form
	todoForm   *huh.Form
	bucketForm *huh.Form

	// Form field values. Held behind pointers so the huh bindings stay
	// valid across the copies Bubble Tea makes of this model.
	formToken     *string
	selectedTeams *[]string

	// Per-team state assignment
	teams      []model.Team
	teamStates []model.WorkflowState
	teamIdx    int
	configs    []model.TeamConfig

	formTodoStates *[]string
	formCompleted  *string
	formRemoved    *string

	viewerName string
	validError error
	spinner    spinner.Model

	statusMsg string

	width, height int
}

// New creates a setup wizard model. configPath is where the resulting
// configuration is written.
func New(configPath string, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		mode:           ModeToken,
		configPath:     configPath,
		spinner:        sp,
		width:          width,
		height:         height,
		formToken:      new(string),
		selectedTeams:  new([]string),
		formTodoStates: new([]string),
		formCompleted:  new(string),
		formRemoved:    new(string),
	}
	m.tokenForm = m.buildTokenForm()
	return m
}

// Init starts the token entry form.
func (m Model) Init() tea.Cmd {
	return m.tokenForm.Init()
}

// Update handles messages and dispatches based on the current step.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case validatedMsg:
		if msg.err != nil {
			m.validError = msg.err
			m.mode = ModeValidateResult
			return m, nil
		}
		m.viewerName = msg.viewer
		m.teams = msg.teams
		m.mode = ModeTeams
		m.teamsForm = m.buildTeamsForm()
		return m, m.teamsForm.Init()

	case statesLoadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error loading states: %v", msg.err)
			m.mode = ModeTeams
			m.teamsForm = m.buildTeamsForm()
			return m, m.teamsForm.Init()
		}
		m.teamStates = msg.states
		m.formTodoStates = new([]string)
		m.mode = ModeTodoStates
		m.todoForm = m.buildTodoStatesForm()
		return m, m.todoForm.Init()

	case spinner.TickMsg:
		if m.mode == ModeValidating || m.mode == ModeLoadingStates {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m.updateActiveForm(msg)
}

// handleKeyMsg processes key messages based on the current step.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeValidating, ModeLoadingStates:
		if msg.String() == "esc" {
			return m, func() tea.Msg { return CancelledMsg{} }
		}
		return m, nil

	case ModeValidateResult:
		switch msg.String() {
		case "r":
			return m.startValidation()
		case "enter", "esc":
			m.validError = nil
			m.mode = ModeToken
			m.tokenForm = m.buildTokenForm()
			return m, m.tokenForm.Init()
		}
		return m, nil
	}

	return m.updateActiveForm(msg)
}

// updateActiveForm dispatches messages to the form for the current step.
func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeToken:
		return m.updateForm(msg, &m.tokenForm, m.startValidation)
	case ModeTeams:
		return m.updateForm(msg, &m.teamsForm, m.handleTeamsSelected)
	case ModeTodoStates:
		return m.updateForm(msg, &m.todoForm, m.handleTodoStatesChosen)
	case ModeBucketStates:
		return m.updateForm(msg, &m.bucketForm, m.handleBucketStatesChosen)
	}
	return m, nil
}

// updateForm advances a huh form and calls next when it completes.
func (m Model) updateForm(msg tea.Msg, form **huh.Form, next func() (Model, tea.Cmd)) (Model, tea.Cmd) {
	if *form == nil {
		return m, nil
	}

	mdl, cmd := (*form).Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		*form = f
	}

	if (*form).State == huh.StateCompleted {
		return next()
	}
	if (*form).State == huh.StateAborted {
		return m, func() tea.Msg { return CancelledMsg{} }
	}

	return m, cmd
}

// --- Token entry ---

func (m Model) buildTokenForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Linear API Key").
				Description("A personal API key from linear.app/settings/api").
				EchoMode(huh.EchoModePassword).
				Value(m.formToken).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("API key is required")
					}
					return nil
				}),
		),
	).WithWidth(m.formWidth())
}

func (m Model) startValidation() (Model, tea.Cmd) {
	m.mode = ModeValidating
	token := strings.TrimSpace(*m.formToken)

	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			client := linear.NewClient(linear.DefaultEndpoint, auth.APIKey(token))
			ctx := context.Background()

			viewer, err := client.ValidateToken(ctx)
			if err != nil {
				return validatedMsg{err: err}
			}
			teams, err := client.Teams(ctx)
			if err != nil {
				return validatedMsg{err: err}
			}
			return validatedMsg{viewer: viewer.Name, teams: teams}
		},
	)
}

// --- Team selection ---

func (m Model) buildTeamsForm() *huh.Form {
	options := make([]huh.Option[string], 0, len(m.teams))
	for _, t := range m.teams {
		options = append(options, huh.NewOption(teamLabel(t), t.ID))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Teams").
				Description("Select the teams to sync as todo lists").
				Options(options...).
				Value(m.selectedTeams).
				Validate(func(ids []string) error {
					if len(ids) == 0 {
						return fmt.Errorf("select at least one team")
					}
					return nil
				}),
		),
	).WithWidth(m.formWidth())
}

func (m Model) handleTeamsSelected() (Model, tea.Cmd) {
	m.teamIdx = 0
	m.configs = nil
	return m.loadStatesForCurrentTeam()
}

// loadStatesForCurrentTeam fetches workflow states for the team being
// configured, or finishes the wizard when every team is done.
func (m Model) loadStatesForCurrentTeam() (Model, tea.Cmd) {
	if m.teamIdx >= len(*m.selectedTeams) {
		return m.finish()
	}

	m.mode = ModeLoadingStates
	teamID := (*m.selectedTeams)[m.teamIdx]
	token := strings.TrimSpace(*m.formToken)

	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			client := linear.NewClient(linear.DefaultEndpoint, auth.APIKey(token))
			states, err := client.WorkflowStates(context.Background(), teamID)
			return statesLoadedMsg{teamID: teamID, states: states, err: err}
		},
	)
}

// --- Per-team state buckets ---

func (m Model) buildTodoStatesForm() *huh.Form {
	options := make([]huh.Option[string], 0, len(m.teamStates))
	for _, s := range m.teamStates {
		options = append(options, huh.NewOption(s.Name, s.ID))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(fmt.Sprintf("%s: todo states", m.currentTeamName())).
				Description("Issues in these states appear as open todo items").
				Options(options...).
				Value(m.formTodoStates).
				Validate(func(ids []string) error {
					if len(ids) == 0 {
						return fmt.Errorf("select at least one state")
					}
					return nil
				}),
		),
	).WithWidth(m.formWidth())
}

func (m Model) handleTodoStatesChosen() (Model, tea.Cmd) {
	m.formCompleted = new(string)
	m.formRemoved = new(string)
	m.mode = ModeBucketStates
	m.bucketForm = m.buildBucketStatesForm()
	return m, m.bucketForm.Init()
}

// buildBucketStatesForm offers the states not already claimed by the
// todo bucket for the completed and removed roles.
func (m Model) buildBucketStatesForm() *huh.Form {
	chosen := make(map[string]bool, len(*m.formTodoStates))
	for _, id := range *m.formTodoStates {
		chosen[id] = true
	}

	options := []huh.Option[string]{huh.NewOption("(none)", noneOption)}
	for _, s := range m.teamStates {
		if chosen[s.ID] {
			continue
		}
		options = append(options, huh.NewOption(s.Name, s.ID))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("%s: completed state", m.currentTeamName())).
				Description("Completing an item moves its issue here").
				Options(options...).
				Value(m.formCompleted),
			huh.NewSelect[string]().
				Title(fmt.Sprintf("%s: removed state", m.currentTeamName())).
				Description("Deleting an item moves its issue here").
				Options(options...).
				Value(m.formRemoved),
		),
	).WithWidth(m.formWidth())
}

func (m Model) handleBucketStatesChosen() (Model, tea.Cmd) {
	team := m.currentTeam()
	m.configs = append(m.configs, model.TeamConfig{
		ID:   team.ID,
		Name: teamLabel(team),
		States: model.StateMapping{
			TodoStates:     *m.formTodoStates,
			CompletedState: *m.formCompleted,
			RemovedState:   *m.formRemoved,
		},
	})

	m.teamIdx++
	return m.loadStatesForCurrentTeam()
}

// --- Finish ---

// finish persists the API key and configuration, then signals done.
func (m Model) finish() (Model, tea.Cmd) {
	cfg := model.AppConfig{
		AuthMethod:      model.AuthMethodAPIKey,
		Teams:           m.configs,
		PollIntervalSec: model.DefaultPollIntervalSec,
	}

	if err := credential.Set(credential.KeyAPIToken, strings.TrimSpace(*m.formToken)); err != nil {
		m.statusMsg = fmt.Sprintf("Error saving credential: %v", err)
		m.mode = ModeToken
		m.tokenForm = m.buildTokenForm()
		return m, m.tokenForm.Init()
	}

	if err := model.SaveConfig(m.configPath, &cfg); err != nil {
		m.statusMsg = fmt.Sprintf("Error saving config: %v", err)
		m.mode = ModeToken
		m.tokenForm = m.buildTokenForm()
		return m, m.tokenForm.Init()
	}

	return m, func() tea.Msg { return DoneMsg{Config: cfg} }
}

// --- View ---

// View renders the wizard step.
func (m Model) View() string {
	switch m.mode {
	case ModeToken:
		return m.viewForm(m.tokenForm)
	case ModeValidating:
		return m.viewSpinner("Validating API key...")
	case ModeValidateResult:
		return m.viewValidateResult()
	case ModeTeams:
		return m.viewForm(m.teamsForm)
	case ModeLoadingStates:
		return m.viewSpinner(fmt.Sprintf(
			"Loading workflow states for %s...", m.currentTeamName(),
		))
	case ModeTodoStates:
		return m.viewForm(m.todoForm)
	case ModeBucketStates:
		return m.viewForm(m.bucketForm)
	default:
		return ""
	}
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}

	content := f.View()
	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true)
		content += "\n\n" + statusStyle.Render(m.statusMsg)
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m Model) viewSpinner(text string) string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	content := fmt.Sprintf("%s %s\n\nPress esc to cancel.", m.spinner.View(), text)
	return style.Render(content)
}

func (m Model) viewValidateResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	errStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorRed)

	content := errStyle.Render("Validation failed") + "\n\n" +
		m.validError.Error() + "\n\n" +
		lipgloss.NewStyle().Foreground(theme.ColorGray).
			Render("r retry | enter/esc re-enter key")

	return style.Render(content)
}

// --- Helpers ---

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

func (m Model) currentTeam() model.Team {
	id := (*m.selectedTeams)[m.teamIdx]
	for _, t := range m.teams {
		if t.ID == id {
			return t
		}
	}
	return model.Team{ID: id}
}

func (m Model) currentTeamName() string {
	return teamLabel(m.currentTeam())
}

// teamLabel prefers the team's display name and falls back to its ID.
func teamLabel(t model.Team) string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}
