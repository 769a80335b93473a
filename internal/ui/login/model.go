package login

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campus-client/internal/theme"
)

// SubmitMsg is emitted when the user completes the login form.
type SubmitMsg struct {
	Email    string
	Password string
}

// CancelMsg is emitted when the user aborts the login form.
type CancelMsg struct{}

// Model is the login form view.
type Model struct {
	form     *huh.Form
	email    string
	password string
	errMsg   string
	busy     bool
	width    int
	height   int
}

// New creates a new login form model.
func New(width, height int) Model {
	m := Model{width: width, height: height}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@school.example").
				Value(&m.email),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.password),
		),
	).WithWidth(min(m.width-4, 60))
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// SetError shows a form-level error message and re-enables the form,
// keeping the entered email.
func (m *Model) SetError(message string) {
	m.errMsg = message
	m.busy = false
	m.password = ""
	m.form = m.buildForm()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Update handles messages for the login form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.busy = true
		email, password := m.email, m.password
		return m, func() tea.Msg {
			return SubmitMsg{Email: email, Password: password}
		}
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the login form.
func (m Model) View() string {
	title := theme.HeaderStyle.Render("Campus — Sign in")

	parts := []string{title, ""}
	if m.errMsg != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.errMsg), "")
	}
	if m.busy {
		parts = append(parts, theme.HelpStyle.Render("Signing in…"))
	} else {
		parts = append(parts, m.form.View())
	}

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
