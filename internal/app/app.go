package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campus-client/internal/model"
	"github.com/nhle/campus-client/internal/push"
	"github.com/nhle/campus-client/internal/session"
	"github.com/nhle/campus-client/internal/store"
	"github.com/nhle/campus-client/internal/theme"
	"github.com/nhle/campus-client/internal/ui/login"
	"github.com/nhle/campus-client/internal/ui/notifications"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewNotifications
)

// loginResultMsg carries the outcome of a login attempt.
type loginResultMsg struct {
	err error
}

// sessionChangedMsg carries a session state transition.
type sessionChangedMsg struct {
	state session.State
}

// restoredMsg reports that a persisted session was restored.
type restoredMsg struct{}

// toastExpiredMsg clears the toast identified by id.
type toastExpiredMsg struct {
	id string
}

// Model is the root Bubble Tea model wiring the session store, the
// notification channel, and the history store into the UI.
type Model struct {
	currentView ViewState
	keys        *KeyMap

	sess    *session.Store
	channel *push.Channel
	history store.Store

	loginView login.Model
	listView  notifications.Model

	connState  push.ConnState
	toast      *model.Notification
	subscribed bool
	width      int
	height     int
	ready      bool
}

// New creates the root application model.
func New(sess *session.Store, channel *push.Channel, history store.Store) Model {
	return Model{
		currentView: ViewLogin,
		keys:        DefaultKeyMap(),
		sess:        sess,
		channel:     channel,
		history:     history,
		loginView:   login.New(80, 24),
		listView:    notifications.New(80, 24),
	}
}

// Init starts the session subscription and attempts an optimistic
// restore: a persisted credential opens the notification view
// immediately, while background verification may force it back to
// the login form.
func (m Model) Init() tea.Cmd {
	sess := m.sess
	restore := func() tea.Msg {
		if _, ok := sess.Restore(context.Background()); ok {
			return restoredMsg{}
		}
		return nil
	}

	return tea.Batch(m.loginView.Init(), m.waitForSession(), restore)
}

// Update routes messages to the active view and handles the gateway's
// asynchronous feeds.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.loginView.SetSize(msg.Width, msg.Height)
		m.listView.SetSize(msg.Width, msg.Height-2)
		return m, nil

	case tea.KeyMsg:
		if mdl, cmd, handled := m.handleKey(msg); handled {
			return mdl, cmd
		}

	case login.SubmitMsg:
		return m, m.doLogin(msg.Email, msg.Password)

	case loginResultMsg:
		if msg.err != nil {
			m.loginView.SetError(loginErrorMessage(msg.err))
			return m, nil
		}
		return m.showNotifications()

	case restoredMsg:
		return m.showNotifications()

	case sessionChangedMsg:
		if msg.state == session.Anonymous && m.currentView != ViewLogin {
			// Forced logout: tear down the channel, back to the form.
			m.channel.Close()
			m.currentView = ViewLogin
			m.loginView = login.New(m.width, m.height)
			m.loginView.SetError("Your session has expired. Please sign in again.")
			return m, tea.Batch(m.loginView.Init(), m.waitForSession())
		}
		return m, m.waitForSession()

	case push.EventMsg:
		m.listView.SetEvents(m.channel.Queue().Snapshot())
		return m, m.channel.WaitForEvent()

	case push.ToastMsg:
		n := msg.Event
		m.toast = &n
		return m, tea.Batch(
			m.channel.WaitForToast(),
			tea.Tick(msg.Duration, func(time.Time) tea.Msg {
				return toastExpiredMsg{id: n.ID}
			}),
		)

	case toastExpiredMsg:
		if m.toast != nil && m.toast.ID == msg.id {
			m.toast = nil
		}
		return m, nil

	case push.ConnStateMsg:
		m.connState = msg.State
		return m, m.channel.WaitForState()

	case notifications.MarkReadMsg:
		m.channel.MarkRead(context.Background(), msg.ID)
		m.listView.SetEvents(m.channel.Queue().Snapshot())
		return m, nil
	}

	return m.updateActiveView(msg)
}

// handleKey processes global keybindings; view-local keys fall through.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.channel.Close()
		return m, tea.Quit, true

	case m.currentView == ViewNotifications && key.Matches(msg, m.keys.Logout):
		m.sess.Logout()
		return m, nil, true

	case m.currentView == ViewNotifications && key.Matches(msg, m.keys.Refresh):
		// Subscriptions survive a reopen; only the transport restarts.
		_ = m.channel.Open()
		return m, nil, true

	case m.currentView == ViewNotifications && key.Matches(msg, m.keys.ReadAll):
		for _, n := range m.channel.Queue().Snapshot() {
			if !n.Read {
				m.channel.MarkRead(context.Background(), n.ID)
			}
		}
		m.listView.SetEvents(m.channel.Queue().Snapshot())
		return m, nil, true
	}

	return m, nil, false
}

func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewNotifications:
		m.listView, cmd = m.listView.Update(msg)
	}
	return m, cmd
}

// doLogin runs the login exchange off the UI thread.
func (m Model) doLogin(email, password string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		_, err := sess.Login(context.Background(), email, password)
		return loginResultMsg{err: err}
	}
}

// showNotifications switches to the notification view, rehydrates the
// queue from history, opens the push connection, and arms the channel
// subscriptions.
func (m Model) showNotifications() (tea.Model, tea.Cmd) {
	m.currentView = ViewNotifications
	m.rehydrateQueue()
	m.listView.SetEvents(m.channel.Queue().Snapshot())

	if err := m.channel.Open(); err != nil {
		return m, nil
	}

	// The channel's feeds outlive reconnects and re-logins; arm the
	// subscriptions once.
	if m.subscribed {
		return m, nil
	}
	m.subscribed = true
	return m, m.subscribeChannel()
}

// rehydrateQueue seeds the live queue from durable history so the
// list is populated before the first frame arrives.
func (m Model) rehydrateQueue() {
	if m.history == nil || m.channel.Queue().Len() > 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stored, err := m.history.GetNotifications(ctx, store.NotificationFilter{
		Limit: push.DefaultCapacity,
	})
	if err != nil {
		return
	}

	// Stored newest first; push oldest first so queue order matches.
	for i := len(stored) - 1; i >= 0; i-- {
		m.channel.Queue().Push(stored[i])
	}
}

func (m Model) subscribeChannel() tea.Cmd {
	return tea.Batch(
		m.channel.WaitForEvent(),
		m.channel.WaitForToast(),
		m.channel.WaitForState(),
	)
}

// waitForSession arms the session state subscription.
func (m Model) waitForSession() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		state, ok := <-sess.Changes()
		if !ok {
			return nil
		}
		return sessionChangedMsg{state: state}
	}
}

// loginErrorMessage maps a login failure to the message shown on the form.
func loginErrorMessage(err error) string {
	var authErr *session.AuthError
	if !errors.As(err, &authErr) {
		return "Sign-in failed. Please try again."
	}

	switch authErr.Kind {
	case session.AuthInvalidCredentials:
		if authErr.Message != "" {
			return authErr.Message
		}
		return "Invalid email or password."
	case session.AuthTimeout:
		return "The server took too long to respond. Please try again."
	default:
		return "Cannot reach the server. Check your connection."
	}
}

// View renders the active view with the status bar and toast overlay.
func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	var body string
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewNotifications:
		body = m.listView.View()
	}

	status := m.statusBar()
	view := lipgloss.JoinVertical(lipgloss.Left, body, status)

	if m.toast != nil {
		toast := theme.ToastStyle.Render(
			theme.CategoryStyle(m.toast.Category).Render(m.toast.Category) +
				" " + m.toast.Title)
		view = lipgloss.JoinVertical(lipgloss.Left, toast, view)
	}

	return view
}

func (m Model) statusBar() string {
	identity := ""
	if cred, ok := m.sess.Current(); ok {
		identity = fmt.Sprintf("%s (%s)", cred.Subject.Name, cred.Subject.Role)
	}

	state, _ := m.channel.State()
	conn := theme.ConnStateStyle(state.String()).Render(state.String())
	unread := fmt.Sprintf("%d unread", m.channel.Queue().Unread())

	left := fmt.Sprintf("%s · %s · %s", identity, conn, unread)
	help := theme.HelpStyle.Render("enter: read · r: reconnect · L: log out · q: quit")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(help) - 4
	if gap < 1 {
		gap = 1
	}

	return theme.StatusBarStyle.Width(m.width).Render(
		left + lipgloss.NewStyle().Width(gap).Render("") + help)
}
