package notifications

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/campus-client/internal/model"
	"github.com/nhle/campus-client/internal/theme"
)

// MarkReadMsg asks the owner to mark a notification as read.
type MarkReadMsg struct {
	ID string
}

// item adapts a notification for the bubbles list.
type item struct {
	n model.Notification
}

func (i item) Title() string {
	title := i.n.Title
	if title == "" {
		title = "Notification"
	}
	badge := theme.CategoryStyle(i.n.Category).Render(i.n.Category)
	if i.n.RewardPoints > 0 {
		badge += lipgloss.NewStyle().Foreground(theme.ColorYellow).
			Render(fmt.Sprintf(" +%dp", i.n.RewardPoints))
	}
	if i.n.Read {
		return theme.ReadStyle.Render(title) + " " + badge
	}
	return theme.UnreadStyle.Render("● "+title) + " " + badge
}

func (i item) Description() string {
	return i.n.Message
}

func (i item) FilterValue() string {
	return i.n.Title + " " + i.n.Message
}

// Model is the notification list view.
type Model struct {
	list   list.Model
	width  int
	height int
}

// New creates a new notification list model.
func New(width, height int) Model {
	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return Model{
		list:   l,
		width:  width,
		height: height,
	}
}

// SetEvents replaces the list contents with the given events
// (expected newest first), preserving the cursor position.
func (m *Model) SetEvents(events []model.Notification) {
	items := make([]list.Item, len(events))
	for i, n := range events {
		items[i] = item{n: n}
	}

	selected := m.list.Index()
	m.list.SetItems(items)
	if selected < len(items) {
		m.list.Select(selected)
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}

// Selected returns the notification under the cursor, if any.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(item)
	if !ok {
		return model.Notification{}, false
	}
	return it.n, true
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the notification list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if n, ok := m.Selected(); ok && !n.Read {
			return m, func() tea.Msg { return MarkReadMsg{ID: n.ID} }
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the notification list.
func (m Model) View() string {
	return m.list.View()
}
