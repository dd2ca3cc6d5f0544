// ABOUTME: Terminal dashboard using the bubbletea framework
// ABOUTME: Shows one user's subscriptions and drives calendar syncs interactively
package tui

import (
	"database/sql"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
	"github.com/harperreed/subcal/sync"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
)

// Model is the main bubbletea model
type Model struct {
	engine *sync.Engine
	db     *sql.DB
	userID string

	viewMode    ViewMode
	subs        []models.Subscription
	selectedRow int

	connected bool
	syncState *db.SyncState
	busy      bool
	messages  []string

	width  int
	height int
	err    error
	now    func() time.Time
}

// NewModel creates a dashboard for userID and loads its data.
func NewModel(engine *sync.Engine, userID string) Model {
	m := Model{
		engine:   engine,
		db:       engine.DB(),
		userID:   userID,
		viewMode: ViewList,
		width:    80,
		height:   24,
		now:      time.Now,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case SyncCompleteMsg:
		m.handleSyncComplete(msg)
		return m, nil
	case CleanupCompleteMsg:
		m.handleCleanupComplete(msg)
		return m, nil
	case EventCreatedMsg:
		m.handleEventCreated(msg)
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewList:
		return m.renderListView()
	case ViewDetail:
		return m.renderDetailView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	switch m.viewMode {
	case ViewList:
		return m.handleListKeys(msg)
	case ViewDetail:
		return m.handleDetailKeys(msg)
	}

	return m, nil
}

// refresh reloads subscriptions and connection state from the store.
func (m *Model) refresh() {
	m.connected = m.engine.IsCalendarConnected(m.userID)

	subs, err := db.FindSubscriptions(m.db, m.userID)
	if err != nil {
		m.err = err
		return
	}
	m.subs = subs
	if m.selectedRow >= len(m.subs) {
		m.selectedRow = max(len(m.subs)-1, 0)
	}

	state, err := db.GetSyncState(m.db, m.userID)
	if err != nil {
		m.err = err
		return
	}
	m.syncState = state
	m.err = nil
}

func (m Model) selected() *models.Subscription {
	if m.selectedRow < 0 || m.selectedRow >= len(m.subs) {
		return nil
	}
	return &m.subs[m.selectedRow]
}

// addMessage appends a timestamped line to the activity log.
func (m *Model) addMessage(msg string) {
	timestamp := m.now().Format("15:04:05")
	m.messages = append(m.messages, fmt.Sprintf("[%s] %s", timestamp, msg))
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)
)
