// ABOUTME: Subscription list view with connection header and activity log
// ABOUTME: Triggers full syncs and duplicate cleanup as background commands
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/subcal/models"
)

const dateLayout = "2006-01-02"

// SyncCompleteMsg is sent when a full sync finishes.
type SyncCompleteMsg struct {
	Summary models.SyncSummary
}

// CleanupCompleteMsg is sent when duplicate cleanup finishes.
type CleanupCompleteMsg struct {
	Result models.CleanupResult
	Error  error
}

func (m Model) renderListView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("SUBSCRIPTION CALENDAR • " + m.userID))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatus())
	s.WriteString("\n\n")

	if len(m.subs) == 0 {
		s.WriteString(messageStyle.Render("No subscriptions tracked yet."))
	} else {
		s.WriteString(m.renderTable())
	}
	s.WriteString("\n\n")

	if len(m.messages) > 0 {
		s.WriteString(headerStyle.Render("Recent Activity"))
		s.WriteString("\n\n")
		start := 0
		if len(m.messages) > 5 {
			start = len(m.messages) - 5
		}
		for i := start; i < len(m.messages); i++ {
			s.WriteString(messageStyle.Render("  " + m.messages[i]))
			s.WriteString("\n")
		}
	}

	s.WriteString(m.renderListHelp())

	return s.String()
}

func (m Model) renderStatus() string {
	var s strings.Builder

	switch {
	case m.busy:
		s.WriteString(busyStyle.Render("⟳ Syncing..."))
	case m.connected:
		s.WriteString(okStyle.Render("✓ Calendar connected"))
	default:
		s.WriteString(errorStyle.Render("✗ Calendar not connected"))
	}

	if m.syncState != nil {
		if m.syncState.LastSyncTime != nil {
			s.WriteString(messageStyle.Render(" • Last synced " + formatTimeSince(m.now().Sub(*m.syncState.LastSyncTime))))
		}
		if m.syncState.ErrorMessage != nil {
			s.WriteString("\n")
			s.WriteString(errorStyle.Render("  " + *m.syncState.ErrorMessage))
		}
	}

	if m.err != nil {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	}

	return s.String()
}

func (m Model) renderTable() string {
	columns := []table.Column{
		{Title: "Name", Width: 24},
		{Title: "Renewal", Width: 12},
		{Title: "Trial End", Width: 12},
		{Title: "Events", Width: 22},
	}

	rows := make([]table.Row, 0, len(m.subs))
	for i := range m.subs {
		sub := &m.subs[i]
		rows = append(rows, table.Row{
			sub.Name,
			formatDate(sub.RenewalDate),
			formatDate(sub.TrialEndDate),
			eventState(sub),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(m.height-14, 3)),
	)
	t.SetCursor(m.selectedRow)

	return t.View()
}

func (m Model) renderListHelp() string {
	help := []string{
		"↑/↓: Navigate",
		"Enter: Details",
		"s: Sync all",
		"c: Clean up duplicates",
		"r: Refresh",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "down", "j":
		if m.selectedRow < len(m.subs)-1 {
			m.selectedRow++
		}
	case "enter":
		if m.selected() != nil {
			m.viewMode = ViewDetail
		}
	case "s":
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.addMessage("Starting calendar sync...")
		return m, m.syncAll()
	case "c":
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.addMessage("Looking for duplicate calendars...")
		return m, m.cleanup()
	case "r":
		m.refresh()
	}

	return m, nil
}

func (m Model) syncAll() tea.Cmd {
	engine, userID := m.engine, m.userID
	return func() tea.Msg {
		return SyncCompleteMsg{Summary: engine.SyncAllSubscriptions(context.Background(), userID)}
	}
}

func (m Model) cleanup() tea.Cmd {
	engine, userID := m.engine, m.userID
	return func() tea.Msg {
		result, err := engine.CleanupDuplicateCalendars(context.Background(), userID)
		return CleanupCompleteMsg{Result: result, Error: err}
	}
}

func (m *Model) handleSyncComplete(msg SyncCompleteMsg) {
	m.busy = false

	if msg.Summary.RunID == "" {
		m.addMessage("✗ sync did not run (calendar not connected?)")
	} else {
		m.addMessage(fmt.Sprintf("✓ sync finished: %d created, %d failed", msg.Summary.Success, msg.Summary.Failed))
	}

	m.refresh()
}

func (m *Model) handleCleanupComplete(msg CleanupCompleteMsg) {
	m.busy = false

	switch {
	case msg.Error != nil:
		m.addMessage(fmt.Sprintf("✗ cleanup failed: %v", msg.Error))
	case msg.Result.KeptCalendar == "":
		m.addMessage("✓ no duplicate calendars")
	default:
		m.addMessage(fmt.Sprintf("✓ deleted %d duplicate calendar(s)", msg.Result.DeletedCount))
	}

	m.refresh()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

// eventState summarizes which dated kinds already have an event.
func eventState(sub *models.Subscription) string {
	var parts []string
	for _, kind := range models.EventKinds {
		if sub.DateFor(kind) == nil {
			continue
		}
		mark := "✓"
		if sub.NeedsEvent(kind) {
			mark = "·"
		}
		parts = append(parts, mark+" "+string(kind))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

// formatTimeSince formats a duration in a human-readable way.
func formatTimeSince(duration time.Duration) string {
	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}

	days := int(duration.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
