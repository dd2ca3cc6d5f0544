// ABOUTME: Detail view for a single subscription
// ABOUTME: Shows dates and event ids and creates a missing event on demand
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/subcal/models"
)

var labelStyle = lipgloss.NewStyle().
	Bold(true).
	Width(14)

// EventCreatedMsg is sent when a single event create finishes.
type EventCreatedMsg struct {
	Name    string
	Kind    models.EventKind
	EventID string
	Error   error
}

func (m Model) renderDetailView() string {
	sub := m.selected()
	if sub == nil {
		return messageStyle.Render("Subscription not found") + "\n" + helpStyle.Render("Esc: Back")
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render(sub.Name))
	s.WriteString("\n\n")

	field := func(label, value string) {
		s.WriteString(labelStyle.Render(label))
		s.WriteString(value)
		s.WriteString("\n")
	}

	field("Renewal", formatDate(sub.RenewalDate))
	field("Renewal event", deref(sub.RenewalEventID))
	field("Trial end", formatDate(sub.TrialEndDate))
	field("Trial event", deref(sub.TrialEndEventID))
	field("Calendar", deref(sub.CalendarID))
	if sub.Amount != nil {
		field("Amount", fmt.Sprintf("%.2f %s", *sub.Amount, sub.Currency))
	}
	if sub.CancelURL != "" {
		field("Cancel", sub.CancelURL)
	}

	if len(m.messages) > 0 {
		s.WriteString("\n")
		s.WriteString(messageStyle.Render("  " + m.messages[len(m.messages)-1]))
		s.WriteString("\n")
	}

	help := []string{"e: Create renewal event", "t: Create trial event", "Esc: Back", "q: Quit"}
	s.WriteString(helpStyle.Render(strings.Join(help, " • ")))

	return s.String()
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.viewMode = ViewList
	case "e":
		return m.createEvent(models.EventRenewal)
	case "t":
		return m.createEvent(models.EventTrialEnd)
	}

	return m, nil
}

func (m Model) createEvent(kind models.EventKind) (tea.Model, tea.Cmd) {
	sub := m.selected()
	if sub == nil || m.busy {
		return m, nil
	}

	date := sub.DateFor(kind)
	if date == nil {
		m.addMessage(fmt.Sprintf("✗ %s has no %s date", sub.Name, kind))
		return m, nil
	}
	if !sub.NeedsEvent(kind) {
		m.addMessage(fmt.Sprintf("✓ %s %s event already exists", sub.Name, kind))
		return m, nil
	}

	m.busy = true
	m.addMessage(fmt.Sprintf("Creating %s event for %s...", kind, sub.Name))

	engine, id, name, when, meta := m.engine, sub.ID, sub.Name, *date, sub.MetadataFor()
	return m, func() tea.Msg {
		eventID, err := engine.CreateSubscriptionEvent(context.Background(), id, name, when, kind, meta)
		return EventCreatedMsg{Name: name, Kind: kind, EventID: eventID, Error: err}
	}
}

func (m *Model) handleEventCreated(msg EventCreatedMsg) {
	m.busy = false

	if msg.Error != nil {
		m.addMessage(fmt.Sprintf("✗ %s event for %s failed: %v", msg.Kind, msg.Name, msg.Error))
	} else {
		m.addMessage(fmt.Sprintf("✓ created %s event for %s", msg.Kind, msg.Name))
	}

	m.refresh()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
