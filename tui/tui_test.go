// ABOUTME: Tests for the subscription dashboard
// ABOUTME: Drives the model with key messages and checks rendered output
package tui

import (
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
	"github.com/harperreed/subcal/sync"
)

func setupTestEngine(t *testing.T) *sync.Engine {
	t.Helper()

	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	return sync.NewEngine(database, sync.Options{
		Timezone:         "UTC",
		CalendarEndpoint: "http://127.0.0.1:1/",
		Logger:           log.New(io.Discard),
	})
}

func addSubscription(t *testing.T, engine *sync.Engine, name string, renewal *time.Time) {
	t.Helper()
	sub := &models.Subscription{UserID: "alice", Name: name, RenewalDate: renewal}
	if err := db.CreateSubscription(engine.DB(), sub); err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return model, cmd
}

func TestListViewEmpty(t *testing.T) {
	m := NewModel(setupTestEngine(t), "alice")

	output := m.View()
	if !strings.Contains(output, "No subscriptions tracked yet") {
		t.Error("Empty list should say so")
	}
	if !strings.Contains(output, "not connected") {
		t.Error("Should show calendar not connected")
	}
}

func TestListViewNavigation(t *testing.T) {
	engine := setupTestEngine(t)
	renewal := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	addSubscription(t, engine, "Netflix", &renewal)
	addSubscription(t, engine, "Spotify", nil)

	m := NewModel(engine, "alice")
	if len(m.subs) != 2 {
		t.Fatalf("Expected 2 subscriptions, got %d", len(m.subs))
	}

	output := m.View()
	if !strings.Contains(output, "Netflix") || !strings.Contains(output, "2025-06-01") {
		t.Error("List should show subscription rows")
	}

	m, _ = update(t, m, key("down"))
	m, _ = update(t, m, key("down"))
	if m.selectedRow != 1 {
		t.Errorf("Cursor should stop at last row, got %d", m.selectedRow)
	}

	m, _ = update(t, m, key("enter"))
	if m.viewMode != ViewDetail {
		t.Fatal("Enter should open detail view")
	}
	if !strings.Contains(m.View(), m.subs[1].Name) {
		t.Error("Detail view should show the selected subscription")
	}

	m, _ = update(t, m, key("esc"))
	if m.viewMode != ViewList {
		t.Error("Esc should return to list")
	}
}

func TestSyncKeyWhenNotConnected(t *testing.T) {
	m := NewModel(setupTestEngine(t), "alice")

	m, cmd := update(t, m, key("s"))
	if cmd == nil {
		t.Fatal("Sync key should return a command")
	}
	if !m.busy {
		t.Error("Model should be busy while syncing")
	}

	// A second press while busy is ignored
	_, again := update(t, m, key("s"))
	if again != nil {
		t.Error("Sync should not start twice")
	}

	msg := cmd()
	done, ok := msg.(SyncCompleteMsg)
	if !ok {
		t.Fatalf("Expected SyncCompleteMsg, got %T", msg)
	}
	if done.Summary.RunID != "" {
		t.Error("Disconnected sync should not start a run")
	}

	m, _ = update(t, m, done)
	if m.busy {
		t.Error("Model should be idle after sync completes")
	}
	if !strings.Contains(m.messages[len(m.messages)-1], "did not run") {
		t.Errorf("Unexpected activity message: %s", m.messages[len(m.messages)-1])
	}
}

func TestCleanupCompleteMessages(t *testing.T) {
	m := NewModel(setupTestEngine(t), "alice")
	m.busy = true

	m, _ = update(t, m, CleanupCompleteMsg{Result: models.CleanupResult{DeletedCount: 2, KeptCalendar: "cal-1"}})
	if m.busy {
		t.Error("Model should be idle after cleanup")
	}
	if !strings.Contains(m.messages[len(m.messages)-1], "deleted 2") {
		t.Errorf("Unexpected activity message: %s", m.messages[len(m.messages)-1])
	}

	m, _ = update(t, m, CleanupCompleteMsg{})
	if !strings.Contains(m.messages[len(m.messages)-1], "no duplicate") {
		t.Errorf("Unexpected activity message: %s", m.messages[len(m.messages)-1])
	}
}

func TestDetailCreateEventWithoutDate(t *testing.T) {
	engine := setupTestEngine(t)
	addSubscription(t, engine, "Hulu", nil)

	m := NewModel(engine, "alice")
	m, _ = update(t, m, key("enter"))

	m, cmd := update(t, m, key("t"))
	if cmd != nil {
		t.Error("No command expected without a trial date")
	}
	if !strings.Contains(m.messages[len(m.messages)-1], "has no trial_end date") {
		t.Errorf("Unexpected activity message: %s", m.messages[len(m.messages)-1])
	}
}

func TestFormatTimeSince(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{time.Minute, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{time.Hour, "1 hour ago"},
		{3 * time.Hour, "3 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{72 * time.Hour, "3 days ago"},
	}

	for _, tt := range tests {
		if got := formatTimeSince(tt.d); got != tt.want {
			t.Errorf("formatTimeSince(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
