// ABOUTME: In-process fake of the Google Calendar REST API for engine tests
// ABOUTME: Serves calendars, calendarList, and events endpoints with failure injection
package sync

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/api/calendar/v3"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
)

const testToken = "tok"

type fakeCalendar struct {
	mu        gosync.Mutex
	nextID    int
	calendars []*calendar.CalendarListEntry
	events    map[string][]*calendar.Event

	calendarInserts int
	calendarDeletes int
	eventInserts    int

	// failEvents makes the next N event inserts fail with a 500.
	failEvents int
	// failDeletes makes deleting these calendar ids fail.
	failDeletes map[string]bool
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{
		events:      make(map[string][]*calendar.Event),
		failDeletes: make(map[string]bool),
	}
}

func (f *fakeCalendar) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /calendars", f.insertCalendar)
	mux.HandleFunc("DELETE /calendars/{id}", f.deleteCalendar)
	mux.HandleFunc("GET /users/me/calendarList", f.listCalendars)
	mux.HandleFunc("POST /calendars/{id}/events", f.insertEvent)
	mux.HandleFunc("DELETE /calendars/{id}/events/{eventID}", f.deleteEvent)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeAPIError(w, http.StatusUnauthorized, "Invalid Credentials")
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func writeAPIError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeCalendar) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_%d", prefix, f.nextID)
}

func (f *fakeCalendar) insertCalendar(w http.ResponseWriter, r *http.Request) {
	var cal calendar.Calendar
	if err := json.NewDecoder(r.Body).Decode(&cal); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calendarInserts++
	cal.Id = f.id("cal")
	f.calendars = append(f.calendars, &calendar.CalendarListEntry{Id: cal.Id, Summary: cal.Summary, TimeZone: cal.TimeZone})
	writeJSON(w, cal)
}

// addCalendar seeds a calendar as if created out-of-band.
func (f *fakeCalendar) addCalendar(summary string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.id("cal")
	f.calendars = append(f.calendars, &calendar.CalendarListEntry{Id: id, Summary: summary})
	return id
}

func (f *fakeCalendar) hasCalendar(id string) bool {
	for _, c := range f.calendars {
		if c.Id == id {
			return true
		}
	}
	return false
}

func (f *fakeCalendar) calendarIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.calendars))
	for _, c := range f.calendars {
		ids = append(ids, c.Id)
	}
	return ids
}

func (f *fakeCalendar) deleteCalendar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failDeletes[id] {
		writeAPIError(w, http.StatusInternalServerError, "backend error")
		return
	}
	if !f.hasCalendar(id) {
		writeAPIError(w, http.StatusNotFound, "Not Found")
		return
	}

	f.calendarDeletes++
	kept := f.calendars[:0]
	for _, c := range f.calendars {
		if c.Id != id {
			kept = append(kept, c)
		}
	}
	f.calendars = kept
	delete(f.events, id)
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeCalendar) listCalendars(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	writeJSON(w, calendar.CalendarList{Items: f.calendars})
}

func (f *fakeCalendar) insertEvent(w http.ResponseWriter, r *http.Request) {
	calendarID := r.PathValue("id")

	var event calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.eventInserts++
	if f.failEvents > 0 {
		f.failEvents--
		writeAPIError(w, http.StatusInternalServerError, "backend error")
		return
	}
	if !f.hasCalendar(calendarID) {
		writeAPIError(w, http.StatusNotFound, "Not Found")
		return
	}

	event.Id = f.id("evt")
	f.events[calendarID] = append(f.events[calendarID], &event)
	writeJSON(w, event)
}

func (f *fakeCalendar) deleteEvent(w http.ResponseWriter, r *http.Request) {
	calendarID, eventID := r.PathValue("id"), r.PathValue("eventID")

	f.mu.Lock()
	defer f.mu.Unlock()

	events := f.events[calendarID]
	for i, e := range events {
		if e.Id == eventID {
			f.events[calendarID] = append(events[:i], events[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeAPIError(w, http.StatusNotFound, "Not Found")
}

func (f *fakeCalendar) eventsIn(calendarID string) []*calendar.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*calendar.Event(nil), f.events[calendarID]...)
}

// testNow is the frozen clock used by engine tests.
var testNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	engine *Engine
	db     *sql.DB
	fake   *fakeCalendar
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	fake := newFakeCalendar()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	engine := NewEngine(database, Options{
		ProductName:      "SubTracker",
		Timezone:         "UTC",
		CalendarEndpoint: srv.URL + "/",
		Now:              func() time.Time { return testNow },
		Logger:           log.New(io.Discard),
	})

	return &testEnv{engine: engine, db: database, fake: fake}
}

func (env *testEnv) seedCredential(t *testing.T, userID, scope string, expiresAt time.Time) {
	t.Helper()

	cred := &models.OAuthCredential{
		UserID:      userID,
		AccessToken: testToken,
		Scope:       scope,
		ExpiresAt:   expiresAt,
	}
	if err := db.SaveOAuthCredential(env.db, cred); err != nil {
		t.Fatalf("failed to seed credential: %v", err)
	}
}

func (env *testEnv) seedConnectedUser(t *testing.T, userID string) {
	t.Helper()
	env.seedCredential(t, userID, ScopeString(DefaultScopes), testNow.Add(time.Hour))
}

func (env *testEnv) seedSubscription(t *testing.T, sub *models.Subscription) *models.Subscription {
	t.Helper()
	if err := db.CreateSubscription(env.db, sub); err != nil {
		t.Fatalf("failed to seed subscription: %v", err)
	}
	return sub
}

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}
