// ABOUTME: Tests for the JSON HTTP API
// ABOUTME: Drives the router with httptest against a temp database
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
	"github.com/harperreed/subcal/sync"
	"github.com/harperreed/subcal/verify"
)

var testNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	server *Server
	engine *sync.Engine
	sent   map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	logger := log.New(io.Discard)
	engine := sync.NewEngine(database, sync.Options{
		Timezone:         "UTC",
		CalendarEndpoint: "http://127.0.0.1:1/",
		Now:              func() time.Time { return testNow },
		Logger:           logger,
	})

	ts := &testServer{engine: engine, sent: make(map[string]string)}
	ts.server = NewServer(engine, Options{
		MinConfidence: 0.7,
		Codes:         verify.NewCodes(verify.NewMemoryStore(nil), verify.Options{Logger: logger}),
		SendCode: func(_ context.Context, destination, code string) error {
			ts.sent[destination] = code
			return nil
		},
		Logger: logger,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(UserHeader, userID)
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[HealthResponse](t, rec).Status)
}

func TestRequiresUserHeader(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/api/calendar/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ErrUnauthorized, decode[ErrorResponse](t, rec).Error)
}

func TestCalendarStatus(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/api/calendar/status", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[CalendarStatusResponse](t, rec).Connected)

	require.NoError(t, db.SaveOAuthCredential(ts.engine.DB(), &models.OAuthCredential{
		UserID:      "u1",
		AccessToken: "tok",
		Scope:       sync.ScopeString(sync.DefaultScopes),
		ExpiresAt:   testNow.Add(time.Hour),
	}))
	msg := "no calendar available: boom"
	require.NoError(t, db.UpdateSyncStatus(ts.engine.DB(), "u1", "error", &msg))

	rec = ts.do(t, "GET", "/api/calendar/status", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[CalendarStatusResponse](t, rec)
	assert.True(t, status.Connected)
	assert.Equal(t, "error", status.SyncStatus)
	require.NotNil(t, status.SyncError)
	assert.Equal(t, msg, *status.SyncError)
}

func TestEnsureCalendar(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/api/calendar/ensure", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ErrNotConnected, decode[ErrorResponse](t, rec).Error)

	_, err := db.InsertCalendarMapping(ts.engine.DB(), &models.CalendarMapping{
		UserID:             "u1",
		ExternalCalendarID: "cal_1",
		CalendarName:       "SubTracker Subscriptions - 2025",
	})
	require.NoError(t, err)

	rec = ts.do(t, "POST", "/api/calendar/ensure", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cal_1", decode[map[string]string](t, rec)["calendar_id"])
}

func TestSyncNotConnectedReturnsZeroSummary(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/api/calendar/sync", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[models.SyncSummary](t, rec)
	assert.Equal(t, 0, summary.Success)
	assert.Equal(t, 0, summary.Failed)
}

func TestCleanupNotConnected(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/api/calendar/cleanup", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubscriptionsCreateAndList(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/api/subscriptions", "u1", CreateSubscriptionRequest{Name: "Netflix", RenewalDate: "2025-06-01"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Subscription](t, rec)
	assert.Equal(t, "u1", created.UserID)

	rec = ts.do(t, "POST", "/api/subscriptions", "u1", CreateSubscriptionRequest{Name: "Bad", TrialEndDate: "soon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, "POST", "/api/subscriptions", "u1", CreateSubscriptionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, "GET", "/api/subscriptions", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	subs := decode[[]models.Subscription](t, rec)
	require.Len(t, subs, 1)
	assert.Equal(t, created.ID, subs[0].ID)

	rec = ts.do(t, "GET", "/api/subscriptions", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.Subscription](t, rec))
}

func TestIngest(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/api/subscriptions/ingest", "u1", models.ExtractedSubscription{Name: "Maybe", Confidence: 0.1})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, "POST", "/api/subscriptions/ingest", "u1", models.ExtractedSubscription{Name: "Hulu", SourceEmailID: "m1", Confidence: 0.9})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hulu", decode[models.Subscription](t, rec).Name)
}

func TestIngestErrorStatus(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/api/subscriptions/ingest", "u1", models.ExtractedSubscription{Confidence: 0.9})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing name is the caller's fault")

	_, err := ts.engine.DB().Exec(`CREATE TRIGGER block_subscription_insert BEFORE INSERT ON subscriptions
		BEGIN SELECT RAISE(ABORT, 'subscription writes disabled'); END`)
	require.NoError(t, err)

	rec = ts.do(t, "POST", "/api/subscriptions/ingest", "u1", models.ExtractedSubscription{Name: "Hulu", Confidence: 0.9})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrInternalError, decode[ErrorResponse](t, rec).Error)
}

func TestCreateEventOwnership(t *testing.T) {
	ts := newTestServer(t)
	sub := &models.Subscription{UserID: "owner", Name: "Netflix"}
	require.NoError(t, db.CreateSubscription(ts.engine.DB(), sub))
	path := "/api/subscriptions/" + sub.ID.String() + "/events"

	rec := ts.do(t, "POST", path, "intruder", CreateEventRequest{Kind: "renewal", Date: "2025-06-01"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, "POST", path, "owner", CreateEventRequest{Kind: "monthly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, "POST", path, "owner", CreateEventRequest{Kind: "renewal"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no stored renewal date and none given")

	rec = ts.do(t, "POST", path, "owner", CreateEventRequest{Kind: "renewal", Date: "2025-06-01"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, "POST", "/api/subscriptions/not-a-uuid/events", "owner", CreateEventRequest{Kind: "renewal"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerificationCodeFlow(t *testing.T) {
	ts := newTestServer(t)
	phone := "+15555550100"

	rec := ts.do(t, "POST", "/api/verify/codes", "u1", IssueCodeRequest{Destination: phone})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, decode[IssueCodeResponse](t, rec).ExpiresAt)
	code := ts.sent[phone]
	require.Len(t, code, 6)

	rec = ts.do(t, "POST", "/api/verify/check", "u1", CheckCodeRequest{Destination: phone, Code: code})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[CheckCodeResponse](t, rec).Valid)

	rec = ts.do(t, "POST", "/api/verify/check", "u1", CheckCodeRequest{Destination: phone, Code: code})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[CheckCodeResponse](t, rec).Valid)

	rec = ts.do(t, "POST", "/api/verify/codes", "u1", IssueCodeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorRecovery(t *testing.T) {
	handler := ErrorRecovery(log.New(io.Discard))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrInternalError, decode[ErrorResponse](t, rec).Error)
}
