// ABOUTME: HTTP handlers for calendar, subscription, and verification endpoints
// ABOUTME: Each handler acts on behalf of the user named in the request context
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
	"github.com/harperreed/subcal/sync"
)

const dateLayout = "2006-01-02"

type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", DBConnected: s.engine.DB().PingContext(r.Context()) == nil}

	status := http.StatusOK
	if !resp.DBConnected {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

type CalendarStatusResponse struct {
	Connected  bool    `json:"connected"`
	CalendarID string  `json:"calendar_id,omitempty"`
	SyncStatus string  `json:"sync_status,omitempty"`
	LastSyncAt *string `json:"last_sync_at,omitempty"`
	LastRunID  *string `json:"last_run_id,omitempty"`
	SyncError  *string `json:"sync_error,omitempty"`
}

func (s *Server) handleCalendarStatus(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())
	resp := CalendarStatusResponse{Connected: s.engine.IsCalendarConnected(userID)}

	mapping, err := db.GetCalendarMapping(s.engine.DB(), userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to read calendar mapping")
		return
	}
	if mapping != nil {
		resp.CalendarID = mapping.ExternalCalendarID
	}

	state, err := db.GetSyncState(s.engine.DB(), userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to read sync state")
		return
	}
	if state != nil {
		resp.SyncStatus = state.Status
		resp.LastRunID = state.LastRunID
		resp.SyncError = state.ErrorMessage
		if state.LastSyncTime != nil {
			at := state.LastSyncTime.Format(time.RFC3339)
			resp.LastSyncAt = &at
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnsureCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := s.engine.GetOrCreateCalendar(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"calendar_id": id})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.SyncAllSubscriptions(r.Context(), userFrom(r.Context())))
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.CleanupDuplicateCalendars(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.engine.DeleteSubscriptionEvent(r.Context(), userFrom(r.Context()), vars["calendarID"], vars["eventID"]); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := db.FindSubscriptions(s.engine.DB(), userFrom(r.Context()))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

type CreateSubscriptionRequest struct {
	Name         string   `json:"name"`
	RenewalDate  string   `json:"renewal_date,omitempty"`
	TrialEndDate string   `json:"trial_end_date,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	CancelURL    string   `json:"cancel_url,omitempty"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "name is required")
		return
	}

	renewal, err := parseOptionalDate(req.RenewalDate)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "renewal_date must be YYYY-MM-DD")
		return
	}
	trialEnd, err := parseOptionalDate(req.TrialEndDate)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "trial_end_date must be YYYY-MM-DD")
		return
	}

	sub := &models.Subscription{
		UserID:       userFrom(r.Context()),
		Name:         req.Name,
		RenewalDate:  renewal,
		TrialEndDate: trialEnd,
		Amount:       req.Amount,
		Currency:     req.Currency,
		CancelURL:    req.CancelURL,
	}
	if err := db.CreateSubscription(s.engine.DB(), sub); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to create subscription")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var rec models.ExtractedSubscription
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "Invalid request body")
		return
	}

	sub, err := s.engine.IngestExtracted(userFrom(r.Context()), rec, s.minConfidence)
	if errors.Is(err, sync.ErrMissingName) {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to ingest subscription", "err", err)
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to store subscription")
		return
	}
	if sub == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type CreateEventRequest struct {
	Kind         string   `json:"kind"`
	Date         string   `json:"date,omitempty"`
	Name         string   `json:"name,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	EmailSubject string   `json:"email_subject,omitempty"`
	CancelURL    string   `json:"cancel_url,omitempty"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	subID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "Invalid subscription ID")
		return
	}

	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "Invalid request body")
		return
	}

	kind, err := models.ParseEventKind(req.Kind)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	sub, err := db.GetSubscription(s.engine.DB(), subID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to load subscription")
		return
	}
	// Another user's subscription is reported the same as a missing one.
	if sub == nil || sub.UserID != userFrom(r.Context()) {
		writeEngineError(w, sync.ErrSubscriptionNotFound)
		return
	}

	var date time.Time
	switch {
	case req.Date != "":
		date, err = time.Parse(dateLayout, req.Date)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "date must be YYYY-MM-DD")
			return
		}
	case sub.DateFor(kind) != nil:
		date = *sub.DateFor(kind)
	default:
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "subscription has no "+string(kind)+" date")
		return
	}

	meta := sub.MetadataFor()
	if req.Amount != nil {
		meta.Amount = req.Amount
	}
	if req.Currency != "" {
		meta.Currency = req.Currency
	}
	if req.CancelURL != "" {
		meta.CancelURL = req.CancelURL
	}
	meta.EmailSubject = req.EmailSubject

	eventID, err := s.engine.CreateSubscriptionEvent(r.Context(), subID, req.Name, date, kind, meta)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"event_id": eventID})
}

type IssueCodeRequest struct {
	Destination string `json:"destination"`
}

type IssueCodeResponse struct {
	ExpiresAt string `json:"expires_at"`
}

func (s *Server) handleIssueCode(w http.ResponseWriter, r *http.Request) {
	var req IssueCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Destination == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "destination is required")
		return
	}

	code, expiresAt, err := s.codes.Issue(r.Context(), req.Destination)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to issue code")
		return
	}

	if err := s.sendCode(r.Context(), req.Destination, code); err != nil {
		s.logger.Error("failed to deliver verification code", "destination", req.Destination, "err", err)
		WriteError(w, http.StatusBadGateway, ErrProvider, "Failed to deliver code")
		return
	}

	writeJSON(w, http.StatusAccepted, IssueCodeResponse{ExpiresAt: expiresAt.Format(time.RFC3339)})
}

type CheckCodeRequest struct {
	Destination string `json:"destination"`
	Code        string `json:"code"`
}

type CheckCodeResponse struct {
	Valid bool `json:"valid"`
}

func (s *Server) handleCheckCode(w http.ResponseWriter, r *http.Request) {
	var req CheckCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Destination == "" || req.Code == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "destination and code are required")
		return
	}

	ok, err := s.codes.Check(r.Context(), req.Destination, req.Code)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to check code")
		return
	}

	writeJSON(w, http.StatusOK, CheckCodeResponse{Valid: ok})
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
