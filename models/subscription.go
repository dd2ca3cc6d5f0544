// ABOUTME: Data models for subscription calendar sync
// ABOUTME: Defines credentials, calendar mappings, subscriptions, and sync results
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OAuthCredential is a user's stored Google OAuth token record.
type OAuthCredential struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	Scope        string    `json:"scope"` // space-delimited
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasScope reports whether the space-delimited scope string contains fragment.
func (c *OAuthCredential) HasScope(fragment string) bool {
	return strings.Contains(c.Scope, fragment)
}

// CalendarMapping links a user to their dedicated provider calendar.
type CalendarMapping struct {
	ID                 uuid.UUID `json:"id"`
	UserID             string    `json:"user_id"`
	ExternalCalendarID string    `json:"external_calendar_id"`
	CalendarName       string    `json:"calendar_name"`
	CreatedAt          time.Time `json:"created_at"`
}

type Subscription struct {
	ID              uuid.UUID  `json:"id"`
	UserID          string     `json:"user_id"`
	Name            string     `json:"name"`
	RenewalDate     *time.Time `json:"renewal_date,omitempty"`
	TrialEndDate    *time.Time `json:"trial_end_date,omitempty"`
	RenewalEventID  *string    `json:"renewal_event_id,omitempty"`
	TrialEndEventID *string    `json:"trial_end_event_id,omitempty"`
	CalendarID      *string    `json:"calendar_id,omitempty"`
	CancelURL       string     `json:"cancel_url,omitempty"`
	Amount          *float64   `json:"amount,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	SourceEmailID   string     `json:"source_email_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NeedsEvent reports whether the given kind has a date but no mirrored event yet.
func (s *Subscription) NeedsEvent(kind EventKind) bool {
	switch kind {
	case EventRenewal:
		return s.RenewalDate != nil && s.RenewalEventID == nil
	case EventTrialEnd:
		return s.TrialEndDate != nil && s.TrialEndEventID == nil
	}
	return false
}

// EligibleForSync is true when at least one date kind still needs an event.
func (s *Subscription) EligibleForSync() bool {
	return s.NeedsEvent(EventRenewal) || s.NeedsEvent(EventTrialEnd)
}

// DateFor returns the date stored for kind, or nil.
func (s *Subscription) DateFor(kind EventKind) *time.Time {
	switch kind {
	case EventRenewal:
		return s.RenewalDate
	case EventTrialEnd:
		return s.TrialEndDate
	}
	return nil
}

// EventKind selects the title and description template of an event.
type EventKind string

const (
	EventRenewal  EventKind = "renewal"
	EventTrialEnd EventKind = "trial_end"
)

// EventKinds lists kinds in the order the reconciler attempts them.
var EventKinds = []EventKind{EventRenewal, EventTrialEnd}

func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(s) {
	case EventRenewal, EventTrialEnd:
		return EventKind(s), nil
	}
	return "", fmt.Errorf("invalid event kind %q (want renewal or trial_end)", s)
}

// EventMetadata carries the optional description details for an event.
type EventMetadata struct {
	Amount       *float64 `json:"amount,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	EmailSubject string   `json:"email_subject,omitempty"`
	CancelURL    string   `json:"cancel_url,omitempty"`
}

// MetadataFor builds event metadata from the subscription's own fields.
func (s *Subscription) MetadataFor() *EventMetadata {
	return &EventMetadata{
		Amount:    s.Amount,
		Currency:  s.Currency,
		CancelURL: s.CancelURL,
	}
}

// SyncSummary is the outcome of a bulk reconcile run.
type SyncSummary struct {
	RunID   string `json:"run_id,omitempty"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
}

// CleanupResult is the outcome of a duplicate calendar cleanup.
type CleanupResult struct {
	DeletedCount int    `json:"deleted_count"`
	KeptCalendar string `json:"kept_calendar,omitempty"`
}

// ExtractedSubscription is the structured record produced by the mailbox extractor.
type ExtractedSubscription struct {
	Name          string     `json:"name"`
	RenewalDate   *time.Time `json:"renewal_date,omitempty"`
	TrialEndDate  *time.Time `json:"trial_end_date,omitempty"`
	Amount        *float64   `json:"amount,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	CancelURL     string     `json:"cancel_url,omitempty"`
	SourceEmailID string     `json:"source_email_id,omitempty"`
	Confidence    float64    `json:"confidence"`
}
