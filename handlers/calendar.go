// ABOUTME: Calendar sync MCP tool handlers
// ABOUTME: Implements calendar_status, ensure_calendar, event, sync, and cleanup tools
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
	"github.com/harperreed/subcal/sync"
)

const dateLayout = "2006-01-02"

type CalendarHandlers struct {
	engine *sync.Engine
}

func NewCalendarHandlers(engine *sync.Engine) *CalendarHandlers {
	return &CalendarHandlers{engine: engine}
}

type UserInput struct {
	UserID string `json:"user_id" jsonschema:"ID of the user whose calendar to act on (required)"`
}

type CalendarStatusOutput struct {
	UserID       string  `json:"user_id"`
	Connected    bool    `json:"connected"`
	CalendarID   string  `json:"calendar_id,omitempty"`
	LastSyncTime *string `json:"last_sync_time,omitempty"`
	LastRunID    *string `json:"last_run_id,omitempty"`
	SyncStatus   string  `json:"sync_status,omitempty"`
	SyncError    *string `json:"sync_error,omitempty"`
}

func (h *CalendarHandlers) CalendarStatus(_ context.Context, _ *mcp.CallToolRequest, input UserInput) (*mcp.CallToolResult, CalendarStatusOutput, error) {
	if input.UserID == "" {
		return nil, CalendarStatusOutput{}, fmt.Errorf("user_id is required")
	}

	out := CalendarStatusOutput{
		UserID:    input.UserID,
		Connected: h.engine.IsCalendarConnected(input.UserID),
	}

	mapping, err := db.GetCalendarMapping(h.engine.DB(), input.UserID)
	if err != nil {
		return nil, CalendarStatusOutput{}, fmt.Errorf("failed to read calendar mapping: %w", err)
	}
	if mapping != nil {
		out.CalendarID = mapping.ExternalCalendarID
	}

	state, err := db.GetSyncState(h.engine.DB(), input.UserID)
	if err != nil {
		return nil, CalendarStatusOutput{}, fmt.Errorf("failed to read sync state: %w", err)
	}
	if state != nil {
		out.SyncStatus = state.Status
		out.LastRunID = state.LastRunID
		out.SyncError = state.ErrorMessage
		if state.LastSyncTime != nil {
			s := state.LastSyncTime.Format(time.RFC3339)
			out.LastSyncTime = &s
		}
	}

	return nil, out, nil
}

type EnsureCalendarOutput struct {
	CalendarID string `json:"calendar_id"`
}

func (h *CalendarHandlers) EnsureCalendar(ctx context.Context, _ *mcp.CallToolRequest, input UserInput) (*mcp.CallToolResult, EnsureCalendarOutput, error) {
	if input.UserID == "" {
		return nil, EnsureCalendarOutput{}, fmt.Errorf("user_id is required")
	}

	id, err := h.engine.GetOrCreateCalendar(ctx, input.UserID)
	if err != nil {
		return nil, EnsureCalendarOutput{}, fmt.Errorf("failed to get calendar: %w", err)
	}

	return nil, EnsureCalendarOutput{CalendarID: id}, nil
}

type CreateEventInput struct {
	SubscriptionID string   `json:"subscription_id" jsonschema:"Subscription UUID (required)"`
	Kind           string   `json:"kind" jsonschema:"Event kind: renewal or trial_end (required)"`
	Date           string   `json:"date,omitempty" jsonschema:"Event date YYYY-MM-DD (defaults to the subscription's date for this kind)"`
	Name           string   `json:"name,omitempty" jsonschema:"Name shown in the event title (defaults to the subscription name)"`
	Amount         *float64 `json:"amount,omitempty" jsonschema:"Charge amount for the description"`
	Currency       string   `json:"currency,omitempty" jsonschema:"Currency code for the amount"`
	EmailSubject   string   `json:"email_subject,omitempty" jsonschema:"Subject of the email the subscription was detected from"`
	CancelURL      string   `json:"cancel_url,omitempty" jsonschema:"Link to cancel the subscription"`
}

type CreateEventOutput struct {
	EventID string `json:"event_id"`
}

func (h *CalendarHandlers) CreateSubscriptionEvent(ctx context.Context, _ *mcp.CallToolRequest, input CreateEventInput) (*mcp.CallToolResult, CreateEventOutput, error) {
	subID, err := uuid.Parse(input.SubscriptionID)
	if err != nil {
		return nil, CreateEventOutput{}, fmt.Errorf("invalid subscription_id: %w", err)
	}

	kind, err := models.ParseEventKind(input.Kind)
	if err != nil {
		return nil, CreateEventOutput{}, err
	}

	sub, err := db.GetSubscription(h.engine.DB(), subID)
	if err != nil {
		return nil, CreateEventOutput{}, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil {
		return nil, CreateEventOutput{}, sync.ErrSubscriptionNotFound
	}

	var date time.Time
	if input.Date != "" {
		date, err = time.Parse(dateLayout, input.Date)
		if err != nil {
			return nil, CreateEventOutput{}, fmt.Errorf("invalid date (use YYYY-MM-DD): %w", err)
		}
	} else if d := sub.DateFor(kind); d != nil {
		date = *d
	} else {
		return nil, CreateEventOutput{}, fmt.Errorf("subscription has no %s date; pass date", kind)
	}

	meta := sub.MetadataFor()
	if input.Amount != nil {
		meta.Amount = input.Amount
	}
	if input.Currency != "" {
		meta.Currency = input.Currency
	}
	if input.CancelURL != "" {
		meta.CancelURL = input.CancelURL
	}
	meta.EmailSubject = input.EmailSubject

	eventID, err := h.engine.CreateSubscriptionEvent(ctx, subID, input.Name, date, kind, meta)
	if err != nil {
		return nil, CreateEventOutput{}, fmt.Errorf("failed to create event: %w", err)
	}

	return nil, CreateEventOutput{EventID: eventID}, nil
}

type DeleteEventInput struct {
	UserID     string `json:"user_id" jsonschema:"Owner of the calendar (required)"`
	CalendarID string `json:"calendar_id" jsonschema:"Calendar holding the event (required)"`
	EventID    string `json:"event_id" jsonschema:"Event to delete (required)"`
}

type DeleteEventOutput struct {
	Deleted bool `json:"deleted"`
}

func (h *CalendarHandlers) DeleteSubscriptionEvent(ctx context.Context, _ *mcp.CallToolRequest, input DeleteEventInput) (*mcp.CallToolResult, DeleteEventOutput, error) {
	if input.UserID == "" || input.CalendarID == "" || input.EventID == "" {
		return nil, DeleteEventOutput{}, fmt.Errorf("user_id, calendar_id, and event_id are required")
	}

	if err := h.engine.DeleteSubscriptionEvent(ctx, input.UserID, input.CalendarID, input.EventID); err != nil {
		return nil, DeleteEventOutput{}, err
	}

	return nil, DeleteEventOutput{Deleted: true}, nil
}

func (h *CalendarHandlers) SyncSubscriptions(ctx context.Context, _ *mcp.CallToolRequest, input UserInput) (*mcp.CallToolResult, models.SyncSummary, error) {
	if input.UserID == "" {
		return nil, models.SyncSummary{}, fmt.Errorf("user_id is required")
	}

	return nil, h.engine.SyncAllSubscriptions(ctx, input.UserID), nil
}

func (h *CalendarHandlers) CleanupDuplicateCalendars(ctx context.Context, _ *mcp.CallToolRequest, input UserInput) (*mcp.CallToolResult, models.CleanupResult, error) {
	if input.UserID == "" {
		return nil, models.CleanupResult{}, fmt.Errorf("user_id is required")
	}

	result, err := h.engine.CleanupDuplicateCalendars(ctx, input.UserID)
	if err != nil {
		return nil, models.CleanupResult{}, fmt.Errorf("failed to clean up calendars: %w", err)
	}

	return nil, result, nil
}
