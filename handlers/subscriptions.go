// ABOUTME: Subscription MCP tool handlers
// ABOUTME: Implements add_subscription, list_subscriptions, and ingest_extracted tools
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
	"github.com/harperreed/subcal/sync"
)

type SubscriptionHandlers struct {
	engine        *sync.Engine
	minConfidence float64
}

func NewSubscriptionHandlers(engine *sync.Engine, minConfidence float64) *SubscriptionHandlers {
	return &SubscriptionHandlers{engine: engine, minConfidence: minConfidence}
}

type AddSubscriptionInput struct {
	UserID       string   `json:"user_id" jsonschema:"Owner of the subscription (required)"`
	Name         string   `json:"name" jsonschema:"Service name (required)"`
	RenewalDate  string   `json:"renewal_date,omitempty" jsonschema:"Next renewal date YYYY-MM-DD"`
	TrialEndDate string   `json:"trial_end_date,omitempty" jsonschema:"Free trial end date YYYY-MM-DD"`
	Amount       *float64 `json:"amount,omitempty" jsonschema:"Charge amount"`
	Currency     string   `json:"currency,omitempty" jsonschema:"Currency code"`
	CancelURL    string   `json:"cancel_url,omitempty" jsonschema:"Link to cancel the subscription"`
}

type SubscriptionOutput struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	RenewalDate     string   `json:"renewal_date,omitempty"`
	TrialEndDate    string   `json:"trial_end_date,omitempty"`
	RenewalEventID  string   `json:"renewal_event_id,omitempty"`
	TrialEndEventID string   `json:"trial_end_event_id,omitempty"`
	CalendarID      string   `json:"calendar_id,omitempty"`
	Amount          *float64 `json:"amount,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	CancelURL       string   `json:"cancel_url,omitempty"`
}

func (h *SubscriptionHandlers) AddSubscription(_ context.Context, _ *mcp.CallToolRequest, input AddSubscriptionInput) (*mcp.CallToolResult, SubscriptionOutput, error) {
	if input.UserID == "" || input.Name == "" {
		return nil, SubscriptionOutput{}, fmt.Errorf("user_id and name are required")
	}

	renewal, err := parseOptionalDate(input.RenewalDate)
	if err != nil {
		return nil, SubscriptionOutput{}, fmt.Errorf("invalid renewal_date: %w", err)
	}
	trialEnd, err := parseOptionalDate(input.TrialEndDate)
	if err != nil {
		return nil, SubscriptionOutput{}, fmt.Errorf("invalid trial_end_date: %w", err)
	}

	sub := &models.Subscription{
		UserID:       input.UserID,
		Name:         input.Name,
		RenewalDate:  renewal,
		TrialEndDate: trialEnd,
		Amount:       input.Amount,
		Currency:     input.Currency,
		CancelURL:    input.CancelURL,
	}
	if err := db.CreateSubscription(h.engine.DB(), sub); err != nil {
		return nil, SubscriptionOutput{}, fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil, subscriptionToOutput(sub), nil
}

type ListSubscriptionsOutput struct {
	Subscriptions []SubscriptionOutput `json:"subscriptions"`
}

func (h *SubscriptionHandlers) ListSubscriptions(_ context.Context, _ *mcp.CallToolRequest, input UserInput) (*mcp.CallToolResult, ListSubscriptionsOutput, error) {
	if input.UserID == "" {
		return nil, ListSubscriptionsOutput{}, fmt.Errorf("user_id is required")
	}

	subs, err := db.FindSubscriptions(h.engine.DB(), input.UserID)
	if err != nil {
		return nil, ListSubscriptionsOutput{}, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	out := ListSubscriptionsOutput{Subscriptions: make([]SubscriptionOutput, len(subs))}
	for i := range subs {
		out.Subscriptions[i] = subscriptionToOutput(&subs[i])
	}

	return nil, out, nil
}

type IngestInput struct {
	UserID string                       `json:"user_id" jsonschema:"Owner of the mailbox the record came from (required)"`
	Record models.ExtractedSubscription `json:"record" jsonschema:"Structured record produced by the email extractor"`
}

type IngestOutput struct {
	Stored       bool                `json:"stored"`
	Subscription *SubscriptionOutput `json:"subscription,omitempty"`
}

func (h *SubscriptionHandlers) IngestExtracted(_ context.Context, _ *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, IngestOutput, error) {
	if input.UserID == "" {
		return nil, IngestOutput{}, fmt.Errorf("user_id is required")
	}

	sub, err := h.engine.IngestExtracted(input.UserID, input.Record, h.minConfidence)
	if err != nil {
		return nil, IngestOutput{}, err
	}
	if sub == nil {
		return nil, IngestOutput{}, nil
	}

	out := subscriptionToOutput(sub)
	return nil, IngestOutput{Stored: true, Subscription: &out}, nil
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

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func subscriptionToOutput(sub *models.Subscription) SubscriptionOutput {
	return SubscriptionOutput{
		ID:              sub.ID.String(),
		Name:            sub.Name,
		RenewalDate:     formatOptionalDate(sub.RenewalDate),
		TrialEndDate:    formatOptionalDate(sub.TrialEndDate),
		RenewalEventID:  deref(sub.RenewalEventID),
		TrialEndEventID: deref(sub.TrialEndEventID),
		CalendarID:      deref(sub.CalendarID),
		Amount:          sub.Amount,
		Currency:        sub.Currency,
		CancelURL:       sub.CancelURL,
	}
}
