// ABOUTME: Subscription event creation in the dedicated calendar
// ABOUTME: Builds all-day renewal/trial-end events and stamps their ids on subscriptions
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
)

const eventDateLayout = "2006-01-02"

// EventTitle returns the calendar title for a subscription date.
func EventTitle(name string, kind models.EventKind) string {
	if kind == models.EventTrialEnd {
		return "Trial Ends: " + name
	}
	return "Subscription Renewal: " + name
}

// EventDescription always states the renewal or trial fact; amount, source
// email, and cancel link are added only when present.
func EventDescription(name string, date time.Time, kind models.EventKind, meta *models.EventMetadata) string {
	var b strings.Builder

	when := date.Format("January 2, 2006")
	if kind == models.EventTrialEnd {
		fmt.Fprintf(&b, "Your free trial of %s ends on %s.", name, when)
	} else {
		fmt.Fprintf(&b, "Your %s subscription renews on %s.", name, when)
	}

	if meta == nil {
		return b.String()
	}

	if meta.Amount != nil {
		amount := fmt.Sprintf("%.2f", *meta.Amount)
		if meta.Currency != "" {
			amount += " " + meta.Currency
		}
		fmt.Fprintf(&b, "\n\nAmount: %s", amount)
	}
	if meta.EmailSubject != "" {
		fmt.Fprintf(&b, "\nDetected from email: %s", meta.EmailSubject)
	}
	if meta.CancelURL != "" {
		fmt.Fprintf(&b, "\nCancel: %s", meta.CancelURL)
	}

	return b.String()
}

// buildEvent makes a single-day all-day event with reminders switched off;
// notifications are sent by the product itself.
func (e *Engine) buildEvent(name string, date time.Time, kind models.EventKind, meta *models.EventMetadata) *calendar.Event {
	day := date.Format(eventDateLayout)

	return &calendar.Event{
		Summary:     EventTitle(name, kind),
		Description: EventDescription(name, date, kind, meta),
		Start:       &calendar.EventDateTime{Date: day, TimeZone: e.timezone},
		End:         &calendar.EventDateTime{Date: day, TimeZone: e.timezone},
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       []*calendar.EventReminder{},
			ForceSendFields: []string{"UseDefault", "Overrides"},
		},
	}
}

// CreateSubscriptionEvent creates one event for a subscription, resolving the
// owner's calendar and client itself. An empty name uses the stored name.
func (e *Engine) CreateSubscriptionEvent(ctx context.Context, subscriptionID uuid.UUID, name string, date time.Time, kind models.EventKind, meta *models.EventMetadata) (string, error) {
	sub, err := db.GetSubscription(e.db, subscriptionID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return "", ErrSubscriptionNotFound
	}
	if name == "" {
		name = sub.Name
	}

	calendarID, err := e.GetOrCreateCalendar(ctx, sub.UserID)
	if err != nil {
		return "", err
	}

	svc, err := e.CalendarClient(ctx, sub.UserID)
	if err != nil {
		return "", err
	}

	eventID, _, err := e.createEventWithFallback(ctx, svc, sub.UserID, calendarID, subscriptionID, name, date, kind, meta)
	return eventID, err
}

// CreateSubscriptionEventWith creates one event against an already-resolved
// calendar and client. If stamping the subscription fails the event id is still
// returned, since the event exists upstream.
func (e *Engine) CreateSubscriptionEventWith(ctx context.Context, svc *calendar.Service, calendarID string, subscriptionID uuid.UUID, name string, date time.Time, kind models.EventKind, meta *models.EventMetadata) (string, error) {
	event := e.buildEvent(name, date, kind, meta)

	created, err := svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create %s event for %s: %w", kind, name, err)
	}
	if created == nil || created.Id == "" {
		return "", ErrNoEventID
	}

	if err := db.SetSubscriptionEvent(e.db, subscriptionID, kind, calendarID, created.Id); err != nil {
		e.logger.Error("event created but subscription not stamped",
			"subscription", subscriptionID, "kind", kind, "event", created.Id, "err", err)
	}

	return created.Id, nil
}

// createEventWithFallback retries once in a fresh calendar when the cached one
// no longer exists upstream. It returns the calendar id actually used.
func (e *Engine) createEventWithFallback(ctx context.Context, svc *calendar.Service, userID, calendarID string, subscriptionID uuid.UUID, name string, date time.Time, kind models.EventKind, meta *models.EventMetadata) (string, string, error) {
	eventID, err := e.CreateSubscriptionEventWith(ctx, svc, calendarID, subscriptionID, name, date, kind, meta)
	if err == nil || !isNotFound(err) {
		return eventID, calendarID, err
	}

	e.logger.Warn("cached calendar missing upstream, recreating", "user", userID, "calendar", calendarID)

	if err := db.DeleteCalendarMapping(e.db, userID, calendarID); err != nil {
		return "", calendarID, err
	}

	freshID, err := e.resolveCalendar(ctx, svc, userID)
	if err != nil {
		return "", calendarID, err
	}

	eventID, err = e.CreateSubscriptionEventWith(ctx, svc, freshID, subscriptionID, name, date, kind, meta)
	return eventID, freshID, err
}

// DeleteSubscriptionEvent removes an event from a user's calendar.
func (e *Engine) DeleteSubscriptionEvent(ctx context.Context, userID, calendarID, eventID string) error {
	svc, err := e.CalendarClient(ctx, userID)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}

	return nil
}
