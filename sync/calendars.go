// ABOUTME: Dedicated calendar lookup and creation
// ABOUTME: Finds or creates the per-user calendar and caches it in calendar_mappings
package sync

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
)

const calendarDescription = "Renewal and trial-end dates for your tracked subscriptions. Managed automatically."

// GetOrCreateCalendar returns the user's dedicated calendar id, creating the
// calendar on first use. A cached mapping is trusted without asking the provider.
func (e *Engine) GetOrCreateCalendar(ctx context.Context, userID string) (string, error) {
	if id, err := e.cachedCalendar(userID); err != nil || id != "" {
		return id, err
	}

	svc, err := e.CalendarClient(ctx, userID)
	if err != nil {
		return "", err
	}

	return e.createCalendar(ctx, svc, userID)
}

// resolveCalendar is GetOrCreateCalendar with an already-built client.
func (e *Engine) resolveCalendar(ctx context.Context, svc *calendar.Service, userID string) (string, error) {
	if id, err := e.cachedCalendar(userID); err != nil || id != "" {
		return id, err
	}
	return e.createCalendar(ctx, svc, userID)
}

func (e *Engine) cachedCalendar(userID string) (string, error) {
	mapping, err := db.GetCalendarMapping(e.db, userID)
	if err != nil {
		return "", err
	}
	if mapping != nil && mapping.ExternalCalendarID != "" {
		return mapping.ExternalCalendarID, nil
	}
	return "", nil
}

// createCalendar creates a calendar upstream and records it. The mapping insert
// is the gate against concurrent first use: if another request already stored a
// mapping, ours is discarded and the stored one wins.
func (e *Engine) createCalendar(ctx context.Context, svc *calendar.Service, userID string) (string, error) {
	name := e.calendarName()

	created, err := svc.Calendars.Insert(&calendar.Calendar{
		Summary:     name,
		Description: calendarDescription,
		TimeZone:    e.timezone,
	}).Context(ctx).Do()
	if err != nil {
		e.logger.Error("failed to create calendar", "user", userID, "err", err)
		return "", fmt.Errorf("failed to create calendar: %w", err)
	}
	if created == nil || created.Id == "" {
		return "", ErrNoCalendar
	}

	mapping := &models.CalendarMapping{
		UserID:             userID,
		ExternalCalendarID: created.Id,
		CalendarName:       name,
	}

	stored, err := db.InsertCalendarMapping(e.db, mapping)
	if err != nil {
		// The calendar exists upstream even though the cache write failed.
		e.logger.Error("calendar created but mapping not saved", "user", userID, "calendar", created.Id, "err", err)
		return created.Id, nil
	}
	if stored {
		e.logger.Info("created dedicated calendar", "user", userID, "calendar", created.Id, "name", name)
		return created.Id, nil
	}

	winner, err := db.GetCalendarMapping(e.db, userID)
	if err != nil || winner == nil {
		e.logger.Error("lost calendar mapping race but cannot read winner", "user", userID, "calendar", created.Id, "err", err)
		return created.Id, nil
	}

	if err := svc.Calendars.Delete(created.Id).Context(ctx).Do(); err != nil {
		e.logger.Warn("failed to delete losing calendar; duplicate cleanup will remove it",
			"user", userID, "calendar", created.Id, "err", err)
	}

	e.logger.Info("calendar already mapped by concurrent request", "user", userID, "calendar", winner.ExternalCalendarID)
	return winner.ExternalCalendarID, nil
}
