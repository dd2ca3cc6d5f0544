// ABOUTME: Repair of duplicate dedicated calendars
// ABOUTME: Keeps one calendar matching the naming convention, deletes the rest, rewrites the mapping
package sync

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
)

// CleanupDuplicateCalendars keeps the first dedicated calendar the provider
// lists and deletes any others. Meant to be run out-of-band as a repair.
func (e *Engine) CleanupDuplicateCalendars(ctx context.Context, userID string) (models.CleanupResult, error) {
	svc, err := e.CalendarClient(ctx, userID)
	if err != nil {
		return models.CleanupResult{}, err
	}

	matches, err := e.listDedicatedCalendars(ctx, svc)
	if err != nil {
		return models.CleanupResult{}, err
	}

	if len(matches) <= 1 {
		e.logger.Info("no duplicate calendars", "user", userID, "matches", len(matches))
		return models.CleanupResult{}, nil
	}

	keep := matches[0]
	result := models.CleanupResult{KeptCalendar: keep.Id}

	for _, dup := range matches[1:] {
		if err := svc.Calendars.Delete(dup.Id).Context(ctx).Do(); err != nil {
			e.logger.Warn("failed to delete duplicate calendar", "user", userID, "calendar", dup.Id, "err", err)
			continue
		}
		result.DeletedCount++
	}

	mapping := &models.CalendarMapping{
		UserID:             userID,
		ExternalCalendarID: keep.Id,
		CalendarName:       keep.Summary,
	}
	if err := db.ReplaceCalendarMappings(e.db, mapping); err != nil {
		return result, fmt.Errorf("failed to rewrite calendar mapping: %w", err)
	}

	e.logger.Info("cleaned up duplicate calendars", "user", userID, "kept", keep.Id, "deleted", result.DeletedCount)
	return result, nil
}

// listDedicatedCalendars returns owned calendars whose name follows the
// product convention, in provider order, across all pages.
func (e *Engine) listDedicatedCalendars(ctx context.Context, svc *calendar.Service) ([]*calendar.CalendarListEntry, error) {
	var matches []*calendar.CalendarListEntry

	call := svc.CalendarList.List().MinAccessRole("owner").Context(ctx)
	pageToken := ""
	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list calendars: %w", err)
		}

		for _, entry := range page.Items {
			if e.isDedicatedCalendar(entry.Summary) {
				matches = append(matches, entry)
			}
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return matches, nil
		}
	}
}
