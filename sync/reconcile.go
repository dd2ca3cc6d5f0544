// ABOUTME: Bulk reconciliation of subscriptions into calendar events
// ABOUTME: Sequentially creates every missing renewal/trial-end event for a user
package sync

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
)

// SyncAllSubscriptions creates the missing event for every date kind that has a
// date but no event yet. Calendar and client are resolved once for the run.
// Items are processed one at a time and a failed item never stops the run; the
// summary is always returned.
func (e *Engine) SyncAllSubscriptions(ctx context.Context, userID string) models.SyncSummary {
	calendarID, err := e.GetOrCreateCalendar(ctx, userID)
	if err != nil {
		e.abortRun(userID, "no calendar available", err)
		return models.SyncSummary{}
	}

	svc, err := e.CalendarClient(ctx, userID)
	if err != nil {
		e.abortRun(userID, "no calendar client available", err)
		return models.SyncSummary{}
	}

	if err := db.UpdateSyncStatus(e.db, userID, "syncing", nil); err != nil {
		e.logger.Warn("failed to update sync status", "user", userID, "err", err)
	}

	subs, err := db.FindUnsyncedSubscriptions(e.db, userID)
	if err != nil {
		e.abortRun(userID, "failed to load subscriptions", err)
		return models.SyncSummary{}
	}

	summary := models.SyncSummary{RunID: e.newRunID()}
	e.logger.Info("syncing subscriptions", "user", userID, "run", summary.RunID, "subscriptions", len(subs))

	for i := range subs {
		sub := &subs[i]
		for _, kind := range models.EventKinds {
			if !sub.NeedsEvent(kind) {
				continue
			}

			eventID, usedCalendar, err := e.syncOne(ctx, svc, calendarID, sub, kind)
			calendarID = usedCalendar
			if err != nil {
				summary.Failed++
				e.logger.Error("failed to sync subscription event",
					"user", userID, "subscription", sub.ID, "kind", kind, "err", err)
				continue
			}

			summary.Success++
			entry := &db.SyncLogEntry{
				ID:             e.newRunID(),
				RunID:          summary.RunID,
				SubscriptionID: sub.ID.String(),
				Kind:           kind,
				CalendarID:     calendarID,
				EventID:        eventID,
			}
			if err := db.CreateSyncLog(e.db, entry); err != nil {
				e.logger.Warn("failed to write sync log", "run", summary.RunID, "err", err)
			}
		}
	}

	if err := db.CompleteSyncRun(e.db, userID, summary.RunID); err != nil {
		e.logger.Warn("failed to record sync run", "user", userID, "err", err)
	}

	e.logger.Info("sync complete", "user", userID, "run", summary.RunID, "success", summary.Success, "failed", summary.Failed)
	return summary
}

// syncOne creates one event, turning a panic into an error so the batch continues.
func (e *Engine) syncOne(ctx context.Context, svc *calendar.Service, calendarID string, sub *models.Subscription, kind models.EventKind) (eventID, usedCalendar string, err error) {
	usedCalendar = calendarID
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic syncing subscription %s: %v", sub.ID, r)
		}
	}()

	date := sub.DateFor(kind)
	if date == nil {
		return "", calendarID, fmt.Errorf("subscription %s has no %s date", sub.ID, kind)
	}

	return e.createEventWithFallback(ctx, svc, sub.UserID, calendarID, sub.ID, sub.Name, *date, kind, sub.MetadataFor())
}

func (e *Engine) abortRun(userID, reason string, err error) {
	e.logger.Warn("sync aborted: "+reason, "user", userID, "err", err)

	msg := fmt.Sprintf("%s: %v", reason, err)
	if err := db.UpdateSyncStatus(e.db, userID, "error", &msg); err != nil {
		e.logger.Warn("failed to update sync status", "user", userID, "err", err)
	}
}
