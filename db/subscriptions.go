// ABOUTME: Subscription database operations
// ABOUTME: Handles subscription storage, sync selection, and calendar event stamping
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/subcal/models"
)

const subscriptionColumns = `id, user_id, name, renewal_date, trial_end_date, renewal_event_id, trial_end_event_id,
	calendar_id, cancel_url, amount, currency, source_email_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// dateOnly drops the clock so a date round-trips through SQLite unchanged.
func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var renewalDate, trialEndDate sql.NullTime
	var renewalEventID, trialEndEventID, calendarID sql.NullString
	var cancelURL, currency, sourceEmailID sql.NullString
	var amount sql.NullFloat64

	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Name,
		&renewalDate,
		&trialEndDate,
		&renewalEventID,
		&trialEndEventID,
		&calendarID,
		&cancelURL,
		&amount,
		&currency,
		&sourceEmailID,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if renewalDate.Valid {
		sub.RenewalDate = &renewalDate.Time
	}
	if trialEndDate.Valid {
		sub.TrialEndDate = &trialEndDate.Time
	}
	if renewalEventID.Valid {
		sub.RenewalEventID = &renewalEventID.String
	}
	if trialEndEventID.Valid {
		sub.TrialEndEventID = &trialEndEventID.String
	}
	if calendarID.Valid {
		sub.CalendarID = &calendarID.String
	}
	if amount.Valid {
		sub.Amount = &amount.Float64
	}
	sub.CancelURL = cancelURL.String
	sub.Currency = currency.String
	sub.SourceEmailID = sourceEmailID.String

	return sub, nil
}

func CreateSubscription(db *sql.DB, sub *models.Subscription) error {
	sub.ID = uuid.New()
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	sub.RenewalDate = dateOnly(sub.RenewalDate)
	sub.TrialEndDate = dateOnly(sub.TrialEndDate)

	_, err := db.Exec(`
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sub.ID.String(), sub.UserID, sub.Name, sub.RenewalDate, sub.TrialEndDate,
		sub.RenewalEventID, sub.TrialEndEventID, sub.CalendarID,
		nullString(sub.CancelURL), sub.Amount, nullString(sub.Currency), nullString(sub.SourceEmailID),
		sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

// UpdateSubscriptionDetails rewrites the extractor-owned fields, leaving event stamps alone.
func UpdateSubscriptionDetails(db *sql.DB, sub *models.Subscription) error {
	sub.UpdatedAt = time.Now()
	sub.RenewalDate = dateOnly(sub.RenewalDate)
	sub.TrialEndDate = dateOnly(sub.TrialEndDate)

	_, err := db.Exec(`
		UPDATE subscriptions
		SET name = ?, renewal_date = ?, trial_end_date = ?, cancel_url = ?, amount = ?, currency = ?, updated_at = ?
		WHERE id = ?
	`, sub.Name, sub.RenewalDate, sub.TrialEndDate, nullString(sub.CancelURL), sub.Amount,
		nullString(sub.Currency), sub.UpdatedAt, sub.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	return nil
}

func GetSubscription(db *sql.DB, id uuid.UUID) (*models.Subscription, error) {
	row := db.QueryRow(`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id.String())

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// GetSubscriptionBySourceEmail finds the subscription extracted from a given email, or nil.
func GetSubscriptionBySourceEmail(db *sql.DB, userID, sourceEmailID string) (*models.Subscription, error) {
	row := db.QueryRow(`
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ? AND source_email_id = ?
	`, userID, sourceEmailID)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription by source email: %w", err)
	}

	return sub, nil
}

func FindSubscriptions(db *sql.DB, userID string) ([]models.Subscription, error) {
	return querySubscriptions(db, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ?
		ORDER BY created_at
	`, userID)
}

// FindUnsyncedSubscriptions returns the user's subscriptions that have at least one
// date kind set without a mirrored event for that kind.
func FindUnsyncedSubscriptions(db *sql.DB, userID string) ([]models.Subscription, error) {
	return querySubscriptions(db, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ?
		  AND ((renewal_date IS NOT NULL AND renewal_event_id IS NULL)
		    OR (trial_end_date IS NOT NULL AND trial_end_event_id IS NULL))
		ORDER BY created_at
	`, userID)
}

func querySubscriptions(db *sql.DB, query string, args ...any) ([]models.Subscription, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}

// SetSubscriptionEvent stamps the event id for one date kind and the calendar it lives in.
func SetSubscriptionEvent(db *sql.DB, id uuid.UUID, kind models.EventKind, calendarID, eventID string) error {
	var column string
	switch kind {
	case models.EventRenewal:
		column = "renewal_event_id"
	case models.EventTrialEnd:
		column = "trial_end_event_id"
	default:
		return fmt.Errorf("unknown event kind %q", kind)
	}

	result, err := db.Exec(`
		UPDATE subscriptions SET `+column+` = ?, calendar_id = ?, updated_at = ?
		WHERE id = ?
	`, eventID, calendarID, time.Now(), id.String())
	if err != nil {
		return fmt.Errorf("failed to stamp subscription event: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("subscription %s not found", id)
	}

	return nil
}
