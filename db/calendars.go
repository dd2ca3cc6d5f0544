// ABOUTME: Database operations for the calendar_mappings table
// ABOUTME: Caches which provider calendar is each user's dedicated calendar
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/subcal/models"
)

// GetCalendarMapping returns the user's mapping, or nil if none exists.
func GetCalendarMapping(db *sql.DB, userID string) (*models.CalendarMapping, error) {
	mapping := &models.CalendarMapping{}

	err := db.QueryRow(`
		SELECT id, user_id, external_calendar_id, calendar_name, created_at
		FROM calendar_mappings WHERE user_id = ?
	`, userID).Scan(
		&mapping.ID,
		&mapping.UserID,
		&mapping.ExternalCalendarID,
		&mapping.CalendarName,
		&mapping.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar mapping: %w", err)
	}

	return mapping, nil
}

// InsertCalendarMapping inserts the mapping unless the user already has one.
// It reports whether this call's row was the one stored.
func InsertCalendarMapping(db *sql.DB, mapping *models.CalendarMapping) (bool, error) {
	mapping.ID = uuid.New()
	mapping.CreatedAt = time.Now()

	result, err := db.Exec(`
		INSERT INTO calendar_mappings (id, user_id, external_calendar_id, calendar_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, mapping.ID.String(), mapping.UserID, mapping.ExternalCalendarID, mapping.CalendarName, mapping.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert calendar mapping: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return n == 1, nil
}

// ReplaceCalendarMappings deletes every mapping for the user and stores exactly one.
func ReplaceCalendarMappings(db *sql.DB, mapping *models.CalendarMapping) error {
	mapping.ID = uuid.New()
	mapping.CreatedAt = time.Now()

	return Transaction(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM calendar_mappings WHERE user_id = ?`, mapping.UserID); err != nil {
			return fmt.Errorf("failed to delete calendar mappings: %w", err)
		}

		_, err := tx.Exec(`
			INSERT INTO calendar_mappings (id, user_id, external_calendar_id, calendar_name, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, mapping.ID.String(), mapping.UserID, mapping.ExternalCalendarID, mapping.CalendarName, mapping.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert calendar mapping: %w", err)
		}

		return nil
	})
}

// DeleteCalendarMapping removes the user's mapping only if it still points at calendarID.
func DeleteCalendarMapping(db *sql.DB, userID, calendarID string) error {
	_, err := db.Exec(`
		DELETE FROM calendar_mappings WHERE user_id = ? AND external_calendar_id = ?
	`, userID, calendarID)
	if err != nil {
		return fmt.Errorf("failed to delete calendar mapping: %w", err)
	}
	return nil
}

// CountCalendarMappings returns how many mapping rows the user has.
func CountCalendarMappings(db *sql.DB, userID string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM calendar_mappings WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count calendar mappings: %w", err)
	}
	return count, nil
}
