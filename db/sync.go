// ABOUTME: Database operations for calendar_sync_state and sync_log tables
// ABOUTME: Tracks per-user reconcile runs and every event created by them
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/subcal/models"
)

// SyncState is the last reconcile status for one user.
type SyncState struct {
	UserID       string
	LastSyncTime *time.Time
	LastRunID    *string
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SyncLogEntry records one event created during a reconcile run.
type SyncLogEntry struct {
	ID             string
	RunID          string
	SubscriptionID string
	Kind           models.EventKind
	CalendarID     string
	EventID        string
	CreatedAt      time.Time
}

// GetSyncState retrieves the sync state for a user.
func GetSyncState(db *sql.DB, userID string) (*SyncState, error) {
	var state SyncState
	var lastSyncTime sql.NullTime
	var lastRunID sql.NullString
	var errorMessage sql.NullString

	err := db.QueryRow(`
		SELECT user_id, last_sync_time, last_run_id, status, error_message, created_at, updated_at
		FROM calendar_sync_state
		WHERE user_id = ?
	`, userID).Scan(
		&state.UserID,
		&lastSyncTime,
		&lastRunID,
		&state.Status,
		&errorMessage,
		&state.CreatedAt,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	if lastSyncTime.Valid {
		state.LastSyncTime = &lastSyncTime.Time
	}
	if lastRunID.Valid {
		state.LastRunID = &lastRunID.String
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}

	return &state, nil
}

// UpdateSyncStatus updates the sync status for a user.
func UpdateSyncStatus(db *sql.DB, userID, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO calendar_sync_state (user_id, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, userID, status, errorMsgVal)

	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	return nil
}

// CompleteSyncRun marks a user's run finished and records its id.
func CompleteSyncRun(db *sql.DB, userID, runID string) error {
	_, err := db.Exec(`
		INSERT INTO calendar_sync_state (user_id, last_sync_time, last_run_id, status, created_at, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, ?, 'idle', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			last_sync_time = CURRENT_TIMESTAMP,
			last_run_id = excluded.last_run_id,
			status = 'idle',
			error_message = NULL,
			updated_at = CURRENT_TIMESTAMP
	`, userID, runID)

	if err != nil {
		return fmt.Errorf("failed to complete sync run: %w", err)
	}

	return nil
}

// CreateSyncLog records an event created during a run.
func CreateSyncLog(db *sql.DB, entry *SyncLogEntry) error {
	_, err := db.Exec(`
		INSERT INTO sync_log (id, run_id, subscription_id, event_kind, calendar_id, event_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, entry.ID, entry.RunID, entry.SubscriptionID, string(entry.Kind), entry.CalendarID, entry.EventID)

	if err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}

	return nil
}

// GetSyncLog returns the entries written by one run, oldest first.
func GetSyncLog(db *sql.DB, runID string) ([]SyncLogEntry, error) {
	rows, err := db.Query(`
		SELECT id, run_id, subscription_id, event_kind, calendar_id, event_id, created_at
		FROM sync_log
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []SyncLogEntry
	for rows.Next() {
		var entry SyncLogEntry
		var kind string
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.SubscriptionID, &kind, &entry.CalendarID, &entry.EventID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		entry.Kind = models.EventKind(kind)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync log: %w", err)
	}

	return entries, nil
}
