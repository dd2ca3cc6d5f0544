// ABOUTME: Database operations for the oauth_credentials table
// ABOUTME: Reads and seeds per-user Google OAuth token records
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/subcal/models"
)

// GetOAuthCredential returns the credential for a user, or nil if none is stored.
func GetOAuthCredential(db *sql.DB, userID string) (*models.OAuthCredential, error) {
	cred := &models.OAuthCredential{}
	var refreshToken sql.NullString

	err := db.QueryRow(`
		SELECT user_id, access_token, refresh_token, scope, expires_at, created_at, updated_at
		FROM oauth_credentials WHERE user_id = ?
	`, userID).Scan(
		&cred.UserID,
		&cred.AccessToken,
		&refreshToken,
		&cred.Scope,
		&cred.ExpiresAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth credential: %w", err)
	}

	if refreshToken.Valid {
		cred.RefreshToken = refreshToken.String
	}

	return cred, nil
}

// SaveOAuthCredential inserts or replaces a user's credential.
func SaveOAuthCredential(db *sql.DB, cred *models.OAuthCredential) error {
	now := time.Now()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	_, err := db.Exec(`
		INSERT INTO oauth_credentials (user_id, access_token, refresh_token, scope, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			scope = excluded.scope,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, cred.UserID, cred.AccessToken, cred.RefreshToken, cred.Scope, cred.ExpiresAt, cred.CreatedAt, cred.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save oauth credential: %w", err)
	}

	return nil
}

// ListCredentialUserIDs returns every user that has a stored credential.
func ListCredentialUserIDs(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT user_id FROM oauth_credentials ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query credential users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan credential user: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	return userIDs, rows.Err()
}
