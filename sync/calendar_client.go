// ABOUTME: Calendar API client setup for Google Calendar integration
// ABOUTME: Creates bearer-authenticated Calendar services from stored credentials
package sync

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harperreed/subcal/db"
	"github.com/harperreed/subcal/models"
)

// NewCalendarClient creates a Google Calendar API service from an OAuth token.
// The token is used as-is; it is never refreshed. An empty endpoint uses Google's.
func NewCalendarClient(ctx context.Context, token *oauth2.Token, endpoint string) (*calendar.Service, error) {
	if token == nil {
		return nil, fmt.Errorf("token cannot be nil")
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return service, nil
}

// loadCredential returns the user's credential, or nil when it is missing,
// unreadable, or has no access token.
func (e *Engine) loadCredential(userID string) *models.OAuthCredential {
	cred, err := db.GetOAuthCredential(e.db, userID)
	if err != nil {
		e.logger.Debug("credential unreadable", "user", userID, "err", err)
		return nil
	}
	if cred == nil || cred.AccessToken == "" {
		return nil
	}
	return cred
}

// CalendarClient builds an authenticated Calendar service for the user.
// Expiry is checked with no buffer: a token is usable until the instant it expires.
// No network call is made here.
func (e *Engine) CalendarClient(ctx context.Context, userID string) (*calendar.Service, error) {
	cred := e.loadCredential(userID)
	if cred == nil {
		return nil, ErrNotConnected
	}

	if !e.now().Before(cred.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	// Expiry is left zero so the transport never second-guesses the check above.
	token := &oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
	}

	return NewCalendarClient(ctx, token, e.endpoint)
}
