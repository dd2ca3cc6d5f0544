// ABOUTME: OAuth scope definitions for Google APIs
// ABOUTME: Names the scopes a stored credential needs for calendar sync
package sync

import (
	"strings"

	"google.golang.org/api/calendar/v3"
)

const (
	// CalendarScopeFragment is the substring a credential's scope must contain
	// for the calendar to count as connected.
	CalendarScopeFragment = "calendar"

	gmailReadonlyScope = "https://www.googleapis.com/auth/gmail.readonly"
)

// DefaultScopes are the scopes the surrounding app requests: mailbox read for
// extraction plus full calendar access for the dedicated calendar.
var DefaultScopes = []string{
	gmailReadonlyScope,
	calendar.CalendarScope,
}

// ScopeString joins scopes the way Google returns them in a token response.
func ScopeString(scopes []string) string {
	return strings.Join(scopes, " ")
}
