// ABOUTME: Calendar connection status for UI gating
// ABOUTME: Combines scope possession with token freshness under a forward buffer
package sync

import "time"

// ConnectionBuffer makes status report disconnected slightly before the client
// factory would refuse the token, so a "connected" badge is never followed by a failed call.
const ConnectionBuffer = 5 * time.Minute

// IsCalendarConnected reports whether the user's credential carries calendar
// scope and stays valid for at least ConnectionBuffer.
func (e *Engine) IsCalendarConnected(userID string) bool {
	cred := e.loadCredential(userID)
	if cred == nil {
		return false
	}

	hasScope := cred.HasScope(CalendarScopeFragment)
	isValid := cred.ExpiresAt.After(e.now().Add(ConnectionBuffer))

	return hasScope && isValid
}
