package domain

import "time"

type EventType string

const (
	EventAccountAdded     EventType = "account_added"
	EventAccountRemoved   EventType = "account_removed"
	EventAccountRotated   EventType = "account_rotated"
	EventAccountError     EventType = "account_error"
	EventAccountRecovered EventType = "account_recovered"
	EventSessionStarted   EventType = "session_started"
	EventSessionEnded     EventType = "session_ended"
	EventQuotaLow         EventType = "quota_low"
	EventQuotaExhausted   EventType = "quota_exhausted"
	EventQuotaReset       EventType = "quota_reset"
	EventPoolEmpty        EventType = "pool_empty"
	EventSettingsUpdated  EventType = "settings_updated"
)

// Event is an immutable audit record emitted on every pool state transition.
type Event struct {
	Type      EventType
	AccountID AccountID
	Message   string
	At        time.Time
}
