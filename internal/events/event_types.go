package events

import "time"

// EventType enumerates account lifecycle events.
type EventType string

const (
	EventUserRegistered         EventType = "user_registered"
	EventAccountActivated       EventType = "account_activated"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordChanged        EventType = "password_changed"
)

// Event represents an account event emitted by services. Payloads never
// carry secrets: raw tokens and password material stay out of the event bus.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}
