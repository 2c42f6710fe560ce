package domain

import "time"

type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "pending"
	RegistrationStatusConfirmed RegistrationStatus = "confirmed"
	RegistrationStatusCancelled RegistrationStatus = "cancelled"
)

// Registration is a user's claim on seats for an event. At most one
// non-cancelled registration may exist per (event, user) pair; the store
// enforces this with a partial unique index, not an application check.
type Registration struct {
	ID            string             `json:"id"`
	EventID       string             `json:"event_id"`
	UserID        string             `json:"user_id"`
	AttendeeCount int                `json:"attendee_count"`
	Status        RegistrationStatus `json:"status"`
	Notes         string             `json:"notes,omitempty"`
	RegisteredAt  time.Time          `json:"registered_at"`
	ConfirmedAt   *time.Time         `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty"`
	CheckedInAt   *time.Time         `json:"checked_in_at,omitempty"`
}

// IsActive reports whether the registration counts against event capacity.
func (r *Registration) IsActive() bool {
	return r.Status == RegistrationStatusPending || r.Status == RegistrationStatusConfirmed
}

// IsCancelled reports whether the registration reached its terminal state.
// A cancelled registration is never resurrected; re-registering creates a
// new row.
func (r *Registration) IsCancelled() bool {
	return r.Status == RegistrationStatusCancelled
}
