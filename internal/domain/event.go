package domain

import "time"

type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Event is the registration-facing view of an event. Capacity is nil for
// unlimited events.
type Event struct {
	ID        string      `json:"id"`
	OwnerID   string      `json:"owner_id"`
	Name      string      `json:"name"`
	Capacity  *int        `json:"capacity,omitempty"`
	Status    EventStatus `json:"status"`
	StartsAt  time.Time   `json:"starts_at"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsOpenForRegistration reports whether the event still accepts signups.
// Completed and cancelled events are immutable for registration purposes.
func (e *Event) IsOpenForRegistration() bool {
	return e.Status != EventStatusCompleted && e.Status != EventStatusCancelled
}

// HasCapacityLimit reports whether admission decisions must count seats.
func (e *Event) HasCapacityLimit() bool {
	return e.Capacity != nil
}

// EventStats aggregates registration numbers for organizer dashboards.
type EventStats struct {
	EventID         string `json:"event_id"`
	TotalActive     int    `json:"total_active"`
	ConfirmedCount  int    `json:"confirmed_count"`
	WaitlistedCount int    `json:"waitlisted_count"`
	CheckedInCount  int    `json:"checked_in_count"`
	Capacity        *int   `json:"capacity,omitempty"`
}
