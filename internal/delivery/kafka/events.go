package kafka

import "time"

// Events published by the registration service. Each topic is keyed by
// event id so consumers see per-event ordering.

type RegistrationCreatedEvent struct {
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	OwnerID        string    `json:"owner_id"`
	UserID         string    `json:"user_id"`
	AttendeeCount  int       `json:"attendee_count"`
	RegisteredAt   time.Time `json:"registered_at"`
	Timestamp      time.Time `json:"timestamp"`
}

type RegistrationCancelledEvent struct {
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	OwnerID        string    `json:"owner_id"`
	UserID         string    `json:"user_id"`
	CancelledAt    time.Time `json:"cancelled_at"`
	Timestamp      time.Time `json:"timestamp"`
}

type AttendeeCountUpdatedEvent struct {
	EventID     string    `json:"event_id"`
	ActiveCount int       `json:"active_count"`
	Capacity    *int      `json:"capacity,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type WaitlistPromotedEvent struct {
	EntryID   string    `json:"entry_id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Position  int64     `json:"position"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamp time.Time `json:"timestamp"`
}

type AvailabilityChangedEvent struct {
	EventID        string    `json:"event_id"`
	SeatsAvailable int       `json:"seats_available"`
	Timestamp      time.Time `json:"timestamp"`
}

// Topic names
const (
	TopicRegistrationCreated   = "REGISTRATION_CREATED"
	TopicRegistrationCancelled = "REGISTRATION_CANCELLED"
	TopicAttendeeCountUpdated  = "ATTENDEE_COUNT_UPDATED"
	TopicWaitlistPromoted      = "WAITLIST_PROMOTED"
	TopicAvailabilityChanged   = "AVAILABILITY_CHANGED"
)
