package service

import (
	"context"

	"github.com/vogiaan1904/ticketbottle-registration/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-registration/internal/domain"
)

type RegisterInput struct {
	EventID       string
	UserID        string
	AttendeeCount int
	Notes         string
}

type OutcomeKind string

const (
	OutcomeRegistered OutcomeKind = "registered"
	OutcomeWaitlisted OutcomeKind = "waitlisted"
)

// RegistrationResult is the discriminated outcome of an admission decision.
// A full event produces a waitlisted result, never an error.
type RegistrationResult struct {
	Kind         OutcomeKind           `json:"kind"`
	Registration *domain.Registration  `json:"registration,omitempty"`
	Entry        *domain.WaitlistEntry `json:"waitlist_entry,omitempty"`
}

// NotificationDispatcher is the outbound fan-out boundary (email worker and
// real-time gateway sit behind the broker). Calls return immediately; their
// failure never affects the admission or cancellation result.
type NotificationDispatcher interface {
	NewRegistration(ctx context.Context, event kafka.RegistrationCreatedEvent)
	RegistrationCancelled(ctx context.Context, event kafka.RegistrationCancelledEvent)
	AttendeesCountUpdate(ctx context.Context, event kafka.AttendeeCountUpdatedEvent)
	WaitlistPromotion(ctx context.Context, event kafka.WaitlistPromotedEvent)
	AvailabilityChanged(ctx context.Context, event kafka.AvailabilityChangedEvent)
}
