package repository

import (
	"context"
	"time"

	"github.com/vogiaan1904/ticketbottle-registration/internal/domain"
)

// EventRepository reads event rows and dashboard aggregates.
type EventRepository interface {
	GetByID(ctx context.Context, eID string) (*domain.Event, error)
	Stats(ctx context.Context, eID string) (*domain.EventStats, error)
}

// RegistrationRepository owns all registration mutations. Locking discipline
// lives here, not in the services: the capacity check and the insert run in
// one transaction holding a row lock on the event.
type RegistrationRepository interface {
	// CreateIfCapacity inserts reg when the event still has room for its
	// attendee count. It returns (false, nil) when the event is full, which
	// is a handoff to the waitlist, not an error. Duplicate active
	// registrations surface as ErrDuplicateRegistration.
	// When force is true the capacity check is skipped; used for converting
	// a promoted waitlist entry whose seat is already spoken for.
	CreateIfCapacity(ctx context.Context, reg *domain.Registration, force bool) (bool, error)

	GetActiveByEventAndUser(ctx context.Context, eID, uID string) (*domain.Registration, error)
	GetLatestByEventAndUser(ctx context.Context, eID, uID string) (*domain.Registration, error)

	// MarkCancelled transitions an active registration to cancelled and
	// returns the updated row. Cancelling a row that is not active returns
	// ErrNotFound.
	MarkCancelled(ctx context.Context, regID string, at time.Time) (*domain.Registration, error)

	// MarkConfirmed transitions a pending registration to confirmed.
	MarkConfirmed(ctx context.Context, regID string, at time.Time) (*domain.Registration, error)

	// ActiveAttendeeCount sums attendee counts over pending and confirmed
	// registrations. Read fresh at every admission decision.
	ActiveAttendeeCount(ctx context.Context, eID string) (int, error)
}

// WaitlistRepository owns waitlist mutations and the per-event position
// sequence.
type WaitlistRepository interface {
	// Enqueue assigns entry.Position = max(position)+1 for the event under
	// the event row lock and inserts it. A second active entry for the same
	// (event, user) surfaces as ErrDuplicateWaitlistEntry.
	Enqueue(ctx context.Context, entry *domain.WaitlistEntry) error

	// ClaimNextWaiting atomically transitions the WAITING entry with the
	// smallest position to NOTIFIED and stamps its claim deadline. Returns
	// ErrNotFound when the queue is empty.
	ClaimNextWaiting(ctx context.Context, eID string, notifiedAt, expiresAt time.Time) (*domain.WaitlistEntry, error)

	GetActiveByEventAndUser(ctx context.Context, eID, uID string) (*domain.WaitlistEntry, error)

	MarkConverted(ctx context.Context, entryID string, at time.Time) error
	MarkExpired(ctx context.Context, entryID string) error

	// ListOverdue returns NOTIFIED entries whose claim deadline has passed,
	// oldest deadline first, for the expiry sweeper.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.WaitlistEntry, error)

	CountActive(ctx context.Context, eID string) (int, error)
}
