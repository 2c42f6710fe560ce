package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/ticketbottle-registration/internal/domain"
	repo "github.com/vogiaan1904/ticketbottle-registration/internal/repository/postgres"
	"github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

type AdmissionController interface {
	// Admit decides a signup request for an event already known to be open:
	// direct admission when a seat is available, waitlist enqueue when the
	// event is full. Exactly one active registration per (event, user).
	Admit(ctx context.Context, event *domain.Event, in RegisterInput) (*RegistrationResult, error)
}

type admissionController struct {
	regRepo  repo.RegistrationRepository
	wlRepo   repo.WaitlistRepository
	waitlist WaitlistManager
	l        logger.Logger
}

func NewAdmissionController(
	regRepo repo.RegistrationRepository,
	wlRepo repo.WaitlistRepository,
	waitlist WaitlistManager,
	l logger.Logger,
) AdmissionController {
	return &admissionController{
		regRepo:  regRepo,
		wlRepo:   wlRepo,
		waitlist: waitlist,
		l:        l,
	}
}

func (c *admissionController) Admit(ctx context.Context, event *domain.Event, in RegisterInput) (*RegistrationResult, error) {
	if in.AttendeeCount < 1 {
		return nil, ErrInvalidAttendeeCount
	}

	existing, err := c.regRepo.GetActiveByEventAndUser(ctx, event.ID, in.UserID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing registration: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyRegistered
	}

	entry, err := c.wlRepo.GetActiveByEventAndUser(ctx, event.ID, in.UserID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing waitlist entry: %w", err)
	}
	if entry != nil {
		now := time.Now().UTC()
		switch {
		case entry.ClaimableAt(now):
			// Promoted user claiming their seat: capacity was conceptually
			// reserved at promotion time, so admission skips the count.
			return c.convertPromoted(ctx, event, in, entry)
		case entry.OverdueAt(now):
			// Claim window already over; expire on access and fall through
			// to a fresh admission decision. The sweeper hands the reserved
			// seat to the next in line.
			if err := c.wlRepo.MarkExpired(ctx, entry.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
				return nil, fmt.Errorf("failed to expire overdue entry: %w", err)
			}
		default:
			return nil, ErrAlreadyWaitlisted
		}
	}

	admitted, reg, err := c.createRegistration(ctx, event, in, false)
	if err != nil {
		return nil, err
	}
	if admitted {
		return &RegistrationResult{Kind: OutcomeRegistered, Registration: reg}, nil
	}

	// Full event: hand off to the waitlist instead of rejecting.
	queued, err := c.waitlist.Enqueue(ctx, event.ID, in.UserID)
	if err != nil {
		return nil, err
	}

	return &RegistrationResult{Kind: OutcomeWaitlisted, Entry: queued}, nil
}

func (c *admissionController) convertPromoted(ctx context.Context, event *domain.Event, in RegisterInput, entry *domain.WaitlistEntry) (*RegistrationResult, error) {
	admitted, reg, err := c.createRegistration(ctx, event, in, true)
	if err != nil {
		return nil, err
	}
	if !admitted {
		// Unreachable with force set; kept for the compiler's sake.
		return nil, fmt.Errorf("forced admission rejected for event %s", event.ID)
	}

	if err := c.waitlist.Convert(ctx, entry.ID, reg.RegisteredAt); err != nil {
		c.l.Errorf(ctx, "service.admissionController.Admit: failed to convert entry %s: %v", entry.ID, err)
	}

	return &RegistrationResult{Kind: OutcomeRegistered, Registration: reg}, nil
}

// createRegistration performs the atomic count-then-insert. A unique
// violation means another request for the same user won the race; it is
// retried once with a fresh read before surfacing as a business rejection.
func (c *admissionController) createRegistration(ctx context.Context, event *domain.Event, in RegisterInput, force bool) (bool, *domain.Registration, error) {
	for attempt := 0; attempt < 2; attempt++ {
		reg := &domain.Registration{
			ID:            uuid.New().String(),
			EventID:       event.ID,
			UserID:        in.UserID,
			AttendeeCount: in.AttendeeCount,
			Status:        domain.RegistrationStatusPending,
			Notes:         in.Notes,
			RegisteredAt:  time.Now().UTC(),
		}

		admitted, err := c.regRepo.CreateIfCapacity(ctx, reg, force)
		if err == nil {
			return admitted, reg, nil
		}

		if errors.Is(err, repo.ErrDuplicateRegistration) {
			existing, readErr := c.regRepo.GetActiveByEventAndUser(ctx, event.ID, in.UserID)
			if readErr != nil && !errors.Is(readErr, repo.ErrNotFound) {
				return false, nil, fmt.Errorf("failed to re-read registration after conflict: %w", readErr)
			}
			if existing != nil {
				return false, nil, ErrAlreadyRegistered
			}
			// The conflicting row was cancelled between insert and re-read;
			// one more attempt with the index now clear.
			continue
		}

		if errors.Is(err, repo.ErrNotFound) {
			return false, nil, ErrEventNotFound
		}

		return false, nil, fmt.Errorf("failed to create registration: %w", err)
	}

	return false, nil, ErrAlreadyRegistered
}
