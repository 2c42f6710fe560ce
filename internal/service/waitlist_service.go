package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/ticketbottle-registration/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-registration/internal/domain"
	repo "github.com/vogiaan1904/ticketbottle-registration/internal/repository/postgres"
	"github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

type WaitlistManager interface {
	// Enqueue appends the user to the event's queue. Positions are a
	// per-event monotonic sequence and are never reused.
	Enqueue(ctx context.Context, eID, uID string) (*domain.WaitlistEntry, error)

	// PromoteNext moves the first WAITING entry to NOTIFIED with a claim
	// deadline and fires the promotion notification. An empty queue returns
	// (nil, nil); that is the normal case, not an error.
	PromoteNext(ctx context.Context, eID string) (*domain.WaitlistEntry, error)

	// Convert marks a promoted entry as claimed once the user completes
	// their registration.
	Convert(ctx context.Context, entryID string, at time.Time) error

	// ExpireOverdue demotes NOTIFIED entries whose claim window has passed
	// and promotes the next in line for each affected event. Returns how
	// many entries expired. Driven by the expiry sweeper.
	ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

type waitlistManager struct {
	wlRepo          repo.WaitlistRepository
	dispatcher      NotificationDispatcher
	promotionWindow time.Duration
	l               logger.Logger
}

func NewWaitlistManager(
	wlRepo repo.WaitlistRepository,
	dispatcher NotificationDispatcher,
	promotionWindow time.Duration,
	l logger.Logger,
) WaitlistManager {
	return &waitlistManager{
		wlRepo:          wlRepo,
		dispatcher:      dispatcher,
		promotionWindow: promotionWindow,
		l:               l,
	}
}

func (m *waitlistManager) Enqueue(ctx context.Context, eID, uID string) (*domain.WaitlistEntry, error) {
	entry := &domain.WaitlistEntry{
		ID:         uuid.New().String(),
		EventID:    eID,
		UserID:     uID,
		Status:     domain.WaitlistStatusWaiting,
		EnqueuedAt: time.Now().UTC(),
	}

	if err := m.wlRepo.Enqueue(ctx, entry); err != nil {
		if errors.Is(err, repo.ErrDuplicateWaitlistEntry) {
			return nil, ErrAlreadyWaitlisted
		}
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to enqueue waitlist entry: %w", err)
	}

	m.l.Infof(ctx, "User waitlisted: event_id=%s user_id=%s position=%d", eID, uID, entry.Position)

	return entry, nil
}

func (m *waitlistManager) PromoteNext(ctx context.Context, eID string) (*domain.WaitlistEntry, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(m.promotionWindow)

	entry, err := m.wlRepo.ClaimNextWaiting(ctx, eID, now, expiresAt)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to promote next waitlist entry: %w", err)
	}

	m.dispatcher.WaitlistPromotion(ctx, kafka.WaitlistPromotedEvent{
		EntryID:   entry.ID,
		EventID:   entry.EventID,
		UserID:    entry.UserID,
		Position:  entry.Position,
		ExpiresAt: expiresAt,
	})

	m.l.Infof(ctx, "Waitlist entry promoted: event_id=%s user_id=%s position=%d expires_at=%s",
		entry.EventID, entry.UserID, entry.Position, expiresAt.Format(time.RFC3339))

	return entry, nil
}

func (m *waitlistManager) Convert(ctx context.Context, entryID string, at time.Time) error {
	if err := m.wlRepo.MarkConverted(ctx, entryID, at); err != nil {
		return fmt.Errorf("failed to convert waitlist entry: %w", err)
	}

	return nil
}

func (m *waitlistManager) ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	overdue, err := m.wlRepo.ListOverdue(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue entries: %w", err)
	}

	expired := 0
	for _, entry := range overdue {
		if err := m.wlRepo.MarkExpired(ctx, entry.ID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				// Claimed or expired by a concurrent sweep between the list
				// and the update; nothing to hand over.
				continue
			}
			return expired, fmt.Errorf("failed to expire entry %s: %w", entry.ID, err)
		}
		expired++

		m.l.Infof(ctx, "Waitlist entry expired: event_id=%s user_id=%s position=%d",
			entry.EventID, entry.UserID, entry.Position)

		// The expired promotion was holding a seat; hand it to the next in
		// line immediately rather than waiting for another cancellation.
		if _, err := m.PromoteNext(ctx, entry.EventID); err != nil {
			m.l.Errorf(ctx, "service.waitlistManager.ExpireOverdue: failed to promote after expiry: %v", err)
		}
	}

	return expired, nil
}
