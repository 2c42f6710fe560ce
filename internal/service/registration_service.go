package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vogiaan1904/ticketbottle-registration/internal/cache"
	"github.com/vogiaan1904/ticketbottle-registration/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-registration/internal/domain"
	repo "github.com/vogiaan1904/ticketbottle-registration/internal/repository/postgres"
	"github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

// RegistrationService is the facade external callers use; everything else
// in this package sits behind it.
type RegistrationService interface {
	Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error)
	Cancel(ctx context.Context, eID, uID string) (*domain.Registration, error)
	Confirm(ctx context.Context, eID, uID string) (*domain.Registration, error)
	Stats(ctx context.Context, eID string) (*domain.EventStats, error)
}

type registrationService struct {
	eventRepo  repo.EventRepository
	regRepo    repo.RegistrationRepository
	admission  AdmissionController
	waitlist   WaitlistManager
	tracker    CapacityTracker
	dispatcher NotificationDispatcher
	stats      cache.StatsCache
	l          logger.Logger
}

func NewRegistrationService(
	eventRepo repo.EventRepository,
	regRepo repo.RegistrationRepository,
	admission AdmissionController,
	waitlist WaitlistManager,
	tracker CapacityTracker,
	dispatcher NotificationDispatcher,
	stats cache.StatsCache,
	l logger.Logger,
) RegistrationService {
	return &registrationService{
		eventRepo:  eventRepo,
		regRepo:    regRepo,
		admission:  admission,
		waitlist:   waitlist,
		tracker:    tracker,
		dispatcher: dispatcher,
		stats:      stats,
		l:          l,
	}
}

func (s *registrationService) Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error) {
	event, err := s.getEvent(ctx, in.EventID)
	if err != nil {
		return nil, err
	}

	if !event.IsOpenForRegistration() {
		return nil, ErrEventClosed
	}

	res, err := s.admission.Admit(ctx, event, in)
	if err != nil {
		return nil, err
	}

	if res.Kind == OutcomeRegistered {
		reg := res.Registration
		s.dispatcher.NewRegistration(ctx, kafka.RegistrationCreatedEvent{
			RegistrationID: reg.ID,
			EventID:        event.ID,
			OwnerID:        event.OwnerID,
			UserID:         reg.UserID,
			AttendeeCount:  reg.AttendeeCount,
			RegisteredAt:   reg.RegisteredAt,
		})
		s.broadcastCount(ctx, event)

		s.l.Infof(ctx, "User registered: event_id=%s user_id=%s attendees=%d",
			event.ID, reg.UserID, reg.AttendeeCount)
	}

	s.invalidateStats(ctx, event)

	return res, nil
}

func (s *registrationService) Cancel(ctx context.Context, eID, uID string) (*domain.Registration, error) {
	event, err := s.getEvent(ctx, eID)
	if err != nil {
		return nil, err
	}

	reg, err := s.regRepo.GetLatestByEventAndUser(ctx, eID, uID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to look up registration: %w", err)
	}
	if reg.IsCancelled() {
		return nil, ErrAlreadyCancelled
	}

	cancelled, err := s.regRepo.MarkCancelled(ctx, reg.ID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Lost a race with another cancellation of the same row.
			return nil, ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("failed to cancel registration: %w", err)
	}

	s.dispatcher.RegistrationCancelled(ctx, kafka.RegistrationCancelledEvent{
		RegistrationID: cancelled.ID,
		EventID:        event.ID,
		OwnerID:        event.OwnerID,
		UserID:         cancelled.UserID,
		CancelledAt:    *cancelled.CancelledAt,
	})
	s.broadcastCount(ctx, event)

	// The cancellation is committed at this point; drop the cached stats
	// even if the promotion below fails.
	s.invalidateStats(ctx, event)

	// The freed seat goes to the next in line before this request returns;
	// promotion is never deferred to the background sweep.
	if _, err := s.waitlist.PromoteNext(ctx, eID); err != nil {
		return nil, fmt.Errorf("failed to promote after cancellation: %w", err)
	}

	s.l.Infof(ctx, "Registration cancelled: event_id=%s user_id=%s", eID, uID)

	return cancelled, nil
}

func (s *registrationService) Confirm(ctx context.Context, eID, uID string) (*domain.Registration, error) {
	event, err := s.getEvent(ctx, eID)
	if err != nil {
		return nil, err
	}

	reg, err := s.regRepo.GetActiveByEventAndUser(ctx, eID, uID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to look up registration: %w", err)
	}
	if reg.Status == domain.RegistrationStatusConfirmed {
		return reg, nil
	}

	confirmed, err := s.regRepo.MarkConfirmed(ctx, reg.ID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to confirm registration: %w", err)
	}

	s.invalidateStats(ctx, event)

	return confirmed, nil
}

func (s *registrationService) Stats(ctx context.Context, eID string) (*domain.EventStats, error) {
	return s.tracker.Stats(ctx, eID)
}

func (s *registrationService) getEvent(ctx context.Context, eID string) (*domain.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// broadcastCount fans out the fresh seat count to event viewers, plus an
// availability broadcast when a capacity-bounded event has seats open.
func (s *registrationService) broadcastCount(ctx context.Context, event *domain.Event) {
	count, err := s.tracker.ActiveCount(ctx, event.ID)
	if err != nil {
		s.l.Errorf(ctx, "service.registrationService.broadcastCount: %v", err)
		return
	}

	s.dispatcher.AttendeesCountUpdate(ctx, kafka.AttendeeCountUpdatedEvent{
		EventID:     event.ID,
		ActiveCount: count,
		Capacity:    event.Capacity,
	})

	if event.Capacity != nil && *event.Capacity-count > 0 {
		s.dispatcher.AvailabilityChanged(ctx, kafka.AvailabilityChangedEvent{
			EventID:        event.ID,
			SeatsAvailable: *event.Capacity - count,
		})
	}
}

func (s *registrationService) invalidateStats(ctx context.Context, event *domain.Event) {
	if s.stats == nil {
		return
	}
	if err := s.stats.InvalidateOwner(ctx, event.OwnerID, event.ID); err != nil {
		s.l.Warnf(ctx, "service.registrationService.invalidateStats: %v", err)
	}
}
