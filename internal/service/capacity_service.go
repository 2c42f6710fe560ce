package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vogiaan1904/ticketbottle-registration/internal/cache"
	"github.com/vogiaan1904/ticketbottle-registration/internal/domain"
	repo "github.com/vogiaan1904/ticketbottle-registration/internal/repository/postgres"
	"github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

type CapacityTracker interface {
	// ActiveCount is read fresh from the store at every call; admission
	// decisions must never see a cached value.
	ActiveCount(ctx context.Context, eID string) (int, error)

	// Stats serves dashboards and may be up to one cache TTL stale.
	Stats(ctx context.Context, eID string) (*domain.EventStats, error)
}

type capacityTracker struct {
	eventRepo repo.EventRepository
	regRepo   repo.RegistrationRepository
	stats     cache.StatsCache
	l         logger.Logger
}

func NewCapacityTracker(
	eventRepo repo.EventRepository,
	regRepo repo.RegistrationRepository,
	stats cache.StatsCache,
	l logger.Logger,
) CapacityTracker {
	return &capacityTracker{
		eventRepo: eventRepo,
		regRepo:   regRepo,
		stats:     stats,
		l:         l,
	}
}

func (t *capacityTracker) ActiveCount(ctx context.Context, eID string) (int, error) {
	count, err := t.regRepo.ActiveAttendeeCount(ctx, eID)
	if err != nil {
		return 0, fmt.Errorf("failed to get active count: %w", err)
	}

	return count, nil
}

func (t *capacityTracker) Stats(ctx context.Context, eID string) (*domain.EventStats, error) {
	if t.stats != nil {
		cached, err := t.stats.GetStats(ctx, eID)
		if err != nil {
			t.l.Warnf(ctx, "service.capacityTracker.Stats: cache read failed: %v", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	stats, err := t.eventRepo.Stats(ctx, eID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event stats: %w", err)
	}

	if t.stats != nil {
		if err := t.stats.SetStats(ctx, stats); err != nil {
			t.l.Warnf(ctx, "service.capacityTracker.Stats: cache write failed: %v", err)
		}
	}

	return stats, nil
}
