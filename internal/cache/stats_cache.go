// Package cache holds the dashboard-facing read cache. It is informational
// only: admission decisions never read from here.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/ticketbottle-registration/internal/domain"
	"github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

// StatsCache briefly caches event stats aggregates and supports owner-keyed
// invalidation whenever an event's registration state changes.
type StatsCache interface {
	GetStats(ctx context.Context, eID string) (*domain.EventStats, error)
	SetStats(ctx context.Context, stats *domain.EventStats) error
	InvalidateOwner(ctx context.Context, ownerID string, eID string) error
}

type redisStatsCache struct {
	cli *redis.Client
	ttl time.Duration
	l   logger.Logger
}

func NewRedisStatsCache(cli *redis.Client, ttl time.Duration, l logger.Logger) StatsCache {
	return &redisStatsCache{
		cli: cli,
		ttl: ttl,
		l:   l,
	}
}

// GetStats returns (nil, nil) on a cache miss.
func (c *redisStatsCache) GetStats(ctx context.Context, eID string) (*domain.EventStats, error) {
	data, err := c.cli.Get(ctx, statsKey(eID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		c.l.Errorf(ctx, "cache.redisStatsCache.GetStats: %v", err)
		return nil, fmt.Errorf("failed to read stats from cache: %w", err)
	}

	var stats domain.EventStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached stats: %w", err)
	}

	return &stats, nil
}

func (c *redisStatsCache) SetStats(ctx context.Context, stats *domain.EventStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	if err := c.cli.Set(ctx, statsKey(stats.EventID), data, c.ttl).Err(); err != nil {
		c.l.Errorf(ctx, "cache.redisStatsCache.SetStats: %v", err)
		return fmt.Errorf("failed to write stats to cache: %w", err)
	}

	return nil
}

// InvalidateOwner drops the event's stats entry and the owner's dashboard
// key. Called after every registration state change; a failed invalidation
// only delays the dashboard by one TTL.
func (c *redisStatsCache) InvalidateOwner(ctx context.Context, ownerID string, eID string) error {
	if err := c.cli.Del(ctx, statsKey(eID), ownerDashboardKey(ownerID)).Err(); err != nil {
		c.l.Errorf(ctx, "cache.redisStatsCache.InvalidateOwner: %v", err)
		return fmt.Errorf("failed to invalidate stats cache: %w", err)
	}

	return nil
}

// Prefix keys to avoid collisions
func statsKey(eID string) string {
	return fmt.Sprintf("registration:stats:%s", eID)
}

func ownerDashboardKey(ownerID string) string {
	return fmt.Sprintf("registration:dashboard:%s", ownerID)
}
