package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vogiaan1904/ticketbottle-registration/internal/domain"
	"github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

type pgEventRepository struct {
	db *pgxpool.Pool
	l  logger.Logger
}

func NewPgEventRepository(db *pgxpool.Pool, l logger.Logger) EventRepository {
	return &pgEventRepository{
		db: db,
		l:  l,
	}
}

func (r *pgEventRepository) GetByID(ctx context.Context, eID string) (*domain.Event, error) {
	var e domain.Event
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, name, capacity, status, starts_at, created_at, updated_at
		 FROM events WHERE id = $1`,
		eID,
	).Scan(&e.ID, &e.OwnerID, &e.Name, &e.Capacity, &e.Status, &e.StartsAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.l.Errorf(ctx, "repository.pgEventRepository.GetByID: %v", err)
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return &e, nil
}

func (r *pgEventRepository) Stats(ctx context.Context, eID string) (*domain.EventStats, error) {
	stats := domain.EventStats{EventID: eID}

	err := r.db.QueryRow(ctx,
		`SELECT
			e.capacity,
			COUNT(r.id) FILTER (WHERE r.status IN ('pending', 'confirmed')),
			COUNT(r.id) FILTER (WHERE r.status = 'confirmed'),
			COUNT(r.id) FILTER (WHERE r.checked_in_at IS NOT NULL)
		 FROM events e
		 LEFT JOIN registrations r ON r.event_id = e.id
		 WHERE e.id = $1
		 GROUP BY e.id`,
		eID,
	).Scan(&stats.Capacity, &stats.TotalActive, &stats.ConfirmedCount, &stats.CheckedInCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.l.Errorf(ctx, "repository.pgEventRepository.Stats: %v", err)
		return nil, fmt.Errorf("failed to get event stats: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM waitlist_entries
		 WHERE event_id = $1 AND status IN ('waiting', 'notified')`,
		eID,
	).Scan(&stats.WaitlistedCount)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgEventRepository.Stats: %v", err)
		return nil, fmt.Errorf("failed to count waitlist: %w", err)
	}

	return &stats, nil
}
