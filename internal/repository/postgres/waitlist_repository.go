package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vogiaan1904/ticketbottle-registration/internal/domain"
	"github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

type pgWaitlistRepository struct {
	db *pgxpool.Pool
	l  logger.Logger
}

func NewPgWaitlistRepository(db *pgxpool.Pool, l logger.Logger) WaitlistRepository {
	return &pgWaitlistRepository{
		db: db,
		l:  l,
	}
}

const waitlistColumns = `id, event_id, user_id, position, status, enqueued_at, notified_at, expires_at`

// Enqueue assigns the next position under the event row lock. Positions come
// from max(position)+1, not wall-clock time, so concurrent enqueues never
// tie and promoted positions are never reused.
func (r *pgWaitlistRepository) Enqueue(ctx context.Context, entry *domain.WaitlistEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists string
	err = tx.QueryRow(ctx,
		`SELECT id FROM events WHERE id = $1 FOR UPDATE`,
		entry.EventID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		r.l.Errorf(ctx, "repository.pgWaitlistRepository.Enqueue: %v", err)
		return fmt.Errorf("failed to lock event row: %w", err)
	}

	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM waitlist_entries WHERE event_id = $1`,
		entry.EventID,
	).Scan(&entry.Position)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgWaitlistRepository.Enqueue: %v", err)
		return fmt.Errorf("failed to compute next position: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO waitlist_entries (id, event_id, user_id, position, status, enqueued_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.EventID, entry.UserID, entry.Position, entry.Status, entry.EnqueuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateWaitlistEntry
		}
		r.l.Errorf(ctx, "repository.pgWaitlistRepository.Enqueue: %v", err)
		return fmt.Errorf("failed to insert waitlist entry: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ClaimNextWaiting promotes in one statement so two concurrent cancellations
// can never notify the same entry. SKIP LOCKED lets the second caller move
// straight to the entry after the one being claimed.
func (r *pgWaitlistRepository) ClaimNextWaiting(ctx context.Context, eID string, notifiedAt, expiresAt time.Time) (*domain.WaitlistEntry, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE waitlist_entries
		 SET status = 'notified', notified_at = $2, expires_at = $3
		 WHERE id = (
			SELECT id FROM waitlist_entries
			WHERE event_id = $1 AND status = 'waiting'
			ORDER BY position
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+waitlistColumns,
		eID, notifiedAt, expiresAt,
	)
	return r.scanEntry(ctx, row, "ClaimNextWaiting")
}

func (r *pgWaitlistRepository) GetActiveByEventAndUser(ctx context.Context, eID, uID string) (*domain.WaitlistEntry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
		 WHERE event_id = $1 AND user_id = $2 AND status IN ('waiting', 'notified')`,
		eID, uID,
	)
	return r.scanEntry(ctx, row, "GetActiveByEventAndUser")
}

func (r *pgWaitlistRepository) MarkConverted(ctx context.Context, entryID string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE waitlist_entries
		 SET status = 'converted', notified_at = COALESCE(notified_at, $2)
		 WHERE id = $1 AND status = 'notified'`,
		entryID, at,
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgWaitlistRepository.MarkConverted: %v", err)
		return fmt.Errorf("failed to convert waitlist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *pgWaitlistRepository) MarkExpired(ctx context.Context, entryID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE waitlist_entries
		 SET status = 'expired'
		 WHERE id = $1 AND status = 'notified'`,
		entryID,
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgWaitlistRepository.MarkExpired: %v", err)
		return fmt.Errorf("failed to expire waitlist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *pgWaitlistRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.WaitlistEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
		 WHERE status = 'notified' AND expires_at <= $1
		 ORDER BY expires_at
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgWaitlistRepository.ListOverdue: %v", err)
		return nil, fmt.Errorf("failed to list overdue entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.WaitlistEntry
	for rows.Next() {
		var e domain.WaitlistEntry
		if err := rows.Scan(&e.ID, &e.EventID, &e.UserID, &e.Position, &e.Status, &e.EnqueuedAt, &e.NotifiedAt, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan waitlist entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (r *pgWaitlistRepository) CountActive(ctx context.Context, eID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM waitlist_entries
		 WHERE event_id = $1 AND status IN ('waiting', 'notified')`,
		eID,
	).Scan(&count)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgWaitlistRepository.CountActive: %v", err)
		return 0, fmt.Errorf("failed to count waitlist entries: %w", err)
	}

	return count, nil
}

func (r *pgWaitlistRepository) scanEntry(ctx context.Context, row pgx.Row, op string) (*domain.WaitlistEntry, error) {
	var e domain.WaitlistEntry
	err := row.Scan(&e.ID, &e.EventID, &e.UserID, &e.Position, &e.Status, &e.EnqueuedAt, &e.NotifiedAt, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.l.Errorf(ctx, "repository.pgWaitlistRepository.%s: %v", op, err)
		return nil, fmt.Errorf("failed to scan waitlist entry: %w", err)
	}

	return &e, nil
}
