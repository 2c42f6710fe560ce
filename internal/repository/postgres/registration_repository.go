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

type pgRegistrationRepository struct {
	db *pgxpool.Pool
	l  logger.Logger
}

func NewPgRegistrationRepository(db *pgxpool.Pool, l logger.Logger) RegistrationRepository {
	return &pgRegistrationRepository{
		db: db,
		l:  l,
	}
}

const registrationColumns = `id, event_id, user_id, attendee_count, status, notes,
	registered_at, confirmed_at, cancelled_at, checked_in_at`

// CreateIfCapacity serialises concurrent admissions on the event row.
//
// Two transactions that both read the active count before either inserts
// would both see free capacity and overshoot it. SELECT ... FOR UPDATE on
// the event row blocks the second transaction until the first commits, so
// the count it reads already includes the first insert.
func (r *pgRegistrationRepository) CreateIfCapacity(ctx context.Context, reg *domain.Registration, force bool) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var capacity *int
	err = tx.QueryRow(ctx,
		`SELECT capacity FROM events WHERE id = $1 FOR UPDATE`,
		reg.EventID,
	).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		r.l.Errorf(ctx, "repository.pgRegistrationRepository.CreateIfCapacity: %v", err)
		return false, fmt.Errorf("failed to lock event row: %w", err)
	}

	if !force && capacity != nil {
		var active int
		err = tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(attendee_count), 0) FROM registrations
			 WHERE event_id = $1 AND status IN ('pending', 'confirmed')`,
			reg.EventID,
		).Scan(&active)
		if err != nil {
			r.l.Errorf(ctx, "repository.pgRegistrationRepository.CreateIfCapacity: %v", err)
			return false, fmt.Errorf("failed to count active registrations: %w", err)
		}

		if active+reg.AttendeeCount > *capacity {
			_ = tx.Rollback(ctx)
			return false, nil
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO registrations (id, event_id, user_id, attendee_count, status, notes, registered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		reg.ID, reg.EventID, reg.UserID, reg.AttendeeCount, reg.Status, reg.Notes, reg.RegisteredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrDuplicateRegistration
		}
		r.l.Errorf(ctx, "repository.pgRegistrationRepository.CreateIfCapacity: %v", err)
		return false, fmt.Errorf("failed to insert registration: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

func (r *pgRegistrationRepository) GetActiveByEventAndUser(ctx context.Context, eID, uID string) (*domain.Registration, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1 AND user_id = $2 AND status IN ('pending', 'confirmed')`,
		eID, uID,
	)
	return r.scanRegistration(ctx, row, "GetActiveByEventAndUser")
}

func (r *pgRegistrationRepository) GetLatestByEventAndUser(ctx context.Context, eID, uID string) (*domain.Registration, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1 AND user_id = $2
		 ORDER BY registered_at DESC
		 LIMIT 1`,
		eID, uID,
	)
	return r.scanRegistration(ctx, row, "GetLatestByEventAndUser")
}

func (r *pgRegistrationRepository) MarkCancelled(ctx context.Context, regID string, at time.Time) (*domain.Registration, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE registrations
		 SET status = 'cancelled', cancelled_at = $2
		 WHERE id = $1 AND status IN ('pending', 'confirmed')
		 RETURNING `+registrationColumns,
		regID, at,
	)
	return r.scanRegistration(ctx, row, "MarkCancelled")
}

func (r *pgRegistrationRepository) MarkConfirmed(ctx context.Context, regID string, at time.Time) (*domain.Registration, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE registrations
		 SET status = 'confirmed', confirmed_at = $2
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+registrationColumns,
		regID, at,
	)
	return r.scanRegistration(ctx, row, "MarkConfirmed")
}

func (r *pgRegistrationRepository) ActiveAttendeeCount(ctx context.Context, eID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(attendee_count), 0) FROM registrations
		 WHERE event_id = $1 AND status IN ('pending', 'confirmed')`,
		eID,
	).Scan(&count)
	if err != nil {
		r.l.Errorf(ctx, "repository.pgRegistrationRepository.ActiveAttendeeCount: %v", err)
		return 0, fmt.Errorf("failed to count active registrations: %w", err)
	}

	return count, nil
}

func (r *pgRegistrationRepository) scanRegistration(ctx context.Context, row pgx.Row, op string) (*domain.Registration, error) {
	var reg domain.Registration
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &reg.AttendeeCount, &reg.Status, &reg.Notes,
		&reg.RegisteredAt, &reg.ConfirmedAt, &reg.CancelledAt, &reg.CheckedInAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.l.Errorf(ctx, "repository.pgRegistrationRepository.%s: %v", op, err)
		return nil, fmt.Errorf("failed to scan registration: %w", err)
	}

	return &reg, nil
}
