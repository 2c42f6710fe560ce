package postgres

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vogiaan1904/ticketbottle-registration/config"
	pkgPostgres "github.com/vogiaan1904/ticketbottle-registration/pkg/postgres"
)

func Connect(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	pool, err := pkgPostgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	log.Println("Connected to Postgres.")

	return pool, nil
}

func Disconnect(pool *pgxpool.Pool) {
	if pool == nil {
		return
	}

	pool.Close()

	log.Println("Connection to Postgres closed.")
}

// EnsureSchema creates the registration tables and the partial unique
// indexes that back the one-active-registration and one-active-waitlist-entry
// invariants. The indexes, not application checks, are the source of truth.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			name       TEXT NOT NULL,
			capacity   INTEGER,
			status     TEXT NOT NULL DEFAULT 'scheduled',
			starts_at  TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS registrations (
			id             TEXT PRIMARY KEY,
			event_id       TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			user_id        TEXT NOT NULL,
			attendee_count INTEGER NOT NULL CHECK (attendee_count >= 1),
			status         TEXT NOT NULL,
			notes          TEXT NOT NULL DEFAULT '',
			registered_at  TIMESTAMPTZ NOT NULL,
			confirmed_at   TIMESTAMPTZ,
			cancelled_at   TIMESTAMPTZ,
			checked_in_at  TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_registrations_active_user
			ON registrations (event_id, user_id)
			WHERE status IN ('pending', 'confirmed')`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_event_status
			ON registrations (event_id, status)`,
		`CREATE TABLE IF NOT EXISTS waitlist_entries (
			id          TEXT PRIMARY KEY,
			event_id    TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			user_id     TEXT NOT NULL,
			position    BIGINT NOT NULL,
			status      TEXT NOT NULL,
			enqueued_at TIMESTAMPTZ NOT NULL,
			notified_at TIMESTAMPTZ,
			expires_at  TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_waitlist_active_user
			ON waitlist_entries (event_id, user_id)
			WHERE status IN ('waiting', 'notified')`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_waitlist_event_position
			ON waitlist_entries (event_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_waitlist_overdue
			ON waitlist_entries (expires_at)
			WHERE status = 'notified'`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return nil
}
