package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicateRegistration  = errors.New("active registration already exists for this user and event")
	ErrDuplicateWaitlistEntry = errors.New("active waitlist entry already exists for this user and event")
)

const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a Postgres unique-index conflict.
// Concurrent duplicate inserts land here instead of in the application-level
// existence check.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
