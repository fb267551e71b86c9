package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgDuplicateKeyCode = "23505"

	sqliteBusyCode       = 5
	sqliteConstraintPK   = 1555
	sqliteConstraintUniq = 2067

	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// MapError translates database errors to domain errors.
// It maps sql.ErrNoRows to notFoundErr, and PostgreSQL unique violations
// (23505) or SQLite primary key and unique violations to duplicateErr.
// Other errors are returned unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateKeyCode {
		return duplicateErr
	}

	if code, ok := sqliteCode(err); ok && (code == sqliteConstraintPK || code == sqliteConstraintUniq) {
		return duplicateErr
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return duplicateErr
	}

	return err
}

// RetryOnBusy runs op, retrying with exponential backoff while SQLite
// reports the database as busy or locked.
func RetryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func sqliteCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code(), true
	}
	return 0, false
}

func isBusy(err error) bool {
	if code, ok := sqliteCode(err); ok && code&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
