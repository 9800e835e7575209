package db

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// dedupConstraint guards one row per (message_id, folder_id). Hitting it is
// the normal outcome when re-running an import, not an error.
const dedupConstraint = "emails_message_id_folder_id_key"

// IsDuplicate reports whether err is the unique violation raised when a
// message is already stored in the same folder.
func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == dedupConstraint
}

// IsTransient reports whether err is worth retrying: connection loss,
// timeouts, lock contention, or the server shutting down or being
// momentarily saturated. Constraint and data errors are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure,
			pgerrcode.DeadlockDetected,
			pgerrcode.LockNotAvailable,
			pgerrcode.TooManyConnections,
			pgerrcode.AdminShutdown,
			pgerrcode.CrashShutdown,
			pgerrcode.CannotConnectNow:
			return true
		}
		return pgerrcode.IsConnectionException(pgErr.Code)
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// pgx reports writes on a dead connection with a plain error.
	return strings.Contains(err.Error(), "conn closed")
}

// FormatError renders err with the server-side details (SQLSTATE, severity,
// constraint) that a bare Error() string hides.
func FormatError(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (SQLSTATE %s)", pgErr.Severity, pgErr.Message, pgErr.Code)
	if pgErr.ConstraintName != "" {
		fmt.Fprintf(&b, " constraint=%s", pgErr.ConstraintName)
	}
	if pgErr.TableName != "" {
		fmt.Fprintf(&b, " table=%s", pgErr.TableName)
	}
	if pgErr.Detail != "" {
		fmt.Fprintf(&b, " detail=%s", pgErr.Detail)
	}
	return b.String()
}
