package db_test

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/ILPlais/imap2pg/internal/db"
)

func pgError(code, constraint string) *pgconn.PgError {
	return &pgconn.PgError{
		Severity:       "ERROR",
		Code:           code,
		Message:        "test error",
		ConstraintName: constraint,
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", pgError(pgerrcode.SerializationFailure, ""), true},
		{"deadlock", pgError(pgerrcode.DeadlockDetected, ""), true},
		{"too many connections", pgError(pgerrcode.TooManyConnections, ""), true},
		{"admin shutdown", pgError(pgerrcode.AdminShutdown, ""), true},
		{"connection failure class", pgError(pgerrcode.ConnectionFailure, ""), true},
		{"unique violation", pgError(pgerrcode.UniqueViolation, "emails_message_id_folder_id_key"), false},
		{"not null violation", pgError(pgerrcode.NotNullViolation, ""), false},
		{"syntax error", pgError(pgerrcode.SyntaxError, ""), false},
		{"wrapped pg error", fmt.Errorf("insert: %w", pgError(pgerrcode.DeadlockDetected, "")), true},
		{"net error", &net.OpError{Op: "write", Err: errors.New("broken pipe")}, true},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"closed connection", errors.New("failed to begin: conn closed"), true},
		{"plain error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, db.IsTransient(tt.err))
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, db.IsDuplicate(pgError(pgerrcode.UniqueViolation, "emails_message_id_folder_id_key")))
	assert.True(t, db.IsDuplicate(fmt.Errorf("insert: %w", pgError(pgerrcode.UniqueViolation, "emails_message_id_folder_id_key"))))
	assert.False(t, db.IsDuplicate(pgError(pgerrcode.UniqueViolation, "folders_full_path_key")))
	assert.False(t, db.IsDuplicate(pgError(pgerrcode.NotNullViolation, "")))
	assert.False(t, db.IsDuplicate(errors.New("duplicate key")))
}

func TestFormatError(t *testing.T) {
	err := &pgconn.PgError{
		Severity:       "ERROR",
		Code:           pgerrcode.UniqueViolation,
		Message:        "duplicate key value violates unique constraint",
		ConstraintName: "emails_message_id_folder_id_key",
		TableName:      "emails",
	}
	formatted := db.FormatError(err)
	assert.Contains(t, formatted, "SQLSTATE 23505")
	assert.Contains(t, formatted, "constraint=emails_message_id_folder_id_key")
	assert.Contains(t, formatted, "table=emails")

	assert.Equal(t, "plain failure", db.FormatError(errors.New("plain failure")))
}
