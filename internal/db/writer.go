package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ILPlais/imap2pg/internal/config"
	"github.com/ILPlais/imap2pg/internal/models"
)

// InsertStatus is the tri-state outcome of a persistence attempt.
type InsertStatus int

const (
	// StatusInserted means a new row was written.
	StatusInserted InsertStatus = iota
	// StatusAlreadyExists means the message was stored in this folder by
	// an earlier run. Benign; nothing was written.
	StatusAlreadyExists
	// StatusFailed means the message could not be persisted.
	StatusFailed
)

func (s InsertStatus) String() string {
	switch s {
	case StatusInserted:
		return "inserted"
	case StatusAlreadyExists:
		return "already exists"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("InsertStatus(%d)", int(s))
	}
}

// InsertOutcome reports what happened to one message.
type InsertOutcome struct {
	Status  InsertStatus
	EmailID int64
}

// Writer persists parsed messages, retrying transient failures with a
// reconnect between attempts.
type Writer struct {
	cfg *config.Config

	// MaxAttempts and BaseDelay control the retry loop; the delay doubles
	// after each failed attempt.
	MaxAttempts int
	BaseDelay   time.Duration
}

func NewWriter(cfg *config.Config) *Writer {
	return &Writer{
		cfg:         cfg,
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

// Insert stores one message and its child rows in a single transaction. It
// returns the connection to keep using, which may differ from conn when a
// transient failure forced a reconnect. A duplicate (message_id, folder_id)
// yields StatusAlreadyExists with a nil error.
func (w *Writer) Insert(ctx context.Context, conn *pgx.Conn, email *models.ParsedEmail, raw []byte, folderID int64) (*pgx.Conn, InsertOutcome, error) {
	delay := w.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= w.MaxAttempts; attempt++ {
		if attempt > 1 {
			log.Printf("Retrying insert of message %q (attempt %d/%d) after %s", email.MessageID, attempt, w.MaxAttempts, delay)
			select {
			case <-ctx.Done():
				return conn, InsertOutcome{Status: StatusFailed}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2

			fresh, err := Ensure(ctx, conn, w.cfg)
			if err != nil {
				lastErr = err
				continue
			}
			conn = fresh
		}

		outcome, err := w.insertOnce(ctx, conn, email, raw, folderID)
		if err == nil {
			return conn, outcome, nil
		}
		if IsDuplicate(err) {
			return conn, InsertOutcome{Status: StatusAlreadyExists}, nil
		}
		if !IsTransient(err) {
			return conn, InsertOutcome{Status: StatusFailed}, fmt.Errorf("failed to insert message %q: %s", email.MessageID, FormatError(err))
		}

		log.Printf("Warning: transient database error on message %q: %s", email.MessageID, FormatError(err))
		lastErr = err
	}

	return conn, InsertOutcome{Status: StatusFailed}, fmt.Errorf("failed to insert message %q after %d attempts: %s", email.MessageID, w.MaxAttempts, FormatError(lastErr))
}

func (w *Writer) insertOnce(ctx context.Context, conn *pgx.Conn, email *models.ParsedEmail, raw []byte, folderID int64) (InsertOutcome, error) {
	if w.cfg.SkipExisting && email.MessageID != "" {
		var exists bool
		err := conn.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM emails WHERE message_id = $1 AND folder_id = $2)",
			email.MessageID, folderID).Scan(&exists)
		if err != nil {
			return InsertOutcome{Status: StatusFailed}, err
		}
		if exists {
			return InsertOutcome{Status: StatusAlreadyExists}, nil
		}
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return InsertOutcome{Status: StatusFailed}, err
	}
	defer tx.Rollback(ctx)

	// Absent string fields become NULL rather than empty strings; in
	// particular a NULL message_id is exempt from the dedup constraint.
	var emailID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO emails (message_id, folder_id, subject, sender_name, sender_address,
		                     date_sent, in_reply_to, body_text, body_html, raw_source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		nullableText(email.MessageID), folderID, nullableText(email.Subject),
		nullableText(email.SenderName), nullableText(email.SenderAddress),
		email.DateSent, nullableText(email.InReplyTo),
		nullableText(email.BodyText), nullableText(email.BodyHTML), raw).Scan(&emailID)
	if err != nil {
		return InsertOutcome{Status: StatusFailed}, err
	}

	for i, ref := range email.References {
		_, err = tx.Exec(ctx,
			"INSERT INTO email_references (email_id, referenced_message_id, position) VALUES ($1, $2, $3)",
			emailID, ref, i)
		if err != nil {
			return InsertOutcome{Status: StatusFailed}, err
		}
	}

	for _, kind := range models.RecipientTypes {
		for _, addr := range email.Recipients[kind] {
			_, err = tx.Exec(ctx,
				"INSERT INTO recipients (email_id, recipient_type, recipient_name, recipient_address) VALUES ($1, $2, $3, $4)",
				emailID, string(kind), nullableText(addr.Name), addr.Address)
			if err != nil {
				return InsertOutcome{Status: StatusFailed}, err
			}
		}
	}

	for _, h := range email.Headers {
		_, err = tx.Exec(ctx,
			"INSERT INTO headers (email_id, header_name, header_value) VALUES ($1, $2, $3)",
			emailID, h.Name, h.Value)
		if err != nil {
			return InsertOutcome{Status: StatusFailed}, err
		}
	}

	for _, att := range email.Attachments {
		_, err = tx.Exec(ctx,
			"INSERT INTO attachments (email_id, filename, content_type, size_bytes) VALUES ($1, $2, $3, $4)",
			emailID, nullableText(att.Filename), nullableText(att.ContentType), att.Size)
		if err != nil {
			return InsertOutcome{Status: StatusFailed}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return InsertOutcome{Status: StatusFailed}, err
	}

	return InsertOutcome{Status: StatusInserted, EmailID: emailID}, nil
}
