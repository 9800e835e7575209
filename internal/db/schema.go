package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// schemaStatements create the mailbox archive tables. Timestamps are stored
// naive: every date is normalized to UTC before it reaches the writer.
// message_id is nullable on purpose: messages without one never collide on
// the dedup constraint because NULLs compare distinct.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS folders (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		full_path  TEXT NOT NULL,
		parent_id  BIGINT REFERENCES folders(id) ON DELETE CASCADE,
		delimiter  TEXT,
		CONSTRAINT folders_full_path_key UNIQUE (full_path)
	)`,
	`CREATE TABLE IF NOT EXISTS emails (
		id             BIGSERIAL PRIMARY KEY,
		message_id     TEXT,
		folder_id      BIGINT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
		subject        TEXT,
		sender_name    TEXT,
		sender_address TEXT,
		date_sent      TIMESTAMP,
		in_reply_to    TEXT,
		body_text      TEXT,
		body_html      TEXT,
		raw_source     BYTEA NOT NULL,
		imported_at    TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
		CONSTRAINT emails_message_id_folder_id_key UNIQUE (message_id, folder_id)
	)`,
	`CREATE TABLE IF NOT EXISTS email_references (
		id                    BIGSERIAL PRIMARY KEY,
		email_id              BIGINT NOT NULL REFERENCES emails(id) ON DELETE CASCADE,
		referenced_message_id TEXT NOT NULL,
		position              INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS recipients (
		id                BIGSERIAL PRIMARY KEY,
		email_id          BIGINT NOT NULL REFERENCES emails(id) ON DELETE CASCADE,
		recipient_type    TEXT NOT NULL,
		recipient_name    TEXT,
		recipient_address TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS headers (
		id           BIGSERIAL PRIMARY KEY,
		email_id     BIGINT NOT NULL REFERENCES emails(id) ON DELETE CASCADE,
		header_name  TEXT NOT NULL,
		header_value TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id           BIGSERIAL PRIMARY KEY,
		email_id     BIGINT NOT NULL REFERENCES emails(id) ON DELETE CASCADE,
		filename     TEXT,
		content_type TEXT,
		size_bytes   BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS emails_folder_id_idx ON emails (folder_id)`,
	`CREATE INDEX IF NOT EXISTS email_references_email_id_idx ON email_references (email_id)`,
	`CREATE INDEX IF NOT EXISTS recipients_email_id_idx ON recipients (email_id)`,
	`CREATE INDEX IF NOT EXISTS headers_email_id_idx ON headers (email_id)`,
	`CREATE INDEX IF NOT EXISTS attachments_email_id_idx ON attachments (email_id)`,
}

// InitSchema creates every table and index the importer writes to. All
// statements are idempotent; running against an existing schema is a no-op.
func InitSchema(ctx context.Context, conn *pgx.Conn) error {
	for _, stmt := range schemaStatements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
