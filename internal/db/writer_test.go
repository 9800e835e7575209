package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ILPlais/imap2pg/internal/db"
	"github.com/ILPlais/imap2pg/internal/models"
	"github.com/ILPlais/imap2pg/internal/testutil"
)

func sampleEmail() *models.ParsedEmail {
	sent := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	return &models.ParsedEmail{
		MessageID:     "sample-1@example.com",
		Subject:       "Quarterly report",
		SenderName:    "Alice",
		SenderAddress: "alice@example.com",
		DateSent:      &sent,
		InReplyTo:     "root@example.com",
		References:    []string{"root@example.com", "mid@example.com"},
		BodyText:      "Plain body.",
		BodyHTML:      "<p>HTML body.</p>",
		Recipients: map[models.RecipientType][]models.Address{
			models.RecipientTo: {{Name: "Bob", Address: "bob@example.com"}},
			models.RecipientCc: {{Address: "carol@example.com"}},
		},
		Headers: []models.HeaderField{
			{Name: "X-Mailer", Value: "TestMailer 1.0"},
		},
		Attachments: []models.AttachmentInfo{
			{Filename: "report.pdf", ContentType: "application/pdf", Size: int64Ptr(1024)},
		},
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestWriterInsertFullRecord(t *testing.T) {
	conn, cfg := testutil.NewTestDB(t)
	ctx := context.Background()

	folderID, err := db.ResolveFolder(ctx, conn, db.NewFolderCache(), "INBOX", "/")
	require.NoError(t, err)

	writer := db.NewWriter(cfg)
	raw := []byte("From: alice@example.com\r\n\r\nPlain body.\r\n")

	conn, outcome, err := writer.Insert(ctx, conn, sampleEmail(), raw, folderID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusInserted, outcome.Status)
	require.NotZero(t, outcome.EmailID)

	var subject, bodyText string
	var dateSent time.Time
	var storedRaw []byte
	require.NoError(t, conn.QueryRow(ctx,
		"SELECT subject, body_text, date_sent, raw_source FROM emails WHERE id = $1",
		outcome.EmailID).Scan(&subject, &bodyText, &dateSent, &storedRaw))
	assert.Equal(t, "Quarterly report", subject)
	assert.Equal(t, "Plain body.", bodyText)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), dateSent)
	assert.Equal(t, raw, storedRaw)

	var refs []string
	rows, err := conn.Query(ctx,
		"SELECT referenced_message_id FROM email_references WHERE email_id = $1 ORDER BY position",
		outcome.EmailID)
	require.NoError(t, err)
	for rows.Next() {
		var ref string
		require.NoError(t, rows.Scan(&ref))
		refs = append(refs, ref)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"root@example.com", "mid@example.com"}, refs)

	var recipientCount, headerCount int
	require.NoError(t, conn.QueryRow(ctx,
		"SELECT count(*) FROM recipients WHERE email_id = $1", outcome.EmailID).Scan(&recipientCount))
	assert.Equal(t, 2, recipientCount)
	require.NoError(t, conn.QueryRow(ctx,
		"SELECT count(*) FROM headers WHERE email_id = $1", outcome.EmailID).Scan(&headerCount))
	assert.Equal(t, 1, headerCount)

	var filename string
	var size *int64
	require.NoError(t, conn.QueryRow(ctx,
		"SELECT filename, size_bytes FROM attachments WHERE email_id = $1", outcome.EmailID).Scan(&filename, &size))
	assert.Equal(t, "report.pdf", filename)
	require.NotNil(t, size)
	assert.Equal(t, int64(1024), *size)
}

func TestWriterDuplicateIsBenign(t *testing.T) {
	conn, cfg := testutil.NewTestDB(t)
	ctx := context.Background()

	folderID, err := db.ResolveFolder(ctx, conn, db.NewFolderCache(), "INBOX", "/")
	require.NoError(t, err)

	writer := db.NewWriter(cfg)
	raw := []byte("From: alice@example.com\r\n\r\nbody\r\n")

	conn, first, err := writer.Insert(ctx, conn, sampleEmail(), raw, folderID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusInserted, first.Status)

	conn, second, err := writer.Insert(ctx, conn, sampleEmail(), raw, folderID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusAlreadyExists, second.Status)

	var count int
	require.NoError(t, conn.QueryRow(ctx, "SELECT count(*) FROM emails").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWriterDuplicateWithoutSkipExisting(t *testing.T) {
	conn, cfg := testutil.NewTestDB(t)
	ctx := context.Background()

	// Force the unique constraint path instead of the existence probe.
	cfg.SkipExisting = false

	folderID, err := db.ResolveFolder(ctx, conn, db.NewFolderCache(), "INBOX", "/")
	require.NoError(t, err)

	writer := db.NewWriter(cfg)
	raw := []byte("From: alice@example.com\r\n\r\nbody\r\n")

	conn, _, err = writer.Insert(ctx, conn, sampleEmail(), raw, folderID)
	require.NoError(t, err)

	conn, outcome, err := writer.Insert(ctx, conn, sampleEmail(), raw, folderID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusAlreadyExists, outcome.Status)

	// The rolled-back attempt must not leave orphan child rows.
	var count int
	require.NoError(t, conn.QueryRow(ctx, "SELECT count(*) FROM email_references").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestWriterSameMessageInTwoFolders(t *testing.T) {
	conn, cfg := testutil.NewTestDB(t)
	ctx := context.Background()
	cache := db.NewFolderCache()

	inboxID, err := db.ResolveFolder(ctx, conn, cache, "INBOX", "/")
	require.NoError(t, err)
	archiveID, err := db.ResolveFolder(ctx, conn, cache, "Archives", "/")
	require.NoError(t, err)

	writer := db.NewWriter(cfg)
	raw := []byte("From: alice@example.com\r\n\r\nbody\r\n")

	conn, first, err := writer.Insert(ctx, conn, sampleEmail(), raw, inboxID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusInserted, first.Status)

	conn, second, err := writer.Insert(ctx, conn, sampleEmail(), raw, archiveID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusInserted, second.Status)

	var count int
	require.NoError(t, conn.QueryRow(ctx, "SELECT count(*) FROM emails").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestWriterMessagesWithoutMessageID(t *testing.T) {
	conn, cfg := testutil.NewTestDB(t)
	ctx := context.Background()

	folderID, err := db.ResolveFolder(ctx, conn, db.NewFolderCache(), "INBOX", "/")
	require.NoError(t, err)

	writer := db.NewWriter(cfg)

	// Two distinct messages lacking a Message-ID must both persist; NULL
	// values never collide on the dedup constraint.
	for i, raw := range [][]byte{
		[]byte("From: a@example.com\r\n\r\nfirst\r\n"),
		[]byte("From: a@example.com\r\n\r\nsecond\r\n"),
	} {
		email := &models.ParsedEmail{BodyText: string(raw)}
		var outcome db.InsertOutcome
		conn, outcome, err = writer.Insert(ctx, conn, email, raw, folderID)
		require.NoError(t, err, "insert %d", i)
		assert.Equal(t, db.StatusInserted, outcome.Status)
	}

	var count int
	require.NoError(t, conn.QueryRow(ctx,
		"SELECT count(*) FROM emails WHERE message_id IS NULL").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestWriterRecoversFromClosedConnection(t *testing.T) {
	conn, cfg := testutil.NewTestDB(t)
	ctx := context.Background()

	folderID, err := db.ResolveFolder(ctx, conn, db.NewFolderCache(), "INBOX", "/")
	require.NoError(t, err)

	writer := db.NewWriter(cfg)
	writer.BaseDelay = 10 * time.Millisecond

	// Kill the connection underneath the writer; the first attempt fails
	// transiently and the retry reconnects.
	require.NoError(t, conn.Close(ctx))

	raw := []byte("From: alice@example.com\r\n\r\nbody\r\n")
	fresh, outcome, err := writer.Insert(ctx, conn, sampleEmail(), raw, folderID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusInserted, outcome.Status)
	require.NotNil(t, fresh)
	assert.NotSame(t, conn, fresh)
	t.Cleanup(func() { _ = fresh.Close(context.Background()) })

	var count int
	require.NoError(t, fresh.QueryRow(ctx, "SELECT count(*) FROM emails").Scan(&count))
	assert.Equal(t, 1, count)
}
