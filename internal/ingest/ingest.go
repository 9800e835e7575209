// Package ingest walks an IMAP account folder by folder and stores every
// message in the database. One message failing never stops the run.
package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"

	"github.com/ILPlais/imap2pg/internal/audit"
	"github.com/ILPlais/imap2pg/internal/config"
	"github.com/ILPlais/imap2pg/internal/db"
	"github.com/ILPlais/imap2pg/internal/imap"
	"github.com/ILPlais/imap2pg/internal/mailparse"
)

// Stats summarizes one ingestion run.
type Stats struct {
	Folders   int
	Processed int
	Inserted  int
	Skipped   int
	Errors    int
}

// Ingestor drives one run: enumerate folders, resolve them to rows, then
// fetch and persist every message.
type Ingestor struct {
	cfg     *config.Config
	session *imap.Session
	conn    *pgx.Conn
	writer  *db.Writer
	cache   *db.FolderCache
	audit   *audit.Log
	stats   Stats
}

// New assembles an Ingestor from already-connected resources. The audit log
// may be nil. The Ingestor takes ownership of the session and connection;
// release both with Close.
func New(cfg *config.Config, session *imap.Session, conn *pgx.Conn, auditLog *audit.Log) *Ingestor {
	return &Ingestor{
		cfg:     cfg,
		session: session,
		conn:    conn,
		writer:  db.NewWriter(cfg),
		cache:   db.NewFolderCache(),
		audit:   auditLog,
	}
}

// Run processes every planned folder and returns the run totals. The
// returned stats are valid even when err is non-nil.
func (i *Ingestor) Run(ctx context.Context) (Stats, error) {
	defer func() {
		log.Printf("Done: %d inserted, %d already present, %d errors out of %d messages in %d folders",
			i.stats.Inserted, i.stats.Skipped, i.stats.Errors, i.stats.Processed, i.stats.Folders)
	}()

	folders, err := i.session.ListFolders()
	if err != nil {
		return i.stats, err
	}

	planned := i.planFolders(folders)
	if len(planned) == 0 {
		log.Printf("No folders to process")
		return i.stats, nil
	}

	// Resolve every folder row first so the hierarchy exists even for
	// folders whose message loop later fails.
	folderIDs := make(map[string]int64, len(planned))
	for _, folder := range planned {
		id, err := db.ResolveFolder(ctx, i.conn, i.cache, folder.Name, folder.Delimiter)
		if err != nil {
			return i.stats, fmt.Errorf("failed to resolve folder %q: %w", folder.Name, err)
		}
		folderIDs[folder.Name] = id
		i.stats.Folders++
	}

	for _, folder := range planned {
		if err := ctx.Err(); err != nil {
			return i.stats, err
		}
		if err := i.processFolder(ctx, folder, folderIDs[folder.Name]); err != nil {
			if ctx.Err() != nil {
				return i.stats, err
			}
			log.Printf("Warning: skipping folder %q: %v", folder.Name, err)
		}
	}

	return i.stats, nil
}

// planFolders applies the configured folder allow-list. Configured names may
// be given in decoded UTF-8 or raw modified UTF-7 form; names that match no
// server folder are skipped with a warning.
func (i *Ingestor) planFolders(folders []imap.FolderInfo) []imap.FolderInfo {
	var selectable []imap.FolderInfo
	for _, folder := range folders {
		if !folder.Selectable {
			log.Printf("Skipping non-selectable folder %q", folder.Name)
			continue
		}
		selectable = append(selectable, folder)
	}

	if len(i.cfg.Folders) == 0 {
		return selectable
	}

	byName := make(map[string]imap.FolderInfo, len(selectable))
	for _, folder := range selectable {
		byName[folder.Name] = folder
	}

	var planned []imap.FolderInfo
	for _, wanted := range i.cfg.Folders {
		folder, ok := byName[wanted]
		if !ok {
			folder, ok = byName[imap.DecodeUTF7(wanted)]
		}
		if !ok {
			log.Printf("Warning: configured folder %q does not exist on the server, skipping", wanted)
			continue
		}
		planned = append(planned, folder)
	}
	return planned
}

func (i *Ingestor) processFolder(ctx context.Context, folder imap.FolderInfo, folderID int64) error {
	total, err := i.session.SelectReadOnly(folder.Name)
	if err != nil {
		return err
	}
	log.Printf("Processing folder %q (%d messages)", folder.Name, total)

	seqNums, err := i.session.SearchAll()
	if err != nil {
		return err
	}
	if len(seqNums) == 0 {
		return nil
	}

	for start := 0; start < len(seqNums); start += i.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + i.cfg.BatchSize
		if end > len(seqNums) {
			end = len(seqNums)
		}

		if err := i.ensureConnections(ctx, folder.Name); err != nil {
			return err
		}

		batch, err := i.session.FetchRaw(seqNums[start:end])
		if err != nil {
			return err
		}

		for _, raw := range batch {
			i.processMessage(ctx, raw, folder.Name, folderID)
		}

		log.Printf("Folder %q: %d/%d messages", folder.Name, end, len(seqNums))
	}

	return nil
}

// ensureConnections probes both connections at the batch boundary. An IMAP
// reconnect drops the selected folder, so it re-selects before returning.
func (i *Ingestor) ensureConnections(ctx context.Context, folderName string) error {
	conn, err := db.Ensure(ctx, i.conn, i.cfg)
	if err != nil {
		return err
	}
	i.conn = conn

	reconnected, err := i.session.Ensure()
	if err != nil {
		return err
	}
	if reconnected {
		if _, err := i.session.SelectReadOnly(folderName); err != nil {
			return err
		}
	}
	return nil
}

// processMessage normalizes and persists one message. Failures are counted
// and logged; they never propagate.
func (i *Ingestor) processMessage(ctx context.Context, raw []byte, folderPath string, folderID int64) {
	i.stats.Processed++

	email := mailparse.Normalize(raw)

	conn, outcome, err := i.writer.Insert(ctx, i.conn, email, raw, folderID)
	i.conn = conn
	if err != nil {
		i.stats.Errors++
		log.Printf("Error storing message %q in %q: %v", email.MessageID, folderPath, err)
		return
	}

	switch outcome.Status {
	case db.StatusInserted:
		i.stats.Inserted++
		if i.cfg.Verbose {
			log.Printf("Stored message %q in %q", email.MessageID, folderPath)
		}
		if i.audit != nil {
			if err := i.audit.Record(email, folderPath); err != nil {
				log.Printf("Warning: audit record for message %q failed: %v", email.MessageID, err)
			}
		}
	case db.StatusAlreadyExists:
		i.stats.Skipped++
	}
}

// Close releases the IMAP session and database connection.
func (i *Ingestor) Close(ctx context.Context) {
	if i.session != nil {
		_ = i.session.Logout()
	}
	if i.conn != nil {
		_ = i.conn.Close(ctx)
	}
}
