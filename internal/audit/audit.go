// Package audit appends one CSV line per stored message so a run leaves a
// human-readable trace next to the database.
package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ILPlais/imap2pg/internal/models"
)

var header = []string{"message_id", "date_sent", "sender_address", "subject", "full_path"}

// Log writes audit records to a CSV file. Records are flushed as they are
// written so a crash loses at most the line in flight.
type Log struct {
	file   *os.File
	writer *csv.Writer
}

// Open opens (or creates) the audit file in append mode and writes the
// header row when the file is empty.
func Open(path string) (*Log, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}

	l := &Log{file: file, writer: csv.NewWriter(file)}

	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}
	if size == 0 {
		if err := l.writeRow(header); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return l, nil
}

// Record appends one line for a stored message.
func (l *Log) Record(email *models.ParsedEmail, folderPath string) error {
	dateSent := ""
	if email.DateSent != nil {
		dateSent = email.DateSent.Format(time.RFC3339)
	}
	return l.writeRow([]string{email.MessageID, dateSent, email.SenderAddress, email.Subject, folderPath})
}

func (l *Log) writeRow(row []string) error {
	if err := l.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush audit record: %w", err)
	}
	return nil
}

// Close flushes pending output and closes the file.
func (l *Log) Close() error {
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}
