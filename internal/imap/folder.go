package imap

import (
	"fmt"

	"github.com/emersion/go-imap"
)

// FolderInfo describes one mailbox from the server's LIST response. Name is
// the decoded (UTF-8) full path.
type FolderInfo struct {
	Name       string
	Delimiter  string
	Selectable bool
}

// ListFolders enumerates every mailbox on the server.
func (s *Session) ListFolders() ([]FolderInfo, error) {
	mailboxes := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.client.List("", "*", mailboxes)
	}()

	var folders []FolderInfo
	for mbox := range mailboxes {
		info := FolderInfo{
			Name:       mbox.Name,
			Delimiter:  mbox.Delimiter,
			Selectable: true,
		}
		for _, attr := range mbox.Attributes {
			if attr == imap.NoSelectAttr {
				info.Selectable = false
				break
			}
		}
		folders = append(folders, info)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	return folders, nil
}

// SelectReadOnly opens the named mailbox in examine mode and returns its
// message count.
func (s *Session) SelectReadOnly(name string) (uint32, error) {
	status, err := s.client.Select(name, true)
	if err != nil {
		return 0, fmt.Errorf("failed to select folder %q: %w", name, err)
	}
	return status.Messages, nil
}
