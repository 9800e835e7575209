package imap

import (
	"fmt"

	"github.com/emersion/go-imap"
)

// SearchAll returns the sequence numbers of every message in the currently
// selected folder, in ascending order.
func (s *Session) SearchAll() ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	seqNums, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search folder: %w", err)
	}
	return seqNums, nil
}
