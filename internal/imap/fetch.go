package imap

import (
	"fmt"
	"io"

	"github.com/emersion/go-imap"
)

// FetchRaw retrieves the full RFC 822 source of the given messages in a
// single round trip. Messages the server omits from the response are simply
// absent from the result.
func (s *Session) FetchRaw(seqNums []uint32) ([][]byte, error) {
	if len(seqNums) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqSet, items, messages)
	}()

	var raw [][]byte
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		data, err := io.ReadAll(body)
		if err != nil {
			continue
		}
		raw = append(raw, data)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return raw, nil
}
