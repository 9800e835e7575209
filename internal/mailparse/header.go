package mailparse

import (
	"mime"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/ILPlais/imap2pg/internal/models"
)

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

var addressParser = &mail.AddressParser{WordDecoder: wordDecoder}

var messageIDPattern = regexp.MustCompile(`<([^>]+)>`)

// DecodeHeaderValue decodes RFC 2047 encoded words in a header value.
// Undecodable input is returned unchanged.
func DecodeHeaderValue(value string) string {
	if value == "" {
		return ""
	}
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// ParseDate parses an RFC 5322 date header and normalizes it to UTC. The
// destination store keeps naive-UTC timestamps, so the offset is folded in
// rather than kept. Absent or malformed input yields nil.
func ParseDate(value string) *time.Time {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := mail.ParseDate(value)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}

// ParseAddresses extracts (name, address) pairs from an address-list header.
// Entries without a usable address are dropped; a malformed list yields nil
// rather than an error.
func ParseAddresses(value string) []models.Address {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	list, err := addressParser.ParseList(value)
	if err != nil {
		// Some senders emit encoded words in places the strict parser
		// rejects; decoding first gives them a second chance.
		decoded := DecodeHeaderValue(value)
		if decoded == value {
			return nil
		}
		if list, err = addressParser.ParseList(decoded); err != nil {
			return nil
		}
	}

	addresses := make([]models.Address, 0, len(list))
	for _, entry := range list {
		address := strings.TrimSpace(entry.Address)
		if address == "" {
			continue
		}
		addresses = append(addresses, models.Address{
			Name:    strings.TrimSpace(entry.Name),
			Address: address,
		})
	}
	if len(addresses) == 0 {
		return nil
	}
	return addresses
}

// ParseMessageID extracts a single Message-ID, stripping angle brackets and
// surrounding whitespace. Returns "" when nothing usable remains.
func ParseMessageID(value string) string {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.Trim(trimmed, "<>")
	return strings.TrimSpace(trimmed)
}

// ParseMessageIDs extracts the ordered Message-ID list of a References-style
// header. Every <...> token is taken in header order; when no angle brackets
// are present the value is whitespace-split instead. The order is what thread
// reconstruction relies on.
func ParseMessageIDs(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	var ids []string
	for _, match := range messageIDPattern.FindAllStringSubmatch(value, -1) {
		if id := strings.TrimSpace(match[1]); id != "" {
			ids = append(ids, id)
		}
	}
	if ids != nil {
		return ids
	}

	for _, token := range strings.Fields(value) {
		if id := ParseMessageID(token); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
