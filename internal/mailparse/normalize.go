package mailparse

import (
	"bytes"
	"net/mail"
	"sort"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/ILPlais/imap2pg/internal/models"
)

// promotedHeaders are stored in dedicated columns and excluded from the
// residual header list.
var promotedHeaders = map[string]bool{
	"message-id":  true,
	"subject":     true,
	"from":        true,
	"to":          true,
	"cc":          true,
	"bcc":         true,
	"reply-to":    true,
	"date":        true,
	"in-reply-to": true,
	"references":  true,
}

// Normalize converts raw message bytes into a structured record. It is pure
// and total: malformed MIME degrades to a header-only parse, and a message
// that cannot be parsed at all yields an empty record, never an error.
func Normalize(raw []byte) *models.ParsedEmail {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil || envelope.Root == nil {
		return normalizeHeaderOnly(raw)
	}

	root := envelope.Root
	parsed := &models.ParsedEmail{Recipients: make(map[models.RecipientType][]models.Address)}
	populateFromHeaders(parsed, root.Header.Get)
	parsed.Headers = residualHeaders(root.Header)
	parsed.BodyText, parsed.BodyHTML = extractBodies(root)
	parsed.Attachments = extractAttachments(root)
	return parsed
}

// normalizeHeaderOnly recovers what it can from a message enmime rejects.
func normalizeHeaderOnly(raw []byte) *models.ParsedEmail {
	parsed := &models.ParsedEmail{Recipients: make(map[models.RecipientType][]models.Address)}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return parsed
	}
	populateFromHeaders(parsed, msg.Header.Get)
	parsed.Headers = residualHeaders(map[string][]string(msg.Header))
	return parsed
}

func populateFromHeaders(parsed *models.ParsedEmail, get func(string) string) {
	parsed.MessageID = ParseMessageID(get("Message-Id"))
	parsed.Subject = DecodeHeaderValue(get("Subject"))
	parsed.DateSent = ParseDate(get("Date"))
	parsed.InReplyTo = ParseMessageID(get("In-Reply-To"))
	parsed.References = ParseMessageIDs(get("References"))

	for _, recipientType := range models.RecipientTypes {
		if addresses := ParseAddresses(get(string(recipientType))); addresses != nil {
			parsed.Recipients[recipientType] = addresses
		}
	}

	if senders := parsed.Recipients[models.RecipientFrom]; len(senders) > 0 {
		parsed.SenderName = senders[0].Name
		parsed.SenderAddress = senders[0].Address
	}
}

// residualHeaders decodes every header without a dedicated column. Keys are
// sorted so the output is deterministic regardless of map iteration order.
func residualHeaders(header map[string][]string) []models.HeaderField {
	names := make([]string, 0, len(header))
	for name := range header {
		if !promotedHeaders[strings.ToLower(name)] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var fields []models.HeaderField
	for _, name := range names {
		for _, value := range header[name] {
			fields = append(fields, models.HeaderField{
				Name:  name,
				Value: DecodeHeaderValue(value),
			})
		}
	}
	return fields
}

// extractBodies walks the part tree in document order and assembles the text
// and HTML bodies. Parts marked as attachments are excluded; sibling parts of
// the same type are joined with newlines. A non-multipart message contributes
// its single part to whichever body matches its content type.
func extractBodies(root *enmime.Part) (text, html string) {
	if !isMultipart(root) {
		switch root.ContentType {
		case "text/plain":
			text = partText(root)
		case "text/html":
			html = partText(root)
		}
		return text, html
	}

	var textParts, htmlParts []string
	walkParts(root, func(part *enmime.Part) {
		if isMultipart(part) || isAttachment(part) {
			return
		}
		switch part.ContentType {
		case "text/plain":
			textParts = append(textParts, partText(part))
		case "text/html":
			htmlParts = append(htmlParts, partText(part))
		}
	})
	return strings.Join(textParts, "\n"), strings.Join(htmlParts, "\n")
}

// extractAttachments inventories attachment parts. Only multipart messages
// can carry attachments; the payload bytes stay in the raw source, so only
// filename, content type and decoded size are recorded.
func extractAttachments(root *enmime.Part) []models.AttachmentInfo {
	if !isMultipart(root) {
		return nil
	}

	var attachments []models.AttachmentInfo
	walkParts(root, func(part *enmime.Part) {
		if isMultipart(part) || !isAttachment(part) {
			return
		}
		info := models.AttachmentInfo{
			Filename:    part.FileName,
			ContentType: part.ContentType,
		}
		if part.Content != nil {
			size := int64(len(part.Content))
			info.Size = &size
		}
		attachments = append(attachments, info)
	})
	return attachments
}

// isAttachment reports whether a part belongs to the attachment inventory:
// either the disposition says so or the part carries a filename.
func isAttachment(part *enmime.Part) bool {
	return strings.EqualFold(part.Disposition, "attachment") || part.FileName != ""
}

func isMultipart(part *enmime.Part) bool {
	return strings.HasPrefix(part.ContentType, "multipart/")
}

func partText(part *enmime.Part) string {
	return DecodePayload(part.Content, part.Charset)
}

func walkParts(part *enmime.Part, visit func(*enmime.Part)) {
	if part == nil {
		return
	}
	visit(part)
	for child := part.FirstChild; child != nil; child = child.NextSibling {
		walkParts(child, visit)
	}
}
