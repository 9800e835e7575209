package models

import "time"

// RecipientType identifies which address header a recipient was taken from.
type RecipientType string

const (
	RecipientFrom    RecipientType = "From"
	RecipientTo      RecipientType = "To"
	RecipientCc      RecipientType = "Cc"
	RecipientBcc     RecipientType = "Bcc"
	RecipientReplyTo RecipientType = "Reply-To"
)

// RecipientTypes lists all recipient header types in canonical order.
var RecipientTypes = []RecipientType{
	RecipientFrom,
	RecipientTo,
	RecipientCc,
	RecipientBcc,
	RecipientReplyTo,
}

// Address is one decoded mailbox from an address header.
type Address struct {
	Name    string
	Address string
}

// AttachmentInfo describes one attachment part. The payload itself is not
// carried here; it stays inside the raw message source. Size is nil when the
// part's payload could not be decoded.
type AttachmentInfo struct {
	Filename    string
	ContentType string
	Size        *int64
}

// HeaderField is one decoded header line that has no dedicated column.
type HeaderField struct {
	Name  string
	Value string
}

// ParsedEmail is the normalized form of one raw message, produced by the
// mailparse package and consumed by the persistence layer. String fields use
// "" for absent values; the persistence layer maps them to NULL where the
// schema allows it.
type ParsedEmail struct {
	MessageID     string
	Subject       string
	SenderName    string
	SenderAddress string
	DateSent      *time.Time
	InReplyTo     string
	References    []string
	BodyText      string
	BodyHTML      string
	Recipients    map[RecipientType][]Address
	Headers       []HeaderField
	Attachments   []AttachmentInfo
}

// Folder is one persisted node of the mailbox hierarchy.
type Folder struct {
	ID        int64
	Name      string
	FullPath  string
	ParentID  *int64
	Delimiter string
}
