package imap

import (
	"encoding/base64"
	"strings"
	"unicode/utf16"
)

// modifiedBase64 is the RFC 3501 variant of base64: "," instead of "/", no
// padding, and no nonzero trailing bits. Strict decoding matters: a shifted
// segment with leftover bits is not valid modified UTF-7 and must make the
// whole name fall back to its raw form.
var modifiedBase64 = base64.NewEncoding(
	"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,",
).WithPadding(base64.NoPadding).Strict()

// DecodeUTF7 converts a modified UTF-7 mailbox name (RFC 3501 section
// 5.1.3) to UTF-8. Names that are not valid modified UTF-7 are returned
// unchanged, so the result is always usable as a display name.
func DecodeUTF7(name string) string {
	if !strings.ContainsRune(name, '&') {
		return name
	}

	var out strings.Builder
	out.Grow(len(name))

	rest := name
	for {
		plain, shifted, found := strings.Cut(rest, "&")
		out.WriteString(plain)
		if !found {
			break
		}

		segment, after, _ := strings.Cut(shifted, "-")
		if segment == "" {
			// "&-" is the escaped ampersand.
			out.WriteByte('&')
			rest = after
			continue
		}

		decoded, ok := decodeSegment(segment)
		if !ok {
			return name
		}
		out.WriteString(decoded)
		rest = after
	}

	return out.String()
}

func decodeSegment(segment string) (string, bool) {
	raw, err := modifiedBase64.DecodeString(segment)
	if err != nil || len(raw)%2 != 0 {
		return "", false
	}

	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
	}

	runes := utf16.Decode(units)
	for _, r := range runes {
		// utf16.Decode maps unpaired surrogates to U+FFFD; a valid
		// segment never contains one.
		if r == '�' {
			return "", false
		}
		// RFC 3501 forbids encoding characters that fit unshifted.
		if r <= 0x7e {
			return "", false
		}
	}

	return string(runes), true
}
