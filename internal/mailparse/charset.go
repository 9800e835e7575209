package mailparse

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message/charset"
	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func init() {
	// Legacy labels still seen in the wild that the charset registry does
	// not know out of the box. ASCII is a strict subset of UTF-8.
	charset.RegisterEncoding("ascii", unicode.UTF8)
	charset.RegisterEncoding("us-ascii", unicode.UTF8)
	charset.RegisterEncoding("cp1252", charmap.Windows1252)
	charset.RegisterEncoding("latin1", charmap.ISO8859_1)
}

// replacementChar substitutes bytes that survive no decoding attempt.
const replacementChar = "�"

// charsetReader resolves a charset label for RFC 2047 word decoding. Unknown
// labels degrade to UTF-8 with replacement runes so header decoding stays
// total.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	r, err := charset.Reader(strings.ToLower(label), input)
	if err == nil {
		return r, nil
	}

	raw, readErr := io.ReadAll(input)
	if readErr != nil {
		return nil, readErr
	}
	return strings.NewReader(strings.ToValidUTF8(string(raw), replacementChar)), nil
}

// DecodePayload converts raw part content to a UTF-8 string. It never fails:
// content that is already valid UTF-8 passes through, otherwise the declared
// charset is tried, then statistical detection over the raw bytes, and as a
// last resort the bytes are kept with invalid sequences replaced.
func DecodePayload(content []byte, declaredCharset string) string {
	if len(content) == 0 {
		return ""
	}

	if utf8.Valid(content) {
		return string(content)
	}

	if declaredCharset != "" {
		if decoded, err := decodeWithCharset(declaredCharset, content); err == nil {
			return decoded
		}
	}

	if result, err := chardet.NewTextDetector().DetectBest(content); err == nil && result.Charset != "" {
		if decoded, err := decodeWithCharset(result.Charset, content); err == nil {
			return decoded
		}
	}

	return strings.ToValidUTF8(string(content), replacementChar)
}

func decodeWithCharset(label string, content []byte) (string, error) {
	r, err := charset.Reader(strings.ToLower(label), bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
