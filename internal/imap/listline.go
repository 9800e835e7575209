package imap

import (
	"fmt"
	"strings"
)

// ParseListLine splits a raw LIST response line of the form
//
//	* LIST (\HasNoChildren) "/" "Archives/2024"
//
// into the mailbox name and hierarchy delimiter. The name is returned in its
// wire form; apply DecodeUTF7 for display. A NIL delimiter yields "".
func ParseListLine(line string) (name, delimiter string, err error) {
	line = strings.TrimRight(line, "\r\n")

	end := strings.Index(line, ") ")
	if end < 0 {
		return "", "", fmt.Errorf("malformed LIST line: no attribute list in %q", line)
	}
	rest := strings.TrimLeft(line[end+2:], " ")

	delimiter, rest, err = takeToken(rest)
	if err != nil {
		return "", "", fmt.Errorf("malformed LIST line %q: %w", line, err)
	}
	if strings.EqualFold(delimiter, "NIL") {
		delimiter = ""
	}

	name = strings.TrimSpace(rest)
	if name == "" {
		return "", "", fmt.Errorf("malformed LIST line: no mailbox name in %q", line)
	}
	if strings.HasPrefix(name, `"`) {
		name, err = unquote(name)
		if err != nil {
			return "", "", fmt.Errorf("malformed LIST line %q: %w", line, err)
		}
	}

	return name, delimiter, nil
}

// ReassembleListLiteral merges a LIST line that announced its mailbox name
// as a literal ({n} followed by n raw bytes on the next line) back into a
// single parseable line.
func ReassembleListLiteral(prefix string, literal []byte) string {
	prefix = strings.TrimRight(prefix, "\r\n")
	if open := strings.LastIndex(prefix, "{"); open >= 0 && strings.HasSuffix(prefix, "}") {
		prefix = prefix[:open]
	}

	quoted := strings.ReplaceAll(string(literal), `\`, `\\`)
	quoted = strings.ReplaceAll(quoted, `"`, `\"`)
	return prefix + `"` + quoted + `"`
}

// takeToken consumes one delimiter token: a quoted string, NIL, or a bare
// atom.
func takeToken(s string) (token, rest string, err error) {
	if s == "" {
		return "", "", fmt.Errorf("missing delimiter token")
	}
	if s[0] == '"' {
		end := closingQuote(s)
		if end < 0 {
			return "", "", fmt.Errorf("unterminated quoted string")
		}
		token, err = unquote(s[:end+1])
		if err != nil {
			return "", "", err
		}
		return token, strings.TrimLeft(s[end+1:], " "), nil
	}

	token, rest, _ = strings.Cut(s, " ")
	return token, strings.TrimLeft(rest, " "), nil
}

// closingQuote returns the index of the quote ending the quoted string that
// starts at s[0], honoring backslash escapes.
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("not a quoted string: %q", s)
	}
	inner := s[1 : len(s)-1]

	var out strings.Builder
	out.Grow(len(inner))
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
		}
		out.WriteByte(inner[i])
	}
	return out.String(), nil
}
