// Package text cleans transcripts and synthesis input.
package text

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

// Normalize prepares raw synthesis input: line endings become \n and
// surrounding whitespace is trimmed. Empty or whitespace-only input is
// rejected.
func Normalize(s string) (string, error) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyText
	}

	return s, nil
}

// Transcript flattens s onto one line for a manifest: every whitespace run,
// newlines and tabs included, becomes a single space. With nfc set the result
// is also put into Unicode normalization form C.
func Transcript(s string, nfc bool) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}

	out := b.String()
	if nfc {
		out = norm.NFC.String(out)
	}
	return out
}
