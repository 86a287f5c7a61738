package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxTitleLength is the longest session title derived from a question.
	MaxTitleLength = 50
	titleEllipsis  = "..."
)

// TruncateTitle derives a session title from the first question: questions
// longer than MaxTitleLength runes keep their first 47 runes plus "...".
func TruncateTitle(question string) string {
	return TruncateRunes(strings.TrimSpace(question), MaxTitleLength)
}

// TruncateRunes shortens s to at most max runes, marking the cut with "...".
func TruncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - len(titleEllipsis)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return string(runes[:keep]) + titleEllipsis
}

// GenerateRequestID returns a new request correlation id.
func GenerateRequestID() string {
	return uuid.NewString()
}
