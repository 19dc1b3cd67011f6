package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier for a new row.
func NewID() string {
	return uuid.NewString()
}

// NormalizeID validates an externally supplied identifier. Anything that is not a
// well-formed UUID reports ok=false so callers treat it as "not found".
func NormalizeID(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
