package schema

import (
	"errors"
	"strings"
	"unicode"
)

// ErrInvalidModel indicates an invalid model identifier.
var ErrInvalidModel = errors.New("invalid model")

// NormalizeModelID validates and normalizes a model identifier.
// Allowed characters: A-Z, a-z, 0-9, '.', '_', '-', ':', '/'.
func NormalizeModelID(model string) (ModelID, error) {
	trimmed := strings.TrimSpace(model)
	if trimmed == "" {
		return "", ErrInvalidModel
	}
	for _, r := range trimmed {
		switch r {
		case '.', '_', '-', ':', '/':
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return "", ErrInvalidModel
	}
	return ModelID(trimmed), nil
}

// NormalizeTitle trims a thread or project title and rejects blanks.
func NormalizeTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", ErrInvalidTitle
	}
	return trimmed, nil
}

// NormalizeOptional trims an optional field; blank becomes absent.
func NormalizeOptional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
