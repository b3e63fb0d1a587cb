package errors

import (
	"strings"
	"unicode"
)

// ValidateFeedName validates the name given to an uploaded feed.
// Feed names are used in log lines, warnings and error messages only, but
// they arrive from HTTP clients, so they are kept to a safe, simple form.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path separators
//   - Maximum length of 256 characters
func ValidateFeedName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "feed name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "feed name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "feed name contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidInput, "feed name cannot contain path separators")
	}

	return nil
}

// ValidatePath validates a local file path given on the command line.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}
