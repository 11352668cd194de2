package core

// validation.go rejects inputs before any parsing begins.
//
// Checks run in order and the first failure wins:
//  1. Name: must be non-blank
//  2. Format: extension must be registered and supported
//  3. Size: non-empty and at most the configured ceiling
//  4. Duplicates: the display name must not already be loaded

import (
	"fmt"
	"strings"
)

// DefaultMaxFileSize is the input size ceiling (50 MB).
const DefaultMaxFileSize int64 = 50 << 20

// ValidateInput checks an input against the registered formats and size
// ceiling. loaded reports whether a display name is already in use and may
// be nil.
func ValidateInput(name string, size, maxSize int64, loaded func(string) bool) (Format, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Format{}, false, &InputValidationError{Reason: "no file provided"}
	}

	f, compressed, ok := FormatFor(name)
	if !ok {
		return Format{}, false, &InputValidationError{
			FileName: name,
			Reason:   "accepted: " + strings.Join(SupportedExtensions(), ", "),
			Err:      ErrUnsupportedType,
		}
	}
	if !f.Supported {
		return Format{}, false, &InputValidationError{
			FileName: name,
			Reason:   f.Label + " files are not supported, save as .xlsx",
			Err:      ErrUnsupportedType,
		}
	}

	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if size <= 0 {
		return Format{}, false, &InputValidationError{FileName: name, Err: ErrEmptyFile}
	}
	if size > maxSize {
		return Format{}, false, &InputValidationError{
			FileName: name,
			Reason:   fmt.Sprintf("%s exceeds %s", FormatSize(size), FormatSize(maxSize)),
			Err:      ErrFileTooLarge,
		}
	}

	if loaded != nil && loaded(name) {
		return Format{}, false, &InputValidationError{FileName: name, Err: ErrDuplicateFile}
	}

	return f, compressed, nil
}
