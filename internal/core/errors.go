package core

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyFile       = errors.New("empty file")
	ErrDuplicateFile   = errors.New("file already loaded")
	ErrFileNotFound    = errors.New("file not found")
	ErrSheetNotFound   = errors.New("sheet not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrJobCancelled    = errors.New("parse job cancelled")
	ErrNothingToUndo   = errors.New("nothing to undo")
	ErrTooManyJobs     = errors.New("too many parse jobs in progress")
	ErrParseInProgress = errors.New("parse in progress")
)

// InputValidationError rejects an input before any parsing begins.
type InputValidationError struct {
	FileName string
	Reason   string
	Err      error
}

func (e *InputValidationError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("invalid input %q: %s", e.FileName, e.Reason)
	case e.Reason == "":
		return fmt.Sprintf("invalid input %q: %v", e.FileName, e.Err)
	default:
		return fmt.Sprintf("invalid input %q: %v (%s)", e.FileName, e.Err, e.Reason)
	}
}

func (e *InputValidationError) Unwrap() error { return e.Err }

// ParseError reports structure the pipeline could not turn into a dataset.
// Pattern names the class of problem ("workbook", "sheet", ...).
type ParseError struct {
	FileName string
	Sheet    string
	Pattern  string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("parse error in %q sheet %q (%s): %v", e.FileName, e.Sheet, e.Pattern, e.Err)
	}
	return fmt.Sprintf("parse error in %q (%s): %v", e.FileName, e.Pattern, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EncodingError is a non-fatal warning: the input was recovered (BOM
// stripped, bytes re-decoded) and parsing continued.
type EncodingError struct {
	FileName string
	Pattern  string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding warning in %q: %s", e.FileName, e.Pattern)
}

// WorkerError reports a parse worker that terminated abnormally.
type WorkerError struct {
	JobID     string
	FileName  string
	Err       error
	Retryable bool
	Remedy    string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("parse worker failed for %q (job %s): %v", e.FileName, e.JobID, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a failure the caller may retry.
func IsRetryable(err error) bool {
	var we *WorkerError
	if errors.As(err, &we) {
		return we.Retryable
	}
	return errors.Is(err, ErrTooManyJobs)
}
