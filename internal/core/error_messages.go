package core

// # Error Codes Reference
//
// User-facing messages with codes for support reference. Codes are grouped
// by category:
//
//	FILE001 - File too large            Patterns: "file too large"
//	FILE002 - Unsupported type          Patterns: "unsupported file type"
//	FILE003 - Empty file                Patterns: "empty file"
//	FILE004 - Duplicate file            Patterns: "file already loaded"
//	FILE005 - File not found            Patterns: "file not found"
//	FILE006 - No file                   Patterns: "no file provided"
//	PARSE001 - Workbook unreadable      Patterns: "parse error"
//	ENC001 - Byte-order mark removed    Patterns: "byte-order mark"
//	ENC002 - Text re-decoded            Patterns: "encoding warning"
//	WRK001 - Worker failed              Patterns: "parse worker failed"
//	WRK002 - Job cancelled              Patterns: "parse job cancelled"
//	WRK003 - System busy                Patterns: "too many parse jobs"
//	WRK004 - Still parsing              Patterns: "parse in progress"
//	VIEW001 - Sheet not found           Patterns: "sheet not found"
//	VIEW002 - Session expired           Patterns: "session not found"
//	VIEW003 - Job not found             Patterns: "job not found"
//	HIST001 - Nothing to undo           Patterns: "nothing to undo"
//	PREF001 - Preference out of range   Patterns: "invalid preference value"
//	REQ001 - Request cancelled          Patterns: "context canceled"
//	REQ002 - Request timeout            Patterns: "context deadline exceeded"
//	ERR000 - Unknown error (fallback)
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Input validation (FILE001-FILE006)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit (50MB)",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload a .csv, .tsv, .txt, .xlsx or .xlsm file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Upload a file that contains data rows",
			Code:    "FILE003",
		},
	},
	{
		pattern: "file already loaded",
		msg: UserMessage{
			Message: "A file with this name is already loaded",
			Action:  "Remove the loaded file first or reload it",
			Code:    "FILE004",
		},
	},
	{
		pattern: "file not found",
		msg: UserMessage{
			Message: "File not found",
			Action:  "The file may have been removed. Load it again",
			Code:    "FILE005",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to load",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Parsing and encoding (PARSE001, ENC001-ENC002)
	// =========================================================================
	{
		pattern: "parse error",
		msg: UserMessage{
			Message: "The file could not be read as a table",
			Action:  "Check that the workbook opens in a spreadsheet application",
			Code:    "PARSE001",
		},
	},
	{
		pattern: "byte-order mark",
		msg: UserMessage{
			Message: "A byte-order mark was removed from the file",
			Action:  "No action needed",
			Code:    "ENC001",
		},
	},
	{
		pattern: "encoding warning",
		msg: UserMessage{
			Message: "Some characters were re-decoded",
			Action:  "Save the file as UTF-8 for exact results",
			Code:    "ENC002",
		},
	},

	// =========================================================================
	// Parse jobs (WRK001-WRK004)
	// =========================================================================
	{
		pattern: "parse worker failed",
		msg: UserMessage{
			Message: "Parsing stopped unexpectedly",
			Action:  "Reload the file to try again",
			Code:    "WRK001",
		},
	},
	{
		pattern: "parse job cancelled",
		msg: UserMessage{
			Message: "Parsing was cancelled",
			Action:  "A newer load of this file replaced it",
			Code:    "WRK002",
		},
	},
	{
		pattern: "too many parse jobs",
		msg: UserMessage{
			Message: "System is busy parsing other files",
			Action:  "Please wait a moment and try again",
			Code:    "WRK003",
		},
	},
	{
		pattern: "parse in progress",
		msg: UserMessage{
			Message: "This file is still being parsed",
			Action:  "Wait for parsing to finish, then try again",
			Code:    "WRK004",
		},
	},

	// =========================================================================
	// Views (VIEW001-VIEW003)
	// =========================================================================
	{
		pattern: "sheet not found",
		msg: UserMessage{
			Message: "Sheet not found",
			Action:  "Pick one of the sheets listed for this file",
			Code:    "VIEW001",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "View session not found",
			Action:  "Open the file again to start a new view",
			Code:    "VIEW002",
		},
	},
	{
		pattern: "job not found",
		msg: UserMessage{
			Message: "Parse job not found",
			Action:  "The job may have finished. Refresh the file list",
			Code:    "VIEW003",
		},
	},

	// =========================================================================
	// History (HIST001)
	// =========================================================================
	{
		pattern: "nothing to undo",
		msg: UserMessage{
			Message: "There is nothing to undo",
			Action:  "Only the last ten removals can be undone",
			Code:    "HIST001",
		},
	},

	// =========================================================================
	// Preferences (PREF001)
	// =========================================================================
	{
		pattern: "invalid preference value",
		msg: UserMessage{
			Message: "That preference value is out of range",
			Action:  "Pick a table height between 200 and 2000 pixels",
			Code:    "PREF001",
		},
	},

	// =========================================================================
	// Requests (REQ001-REQ002)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "REQ002",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// The first matching pattern wins; ERR000 is the fallback.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
