package core

// # Error Codes Reference
//
// User-facing messages carry a code that users can quote to support.
// Typed errors are matched first, with errors.Is; everything else falls
// through to case-insensitive substring patterns.
//
// # BoQ Errors (BOQ001-BOQ099)
//
//	BOQ001 - The file has invalid rows (ValidationError)
//	         Action: Correct the listed rows and import the file again
//
//	BOQ002 - Tender or bid not found (NotFoundError)
//	         Action: Check the tender or bid reference
//
//	BOQ003 - Change not allowed in the current state (ConflictError)
//	         Action: Wait for the running import, or check the bid statuses
//
//	BOQ004 - The file could not be read or written (IOError)
//	         Action: Please try again
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key                  Patterns: "duplicate key"
//	DB002 - Unique constraint              Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key                    Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused             Patterns: "connection refused"
//	DB005 - Connection reset               Patterns: "connection reset"
//	DB006 - Timeout                        Patterns: "timeout"
//	DB007 - Deadlock                       Patterns: "deadlock"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large               Patterns: "file too large"
//	FILE003 - Unsupported format           Patterns: "unknown format"
//	FILE004 - No file                      Patterns: "no file provided"
//	FILE005 - Empty file                   Patterns: "empty file"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - System busy                   Patterns: "too many concurrent imports"
//	IMP002 - Request cancelled             Patterns: "context canceled"
//	IMP003 - Request timeout               Patterns: "context deadline exceeded"
//	IMP004 - Rate limited                  Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check application logs for the original
// technical error when users report ERR000.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgValidation = UserMessage{
		Message: "The file has invalid rows",
		Action:  "Correct the listed rows and import the file again",
		Code:    "BOQ001",
	}
	msgNotFound = UserMessage{
		Message: "Tender or bid not found",
		Action:  "Check the tender or bid reference",
		Code:    "BOQ002",
	}
	msgConflict = UserMessage{
		Message: "This change is not allowed in the tender's current state",
		Action:  "Wait for any running import to finish, or check the bid statuses",
		Code:    "BOQ003",
	}
	msgIO = UserMessage{
		Message: "The file could not be read or written",
		Action:  "Please try again",
		Code:    "BOQ004",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages. The first match wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	// database constraints
	{"duplicate key", UserMessage{"A record with this ID already exists", "Check the file for repeated references", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your file", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review your data for duplicate key values", "DB002"}},
	{"foreign key constraint", UserMessage{"Referenced record does not exist", "Ensure the tender and bids exist first", "DB003"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Ensure the tender and bids exist first", "DB003"}},

	// database connectivity
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// files
	{"file too large", UserMessage{"File exceeds the maximum size limit", "Split the BoQ into smaller files", "FILE001"}},
	{"unknown format", UserMessage{"File format is not supported", "Upload a .csv or .xlsx file", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a CSV or Excel file to import", "FILE004"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Please upload a file with a header row", "FILE005"}},

	// import process
	{"too many concurrent imports", UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "IMP001"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "IMP002"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or try again later", "IMP003"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "IMP004"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	err := &ConflictError{TenderID: "T-1", Reason: "bids are awarded"}
//	msg := MapError(err)
//	// msg.Code == "BOQ003"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrValidation):
		return msgValidation
	case errors.Is(err, ErrNotFound):
		return msgNotFound
	case errors.Is(err, ErrConflict):
		return msgConflict
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	// after patterns, so a wrapped connection error keeps its DB code
	if errors.Is(err, ErrIO) {
		return msgIO
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
