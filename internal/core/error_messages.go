package core

// error_messages.go maps technical errors to user-facing messages with support codes.
//
// # Input Errors (IN001-IN099)
//
//	IN001 - Missing input: The primary table or a required reference upload is missing
//	        Patterns: "missing required input"
//
//	IN002 - Identity column: The primary table has no identity column
//	        Patterns: "identity field not found"
//
// # Reference Errors (REF001-REF099)
//
//	REF001 - Reference column: A reference file lacks its identifier column
//	         Patterns: "reference column not found"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large          Patterns: "file too large", "request body too large"
//	FILE002 - Unsupported format      Patterns: "unsupported file format"
//	FILE003 - Header row missing      Patterns: "header row not found"
//	FILE004 - No file                 Patterns: "no file provided"
//	FILE005 - Corrupt workbook        Patterns: "not a valid zip file", "zip: "
//	FILE006 - Sheet not found         Patterns: "sheet not found"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - System busy              Patterns: "too many concurrent runs"
//	RUN002 - Cancelled                Patterns: "context canceled"
//	RUN003 - Timed out                Patterns: "context deadline exceeded", "timeout"
//
// # History Store Errors (DB001-DB099)
//
//	DB001 - Store unavailable         Patterns: "connection refused"
//	DB002 - History disabled          Patterns: "run history disabled"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Rate limited            Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Support staff should check the logs for the
// original error, which is logged alongside the run ID.
//
// Sentinel errors are matched first with errors.Is. Otherwise patterns are matched
// case-insensitively with strings.Contains. The first match wins, so specific
// patterns come before general ones.

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/esgmap/internal/reconcile"
	"github.com/JonMunkholm/esgmap/internal/workbook"
	"github.com/xuri/excelize/v2"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	// is lists sentinels checked with errors.Is before any text matching.
	is      []error
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Input Errors
	// =========================================================================
	{
		is:      []error{ErrMissingRequiredInput},
		pattern: "missing required input",
		msg: UserMessage{
			Message: "Required files are missing",
			Action:  "Upload the primary table and every reference file listed in the error details",
			Code:    "IN001",
		},
	},
	{
		is:      []error{reconcile.ErrMissingIdentityField},
		pattern: "identity field not found",
		msg: UserMessage{
			Message: "The primary table has no identity column",
			Action:  "Check that the primary table's header row contains the configured identity column (default \"Ids\")",
			Code:    "IN002",
		},
	},
	{
		is:      []error{reconcile.ErrReferenceColumnNotFound},
		pattern: "reference column not found",
		msg: UserMessage{
			Message: "A reference file is missing its identifier column",
			Action:  "Check the header row of the reference file and the configured header offset",
			Code:    "REF001",
		},
	},

	// =========================================================================
	// File Errors
	// =========================================================================
	{
		is:      []error{ErrFileTooLarge},
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Remove unused sheets or columns and try again",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Remove unused sheets or columns and try again",
			Code:    "FILE001",
		},
	},
	{
		is:      []error{workbook.ErrUnsupportedFormat},
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "File type is not supported",
			Action:  "Upload .xlsx or .csv files; re-save legacy .xls workbooks as .xlsx",
			Code:    "FILE002",
		},
	},
	{
		is:      []error{workbook.ErrHeaderRowMissing},
		pattern: "header row not found",
		msg: UserMessage{
			Message: "The file has fewer rows than the configured header row",
			Action:  "Check the header row setting for this file type",
			Code:    "FILE003",
		},
	},
	{
		is:      []error{ErrNoFile},
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "FILE004",
		},
	},
	{
		is:      []error{zip.ErrFormat, excelize.ErrWorkbookFileFormat},
		pattern: "not a valid zip file",
		msg: UserMessage{
			Message: "The workbook could not be opened",
			Action:  "Open the file in Excel and save it again as .xlsx",
			Code:    "FILE005",
		},
	},
	{
		pattern: "zip: ",
		msg: UserMessage{
			Message: "The workbook could not be opened",
			Action:  "Open the file in Excel and save it again as .xlsx",
			Code:    "FILE005",
		},
	},
	{
		is:      []error{workbook.ErrSheetNotFound},
		pattern: "sheet not found",
		msg: UserMessage{
			Message: "The configured worksheet does not exist",
			Action:  "Check the sheet name in the mapping configuration",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Run Control
	// =========================================================================
	{
		is:      []error{ErrTooManyRuns},
		pattern: "too many concurrent runs",
		msg: UserMessage{
			Message: "System is busy processing other files",
			Action:  "Please wait a moment and try again",
			Code:    "RUN001",
		},
	},
	{
		is:      []error{context.Canceled},
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "RUN002",
		},
	},
	{
		is:      []error{context.DeadlineExceeded},
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Processing timed out",
			Action:  "Try again with smaller files",
			Code:    "RUN003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Processing timed out",
			Action:  "Try again with smaller files",
			Code:    "RUN003",
		},
	},

	// =========================================================================
	// History Store
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Run history is temporarily unavailable",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		is:      []error{ErrHistoryDisabled},
		pattern: "run history disabled",
		msg: UserMessage{
			Message: "Run history is not enabled on this server",
			Action:  "Configure DATABASE_URL to keep a run history",
			Code:    "DB002",
		},
	},

	// =========================================================================
	// Rate Limiting
	// =========================================================================
	{
		is:      []error{ErrRateLimited},
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message, falling back to
// ERR000 when no pattern matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, ep := range errorPatterns {
		for _, target := range ep.is {
			if errors.Is(err, target) {
				return ep.msg
			}
		}
	}

	// Error text can carry user-supplied file names, so text only decides for
	// errors that wrap none of the sentinels above.
	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
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
