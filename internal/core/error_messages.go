package core

// error_messages.go maps technical errors to user-facing messages with codes.
//
// Codes are grouped by category so that a code quoted back by a user points
// at the failing layer:
//
//	DB001-DB007   store writes and connectivity
//	VAL001-VAL004 row validation
//	FILE001-FILE005 uploaded file handling
//	IMP001-IMP003 import run control
//	INT001        internal failure recovered at the pipeline boundary
//	ERR000        no pattern matched
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns precede general ones.

import (
	"fmt"
	"strings"
)

// UserMessage is the user-facing form of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Store constraint errors
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this name already exists",
			Action:  "Re-run the import with update or skip enabled",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate rows in your file",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Import venues before the products that reference them",
			Code:    "DB003",
		},
	},

	// Store connectivity errors
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// Validation errors
	{
		pattern: "is required",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure all required columns have values",
			Code:    "VAL001",
		},
	},
	{
		pattern: "not an allowed value",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Download the template to see the allowed values",
			Code:    "VAL002",
		},
	},
	{
		pattern: "expected a number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use plain decimal numbers",
			Code:    "VAL003",
		},
	},
	{
		pattern: "already exists",
		msg: UserMessage{
			Message: "Row matches an existing record",
			Action:  "Choose to update or skip existing records",
			Code:    "VAL004",
		},
	},

	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "header but no data rows",
		msg: UserMessage{
			Message: "The file has no data rows",
			Action:  "Add at least one row below the header",
			Code:    "FILE002",
		},
	},
	{
		pattern: "not terminated",
		msg: UserMessage{
			Message: "A quoted field is never closed",
			Action:  "Check the file for an unbalanced double quote",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to import",
			Code:    "FILE004",
		},
	},
	{
		pattern: "file is empty",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a CSV file with a header and data rows",
			Code:    "FILE005",
		},
	},

	// Import run control
	{
		pattern: "unknown collection",
		msg: UserMessage{
			Message: "Unknown import type",
			Action:  "Use venues or products",
			Code:    "IMP001",
		},
	},
	{
		pattern: "import already running",
		msg: UserMessage{
			Message: "Another import of this type is in progress",
			Action:  "Please wait for it to finish and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP003",
		},
	},
	{
		pattern: "recovered panic",
		msg: UserMessage{
			Message: "The import stopped because of an internal error",
			Action:  "No further rows were written; contact support with this code",
			Code:    "INT001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message. Unknown
// errors map to ERR000.
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

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
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

// NewUserError wraps err. It returns nil for a nil err.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
