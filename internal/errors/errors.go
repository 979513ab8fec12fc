// Package errors defines the coded error type shared by the scanner.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// RepositoryAccess indicates the scan root is not inside a readable repository
	RepositoryAccess ErrorCode = "REPOSITORY_ACCESS"
	// MalformedCommit indicates a single commit's metadata could not be parsed
	MalformedCommit ErrorCode = "MALFORMED_COMMIT"
	// Encoding indicates non-UTF8 data that was decoded lossily
	Encoding ErrorCode = "ENCODING"
	// IdentityAmbiguity indicates a rename conflict resolved by tie-break
	IdentityAmbiguity ErrorCode = "IDENTITY_AMBIGUITY"
	// InvalidConfig indicates a configuration value out of range
	InvalidConfig ErrorCode = "INVALID_CONFIG"
	// GitCommandFailed indicates the git binary exited with an error
	GitCommandFailed ErrorCode = "GIT_COMMAND_FAILED"
	// ExportFailed indicates the sqlite export could not be written
	ExportFailed ErrorCode = "EXPORT_FAILED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// ChangeFlag suggests re-running with a different flag
	ChangeFlag FixActionType = "change-flag"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// ScanError carries a stable code, a message and optional fix suggestions.
type ScanError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// NewScanError creates a new ScanError
func NewScanError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *ScanError {
	return &ScanError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// Error implements the error interface
func (e *ScanError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ScanError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *ScanError) WithDetails(details interface{}) *ScanError {
	e.Details = details
	return e
}

// IsCode reports whether any error in err's chain is a ScanError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *ScanError
	if stderrors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	RepositoryAccess: {
		{
			Type:        RunCommand,
			Command:     "git status",
			Safe:        true,
			Description: "Verify the scan root is inside a git repository",
		},
		{
			Type:        ChangeFlag,
			Command:     "polyglot scan --no-git",
			Safe:        true,
			Description: "Scan without git history",
		},
	},
	GitCommandFailed: {
		{
			Type:        ChangeFlag,
			Command:     "polyglot scan --backend native",
			Safe:        true,
			Description: "Use the built-in history reader instead of the git binary",
		},
	},
	InvalidConfig: {
		{
			Type:        RunCommand,
			Command:     "polyglot config validate",
			Safe:        true,
			Description: "Check the configuration file",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
