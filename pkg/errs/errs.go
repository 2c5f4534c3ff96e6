// Package errs provides structured errors with stable codes. Field
// acquisition failures never surface as errors (a failed field is simply
// absent), so codes here cover the boundaries where failure is reportable:
// configuration, explicit file mentions, the journal, and the server.
package errs

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Code is a stable machine-readable error code.
type Code string

const (
	// Configuration errors
	CodeConfigLoad    Code = "CONFIG_LOAD"
	CodeConfigParse   Code = "CONFIG_PARSE"
	CodeConfigInvalid Code = "CONFIG_INVALID"

	// Mention errors
	CodeMentionRead Code = "MENTION_READ"

	// Acquisition errors, used in logs only
	CodeAcquireTimeout Code = "ACQUIRE_TIMEOUT"
	CodeAcquireSpawn   Code = "ACQUIRE_SPAWN"
	CodeManifestParse  Code = "MANIFEST_PARSE"

	// Journal errors
	CodeJournalOpen  Code = "JOURNAL_OPEN"
	CodeJournalWrite Code = "JOURNAL_WRITE"
	CodeJournalRead  Code = "JOURNAL_READ"

	// Server errors
	CodeServerStart  Code = "SERVER_START"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeInvalidInput Code = "INVALID_INPUT"

	// Watcher errors
	CodeWatchInit Code = "WATCH_INIT"

	CodeInternal Code = "INTERNAL"
)

// Error is a structured error carrying a code and optional context pairs.
type Error struct {
	Code       Code
	Message    string
	Underlying error
	Context    map[string]any
}

// New creates a structured error.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap wraps an existing error with a code and message. Returns nil when
// err is nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
		Context:    make(map[string]any),
	}
}

// WithContext adds a context key-value pair to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))
	if len(e.Context) > 0 {
		sb.WriteString(" {")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %v", k, v))
			first = false
		}
		sb.WriteString("}")
	}
	if e.Underlying != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Underlying))
	}
	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// CodeOf extracts the code from an error chain, or CodeInternal when the
// chain carries no structured error.
func CodeOf(err error) Code {
	var se *Error
	if stderrors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}
