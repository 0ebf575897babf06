package chat

import (
	"errors"

	"github.com/loopmarked/dashboard/internal/store"
)

// Error codes for chat errors.
const (
	ErrCodeNetwork              = "network_failure"
	ErrCodeNotFound             = "not_found"
	ErrCodeValidation           = "validation_error"
	ErrCodeFormat               = "format_error"
	ErrCodeNoActiveConversation = "no_active_conversation"
	ErrCodeSuperseded           = "superseded"
)

// Sentinels matched with errors.Is against any *Error of the same code.
var (
	ErrNetwork              = errors.New("network failure")
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation error")
	ErrFormat               = errors.New("format error")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrSuperseded           = errors.New("selection superseded")
)

var sentinelByCode = map[string]error{
	ErrCodeNetwork:              ErrNetwork,
	ErrCodeNotFound:             ErrNotFound,
	ErrCodeValidation:           ErrValidation,
	ErrCodeFormat:               ErrFormat,
	ErrCodeNoActiveConversation: ErrNoActiveConversation,
	ErrCodeSuperseded:           ErrSuperseded,
}

// Error wraps a code, a human-readable message and the underlying cause.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Code.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinelByCode[e.Code]
	return ok && sentinel == target
}

func chatError(code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func validationError(msg string) *Error {
	return chatError(ErrCodeValidation, msg, nil)
}

func formatError(msg string, err error) *Error {
	return chatError(ErrCodeFormat, msg, err)
}

// backendError classifies a failed backend call.
func backendError(msg string, err error) *Error {
	if errors.Is(err, store.ErrNotFound) {
		return chatError(ErrCodeNotFound, msg, err)
	}
	return chatError(ErrCodeNetwork, msg, err)
}

// Code returns the chat error code carried by err, or "" when err is not a chat error.
func Code(err error) string {
	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr.Code
	}
	return ""
}
