// Package apperr defines the error taxonomy shared by the capture pipeline,
// the note store and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure.
type Code string

const (
	CodeNoSpeechDetected       Code = "NO_SPEECH_DETECTED"      // 422
	CodeTranscriptionFailed    Code = "TRANSCRIPTION_FAILED"    // 502
	CodeCategorizationDegraded Code = "CATEGORIZATION_DEGRADED" // never surfaced
	CodePersistenceFailed      Code = "PERSISTENCE_FAILED"      // 503
	CodeAuthorizationDenied    Code = "AUTHORIZATION_DENIED"    // 403
	CodeNotFound               Code = "NOT_FOUND"               // 404
	CodeInvalidRequest         Code = "INVALID_REQUEST"         // 400
	CodeSessionActive          Code = "SESSION_ACTIVE"          // 409
	CodeInternal               Code = "INTERNAL"                // 500
)

// Error is a structured error with a code, an HTTP status and optional details.
type Error struct {
	Code    Code
	Status  int
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewNoSpeechDetected reports a transcript that is absent or too short to keep.
func NewNoSpeechDetected(transcript string) *Error {
	return &Error{
		Code:    CodeNoSpeechDetected,
		Status:  http.StatusUnprocessableEntity,
		Message: "no speech detected, try recording again",
		Details: map[string]any{"transcript": transcript},
	}
}

// NewTranscriptionFailed wraps a speech-to-text failure.
func NewTranscriptionFailed(err error) *Error {
	return &Error{
		Code:    CodeTranscriptionFailed,
		Status:  http.StatusBadGateway,
		Message: "transcription failed, try again",
		Err:     err,
	}
}

// NewCategorizationDegraded marks a categorization or calendar failure.
// It is logged, never returned to a user.
func NewCategorizationDegraded(err error) *Error {
	return &Error{
		Code:    CodeCategorizationDegraded,
		Status:  http.StatusOK,
		Message: "categorization unavailable, defaults applied",
		Err:     err,
	}
}

// NewPersistenceFailed wraps a store failure. The content that could not be
// saved is kept in Details so a caller can offer a retry.
func NewPersistenceFailed(content string, err error) *Error {
	return &Error{
		Code:    CodePersistenceFailed,
		Status:  http.StatusServiceUnavailable,
		Message: "note could not be saved",
		Details: map[string]any{"content": content},
		Err:     err,
	}
}

// NewAuthorizationDenied reports an owner-scope violation. Details never
// include data belonging to another owner.
func NewAuthorizationDenied(noteID string) *Error {
	e := &Error{
		Code:    CodeAuthorizationDenied,
		Status:  http.StatusForbidden,
		Message: "access denied",
	}
	if noteID != "" {
		e.Details = map[string]any{"id": noteID}
	}
	return e
}

// NewNotFound reports a missing note.
func NewNotFound(id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("note not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewInvalidRequest reports malformed input.
func NewInvalidRequest(msg string) *Error {
	return &Error{
		Code:    CodeInvalidRequest,
		Status:  http.StatusBadRequest,
		Message: msg,
	}
}

// NewSessionActive reports an attempt to start a second capture session.
func NewSessionActive() *Error {
	return &Error{
		Code:    CodeSessionActive,
		Status:  http.StatusConflict,
		Message: "a capture session is already active",
	}
}

// NewInternal wraps an unexpected error.
func NewInternal(err error) *Error {
	return &Error{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "internal error",
		Err:     err,
	}
}

// Is reports whether err, or any error it wraps, is an *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of err, or CodeInternal when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}
