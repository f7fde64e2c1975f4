package transcribe

import (
	"errors"
	"fmt"
)

// Kind classifies a transcription failure.
type Kind string

const (
	KindUnreachable       Kind = "unreachable"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindEmptyResult       Kind = "empty_result"
	KindInvalidAudio      Kind = "invalid_audio"
)

// ErrEmptyTranscript is wrapped by EmptyResult errors.
var ErrEmptyTranscript = errors.New("no speech recognized")

// Error is the typed failure returned by a Transcriber.
type Error struct {
	Kind Kind
	// Status is the HTTP status returned by the service, zero for transport errors.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transcription %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("transcription %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a transcription error of the given kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}

func newError(kind Kind, status int, err error) *Error {
	return &Error{Kind: kind, Status: status, Err: err}
}
