package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsThroughWrapping(t *testing.T) {
	base := NewNotFound("01HX")
	wrapped := fmt.Errorf("usecase get note: %w", base)

	require.True(t, Is(wrapped, CodeNotFound))
	require.False(t, Is(wrapped, CodeAuthorizationDenied))
	require.False(t, Is(errors.New("plain"), CodeNotFound))
}

func TestCodeAndStatusOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   Code
		status int
	}{
		{"no speech", NewNoSpeechDetected(" "), CodeNoSpeechDetected, http.StatusUnprocessableEntity},
		{"transcription", NewTranscriptionFailed(errors.New("boom")), CodeTranscriptionFailed, http.StatusBadGateway},
		{"persistence", NewPersistenceFailed("milk", errors.New("disk")), CodePersistenceFailed, http.StatusServiceUnavailable},
		{"denied", NewAuthorizationDenied("x"), CodeAuthorizationDenied, http.StatusForbidden},
		{"session", NewSessionActive(), CodeSessionActive, http.StatusConflict},
		{"plain", errors.New("plain"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.code, CodeOf(tt.err))
			require.Equal(t, tt.status, StatusOf(tt.err))
		})
	}
}

func TestPersistenceFailedKeepsContent(t *testing.T) {
	cause := errors.New("database is locked")
	err := NewPersistenceFailed("Buy milk tomorrow", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, "Buy milk tomorrow", err.Details["content"])
	require.Contains(t, err.Error(), "PERSISTENCE_FAILED")
}

func TestAuthorizationDeniedWithoutID(t *testing.T) {
	err := NewAuthorizationDenied("")
	require.Nil(t, err.Details)
}
