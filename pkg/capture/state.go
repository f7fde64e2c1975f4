package capture

import (
	"fmt"
	"time"
)

// State is a step of the capture lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateCategorizing State = "categorizing"
	StatePersisting   State = "persisting"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Reason explains a transition.
type Reason string

const (
	ReasonRecordingStarted    Reason = "recording_started"
	ReasonRecordingStopped    Reason = "recording_stopped"
	ReasonAudioReceived       Reason = "audio_received"
	ReasonTextSubmitted       Reason = "text_submitted"
	ReasonTranscriptReceived  Reason = "transcript_received"
	ReasonCategorized         Reason = "categorized"
	ReasonCategorizationSkip  Reason = "categorization_degraded"
	ReasonPersisted           Reason = "persisted"
	ReasonCancelled           Reason = "cancelled"
	ReasonNoSpeech            Reason = "no_speech"
	ReasonTranscriptionFailed Reason = "transcription_failed"
	ReasonPersistenceFailed   Reason = "persistence_failed"
	ReasonDeviceFailed        Reason = "device_failed"
)

// Transition is emitted for every state change of a session.
type Transition struct {
	SessionID string
	OwnerID   string
	From      State
	To        State
	Reason    Reason
	At        time.Time
}

var transitions = map[State][]State{
	StateIdle:         {StateRecording, StateTranscribing, StatePersisting, StateFailed},
	StateRecording:    {StateTranscribing, StateIdle, StateFailed},
	StateTranscribing: {StateCategorizing, StateIdle, StateFailed},
	StateCategorizing: {StatePersisting, StateIdle, StateFailed},
	StatePersisting:   {StateCompleted, StateFailed},
}

func canTransition(from, to State) error {
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid capture transition %s -> %s", from, to)
}
