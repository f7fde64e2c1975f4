package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mklimuk/notepilot/pkg/ai"
	"github.com/mklimuk/notepilot/pkg/apperr"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
	"github.com/mklimuk/notepilot/pkg/note"
	"github.com/mklimuk/notepilot/pkg/transcribe"
)

// Session is one capture from start to outcome.
type Session struct {
	id     string
	o      *Orchestrator
	ctx    context.Context
	cancel context.CancelFunc
	// slot is true when the session holds the orchestrator's single slot
	slot bool

	mu        sync.Mutex
	state     State
	cancelled bool
	finished  bool
	outcome   Outcome
	done      chan struct{}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session has an outcome.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Outcome returns the final outcome. It is only meaningful after Done is closed.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Stop ends the recording and runs the rest of the pipeline, returning the
// outcome once the note is persisted or the capture failed.
func (s *Session) Stop(ctx context.Context) Outcome {
	s.mu.Lock()
	if s.state != StateRecording {
		state := s.state
		s.mu.Unlock()
		return Outcome{SessionID: s.id, State: state, Err: apperr.NewInvalidRequest("session is not recording")}
	}
	t, _ := s.advanceLocked(StateTranscribing, ReasonRecordingStopped)
	s.mu.Unlock()
	s.o.notify(t)

	audio, err := s.o.deps.Recorder.Stop(ctx)
	if s.isCancelled() {
		return s.abort()
	}
	if err != nil {
		return s.fail(ReasonDeviceFailed, "", apperr.NewInternal(err), nil)
	}
	return s.process(audio)
}

// Cancel discards the capture. While recording, the audio is dropped and the
// session returns to idle immediately. Later, the cancellation is honored at
// the next checkpoint and nothing is persisted. Once persisting has started
// Cancel has no effect.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.finished || s.state.Terminal() || s.state == StatePersisting {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	if s.state != StateRecording {
		s.mu.Unlock()
		s.cancel()
		return
	}
	t, _ := s.advanceLocked(StateIdle, ReasonCancelled)
	s.mu.Unlock()

	if err := s.o.deps.Recorder.Cancel(); err != nil {
		slogx.Warn(s.ctx, "failed to cancel recorder", slogx.Err(err))
	}
	s.o.notify(t)
	s.finish(Outcome{State: StateIdle, Err: ErrCancelled})
}

func (s *Session) process(audio transcribe.Audio) Outcome {
	ctx, cancel := context.WithTimeout(s.ctx, s.o.deps.Timeouts.Transcribe)
	res, err := s.o.deps.Transcriber.Transcribe(ctx, audio)
	cancel()

	if s.isCancelled() {
		return s.abort()
	}
	// a blank transcript is judged by the validation gate below
	if err != nil && !transcribe.IsKind(err, transcribe.KindEmptyResult) {
		return s.fail(ReasonTranscriptionFailed, "", apperr.NewTranscriptionFailed(err), nil)
	}

	trimmed, ok := note.ValidateContent(res.Text)
	if !ok {
		return s.fail(ReasonNoSpeech, res.Text, apperr.NewNoSpeechDetected(res.Text), nil)
	}
	if !s.advanceUnlessCancelled(StateCategorizing, ReasonTranscriptReceived) {
		return s.abort()
	}

	sugg := s.o.categorize(s.ctx, trimmed)
	reason := ReasonCategorized
	if sugg == nil {
		reason = ReasonCategorizationSkip
	}
	if !s.advanceUnlessCancelled(StatePersisting, reason) {
		return s.abort()
	}

	draft := note.Draft{
		Content:  trimmed,
		Title:    note.DeriveTitle(trimmed),
		Tags:     []string{note.DefaultVoiceTag},
		Category: note.Category{Main: note.CategoryVoiceNote},
	}
	if sugg != nil {
		if sugg.Title != "" {
			draft.Title = sugg.Title
		}
		if len(sugg.Tags) > 0 {
			draft.Tags = sugg.Tags
		}
		draft.Category.Sub = sugg.Category
	}

	out := s.persist(draft, res.Text, sugg)
	if out.Completed() && sugg != nil && sugg.Event != nil {
		s.o.scheduleEvent(s.ctx, *sugg.Event)
	}
	return out
}

func (s *Session) persist(d note.Draft, transcript string, sugg *ai.Suggestion) Outcome {
	// persistence is not interrupted by Cancel
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.o.deps.Timeouts.Store)
	defer cancel()

	n, err := s.o.deps.Store.Insert(ctx, s.o.ownerID, d)
	if err != nil {
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			err = apperr.NewPersistenceFailed(d.Content, err)
		}
		return s.fail(ReasonPersistenceFailed, transcript, err, sugg)
	}

	if s.o.deps.OnNote != nil {
		s.o.deps.OnNote(n.Clone())
	}
	s.advance(StateCompleted, ReasonPersisted)
	return s.finish(Outcome{State: StateCompleted, Note: &n, Transcript: transcript, Suggestion: sugg})
}

func (s *Session) fail(reason Reason, transcript string, err error, sugg *ai.Suggestion) Outcome {
	s.advance(StateFailed, reason)
	return s.finish(Outcome{State: StateFailed, Transcript: transcript, Suggestion: sugg, Err: err})
}

func (s *Session) abort() Outcome {
	s.advance(StateIdle, ReasonCancelled)
	return s.finish(Outcome{State: StateIdle, Err: ErrCancelled})
}

func (s *Session) finish(out Outcome) Outcome {
	out.SessionID = s.id

	s.mu.Lock()
	if s.finished {
		out = s.outcome
		s.mu.Unlock()
		return out
	}
	s.finished = true
	s.outcome = out
	close(s.done)
	s.mu.Unlock()

	s.cancel()
	if s.slot {
		s.o.releaseSlot(s)
	}

	attrs := []slog.Attr{slogx.State(string(out.State))}
	if out.Note != nil {
		attrs = append(attrs, slogx.NoteID(out.Note.ID))
	}
	if out.Err != nil {
		attrs = append(attrs, slogx.Err(out.Err))
	}
	slogx.Info(s.ctx, "capture finished", attrs...)
	return out
}

func (s *Session) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *Session) advance(to State, reason Reason) {
	s.mu.Lock()
	t, ok := s.advanceLocked(to, reason)
	s.mu.Unlock()
	if ok {
		s.o.notify(t)
	}
}

// advanceUnlessCancelled makes the cancellation check and the transition atomic.
func (s *Session) advanceUnlessCancelled(to State, reason Reason) bool {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return false
	}
	t, ok := s.advanceLocked(to, reason)
	s.mu.Unlock()
	if ok {
		s.o.notify(t)
	}
	return true
}

func (s *Session) advanceLocked(to State, reason Reason) (Transition, bool) {
	if err := canTransition(s.state, to); err != nil {
		slogx.Error(s.ctx, "capture state machine violation", slogx.Err(err))
		return Transition{}, false
	}
	t := Transition{
		SessionID: s.id,
		OwnerID:   s.o.ownerID,
		From:      s.state,
		To:        to,
		Reason:    reason,
		At:        s.o.now(),
	}
	s.state = to
	slogx.Debug(s.ctx, "capture transition",
		slog.String("from", string(t.From)),
		slog.String("to", string(t.To)),
		slog.String("reason", string(reason)),
	)
	return t, true
}
