// Package capture turns recordings and typed text into persisted notes.
//
// An Orchestrator owns at most one recording session at a time. Each session
// walks an explicit state machine (idle, recording, transcribing,
// categorizing, persisting, then completed or failed) and every step is
// reported through a single advance function. Categorization and calendar
// creation are best effort: their failures are logged and never prevent a
// valid transcript from becoming a note.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mklimuk/notepilot/pkg/ai"
	"github.com/mklimuk/notepilot/pkg/apperr"
	"github.com/mklimuk/notepilot/pkg/integration/calendar"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
	"github.com/mklimuk/notepilot/pkg/note"
	"github.com/mklimuk/notepilot/pkg/transcribe"
)

var (
	// ErrSessionActive is returned when a capture is started while another
	// one is still running.
	ErrSessionActive = apperr.NewSessionActive()

	// ErrCancelled is the outcome error of a session cancelled by the user.
	ErrCancelled = errors.New("capture cancelled")

	// ErrNoRecorder is returned by Start when no recording device is configured.
	ErrNoRecorder = errors.New("no recorder configured")
)

// Recorder captures audio from a device.
type Recorder interface {
	Start(ctx context.Context) error
	// Stop ends the recording and returns the captured audio.
	Stop(ctx context.Context) (transcribe.Audio, error)
	// Cancel ends the recording and discards the audio.
	Cancel() error
}

// Categorizer suggests a title, tags and an event hint for a transcript.
type Categorizer interface {
	Categorize(ctx context.Context, transcript string) (ai.Suggestion, error)
}

// EventBridge creates calendar events from event hints.
type EventBridge interface {
	MaybeCreateEvent(ctx context.Context, ownerID string, hint ai.EventHint) calendar.Result
}

// Timeouts bound each external call. Zero values use the defaults.
type Timeouts struct {
	Transcribe time.Duration
	Categorize time.Duration
	Calendar   time.Duration
	Store      time.Duration
}

// DefaultTimeouts are used for zero Timeouts fields.
var DefaultTimeouts = Timeouts{
	Transcribe: 15 * time.Second,
	Categorize: 4 * time.Second,
	Calendar:   10 * time.Second,
	Store:      5 * time.Second,
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Transcribe <= 0 {
		t.Transcribe = DefaultTimeouts.Transcribe
	}
	if t.Categorize <= 0 {
		t.Categorize = DefaultTimeouts.Categorize
	}
	if t.Calendar <= 0 {
		t.Calendar = DefaultTimeouts.Calendar
	}
	if t.Store <= 0 {
		t.Store = DefaultTimeouts.Store
	}
	return t
}

// Deps are the collaborators of an Orchestrator. Store and Transcriber are
// required; the rest are optional.
type Deps struct {
	Store        note.Store
	Transcriber  transcribe.Transcriber
	Categorizer  Categorizer
	Bridge       EventBridge
	Recorder     Recorder
	Timeouts     Timeouts
	OnTransition func(Transition)
	// OnNote receives every note a capture persisted
	OnNote func(note.Note)
}

// Outcome is the terminal result of a capture.
type Outcome struct {
	SessionID string
	State     State
	// Note is set when State is StateCompleted.
	Note *note.Note
	// Transcript is the raw text that was (or would have been) persisted, kept
	// so a failed capture can be retried without recording again.
	Transcript string
	Suggestion *ai.Suggestion
	Err        error
}

// Completed reports whether a note was persisted.
func (o Outcome) Completed() bool {
	return o.State == StateCompleted && o.Note != nil
}

// Cancelled reports whether the user cancelled the capture.
func (o Outcome) Cancelled() bool {
	return errors.Is(o.Err, ErrCancelled)
}

// Orchestrator runs captures for a single owner.
type Orchestrator struct {
	ownerID string
	deps    Deps
	now     func() time.Time

	mu     sync.Mutex
	active *Session

	// background calendar work
	bg sync.WaitGroup
}

// New creates an Orchestrator acting on behalf of ownerID.
func New(ownerID string, deps Deps) *Orchestrator {
	deps.Timeouts = deps.Timeouts.withDefaults()
	return &Orchestrator{
		ownerID: ownerID,
		deps:    deps,
		now:     time.Now,
	}
}

// OwnerID returns the owner the orchestrator acts for.
func (o *Orchestrator) OwnerID() string {
	return o.ownerID
}

// Active returns the running recording session, if any.
func (o *Orchestrator) Active() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Wait blocks until background work started by finished captures is done.
func (o *Orchestrator) Wait() {
	o.bg.Wait()
}

// Start begins recording from the configured device.
func (o *Orchestrator) Start(ctx context.Context) (*Session, error) {
	if o.deps.Recorder == nil {
		return nil, ErrNoRecorder
	}
	s, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}

	if err := o.deps.Recorder.Start(s.ctx); err != nil {
		out := s.fail(ReasonDeviceFailed, "", apperr.NewInternal(fmt.Errorf("failed to start recorder: %w", err)), nil)
		return nil, out.Err
	}
	s.advance(StateRecording, ReasonRecordingStarted)
	return s, nil
}

// CaptureAudio runs the pipeline for audio recorded elsewhere. It occupies the
// session slot like Start does.
func (o *Orchestrator) CaptureAudio(ctx context.Context, audio transcribe.Audio) Outcome {
	s, err := o.acquire(ctx)
	if err != nil {
		return Outcome{State: StateFailed, Err: err}
	}
	s.advance(StateTranscribing, ReasonAudioReceived)
	return s.process(audio)
}

// SubmitText persists typed text. It skips recording, transcription and
// categorization and does not occupy the session slot.
func (o *Orchestrator) SubmitText(ctx context.Context, text string) Outcome {
	s := o.newSession(ctx)

	trimmed, ok := note.ValidateContent(text)
	if !ok {
		return s.fail(ReasonNoSpeech, text, apperr.NewNoSpeechDetected(text), nil)
	}
	s.advance(StatePersisting, ReasonTextSubmitted)
	return s.persist(note.Draft{
		Content:  trimmed,
		Title:    note.DeriveTitle(trimmed),
		Tags:     []string{},
		Category: note.Category{Main: note.CategoryNote},
	}, text, nil)
}

func (o *Orchestrator) acquire(ctx context.Context) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil {
		return nil, ErrSessionActive
	}
	s := o.newSession(ctx)
	s.slot = true
	o.active = s
	return s, nil
}

func (o *Orchestrator) releaseSlot(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == s {
		o.active = nil
	}
}

func (o *Orchestrator) newSession(ctx context.Context) *Session {
	id := uuid.NewString()
	// sessions end through Cancel, not through the caller's context
	ctx = slogx.WithAttrs(context.WithoutCancel(ctx), slogx.SessionID(id), slogx.OwnerID(o.ownerID))
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		id:     id,
		o:      o,
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
		done:   make(chan struct{}),
	}
}

// categorize returns nil when the categorizer fails, times out or is absent.
// The result is raced against the timeout so a categorizer that ignores its
// context cannot hold up persistence.
func (o *Orchestrator) categorize(ctx context.Context, transcript string) *ai.Suggestion {
	if o.deps.Categorizer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, o.deps.Timeouts.Categorize)
	defer cancel()

	type result struct {
		s   ai.Suggestion
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("categorizer panic: %v", r)}
			}
		}()
		s, err := o.deps.Categorizer.Categorize(ctx, transcript)
		ch <- result{s: s, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			slogx.Warn(ctx, "categorization degraded", slogx.Err(apperr.NewCategorizationDegraded(r.err)))
			return nil
		}
		return &r.s
	case <-ctx.Done():
		slogx.Warn(ctx, "categorization degraded", slogx.Err(apperr.NewCategorizationDegraded(ctx.Err())))
		return nil
	}
}

// scheduleEvent hands an event hint to the calendar bridge without waiting.
func (o *Orchestrator) scheduleEvent(ctx context.Context, hint ai.EventHint) {
	if o.deps.Bridge == nil {
		return
	}
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		defer func() {
			if r := recover(); r != nil {
				slogx.Error(ctx, "calendar bridge panic", slog.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.deps.Timeouts.Calendar)
		defer cancel()
		res := o.deps.Bridge.MaybeCreateEvent(ctx, o.ownerID, hint)
		if res.Event == nil {
			slogx.Debug(ctx, "no calendar event", slog.String("reason", string(res.Skipped)))
		}
	}()
}

func (o *Orchestrator) notify(t Transition) {
	if o.deps.OnTransition != nil {
		o.deps.OnTransition(t)
	}
}
