// Package recorder captures audio from a local device by running an external
// recorder command that writes the recording to stdout.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mklimuk/notepilot/pkg/logger/slogx"
	"github.com/mklimuk/notepilot/pkg/transcribe"
)

// DefaultCommand records CD quality WAV with ALSA.
const DefaultCommand = "arecord -q -f cd -t wav"

const (
	// time given to the recorder to finish the file after an interrupt
	stopGrace = 3 * time.Second
	waitDelay = 2 * time.Second
)

var (
	ErrRecording    = errors.New("recorder is already running")
	ErrNotRecording = errors.New("recorder is not running")
	ErrEmpty        = errors.New("recorder produced no audio")
)

// Recorder runs one recording at a time.
type Recorder struct {
	argv     []string
	mimeType string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	done   chan error
}

// New splits command on whitespace. An empty command uses DefaultCommand.
func New(command, mimeType string) (*Recorder, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	return NewWithArgs(strings.Fields(command), mimeType)
}

// NewWithArgs uses argv as is.
func NewWithArgs(argv []string, mimeType string) (*Recorder, error) {
	if len(argv) == 0 {
		return nil, errors.New("recorder command is required")
	}
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	return &Recorder{argv: argv, mimeType: mimeType}, nil
}

// Start launches the recorder process.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return ErrRecording
	}

	cmd := exec.Command(r.argv[0], r.argv[1:]...)
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", r.argv[0], err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	r.cmd, r.stdout, r.stderr, r.done = cmd, stdout, stderr, done
	slogx.Debug(ctx, "recorder started")
	return nil
}

// Stop interrupts the recorder so it can finish the file and returns the audio.
func (r *Recorder) Stop(ctx context.Context) (transcribe.Audio, error) {
	cmd, stdout, stderr, done, err := r.take()
	if err != nil {
		return transcribe.Audio{}, err
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		cmd.Process.Kill()
	}

	timer := time.NewTimer(stopGrace)
	defer timer.Stop()
	select {
	case err = <-done:
	case <-timer.C:
		cmd.Process.Kill()
		err = <-done
	case <-ctx.Done():
		cmd.Process.Kill()
		<-done
		return transcribe.Audio{}, ctx.Err()
	}

	// an interrupted recorder usually exits non-zero
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return transcribe.Audio{}, fmt.Errorf("recorder failed: %w", err)
	}
	if stdout.Len() == 0 {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return transcribe.Audio{}, fmt.Errorf("%w: %s", ErrEmpty, msg)
		}
		return transcribe.Audio{}, ErrEmpty
	}

	ext, _ := transcribe.UploadExtension(r.mimeType)
	return transcribe.Audio{
		Data:     stdout.Bytes(),
		MIMEType: r.mimeType,
		Filename: "recording." + ext,
	}, nil
}

// Cancel kills the recorder and discards the audio.
func (r *Recorder) Cancel() error {
	cmd, _, _, done, err := r.take()
	if err != nil {
		return err
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill recorder: %w", err)
	}
	<-done
	return nil
}

func (r *Recorder) take() (*exec.Cmd, *bytes.Buffer, *bytes.Buffer, chan error, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return nil, nil, nil, nil, ErrNotRecording
	}
	cmd, stdout, stderr, done := r.cmd, r.stdout, r.stderr, r.done
	r.cmd, r.stdout, r.stderr, r.done = nil, nil, nil, nil
	return cmd, stdout, stderr, done, nil
}
