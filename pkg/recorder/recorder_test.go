package recorder

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shell(t *testing.T, script string) *Recorder {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	r, err := NewWithArgs([]string{"sh", "-c", script}, "audio/wav")
	require.NoError(t, err)
	return r
}

func TestStopReturnsAudio(t *testing.T) {
	r := shell(t, "printf RIFFDATA; exec sleep 10")
	require.NoError(t, r.Start(context.Background()))
	assert.ErrorIs(t, r.Start(context.Background()), ErrRecording)
	// let the script write before it is interrupted
	time.Sleep(200 * time.Millisecond)

	audio, err := r.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "RIFFDATA", string(audio.Data))
	assert.Equal(t, "audio/wav", audio.MIMEType)
	assert.Equal(t, "recording.wav", audio.Filename)

	_, err = r.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestStopWithoutAudio(t *testing.T) {
	r := shell(t, "echo 'no capture device' >&2; exec sleep 10")
	require.NoError(t, r.Start(context.Background()))
	time.Sleep(200 * time.Millisecond)

	_, err := r.Stop(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Contains(t, err.Error(), "no capture device")
}

func TestCancel(t *testing.T) {
	r := shell(t, "printf RIFF; exec sleep 10")
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Cancel())
	assert.ErrorIs(t, r.Cancel(), ErrNotRecording)

	// the recorder can be reused
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Cancel())
}

func TestNew(t *testing.T) {
	r, err := New("", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"arecord", "-q", "-f", "cd", "-t", "wav"}, r.argv)
	assert.Equal(t, "audio/wav", r.mimeType)

	_, err = NewWithArgs(nil, "")
	assert.Error(t, err)

	r, err = New("no-such-recorder-binary", "audio/wav")
	require.NoError(t, err)
	assert.Error(t, r.Start(context.Background()))
}
