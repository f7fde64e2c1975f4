package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/mklimuk/notepilot/pkg/logger/slogx"
)

const (
	DefaultBaseURL  = "https://api.openai.com/v1"
	DefaultModel    = "whisper-1"
	DefaultMaxBytes = 25 << 20
	DefaultTimeout  = 15 * time.Second
)

// Audio is a captured recording.
type Audio struct {
	Data     []byte
	MIMEType string
	// Filename is only used as the base name of the upload.
	Filename string
}

// Result holds the recognized text. Text may be blank.
type Result struct {
	Text string
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (Result, error)
}

// Config configures a Client. Zero values fall back to the defaults.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	MaxBytes int64
	Timeout  time.Duration
}

// Client implements Transcriber against an OpenAI-compatible
// /audio/transcriptions endpoint.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	language   string
	baseURL    string
	maxBytes   int64
	timeout    time.Duration
}

// Ensure Client implements Transcriber.
var _ Transcriber = (*Client)(nil)

// NewClient creates a new transcription client.
func NewClient(cfg Config) *Client {
	c := &Client{
		httpClient: &http.Client{},
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		language:   cfg.Language,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxBytes:   cfg.MaxBytes,
		timeout:    cfg.Timeout,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.maxBytes <= 0 {
		c.maxBytes = DefaultMaxBytes
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe uploads the audio and returns the recognized text. A blank
// transcript is returned together with an EmptyResult error so callers can
// still apply their own validation.
func (c *Client) Transcribe(ctx context.Context, audio Audio) (Result, error) {
	if len(audio.Data) == 0 {
		return Result{}, newError(KindInvalidAudio, 0, errors.New("audio is empty"))
	}
	if int64(len(audio.Data)) > c.maxBytes {
		return Result{}, newError(KindInvalidAudio, 0,
			fmt.Errorf("audio is %d bytes, limit is %d", len(audio.Data), c.maxBytes))
	}

	ext, err := UploadExtension(audio.MIMEType)
	if err != nil {
		return Result{}, err
	}

	body, contentType, err := c.encode(audio, ext)
	if err != nil {
		return Result{}, newError(KindInvalidAudio, 0, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return Result{}, newError(KindUnreachable, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, newError(KindUnreachable, 0, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, newError(KindUnreachable, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, statusError(resp.StatusCode, respBytes)
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return Result{}, newError(KindUnreachable, resp.StatusCode, fmt.Errorf("failed to parse response: %w", err))
	}
	if parsed.Error != nil {
		return Result{}, newError(KindUnreachable, resp.StatusCode, errors.New(parsed.Error.Message))
	}

	slogx.Debug(ctx, "audio transcribed",
		slog.Int("bytes", len(audio.Data)),
		slog.Duration("latency", time.Since(start)),
	)

	res := Result{Text: parsed.Text}
	if strings.TrimSpace(parsed.Text) == "" {
		return res, newError(KindEmptyResult, resp.StatusCode, ErrEmptyTranscript)
	}
	return res, nil
}

func (c *Client) encode(audio Audio, ext string) (io.Reader, string, error) {
	name := audio.Filename
	if name == "" {
		name = "audio"
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name+"."+ext)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write audio: %w", err)
	}
	fields := map[string]string{
		"model":           c.model,
		"response_format": "json",
	}
	if c.language != "" {
		fields["language"] = c.language
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func statusError(status int, body []byte) *Error {
	err := fmt.Errorf("speech service error: %s", strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnsupportedMediaType:
		return newError(KindUnsupportedFormat, status, err)
	case status == http.StatusRequestEntityTooLarge:
		return newError(KindInvalidAudio, status, err)
	default:
		return newError(KindUnreachable, status, err)
	}
}
