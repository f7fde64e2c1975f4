package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Prompt is a single request to a language model.
type Prompt struct {
	System string
	User   string
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Generator defines the interface for text generation
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
	Close() error
}

// Provider names accepted by NewGenerator.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderMoonshot  = "moonshot"
	ProviderAnthropic = "anthropic"
)

// GeneratorConfig selects and configures a provider.
type GeneratorConfig struct {
	Provider string
	APIKey   string
	// Model and BaseURL override the provider defaults when set.
	Model   string
	BaseURL string
}

// NewGenerator creates the Generator for cfg.Provider.
func NewGenerator(ctx context.Context, cfg GeneratorConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for provider %q", cfg.Provider)
	}
	var opts []Option
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, opts...), nil
	case ProviderMoonshot:
		return NewMoonshotClient(cfg.APIKey, opts...), nil
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey, opts...), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

type options struct {
	httpClient *http.Client
	model      string
	baseURL    string
}

// Option configures the HTTP based clients.
type Option func(*options)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func buildOptions(model, baseURL string, opts []Option) options {
	o := options{httpClient: &http.Client{}, model: model, baseURL: baseURL}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
