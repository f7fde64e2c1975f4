package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIDefaultModel   = "gpt-4o-mini"

	moonshotDefaultBaseURL = "https://api.moonshot.ai/v1"
	moonshotDefaultModel   = "kimi-k2.5"
)

// OpenAIClient implements the Generator interface using an OpenAI-compatible
// chat completions API.
type OpenAIClient struct {
	name       string
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// Ensure OpenAIClient implements Generator.
var _ Generator = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new OpenAI API client.
func NewOpenAIClient(apiKey string, opts ...Option) *OpenAIClient {
	return newChatClient("openai", apiKey, buildOptions(openAIDefaultModel, openAIDefaultBaseURL, opts))
}

// NewMoonshotClient creates a client for the Moonshot (Kimi) API, which
// speaks the OpenAI chat completions protocol.
func NewMoonshotClient(apiKey string, opts ...Option) *OpenAIClient {
	return newChatClient("moonshot", apiKey, buildOptions(moonshotDefaultModel, moonshotDefaultBaseURL, opts))
}

func newChatClient(name, apiKey string, o options) *OpenAIClient {
	return &OpenAIClient{
		name:       name,
		httpClient: o.httpClient,
		apiKey:     apiKey,
		model:      o.model,
		baseURL:    o.baseURL,
	}
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Generate sends a prompt to the chat completions endpoint and returns the generated text.
func (c *OpenAIClient) Generate(ctx context.Context, p Prompt) (string, error) {
	reqBody := openAIRequest{Model: c.model}
	if p.System != "" {
		reqBody.Messages = append(reqBody.Messages, openAIMessage{Role: "system", Content: p.System})
	}
	reqBody.Messages = append(reqBody.Messages, openAIMessage{Role: "user", Content: p.User})
	if p.JSON {
		reqBody.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s API error (status %d): %s", c.name, resp.StatusCode, string(respBytes))
	}

	var result openAIResponse
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("%s API error: %s", c.name, result.Error.Message)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	return result.Choices[0].Message.Content, nil
}

// Close is a no-op for the HTTP-based client.
func (c *OpenAIClient) Close() error {
	return nil
}
