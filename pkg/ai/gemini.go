package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiDefaultModel = "gemini-1.5-flash"

// GeminiClient wraps the Gemini API client
type GeminiClient struct {
	genaiClient *genai.Client
	modelName   string
}

// Ensure GeminiClient implements Generator
var _ Generator = (*GeminiClient)(nil)

// NewGeminiClient creates a new Gemini client. An empty model selects the default.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = geminiDefaultModel
	}
	return &GeminiClient{
		genaiClient: client,
		modelName:   model,
	}, nil
}

// Close closes the client
func (c *GeminiClient) Close() error {
	return c.genaiClient.Close()
}

// Generate generates text from a prompt
func (c *GeminiClient) Generate(ctx context.Context, p Prompt) (string, error) {
	// models are cheap handles; one per call keeps settings per request
	model := c.genaiClient.GenerativeModel(c.modelName)
	if p.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(p.System)}}
	}
	if p.JSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(p.User))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	return sb.String(), nil
}
