package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("expected model gpt-4o-mini, got %s", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
		}

		resp := openAIResponse{
			Choices: []openAIChoice{
				{Message: openAIMessage{Role: "assistant", Content: `{"title":"world"}`}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", WithBaseURL(server.URL))

	result, err := client.Generate(context.Background(), Prompt{System: "be brief", User: "hello", JSON: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"title":"world"}` {
		t.Errorf("unexpected result %q", result)
	}
}

func TestMoonshotPreset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != moonshotDefaultModel {
			t.Errorf("expected model %s, got %s", moonshotDefaultModel, req.Model)
		}
		if len(req.Messages) != 1 {
			t.Errorf("expected only the user message, got %+v", req.Messages)
		}
		if req.ResponseFormat != nil {
			t.Errorf("expected no response format, got %+v", req.ResponseFormat)
		}
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer server.Close()

	client := NewMoonshotClient("test-key", WithBaseURL(server.URL))
	if client.name != "moonshot" || client.model != moonshotDefaultModel {
		t.Fatalf("unexpected preset: %+v", client)
	}

	_, err := client.Generate(context.Background(), Prompt{User: "hello"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestOpenAIGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth_error"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("bad-key", WithBaseURL(server.URL))

	_, err := client.Generate(context.Background(), Prompt{User: "hello"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestOpenAIGenerateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openAIResponse{Choices: []openAIChoice{}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", WithBaseURL(server.URL), WithModel("gpt-4o"))
	if client.model != "gpt-4o" {
		t.Fatalf("expected model override, got %s", client.model)
	}

	_, err := client.Generate(context.Background(), Prompt{User: "hello"})
	if err == nil {
		t.Fatal("expected error for empty choices, got nil")
	}
}

func TestOpenAIGenerateMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", WithBaseURL(server.URL))

	_, err := client.Generate(context.Background(), Prompt{User: "hello"})
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()

	if _, err := NewGenerator(ctx, GeneratorConfig{Provider: ProviderOpenAI}); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := NewGenerator(ctx, GeneratorConfig{Provider: "nope", APIKey: "k"}); err == nil {
		t.Error("expected error for unknown provider")
	}

	gen, err := NewGenerator(ctx, GeneratorConfig{Provider: "Anthropic", APIKey: "k", Model: "claude-x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ac, ok := gen.(*AnthropicClient)
	if !ok {
		t.Fatalf("expected *AnthropicClient, got %T", gen)
	}
	if ac.model != "claude-x" {
		t.Errorf("expected model override, got %s", ac.model)
	}
	if err := gen.Close(); err != nil {
		t.Errorf("expected nil error from Close, got %v", err)
	}
}
