package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("expected x-api-key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("expected anthropic-version header")
		}

		var body anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.System != "be helpful" {
			t.Errorf("system = %q", body.System)
		}
		if body.MaxTokens == 0 {
			t.Error("max_tokens must be set")
		}

		w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "part one "},
				{"type": "tool_use"},
				{"type": "text", "text": "part two"}
			]
		}`))
	}))
	defer server.Close()

	client := NewAnthropicClient("test-key")
	client.baseURL = server.URL

	resp, err := client.CompleteWithSystem(context.Background(), "be helpful", "hi")
	if err != nil {
		t.Fatalf("CompleteWithSystem failed: %v", err)
	}
	if resp != "part one part two" {
		t.Errorf("got %q, want text blocks joined", resp)
	}
}

func TestAnthropicClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"type": "overloaded_error", "message": "overloaded"}}`))
	}))
	defer server.Close()

	client := NewAnthropicClient("test-key")
	client.baseURL = server.URL

	if _, err := client.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error from error body")
	}
}

func TestAnthropicClient_NoKey(t *testing.T) {
	client := NewAnthropicClient("")
	_, err := client.Complete(context.Background(), "hi")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
