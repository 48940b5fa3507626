package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"paperdesk/config"
)

func testClient(serverURL string) *HTTPClient {
	return NewHTTPClient(&config.Config{
		LLMBaseURL:     serverURL,
		LLMAPIKey:      "sk-test",
		LLMModel:       "gpt-4o-mini",
		LLMRateLimit:   1000, // effectively unthrottled in tests
		LLMTimeoutSecs: 5,
	}, zap.NewNop())
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}
		if req.Temperature != 0.7 || req.MaxTokens != 1000 {
			t.Errorf("sampling parameters = (%v, %d)", req.Temperature, req.MaxTokens)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "a summary"}},
			},
		})
	}))
	defer server.Close()

	out, err := testClient(server.URL).Complete(context.Background(), Request{
		System:      "be helpful",
		User:        "summarize this",
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "a summary" {
		t.Errorf("content = %q", out)
	}
}

func TestCompleteHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limit"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Complete(context.Background(), Request{User: "hi"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry the status: %v", err)
	}
}

func TestCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "model overloaded"},
		})
	}))
	defer server.Close()

	_, err := testClient(server.URL).Complete(context.Background(), Request{User: "hi"})
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("expected api error, got %v", err)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	_, err := testClient(server.URL).Complete(context.Background(), Request{User: "hi"})
	if err == nil {
		t.Fatal("expected an error for an empty choices list")
	}
}
