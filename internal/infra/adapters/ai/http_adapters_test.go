//go:build !integration

package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/ports/adapter"
	ai "campus-assistant/internal/infra/adapters/ai"
)

const completionBody = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
"choices":[{"index":0,"message":{"role":"assistant","content":"We offer BSc Computer Science."},"finish_reason":"stop"}],
"usage":{"prompt_tokens":90,"completion_tokens":10,"total_tokens":100}}`

type capturedRequest struct {
	Model       string           `json:"model"`
	Messages    []map[string]any `json:"messages"`
	MaxTokens   int              `json:"max_tokens"`
	MaxComplete int              `json:"max_completion_tokens"`
	Temperature float64          `json:"temperature"`
}

func completionServer(t *testing.T, status int, body string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func chatRequest() adapter.ChatRequest {
	temp := 0.7
	return adapter.ChatRequest{
		Model:       "gpt-4o-mini",
		MaxTokens:   500,
		Temperature: &temp,
		Messages: []adapter.Message{
			{Role: "system", Content: "grounding"},
			{Role: "user", Content: "What programs do you offer?"},
		},
	}
}

func TestOpenAIAdapter_ChatWithUsage(t *testing.T) {
	var got capturedRequest
	srv := completionServer(t, http.StatusOK, completionBody, &got)

	a, err := ai.NewOpenAIAdapter("sk-test", srv.URL+"/", "gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	reply, usage, err := a.ChatWithUsage(context.Background(), chatRequest())
	if err != nil {
		t.Fatal(err)
	}
	if reply != "We offer BSc Computer Science." || usage.TotalTokens != 100 || usage.PromptTokens != 90 {
		t.Fatalf("reply=%q usage=%+v", reply, usage)
	}
	if len(got.Messages) != 2 || got.Messages[0]["role"] != "system" || got.MaxComplete != 500 {
		t.Fatalf("request = %+v", got)
	}
}

func TestCompatibleAdapter_ChatWithUsage(t *testing.T) {
	var got capturedRequest
	srv := completionServer(t, http.StatusOK, completionBody, &got)

	a, err := ai.NewCompatibleAdapter("key", srv.URL+"/v1", "gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	reply, usage, err := a.ChatWithUsage(context.Background(), chatRequest())
	if err != nil {
		t.Fatal(err)
	}
	if reply == "" || usage.TotalTokens != 100 {
		t.Fatalf("reply=%q usage=%+v", reply, usage)
	}
	if got.Model != "gpt-4o-mini" || got.MaxTokens != 500 || len(got.Messages) != 2 {
		t.Fatalf("request = %+v", got)
	}
}

func TestHTTPAdapters_StatusBecomesProviderError(t *testing.T) {
	errBody := `{"error":{"message":"nope","type":"invalid_request_error","code":"x"}}`
	for _, status := range []int{http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusBadRequest} {
		srv := completionServer(t, status, errBody, nil)

		openaiA, _ := ai.NewOpenAIAdapter("sk-test", srv.URL+"/", "gpt-4o-mini")
		compatA, _ := ai.NewCompatibleAdapter("key", srv.URL+"/v1", "gpt-4o-mini")
		for _, a := range []adapter.AIServiceAdapter{openaiA, compatA} {
			_, _, err := a.ChatWithUsage(context.Background(), chatRequest())
			var pe *domain.ProviderError
			if !errors.As(err, &pe) || pe.StatusCode != status || pe.Provider != a.Provider() {
				t.Fatalf("%s status %d: err = %v", a.Provider(), status, err)
			}
		}
	}
}

func TestConstructors_RejectMissingKey(t *testing.T) {
	if _, err := ai.NewOpenAIAdapter("", "", ""); !errors.Is(err, domain.ErrChatbotUnavailable) {
		t.Fatalf("openai: %v", err)
	}
	if _, err := ai.NewCompatibleAdapter("", "http://x/v1", ""); !errors.Is(err, domain.ErrChatbotUnavailable) {
		t.Fatalf("compatible: %v", err)
	}
	if _, err := ai.NewGeminiAdapter(context.Background(), "", "", ""); !errors.Is(err, domain.ErrChatbotUnavailable) {
		t.Fatalf("gemini: %v", err)
	}
}
