package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// ChatRequest is one completion call. Zero MaxTokens / nil Temperature mean
// the adapter's defaults.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

// AIServiceAdapter is the port for LLM chat.
type AIServiceAdapter interface {
	// Provider names the backend for logs and metrics ("openai", "gemini", ...).
	Provider() string

	// ChatWithUsage returns assistant text + usage as reported by the provider.
	// Upstream HTTP failures are returned as *domain.ProviderError.
	ChatWithUsage(ctx context.Context, req ChatRequest) (string, Usage, error)
}
