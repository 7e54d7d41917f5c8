package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*CompatibleAdapter)(nil)

const ProviderCompatible = "compatible"

// CompatibleAdapter talks to any OpenAI-compatible gateway (OpenRouter,
// vLLM, LiteLLM, Azure proxies). The gateway's base URL must include /v1.
type CompatibleAdapter struct {
	client *goopenai.Client
	model  string
}

func NewCompatibleAdapter(apiKey, baseURL, model string) (*CompatibleAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("compatible: %w", domain.ErrChatbotUnavailable)
	}
	if baseURL == "" {
		return nil, errors.New("compatible: base url required")
	}
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	return &CompatibleAdapter{client: goopenai.NewClientWithConfig(cfg), model: model}, nil
}

func (c *CompatibleAdapter) Provider() string { return ProviderCompatible }

func (c *CompatibleAdapter) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	creq := goopenai.ChatCompletionRequest{
		Model:     modelOrDefault(req.Model, c.model),
		Messages:  make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)),
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		creq.Temperature = float32(*req.Temperature)
	}
	for _, m := range req.Messages {
		creq.Messages = append(creq.Messages, goopenai.ChatCompletionMessage{Role: compatibleRole(m.Role), Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		if code := compatibleStatus(err); code != 0 {
			return "", adapter.Usage{}, &domain.ProviderError{Provider: ProviderCompatible, StatusCode: code, Err: err}
		}
		return "", adapter.Usage{}, err
	}

	u := adapter.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	for _, ch := range resp.Choices {
		if ch.Message.Content != "" {
			return ch.Message.Content, u, nil
		}
	}
	return "", u, errors.New("compatible: no choice content")
}

func compatibleRole(role string) string {
	switch strings.ToLower(role) {
	case "system":
		return goopenai.ChatMessageRoleSystem
	case "assistant":
		return goopenai.ChatMessageRoleAssistant
	default:
		return goopenai.ChatMessageRoleUser
	}
}

func compatibleStatus(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
