package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"campus-assistant/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

const ProviderNoop = "noop"

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev testing.
// It logs the request and echoes the last user turn.
type NoopAIAdapter struct {
	log *zerolog.Logger
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	l := logger.With().Str("component", "NoopAI").Logger()
	return &NoopAIAdapter{log: &l}
}

func (a *NoopAIAdapter) Provider() string { return ProviderNoop }

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	// Simulate processing and respect ctx
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}
	last := ""
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	a.log.Debug().Int("turns", len(req.Messages)).Str("model", req.Model).Msg("noop chat")
	reply := fmt.Sprintf("(noop) You asked: %s", last)
	return reply, adapter.Usage{PromptTokens: len(last) / 4, CompletionTokens: len(reply) / 4, TotalTokens: (len(last) + len(reply)) / 4}, nil
}
