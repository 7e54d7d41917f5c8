package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/ports/adapter"
	"campus-assistant/internal/infra/logging"
	"campus-assistant/internal/infra/metrics"
)

// User-facing failure texts. None of them reveal provider or credential details.
const (
	msgUpstreamBusy  = "Our assistant is receiving a lot of questions right now. Please try again shortly."
	msgConfiguration = "The assistant is not configured correctly. Please contact the site administrator or leave us an inquiry."
	msgBadRequest    = "Sorry, I couldn't process that message. Could you rephrase it?"
	msgUnavailable   = "The chatbot is currently unavailable. Please try again later or leave us an inquiry."
	msgSlow          = "The assistant is responding slowly. Please try again in a moment."
)

type CompletionDefaults struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// CompletionOptions overrides the defaults for one call; zero values keep them.
type CompletionOptions struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

// CompletionClient merges the grounded system prompt with the turns and
// calls the provider, normalizing failures into *domain.ChatFailure.
type CompletionClient struct {
	ai       adapter.AIServiceAdapter
	defaults CompletionDefaults
	log      *zerolog.Logger
}

func NewCompletionClient(ai adapter.AIServiceAdapter, defaults CompletionDefaults, logger *zerolog.Logger) *CompletionClient {
	compLog := logger.With().Str("component", "CompletionClient").Logger()
	return &CompletionClient{ai: ai, defaults: defaults, log: &compLog}
}

// Complete prepends systemPrompt as a system turn unless turns already carry one.
func (c *CompletionClient) Complete(ctx context.Context, systemPrompt string, turns []adapter.Message, opts CompletionOptions) (string, adapter.Usage, error) {
	defer logging.TraceDuration(c.log, "CompletionClient.Complete")()

	msgs := withSystemTurn(systemPrompt, turns)
	req := adapter.ChatRequest{
		Model:     firstNonEmpty(opts.Model, c.defaults.Model),
		Messages:  msgs,
		MaxTokens: c.defaults.MaxTokens,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	temp := c.defaults.Temperature
	if opts.Temperature != nil {
		temp = *opts.Temperature
	}
	req.Temperature = &temp

	start := time.Now()
	reply, usage, err := c.ai.ChatWithUsage(ctx, req)
	metrics.ObserveChatUsage(c.ai.Provider(), req.Model, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, time.Since(start), err == nil)
	if err != nil {
		failure := NormalizeCompletionError(ctx, err)
		logging.With(ctx, c.log).Error().Err(err).
			Str("provider", c.ai.Provider()).
			Str("model", req.Model).
			Str("category", string(failure.Category)).
			Msg("completion failed")
		return "", adapter.Usage{}, failure
	}
	return strings.TrimSpace(reply), usage, nil
}

func withSystemTurn(systemPrompt string, turns []adapter.Message) []adapter.Message {
	for _, t := range turns {
		if strings.EqualFold(t.Role, "system") {
			return turns
		}
	}
	out := make([]adapter.Message, 0, len(turns)+1)
	out = append(out, adapter.Message{Role: "system", Content: systemPrompt})
	return append(out, turns...)
}

// NormalizeCompletionError maps provider errors onto the four user-facing categories.
func NormalizeCompletionError(ctx context.Context, err error) *domain.ChatFailure {
	var failure *domain.ChatFailure
	if errors.As(err, &failure) {
		return failure
	}

	var pe *domain.ProviderError
	switch {
	case errors.As(err, &pe) && pe.StatusCode == http.StatusTooManyRequests:
		return &domain.ChatFailure{Category: domain.FailureRateLimited, Message: msgUpstreamBusy, Err: err}
	case errors.As(err, &pe) && (pe.StatusCode == http.StatusUnauthorized || pe.StatusCode == http.StatusForbidden):
		return &domain.ChatFailure{Category: domain.FailureConfiguration, Message: msgConfiguration, Err: err}
	case errors.As(err, &pe) && pe.StatusCode == http.StatusBadRequest:
		return &domain.ChatFailure{Category: domain.FailureBadRequest, Message: msgBadRequest, Err: err}
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		return &domain.ChatFailure{Category: domain.FailureUnavailable, Message: msgSlow, Err: err}
	default:
		return &domain.ChatFailure{Category: domain.FailureUnavailable, Message: msgUnavailable, Err: err}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
