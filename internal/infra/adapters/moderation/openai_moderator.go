package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/ports/adapter"
)

var _ adapter.Moderator = (*OpenAIModerator)(nil)

// OpenAIModerator classifies text with the OpenAI moderations endpoint.
type OpenAIModerator struct {
	client openai.Client
	model  string
}

func NewOpenAIModerator(apiKey, baseURL, model string) (*OpenAIModerator, error) {
	if apiKey == "" {
		return nil, domain.ErrModerationUnavailable
	}
	if model == "" {
		model = "omni-moderation-latest"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIModerator{client: openai.NewClient(opts...), model: model}, nil
}

func (m *OpenAIModerator) Moderate(ctx context.Context, text string) (adapter.ModerationResult, error) {
	resp, err := m.client.Moderations.New(ctx, openai.ModerationNewParams{
		Input: openai.ModerationNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.ModerationModel(m.model),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return adapter.ModerationResult{}, &domain.ProviderError{Provider: "openai-moderation", StatusCode: apiErr.StatusCode, Err: err}
		}
		return adapter.ModerationResult{}, fmt.Errorf("moderation: %w", err)
	}
	if len(resp.Results) == 0 {
		return adapter.ModerationResult{}, errors.New("moderation: empty result")
	}

	r := resp.Results[0]
	out := adapter.ModerationResult{
		Flagged:    r.Flagged,
		Categories: map[string]bool{},
		Scores:     map[string]float64{},
	}
	// category keys keep the API spelling, e.g. "self-harm/intent"
	var cats map[string]any
	if err := json.Unmarshal([]byte(r.Categories.RawJSON()), &cats); err == nil {
		for k, v := range cats {
			if b, ok := v.(bool); ok {
				out.Categories[k] = b
			}
		}
	}
	var scores map[string]any
	if err := json.Unmarshal([]byte(r.CategoryScores.RawJSON()), &scores); err == nil {
		for k, v := range scores {
			if f, ok := v.(float64); ok {
				out.Scores[k] = f
			}
		}
	}
	return out, nil
}
