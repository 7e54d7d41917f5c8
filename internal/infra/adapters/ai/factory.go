package ai

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"campus-assistant/internal/config"
	"campus-assistant/internal/domain/ports/adapter"
)

// Build assembles the completion stack from config. Each configured provider
// is wrapped in a LazyAI; the chosen default is always present so a missing
// key fails at first use rather than at startup. The result is capped to
// ai.concurrent_limit in-flight calls.
func Build(cfg config.AIConfig, logger *zerolog.Logger) adapter.AIServiceAdapter {
	def := strings.ToLower(cfg.Provider)
	if def == ProviderNoop {
		return NewLimitedAI(NewNoopAIAdapter(logger), cfg.ConcurrentLimit)
	}

	factories := map[string]Factory{
		ProviderOpenAI: func(context.Context) (adapter.AIServiceAdapter, error) {
			return NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.DefaultModel)
		},
		ProviderCompatible: func(context.Context) (adapter.AIServiceAdapter, error) {
			return NewCompatibleAdapter(cfg.CompatibleKey, cfg.CompatibleURL, cfg.DefaultModel)
		},
		ProviderGemini: func(ctx context.Context) (adapter.AIServiceAdapter, error) {
			return NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.DefaultModel)
		},
	}
	keys := map[string]string{
		ProviderOpenAI:     cfg.OpenAIKey,
		ProviderCompatible: cfg.CompatibleKey,
		ProviderGemini:     cfg.GeminiKey,
	}

	byProvider := map[string]adapter.AIServiceAdapter{}
	for name, f := range factories {
		if name == def || keys[name] != "" {
			byProvider[name] = NewLazyAI(name, f)
		}
	}

	log := logger.With().Str("component", "AIFactory").Logger()
	names := make([]string, 0, len(byProvider))
	for name := range byProvider {
		names = append(names, name)
	}
	log.Info().Str("default", def).Strs("providers", names).Bool("default_key_set", keys[def] != "").Msg("ai providers configured")

	var out adapter.AIServiceAdapter = byProvider[def]
	if len(byProvider) > 1 {
		out = NewMultiAIAdapter(def, byProvider, cfg.ModelToProvider)
	}
	return NewLimitedAI(out, cfg.ConcurrentLimit)
}
