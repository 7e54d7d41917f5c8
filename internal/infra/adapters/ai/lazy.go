package ai

import (
	"context"
	"sync"

	"campus-assistant/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*LazyAI)(nil)

// Factory builds a provider client. A missing credential should surface as
// domain.ErrChatbotUnavailable.
type Factory func(ctx context.Context) (adapter.AIServiceAdapter, error)

// LazyAI builds its inner adapter on first use, once. A failed build is
// remembered and returned on every call, so process start never depends on
// provider credentials.
type LazyAI struct {
	provider string
	factory  Factory

	once  sync.Once
	inner adapter.AIServiceAdapter
	err   error
}

func NewLazyAI(provider string, factory Factory) *LazyAI {
	return &LazyAI{provider: provider, factory: factory}
}

func (l *LazyAI) Provider() string { return l.provider }

func (l *LazyAI) get(ctx context.Context) (adapter.AIServiceAdapter, error) {
	l.once.Do(func() {
		// the client outlives the request that triggered it
		l.inner, l.err = l.factory(context.WithoutCancel(ctx))
	})
	return l.inner, l.err
}

func (l *LazyAI) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	inner, err := l.get(ctx)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	return inner.ChatWithUsage(ctx, req)
}
