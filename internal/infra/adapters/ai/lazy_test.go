//go:build !integration

package ai_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"campus-assistant/internal/config"
	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/ports/adapter"
	ai "campus-assistant/internal/infra/adapters/ai"
)

func TestLazyAI_BuildsOnce(t *testing.T) {
	var builds int32
	inner := &stubAI{name: "openai"}
	l := ai.NewLazyAI("openai", func(context.Context) (adapter.AIServiceAdapter, error) {
		atomic.AddInt32(&builds, 1)
		return inner, nil
	})
	if builds != 0 {
		t.Fatal("factory ran before first use")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = l.ChatWithUsage(context.Background(), adapter.ChatRequest{})
		}()
	}
	wg.Wait()
	if atomic.LoadInt32(&builds) != 1 || inner.count() != 10 {
		t.Fatalf("builds=%d calls=%d", builds, inner.count())
	}
}

func TestLazyAI_RemembersFailure(t *testing.T) {
	var builds int32
	l := ai.NewLazyAI("openai", func(context.Context) (adapter.AIServiceAdapter, error) {
		atomic.AddInt32(&builds, 1)
		return nil, domain.ErrChatbotUnavailable
	})
	for i := 0; i < 3; i++ {
		if _, _, err := l.ChatWithUsage(context.Background(), adapter.ChatRequest{}); !errors.Is(err, domain.ErrChatbotUnavailable) {
			t.Fatalf("err = %v", err)
		}
	}
	if builds != 1 {
		t.Fatalf("builds = %d", builds)
	}
}

func TestBuild_MissingKeyFailsAtFirstUse(t *testing.T) {
	log := zerolog.Nop()
	cfg := config.Defaults().AI
	cfg.OpenAIKey = ""

	a := ai.Build(cfg, &log)
	if a.Provider() != ai.ProviderOpenAI {
		t.Fatalf("provider = %q", a.Provider())
	}
	_, _, err := a.ChatWithUsage(context.Background(), adapter.ChatRequest{Messages: []adapter.Message{{Role: "user", Content: "hi"}}})
	if !errors.Is(err, domain.ErrChatbotUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuild_Noop(t *testing.T) {
	log := zerolog.Nop()
	cfg := config.Defaults().AI
	cfg.Provider = ai.ProviderNoop

	reply, usage, err := ai.Build(cfg, &log).ChatWithUsage(context.Background(), adapter.ChatRequest{Messages: []adapter.Message{{Role: "user", Content: "which programs?"}}})
	if err != nil || reply == "" || usage.TotalTokens == 0 {
		t.Fatalf("reply=%q usage=%+v err=%v", reply, usage, err)
	}
}
