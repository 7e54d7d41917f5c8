//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"

	"campus-assistant/internal/domain"
)

func TestModerationGate(t *testing.T) {
	ctx := context.Background()

	t.Run("blank text skips classifier", func(t *testing.T) {
		mod := &fakeModerator{}
		v, err := NewModerationGate(mod, FailOpen, newTestLogger()).Check(ctx, "sess_1", "   ")
		if err != nil || !v.Skipped || mod.calls != 0 {
			t.Fatalf("verdict=%+v err=%v calls=%d", v, err, mod.calls)
		}
	})

	t.Run("flagged returns sorted categories", func(t *testing.T) {
		mod := &fakeModerator{flagged: map[string][]string{"bad": {"violence", "harassment"}}}
		v, err := NewModerationGate(mod, FailOpen, newTestLogger()).Check(ctx, "sess_1", "bad")
		if err != nil {
			t.Fatal(err)
		}
		if !v.Flagged || len(v.Categories) != 2 || v.Categories[0] != "harassment" {
			t.Fatalf("verdict = %+v", v)
		}
	})

	t.Run("clean text passes", func(t *testing.T) {
		mod := &fakeModerator{}
		v, err := NewModerationGate(mod, FailOpen, newTestLogger()).Check(ctx, "sess_1", "hello")
		if err != nil || v.Flagged || v.Skipped {
			t.Fatalf("verdict=%+v err=%v", v, err)
		}
	})

	t.Run("fail open lets text through", func(t *testing.T) {
		mod := &fakeModerator{err: errors.New("503 from provider")}
		v, err := NewModerationGate(mod, FailOpen, newTestLogger()).Check(ctx, "sess_1", "hello")
		if err != nil || v.Flagged || !v.Skipped {
			t.Fatalf("verdict=%+v err=%v", v, err)
		}
	})

	t.Run("fail closed rejects", func(t *testing.T) {
		mod := &fakeModerator{err: errors.New("503 from provider")}
		_, err := NewModerationGate(mod, FailClosed, newTestLogger()).Check(ctx, "sess_1", "hello")
		var failure *domain.ChatFailure
		if !errors.As(err, &failure) || failure.Category != domain.FailureUnavailable {
			t.Fatalf("err = %v", err)
		}
		if !errors.Is(err, domain.ErrModerationUnavailable) {
			t.Fatalf("err does not wrap ErrModerationUnavailable: %v", err)
		}
	})

	t.Run("unknown policy defaults to fail open", func(t *testing.T) {
		g := NewModerationGate(&fakeModerator{}, FailurePolicy("maybe"), newTestLogger())
		if g.policy != FailOpen {
			t.Fatalf("policy = %q", g.policy)
		}
	})
}
