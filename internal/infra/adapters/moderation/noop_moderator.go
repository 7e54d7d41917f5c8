package moderation

import (
	"context"

	"campus-assistant/internal/domain/ports/adapter"
)

var _ adapter.Moderator = NoopModerator{}

// NoopModerator passes every message. Used when moderation is disabled.
type NoopModerator struct{}

func (NoopModerator) Moderate(context.Context, string) (adapter.ModerationResult, error) {
	return adapter.ModerationResult{}, nil
}

// Unavailable fails every call; the gate's failure policy decides the outcome.
type Unavailable struct{ Err error }

func (u Unavailable) Moderate(context.Context, string) (adapter.ModerationResult, error) {
	return adapter.ModerationResult{}, u.Err
}
