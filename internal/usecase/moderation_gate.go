package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/ports/adapter"
	"campus-assistant/internal/infra/logging"
	"campus-assistant/internal/infra/metrics"
)

type FailurePolicy string

const (
	// FailOpen lets messages through when the classifier is down. Moderation
	// is weaker during provider outages; operators opt out with FailClosed.
	FailOpen   FailurePolicy = "allow"
	FailClosed FailurePolicy = "reject"
)

// ModerationVerdict is what the chat pipeline needs from a moderation check.
type ModerationVerdict struct {
	Flagged    bool
	Categories []string
	Skipped    bool // empty text or classifier failure under FailOpen
}

// ModerationGate screens user text before any context is built.
type ModerationGate struct {
	moderator adapter.Moderator
	policy    FailurePolicy
	now       func() time.Time
	log       *zerolog.Logger
}

func NewModerationGate(moderator adapter.Moderator, policy FailurePolicy, logger *zerolog.Logger) *ModerationGate {
	compLog := logger.With().Str("component", "ModerationGate").Logger()
	if policy != FailClosed {
		policy = FailOpen
	}
	return &ModerationGate{moderator: moderator, policy: policy, now: time.Now, log: &compLog}
}

// Check classifies text. Under FailClosed a classifier error is returned as a
// *domain.ChatFailure; under FailOpen it is logged and the text passes.
func (g *ModerationGate) Check(ctx context.Context, sessionID, text string) (ModerationVerdict, error) {
	if strings.TrimSpace(text) == "" || g.moderator == nil {
		return ModerationVerdict{Skipped: true}, nil
	}

	log := logging.With(ctx, g.log)
	res, err := g.moderator.Moderate(ctx, text)
	if err != nil {
		metrics.IncModerationCheck("error")
		if g.policy == FailClosed {
			log.Error().Err(err).Msg("moderation failed; rejecting message")
			return ModerationVerdict{}, &domain.ChatFailure{
				Category: domain.FailureUnavailable,
				Message:  "We can't process messages right now. Please try again shortly.",
				Err:      fmt.Errorf("%w: %v", domain.ErrModerationUnavailable, err),
			}
		}
		log.Warn().Err(err).Msg("moderation failed; allowing message through")
		return ModerationVerdict{Skipped: true}, nil
	}

	if !res.Flagged {
		metrics.IncModerationCheck("pass")
		return ModerationVerdict{}, nil
	}

	metrics.IncModerationCheck("flagged")
	cats := res.FlaggedCategories()
	g.log.Warn().
		Str("trace_id", logging.TraceID(ctx)).
		Str("client_ip", logging.ClientIP(ctx)).
		Str("session_id", sessionID).
		Strs("categories", cats).
		Time("flagged_at", g.now().UTC()).
		Msg("message flagged by moderation")
	return ModerationVerdict{Flagged: true, Categories: cats}, nil
}
