package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/model"
	"campus-assistant/internal/domain/ports/adapter"
	"campus-assistant/internal/domain/ports/repository"
	"campus-assistant/internal/infra/logging"
	"campus-assistant/internal/infra/metrics"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	// CreateSession issues a new session id and registers its conversation.
	CreateSession(ctx context.Context, p model.Participant) (*model.Conversation, error)
	// SendMessage runs one chat turn. Rate limiting happens before this call.
	SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageResult, error)
}

type SendMessageInput struct {
	SessionID   string
	Message     string
	Participant model.Participant
}

type SendMessageResult struct {
	Reply          string
	ConversationID string
	TokensUsed     int
	IsModerated    bool
}

type ChatOptions struct {
	MaxMessageLength int
	HistoryLimit     int
	Timeout          time.Duration
	Dev              bool
}

type chatUC struct {
	convs      repository.ConversationRepository
	tm         repository.TransactionManager
	gate       *ModerationGate
	knowledge  KnowledgeUseCase
	completion *CompletionClient
	opts       ChatOptions
	now        func() time.Time
	log        *zerolog.Logger
}

func NewChatUseCase(
	convs repository.ConversationRepository,
	tm repository.TransactionManager,
	gate *ModerationGate,
	knowledge KnowledgeUseCase,
	completion *CompletionClient,
	opts ChatOptions,
	logger *zerolog.Logger,
) *chatUC {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 2000
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	compLog := logger.With().Str("component", "ChatUC").Logger()
	return &chatUC{
		convs:      convs,
		tm:         tm,
		gate:       gate,
		knowledge:  knowledge,
		completion: completion,
		opts:       opts,
		now:        time.Now,
		log:        &compLog,
	}
}

// NewSessionID returns an opaque, time-ordered session identifier.
func NewSessionID() string {
	return "sess_" + ulid.Make().String()
}

func (c *chatUC) CreateSession(ctx context.Context, p model.Participant) (*model.Conversation, error) {
	defer logging.TraceDuration(c.log, "ChatUC.CreateSession")()

	conv, err := c.convs.UpsertBySession(ctx, repository.NoTX, model.NewConversation(uuid.NewString(), NewSessionID(), p))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	log := logging.With(logging.WithSessID(ctx, conv.SessionID), c.log)
	ev := log.Info().Str("conversation_id", conv.ID).Bool("is_logged", conv.IsLogged)
	if conv.ParticipantEmail != nil {
		ev = ev.Str("participant_email", logging.Redact(*conv.ParticipantEmail, c.opts.Dev))
	}
	ev.Msg("chat session created")
	return conv, nil
}

func (c *chatUC) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageResult, error) {
	defer logging.TraceDuration(c.log, "ChatUC.SendMessage")()

	sessionID := strings.TrimSpace(in.SessionID)
	text := strings.TrimSpace(in.Message)
	if sessionID == "" || text == "" {
		metrics.IncChatOutcome("invalid")
		return nil, fmt.Errorf("%w: sessionId and message are required", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(text) > c.opts.MaxMessageLength {
		metrics.IncChatOutcome("invalid")
		return nil, fmt.Errorf("%w: at most %d characters", domain.ErrMessageTooLong, c.opts.MaxMessageLength)
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	ctx = logging.WithSessID(ctx, sessionID)
	log := logging.With(ctx, c.log)
	start := c.now()

	verdict, err := c.gate.Check(ctx, sessionID, text)
	if err != nil {
		return nil, c.fail(err)
	}
	if verdict.Flagged {
		metrics.IncChatOutcome("moderated")
		return &SendMessageResult{Reply: SafeGuidanceReply, IsModerated: true}, nil
	}

	conv, err := c.convs.UpsertBySession(ctx, repository.NoTX, model.NewConversation(uuid.NewString(), sessionID, in.Participant))
	if err != nil {
		metrics.IncChatOutcome("failed")
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}

	var turns []adapter.Message
	if conv.IsLogged {
		recent, err := c.convs.ListRecentMessages(ctx, repository.NoTX, conv.ID, c.opts.HistoryLimit)
		if err != nil {
			log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("history unavailable; continuing without it")
		}
		turns = historyTurns(recent)
	}
	turns = append(turns, adapter.Message{Role: string(model.RoleUser), Content: text})

	prompt := c.knowledge.BuildPrompt(ctx, text)
	log.Debug().Strs("families", prompt.Relevance.Families).Int("prompt_chars", utf8.RuneCountInString(prompt.Text)).Msg("prompt composed")

	reply, usage, err := c.completion.Complete(ctx, prompt.Text, turns, CompletionOptions{})
	if err != nil {
		return nil, c.fail(err)
	}

	if conv.IsLogged {
		if err := c.persistTurn(ctx, conv.ID, text, start, reply, usage.TotalTokens); err != nil {
			// the participant still gets the reply
			log.Error().Err(err).Str("conversation_id", conv.ID).Msg("failed to persist chat turn")
		}
	}

	metrics.IncChatOutcome("ok")
	return &SendMessageResult{Reply: reply, ConversationID: conv.ID, TokensUsed: usage.TotalTokens}, nil
}

func (c *chatUC) persistTurn(ctx context.Context, convID, text string, start time.Time, reply string, tokens int) error {
	user := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Role:           model.RoleUser,
		Content:        text,
		CreatedAt:      start,
	}
	assistant := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Role:           model.RoleAssistant,
		Content:        reply,
		TokenCount:     &tokens,
		CreatedAt:      c.now(),
	}
	// persist even when the chat deadline has already passed
	ctx = context.WithoutCancel(ctx)
	return c.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := c.convs.SaveMessage(ctx, tx, user); err != nil {
			return fmt.Errorf("save user message: %w", err)
		}
		if err := c.convs.SaveMessage(ctx, tx, assistant); err != nil {
			return fmt.Errorf("save assistant message: %w", err)
		}
		return nil
	})
}

func (c *chatUC) fail(err error) error {
	var failure *domain.ChatFailure
	if !errors.As(err, &failure) {
		failure = NormalizeCompletionError(context.Background(), err)
	}
	metrics.IncChatOutcome("failed")
	metrics.IncChatFailure(string(failure.Category))
	return failure
}

// historyTurns reverses newest-first rows into prompt order.
func historyTurns(recent []model.Message) []adapter.Message {
	out := make([]adapter.Message, 0, len(recent)+1)
	for i := len(recent) - 1; i >= 0; i-- {
		out = append(out, adapter.Message{Role: string(recent[i].Role), Content: recent[i].Content})
	}
	return out
}
