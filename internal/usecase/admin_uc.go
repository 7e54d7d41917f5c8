package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/model"
	"campus-assistant/internal/domain/ports/adapter"
	"campus-assistant/internal/domain/ports/repository"
	"campus-assistant/internal/infra/logging"
)

// Compile-time check
var _ AdminUseCase = (*adminUC)(nil)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultStatDays = 30
	MaxStatDays     = 365
)

type AdminUseCase interface {
	ListConversations(ctx context.Context, limit, offset int) (*ConversationPage, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ToggleResolved(ctx context.Context, id string) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	TokenStats(ctx context.Context, days int) (*TokenStats, error)
	KnowledgePreview(ctx context.Context, sample string) (*KnowledgePreview, error)
	KnowledgeStats(ctx context.Context) (*KnowledgeStats, error)
	TestPrompt(ctx context.Context, message, systemPrompt string) (*TestPromptResult, error)
}

type ConversationPage struct {
	Items []model.ConversationSummary
	Total int
}

type DailyTokenStat struct {
	Date             string          `json:"date"`
	Messages         int             `json:"messages"`
	Tokens           int64           `json:"tokens"`
	EstimatedCostUSD decimal.Decimal `json:"estimatedCostUsd"`
}

type TokenStats struct {
	Days             int              `json:"days"`
	Daily            []DailyTokenStat `json:"daily"`
	TotalMessages    int              `json:"totalMessages"`
	TotalTokens      int64            `json:"totalTokens"`
	EstimatedCostUSD decimal.Decimal  `json:"estimatedCostUsd"`
	CostPer1KTokens  decimal.Decimal  `json:"costPer1kTokensUsd"`
}

type KnowledgePreview struct {
	Sections         map[model.Section]string `json:"sections"`
	SampleMessage    string                   `json:"sampleMessage,omitempty"`
	SelectedSections []model.Section          `json:"selectedSections,omitempty"`
	MatchedFamilies  []string                 `json:"matchedFamilies,omitempty"`
	Prompt           string                   `json:"prompt,omitempty"`
}

type TestPromptResult struct {
	Reply        string          `json:"reply"`
	Usage        adapter.Usage   `json:"usage"`
	SystemPrompt string          `json:"systemPrompt"`
	Sections     []model.Section `json:"sections"`
}

type adminUC struct {
	convs      repository.ConversationRepository
	knowledge  KnowledgeUseCase
	completion *CompletionClient
	costPer1K  decimal.Decimal
	now        func() time.Time
	log        *zerolog.Logger
}

func NewAdminUseCase(
	convs repository.ConversationRepository,
	knowledge KnowledgeUseCase,
	completion *CompletionClient,
	costPer1K decimal.Decimal,
	logger *zerolog.Logger,
) *adminUC {
	compLog := logger.With().Str("component", "AdminUC").Logger()
	return &adminUC{
		convs:      convs,
		knowledge:  knowledge,
		completion: completion,
		costPer1K:  costPer1K,
		now:        time.Now,
		log:        &compLog,
	}
}

func (a *adminUC) ListConversations(ctx context.Context, limit, offset int) (*ConversationPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	items, err := a.convs.List(ctx, repository.NoTX, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	total, err := a.convs.Count(ctx, repository.NoTX)
	if err != nil {
		return nil, fmt.Errorf("count conversations: %w", err)
	}
	return &ConversationPage{Items: items, Total: total}, nil
}

func (a *adminUC) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := a.convs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	msgs, err := a.convs.ListMessages(ctx, repository.NoTX, id)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	conv.Messages = msgs
	return conv, nil
}

func (a *adminUC) ToggleResolved(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := a.convs.ToggleResolved(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	logging.With(ctx, a.log).Info().Str("conversation_id", id).Bool("is_resolved", conv.IsResolved).Msg("conversation resolution toggled")
	return conv, nil
}

func (a *adminUC) DeleteConversation(ctx context.Context, id string) error {
	if err := a.convs.Delete(ctx, repository.NoTX, id); err != nil {
		return err
	}
	logging.With(ctx, a.log).Info().Str("conversation_id", id).Msg("conversation deleted")
	return nil
}

// TokenStats covers the last days calendar days (UTC), today included.
// Days without stored assistant turns are reported with zeros.
func (a *adminUC) TokenStats(ctx context.Context, days int) (*TokenStats, error) {
	if days == 0 {
		days = DefaultStatDays
	}
	if days < 1 || days > MaxStatDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrInvalidArgument, MaxStatDays)
	}

	today := a.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))
	rows, err := a.convs.DailyTokenUsage(ctx, repository.NoTX, since)
	if err != nil {
		return nil, fmt.Errorf("daily token usage: %w", err)
	}
	byDay := make(map[string]model.DailyUsage, len(rows))
	for _, r := range rows {
		byDay[r.Day.UTC().Format(dateLayout)] = r
	}

	st := &TokenStats{Days: days, CostPer1KTokens: a.costPer1K, Daily: make([]DailyTokenStat, 0, days)}
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		u := byDay[key]
		st.Daily = append(st.Daily, DailyTokenStat{
			Date:             key,
			Messages:         u.Messages,
			Tokens:           u.Tokens,
			EstimatedCostUSD: a.cost(u.Tokens),
		})
		st.TotalMessages += u.Messages
		st.TotalTokens += u.Tokens
	}
	st.EstimatedCostUSD = a.cost(st.TotalTokens)
	return st, nil
}

func (a *adminUC) cost(tokens int64) decimal.Decimal {
	return decimal.NewFromInt(tokens).Div(decimal.NewFromInt(1000)).Mul(a.costPer1K).Round(6)
}

func (a *adminUC) KnowledgePreview(ctx context.Context, sample string) (*KnowledgePreview, error) {
	sample = strings.TrimSpace(sample)
	if sample == "" {
		return &KnowledgePreview{Sections: a.knowledge.Render(a.knowledge.Snapshot(ctx))}, nil
	}
	gp := a.knowledge.BuildPrompt(ctx, sample)
	return &KnowledgePreview{
		Sections:         gp.Rendered,
		SampleMessage:    sample,
		SelectedSections: gp.Relevance.Sections.Ordered(),
		MatchedFamilies:  gp.Relevance.Families,
		Prompt:           gp.Text,
	}, nil
}

func (a *adminUC) KnowledgeStats(ctx context.Context) (*KnowledgeStats, error) {
	return a.knowledge.Stats(ctx)
}

// TestPrompt runs a completion without moderation or persistence. A non-empty
// systemPrompt replaces the grounded prompt.
func (a *adminUC) TestPrompt(ctx context.Context, message, systemPrompt string) (*TestPromptResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidArgument)
	}

	res := &TestPromptResult{}
	turns := []adapter.Message{{Role: string(model.RoleUser), Content: message}}
	if sp := strings.TrimSpace(systemPrompt); sp != "" {
		res.SystemPrompt = sp
		turns = append([]adapter.Message{{Role: "system", Content: sp}}, turns...)
	} else {
		gp := a.knowledge.BuildPrompt(ctx, message)
		res.SystemPrompt = gp.Text
		res.Sections = gp.Relevance.Sections.Ordered()
	}

	reply, usage, err := a.completion.Complete(ctx, res.SystemPrompt, turns, CompletionOptions{})
	if err != nil {
		return nil, err
	}
	res.Reply = reply
	res.Usage = usage
	return res, nil
}
