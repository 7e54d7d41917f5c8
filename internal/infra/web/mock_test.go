//go:build !integration

package web

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/model"
	"campus-assistant/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// fakeAdminUC keeps conversations in memory; the *Err fields simulate failures.
type fakeAdminUC struct {
	mu    sync.Mutex
	convs map[string]*model.Conversation

	ListErr    error
	PromptErr  error
	lastDays   int
	lastLimit  int
	lastOffset int
	lastPrompt [2]string
}

func newFakeAdminUC() *fakeAdminUC {
	name := "Ada"
	tokens := 30
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &fakeAdminUC{convs: map[string]*model.Conversation{
		"c1": {
			ID: "c1", SessionID: "sess_1", ParticipantName: &name, IsLogged: true,
			CreatedAt: created, UpdatedAt: created.Add(time.Minute),
			Messages: []model.Message{
				{ID: "m1", ConversationID: "c1", Role: model.RoleUser, Content: "hi", CreatedAt: created},
				{ID: "m2", ConversationID: "c1", Role: model.RoleAssistant, Content: "hello", TokenCount: &tokens, CreatedAt: created.Add(time.Minute)},
			},
		},
	}}
}

func (f *fakeAdminUC) ListConversations(_ context.Context, limit, offset int) (*usecase.ConversationPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit, f.lastOffset = limit, offset
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	page := &usecase.ConversationPage{Total: len(f.convs)}
	for _, c := range f.convs {
		cp := *c
		cp.Messages = nil
		page.Items = append(page.Items, model.ConversationSummary{Conversation: cp, MessageCount: len(c.Messages)})
	}
	return page, nil
}

func (f *fakeAdminUC) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeAdminUC) ToggleResolved(_ context.Context, id string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.IsResolved = !c.IsResolved
	cp := *c
	cp.Messages = nil
	return &cp, nil
}

func (f *fakeAdminUC) DeleteConversation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.convs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.convs, id)
	return nil
}

func (f *fakeAdminUC) TokenStats(_ context.Context, days int) (*usecase.TokenStats, error) {
	f.mu.Lock()
	f.lastDays = days
	f.mu.Unlock()
	if days > usecase.MaxStatDays {
		return nil, domain.ErrInvalidArgument
	}
	rate := decimal.RequireFromString("0.0006")
	return &usecase.TokenStats{
		Days:             days,
		Daily:            []usecase.DailyTokenStat{{Date: "2026-03-01", Messages: 1, Tokens: 30, EstimatedCostUSD: decimal.NewFromInt(30).Div(decimal.NewFromInt(1000)).Mul(rate)}},
		TotalMessages:    1,
		TotalTokens:      30,
		EstimatedCostUSD: decimal.RequireFromString("0.000018"),
		CostPer1KTokens:  rate,
	}, nil
}

func (f *fakeAdminUC) KnowledgePreview(_ context.Context, sample string) (*usecase.KnowledgePreview, error) {
	p := &usecase.KnowledgePreview{Sections: map[model.Section]string{model.SectionSchools: "SCHOOLS:\n- School of Computing and Informatics"}}
	if sample != "" {
		p.SampleMessage = sample
		p.SelectedSections = []model.Section{model.SectionSchools, model.SectionPrograms}
		p.Prompt = "You are the campus assistant."
	}
	return p, nil
}

func (f *fakeAdminUC) KnowledgeStats(context.Context) (*usecase.KnowledgeStats, error) {
	return &usecase.KnowledgeStats{
		Counts:          map[model.Section]int{model.SectionSchools: 1},
		Chars:           map[model.Section]int{model.SectionSchools: 40},
		PromptChars:     400,
		EstimatedTokens: 100,
		Model:           "gpt-4o-mini",
	}, nil
}

func (f *fakeAdminUC) TestPrompt(_ context.Context, message, systemPrompt string) (*usecase.TestPromptResult, error) {
	f.mu.Lock()
	f.lastPrompt = [2]string{message, systemPrompt}
	f.mu.Unlock()
	if f.PromptErr != nil {
		return nil, f.PromptErr
	}
	if message == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &usecase.TestPromptResult{Reply: "ok", SystemPrompt: systemPrompt}, nil
}
