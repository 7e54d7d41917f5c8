//go:build !integration

package usecase

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/model"
	"campus-assistant/internal/domain/ports/adapter"
	"campus-assistant/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ---- conversations ----

type memConvRepo struct {
	mu        sync.Mutex
	bySession map[string]*model.Conversation
	byID      map[string]*model.Conversation
	messages  map[string][]model.Message
	upserts   int

	upsertErr  error
	saveErr    error // returned by SaveMessage once saveAfter messages were stored
	saveAfter  int
	historyErr error
}

func newMemConvRepo() *memConvRepo {
	return &memConvRepo{
		bySession: map[string]*model.Conversation{},
		byID:      map[string]*model.Conversation{},
		messages:  map[string][]model.Message{},
	}
}

func (m *memConvRepo) UpsertBySession(ctx context.Context, tx repository.Tx, c *model.Conversation) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	if existing, ok := m.bySession[c.SessionID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *c
	m.bySession[c.SessionID] = &cp
	m.byID[c.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memConvRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConvRepo) FindBySession(ctx context.Context, tx repository.Tx, sessionID string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.bySession[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConvRepo) ListRecentMessages(ctx context.Context, tx repository.Tx, conversationID string, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	all := m.messages[conversationID]
	out := make([]model.Message, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *memConvRepo) ListMessages(ctx context.Context, tx repository.Tx, conversationID string) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Message(nil), m.messages[conversationID]...), nil
}

func (m *memConvRepo) SaveMessage(ctx context.Context, tx repository.Tx, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil && m.countLocked() >= m.saveAfter {
		return m.saveErr
	}
	c, ok := m.byID[msg.ConversationID]
	if !ok {
		return domain.ErrNotFound
	}
	if !c.IsLogged {
		panic("message stored for an unlogged conversation")
	}
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], *msg)
	c.UpdatedAt = msg.CreatedAt
	return nil
}

func (m *memConvRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]model.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]model.ConversationSummary, 0, len(m.byID))
	for id, c := range m.byID {
		all = append(all, model.ConversationSummary{Conversation: *c, MessageCount: len(m.messages[id])})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memConvRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID), nil
}

func (m *memConvRepo) ToggleResolved(ctx context.Context, tx repository.Tx, id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.IsResolved = !c.IsResolved
	cp := *c
	return &cp, nil
}

func (m *memConvRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	delete(m.bySession, c.SessionID)
	delete(m.messages, id)
	return nil
}

func (m *memConvRepo) DailyTokenUsage(ctx context.Context, tx repository.Tx, since time.Time) ([]model.DailyUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg := map[time.Time]*model.DailyUsage{}
	for _, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.Role != model.RoleAssistant || msg.CreatedAt.Before(since) {
				continue
			}
			day := msg.CreatedAt.UTC().Truncate(24 * time.Hour)
			u, ok := agg[day]
			if !ok {
				u = &model.DailyUsage{Day: day}
				agg[day] = u
			}
			u.Messages++
			if msg.TokenCount != nil {
				u.Tokens += int64(*msg.TokenCount)
			}
		}
	}
	out := make([]model.DailyUsage, 0, len(agg))
	for _, u := range agg {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (m *memConvRepo) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked()
}

func (m *memConvRepo) countLocked() int {
	n := 0
	for _, msgs := range m.messages {
		n += len(msgs)
	}
	return n
}

func (m *memConvRepo) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

// ---- knowledge ----

type memKnowledgeRepo struct {
	mu       sync.Mutex
	schools  []model.School
	programs []model.Program
	news     []model.NewsItem
	events   []model.Event
	errs     map[model.Section]error
}

func newMemKnowledgeRepo() *memKnowledgeRepo {
	published := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	return &memKnowledgeRepo{
		schools: []model.School{
			{ID: "s1", Name: "School of Computing and Informatics", Description: "Computing, data and software.", ProgramTitles: []string{"BSc Software Engineering", "BSc Computer Science"}},
			{ID: "s2", Name: "School of Business", Description: "Management and finance.", ProgramTitles: []string{"BBA"}},
		},
		programs: []model.Program{
			{ID: "p1", Title: "BSc Computer Science", SchoolID: "s1", SchoolName: "School of Computing and Informatics", DegreeLevel: "bachelor", Overview: "Algorithms, systems and AI."},
			{ID: "p2", Title: "BBA", SchoolID: "s2", SchoolName: "School of Business", DegreeLevel: "bachelor", Overview: "Business administration."},
		},
		news: []model.NewsItem{
			{ID: "n1", Title: "New AI lab opens", Summary: "The lab is open to all students.", PublishedAt: published},
		},
		events: []model.Event{
			{ID: "e1", Title: "Open Day", Location: "Main Hall", EventDate: time.Date(2030, 3, 14, 10, 0, 0, 0, time.UTC)},
		},
		errs: map[model.Section]error{},
	}
}

func (m *memKnowledgeRepo) fail(sec model.Section, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[sec] = err
}

func (m *memKnowledgeRepo) ListSchools(ctx context.Context, tx repository.Tx) ([]model.School, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[model.SectionSchools]; err != nil {
		return nil, err
	}
	return append([]model.School(nil), m.schools...), nil
}

func (m *memKnowledgeRepo) ListPrograms(ctx context.Context, tx repository.Tx) ([]model.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[model.SectionPrograms]; err != nil {
		return nil, err
	}
	return append([]model.Program(nil), m.programs...), nil
}

func (m *memKnowledgeRepo) ListRecentNews(ctx context.Context, tx repository.Tx, limit int) ([]model.NewsItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[model.SectionNews]; err != nil {
		return nil, err
	}
	if limit < len(m.news) {
		return append([]model.NewsItem(nil), m.news[:limit]...), nil
	}
	return append([]model.NewsItem(nil), m.news...), nil
}

func (m *memKnowledgeRepo) ListUpcomingEvents(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[model.SectionEvents]; err != nil {
		return nil, err
	}
	var out []model.Event
	for _, e := range m.events {
		if e.EventDate.After(now) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

// ---- adapters ----

type fakeAI struct {
	mu    sync.Mutex
	calls []adapter.ChatRequest
	reply string
	usage adapter.Usage
	err   error
}

func newFakeAI(reply string) *fakeAI {
	return &fakeAI{reply: reply, usage: adapter.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}}
}

func (f *fakeAI) Provider() string { return "fake" }

func (f *fakeAI) ChatWithUsage(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", adapter.Usage{}, f.err
	}
	return f.reply, f.usage, nil
}

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAI) lastCall() adapter.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeModerator struct {
	mu      sync.Mutex
	calls   int
	flagged map[string][]string // text -> categories
	err     error
}

func (f *fakeModerator) Moderate(ctx context.Context, text string) (adapter.ModerationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return adapter.ModerationResult{}, f.err
	}
	cats, ok := f.flagged[text]
	if !ok {
		return adapter.ModerationResult{}, nil
	}
	res := adapter.ModerationResult{Flagged: true, Categories: map[string]bool{}}
	for _, c := range cats {
		res.Categories[c] = true
	}
	return res, nil
}

type fakeTokens struct{}

func (fakeTokens) Count(model, text string) int { return len(text) / 4 }

// fakeTxManager runs fn directly; the in-memory repos ignore tx.
type fakeTxManager struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return fn(ctx, nil)
}

// ---- fixture ----

type chatFixture struct {
	convs     *memConvRepo
	knowledge *memKnowledgeRepo
	ai        *fakeAI
	mod       *fakeModerator
	tm        *fakeTxManager
	uc        *chatUC
}

func newChatFixture(policy FailurePolicy) *chatFixture {
	log := newTestLogger()
	f := &chatFixture{
		convs:     newMemConvRepo(),
		knowledge: newMemKnowledgeRepo(),
		ai:        newFakeAI("We offer BSc Computer Science."),
		mod:       &fakeModerator{flagged: map[string][]string{}},
		tm:        &fakeTxManager{},
	}
	kuc := NewKnowledgeUseCase(f.knowledge, fakeTokens{}, KnowledgeLimits{OverviewChars: 200, News: 10, Events: 10}, "gpt-4o-mini", log)
	comp := NewCompletionClient(f.ai, CompletionDefaults{Model: "gpt-4o-mini", MaxTokens: 500, Temperature: 0.7}, log)
	f.uc = NewChatUseCase(f.convs, f.tm, NewModerationGate(f.mod, policy, log), kuc, comp,
		ChatOptions{MaxMessageLength: 2000, HistoryLimit: 10, Timeout: 5 * time.Second}, log)
	return f
}
