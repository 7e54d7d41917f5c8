package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"campus-assistant/internal/domain/model"
	"campus-assistant/internal/domain/ports/adapter"
	"campus-assistant/internal/domain/ports/repository"
	"campus-assistant/internal/infra/logging"
	"campus-assistant/internal/infra/metrics"
)

// Compile-time check
var _ KnowledgeUseCase = (*knowledgeUC)(nil)

type KnowledgeUseCase interface {
	// Snapshot loads current institutional data. Failed sections come back empty.
	Snapshot(ctx context.Context) *model.KnowledgeSnapshot
	// Render formats every section of the snapshot as a labeled text block.
	Render(snap *model.KnowledgeSnapshot) map[model.Section]string
	// BuildPrompt builds the grounded system prompt for one user message.
	BuildPrompt(ctx context.Context, message string) GroundedPrompt
	// Stats reports the size of the current knowledge base.
	Stats(ctx context.Context) (*KnowledgeStats, error)
}

type KnowledgeLimits struct {
	OverviewChars int
	News          int
	Events        int
}

// GroundedPrompt is a composed system prompt and how it was chosen.
type GroundedPrompt struct {
	Text      string
	Relevance Relevance
	Rendered  map[model.Section]string
}

type KnowledgeStats struct {
	Counts          map[model.Section]int `json:"counts"`
	Chars           map[model.Section]int `json:"chars"`
	PromptChars     int                   `json:"promptChars"`
	EstimatedTokens int                   `json:"estimatedTokens"`
	Model           string                `json:"model"`
}

type knowledgeUC struct {
	repo   repository.KnowledgeRepository
	tokens adapter.TokenCounter
	limits KnowledgeLimits
	model  string
	now    func() time.Time
	log    *zerolog.Logger
}

func NewKnowledgeUseCase(repo repository.KnowledgeRepository, tokens adapter.TokenCounter, limits KnowledgeLimits, modelName string, logger *zerolog.Logger) *knowledgeUC {
	compLog := logger.With().Str("component", "KnowledgeUC").Logger()
	return &knowledgeUC{
		repo:   repo,
		tokens: tokens,
		limits: limits,
		model:  modelName,
		now:    time.Now,
		log:    &compLog,
	}
}

func (k *knowledgeUC) Snapshot(ctx context.Context) *model.KnowledgeSnapshot {
	snap := &model.KnowledgeSnapshot{}
	now := k.now()

	// each goroutine owns one field; errors degrade that section to empty
	var g errgroup.Group
	g.Go(func() error {
		schools, err := k.repo.ListSchools(ctx, repository.NoTX)
		k.degrade(ctx, model.SectionSchools, err)
		if err == nil {
			snap.Schools = schools
		}
		return nil
	})
	g.Go(func() error {
		programs, err := k.repo.ListPrograms(ctx, repository.NoTX)
		k.degrade(ctx, model.SectionPrograms, err)
		if err == nil {
			snap.Programs = truncateOverviews(programs, k.limits.OverviewChars)
		}
		return nil
	})
	g.Go(func() error {
		news, err := k.repo.ListRecentNews(ctx, repository.NoTX, k.limits.News)
		k.degrade(ctx, model.SectionNews, err)
		if err == nil {
			snap.News = news
		}
		return nil
	})
	g.Go(func() error {
		events, err := k.repo.ListUpcomingEvents(ctx, repository.NoTX, now, k.limits.Events)
		k.degrade(ctx, model.SectionEvents, err)
		if err == nil {
			snap.Events = events
		}
		return nil
	})
	_ = g.Wait()
	return snap
}

func (k *knowledgeUC) degrade(ctx context.Context, sec model.Section, err error) {
	if err == nil {
		return
	}
	metrics.IncKnowledgeFetchError(string(sec))
	logging.With(ctx, k.log).Warn().Err(err).Str("section", string(sec)).Msg("knowledge fetch failed; section left empty")
}

func (k *knowledgeUC) Render(snap *model.KnowledgeSnapshot) map[model.Section]string {
	return map[model.Section]string{
		model.SectionSchools:  renderSchools(snap.Schools),
		model.SectionPrograms: renderPrograms(snap.Programs),
		model.SectionNews:     renderNews(snap.News),
		model.SectionEvents:   renderEvents(snap.Events),
	}
}

func (k *knowledgeUC) BuildPrompt(ctx context.Context, message string) GroundedPrompt {
	rel := SelectSections(message)
	rendered := k.Render(k.Snapshot(ctx))
	return GroundedPrompt{
		Text:      ComposePrompt(rendered, rel.Sections),
		Relevance: rel,
		Rendered:  rendered,
	}
}

func (k *knowledgeUC) Stats(ctx context.Context) (*KnowledgeStats, error) {
	snap := k.Snapshot(ctx)
	rendered := k.Render(snap)

	all := model.SectionSet{}
	for _, s := range model.Sections {
		all[s] = true
	}
	full := ComposePrompt(rendered, all)

	st := &KnowledgeStats{
		Counts: map[model.Section]int{
			model.SectionSchools:  len(snap.Schools),
			model.SectionPrograms: len(snap.Programs),
			model.SectionNews:     len(snap.News),
			model.SectionEvents:   len(snap.Events),
		},
		Chars:       make(map[model.Section]int, len(rendered)),
		PromptChars: utf8.RuneCountInString(full),
		Model:       k.model,
	}
	for sec, text := range rendered {
		st.Chars[sec] = utf8.RuneCountInString(text)
	}
	if k.tokens != nil {
		st.EstimatedTokens = k.tokens.Count(k.model, full)
	}
	return st, nil
}

// --- rendering ---

const dateLayout = "2006-01-02"

func truncateOverviews(programs []model.Program, limit int) []model.Program {
	out := make([]model.Program, len(programs))
	for i, p := range programs {
		p.Overview = truncateRunes(strings.TrimSpace(p.Overview), limit)
		out[i] = p
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit])) + "..."
}

func renderSchools(schools []model.School) string {
	var b strings.Builder
	b.WriteString("SCHOOLS:")
	if len(schools) == 0 {
		b.WriteString("\n- No school information is currently available.")
		return b.String()
	}
	for _, s := range schools {
		fmt.Fprintf(&b, "\n- %s", s.Name)
		if d := strings.TrimSpace(s.Description); d != "" {
			fmt.Fprintf(&b, ": %s", d)
		}
		if len(s.ProgramTitles) > 0 {
			titles := append([]string(nil), s.ProgramTitles...)
			sort.Strings(titles)
			fmt.Fprintf(&b, " (Programs: %s)", strings.Join(titles, ", "))
		}
	}
	return b.String()
}

func renderPrograms(programs []model.Program) string {
	var b strings.Builder
	b.WriteString("PROGRAMS:")
	if len(programs) == 0 {
		b.WriteString("\n- No program information is currently available.")
		return b.String()
	}
	for _, p := range programs {
		fmt.Fprintf(&b, "\n- %s", p.Title)
		if p.DegreeLevel != "" {
			fmt.Fprintf(&b, " [%s]", p.DegreeLevel)
		}
		if p.SchoolName != "" {
			fmt.Fprintf(&b, ", offered by %s", p.SchoolName)
		}
		if p.Overview != "" {
			fmt.Fprintf(&b, ": %s", p.Overview)
		}
	}
	return b.String()
}

func renderNews(news []model.NewsItem) string {
	var b strings.Builder
	b.WriteString("RECENT NEWS:")
	if len(news) == 0 {
		b.WriteString("\n- No recent news.")
		return b.String()
	}
	for _, n := range news {
		fmt.Fprintf(&b, "\n- %s: %s", n.PublishedAt.UTC().Format(dateLayout), n.Title)
		if s := strings.TrimSpace(n.Summary); s != "" {
			fmt.Fprintf(&b, ". %s", s)
		}
	}
	return b.String()
}

func renderEvents(events []model.Event) string {
	var b strings.Builder
	b.WriteString("UPCOMING EVENTS:")
	if len(events) == 0 {
		b.WriteString("\n- No upcoming events scheduled.")
		return b.String()
	}
	for _, e := range events {
		fmt.Fprintf(&b, "\n- %s: %s", e.EventDate.UTC().Format("2006-01-02 15:04 MST"), e.Title)
		if e.Location != "" {
			fmt.Fprintf(&b, " at %s", e.Location)
		}
		if d := strings.TrimSpace(e.Description); d != "" {
			fmt.Fprintf(&b, ". %s", d)
		}
	}
	return b.String()
}
