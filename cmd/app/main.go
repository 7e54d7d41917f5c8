// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"campus-assistant/internal/config"
	"campus-assistant/internal/domain/ports/adapter"
	aiAdapters "campus-assistant/internal/infra/adapters/ai"
	"campus-assistant/internal/infra/adapters/moderation"
	"campus-assistant/internal/infra/adapters/tokens"
	"campus-assistant/internal/infra/api"
	pg "campus-assistant/internal/infra/db/postgres"
	"campus-assistant/internal/infra/logging"
	"campus-assistant/internal/infra/metrics"
	"campus-assistant/internal/infra/ratelimit"
	red "campus-assistant/internal/infra/redis"
	"campus-assistant/internal/infra/sched"
	"campus-assistant/internal/infra/web"
	"campus-assistant/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted PII)")
	flag.Parse()

	// .env is optional; real env vars win
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		if err := pg.Migrate(ctx, cfg.Database.URL, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	convRepo := pg.NewConversationRepo(pool)
	knowledgeRepo := pg.NewKnowledgeRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- AI + moderation ----
	ai := aiAdapters.Build(cfg.AI, logger)
	moderator := buildModerator(cfg, logger)
	tokenCounter := tokens.NewTiktokenCounter()

	costPer1K, err := decimal.NewFromString(cfg.AI.CostPer1KTokens)
	if err != nil {
		return fmt.Errorf("ai.cost_per_1k_tokens_usd: %w", err)
	}

	// ---- Use cases ----
	completion := usecase.NewCompletionClient(ai, usecase.CompletionDefaults{
		Model:       cfg.AI.DefaultModel,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
	}, logger)
	knowledgeUC := usecase.NewKnowledgeUseCase(knowledgeRepo, tokenCounter, usecase.KnowledgeLimits{
		OverviewChars: cfg.Knowledge.OverviewLimit,
		News:          cfg.Knowledge.NewsLimit,
		Events:        cfg.Knowledge.EventsLimit,
	}, cfg.AI.DefaultModel, logger)
	gate := usecase.NewModerationGate(moderator, usecase.FailurePolicy(cfg.Moderation.FailurePolicy), logger)
	chatUC := usecase.NewChatUseCase(convRepo, txManager, gate, knowledgeUC, completion, usecase.ChatOptions{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		HistoryLimit:     cfg.Chat.HistoryLimit,
		Timeout:          cfg.Server.ChatTimeout,
		Dev:              cfg.Runtime.Dev,
	}, logger)
	adminUC := usecase.NewAdminUseCase(convRepo, knowledgeUC, completion, costPer1K, logger)

	g, gctx := errgroup.WithContext(ctx)

	// ---- Rate limiter ----
	var limiter adapter.RateLimiter
	switch cfg.Chat.RateLimitBackend {
	case config.BackendRedis:
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient, cfg.Chat.RateLimit, cfg.Chat.RateWindow())
	default:
		mem := ratelimit.NewMemoryLimiter(cfg.Chat.RateLimit, cfg.Chat.RateWindow())
		limiter = mem
		sweeper := sched.NewSweepWorker(cfg.Chat.SweepInterval, cfg.Chat.SweepGrace, mem, logger)
		g.Go(func() error { return ignoreCanceled(sweeper.Run(gctx)) })
	}

	poolStats := sched.NewPoolStatsWorker(15*time.Second, pg.PoolStat(pool), logger)
	g.Go(func() error { return ignoreCanceled(poolStats.Run(gctx)) })

	// ---- HTTP ----
	r := chi.NewRouter()
	r.Use(
		api.TraceID(logger),
		api.ClientIP(cfg.Server.TrustProxy),
		api.RequestLog(logger),
		api.Recover(logger),
		api.Timeout(cfg.Server.RequestTimeout),
	)
	api.NewServer(chatUC, limiter, cfg.Chat.RateLimitBackend, logger).Routes(r)
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.SecureCookie, cfg.Admin.CookieDomain, cfg.Admin.SessionTTL)
	web.NewServer(adminUC, cfg.Admin.APIKey, auth, logger).Routes(r)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("ai_provider", ai.Provider()).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// ---- Graceful shutdown ----
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildModerator picks the classifier. A missing key is not fatal: the
// gate's failure policy decides what happens to unscreened messages.
func buildModerator(cfg *config.Config, logger *zerolog.Logger) adapter.Moderator {
	if !cfg.Moderation.Enabled {
		logger.Warn().Msg("moderation disabled")
		return moderation.NoopModerator{}
	}
	m, err := moderation.NewOpenAIModerator(cfg.Moderation.APIKey, cfg.AI.OpenAIBaseURL, cfg.Moderation.Model)
	if err != nil {
		logger.Warn().Err(err).Str("failure_policy", cfg.Moderation.FailurePolicy).Msg("moderation unavailable")
		return moderation.Unavailable{Err: err}
	}
	return m
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
