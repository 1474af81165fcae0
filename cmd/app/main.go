// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutoring-ai-platform/internal/config"
	"tutoring-ai-platform/internal/domain/ports/adapter"
	aiAdapters "tutoring-ai-platform/internal/infra/adapters/ai"
	pg "tutoring-ai-platform/internal/infra/db/postgres"
	"tutoring-ai-platform/internal/infra/hub"
	"tutoring-ai-platform/internal/infra/logging"
	"tutoring-ai-platform/internal/infra/metrics"
	red "tutoring-ai-platform/internal/infra/redis"
	"tutoring-ai-platform/internal/infra/web"
	"tutoring-ai-platform/internal/infra/worker"
	"tutoring-ai-platform/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (relaxed auth, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	messageRepo := pg.NewMessageRepo(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	jobStore := red.NewJobStore(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- AI Adapter (Gemini -> OpenAI -> noop in dev) ----
	var ai adapter.AIServiceAdapter
	switch {
	case cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxOutTokens)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: Gemini")
	case cfg.AI.OpenAIKey != "":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel, cfg.AI.OpenAIBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		logger.Info().Str("base", cfg.AI.OpenAIBaseURL).Str("model", cfg.AI.DefaultModel).Msg("AI adapter: OpenAI")
	case cfg.Runtime.Dev:
		ai = aiAdapters.NewNoopAIAdapter()
		logger.Warn().Msg("AI adapter: noop (dev mode, no provider key configured)")
	default:
		logger.Fatal().Msgf("no AI provider configured: set ai.gemini_key or ai.openai_key in %s", *cfgPath)
	}

	// ---- Connection hub ----
	connHub := hub.NewHub(cfg.Hub, logger)
	connHub.StartPingLoop()
	wsHandler := hub.NewWebSocketHandler(connHub, cfg.Server.AllowedOrigin, cfg.Runtime.Dev, logger)

	// ---- Message queue + processor ----
	queue := worker.NewMessageQueue(jobStore, connHub, cfg.Queue, logger)
	processor := worker.NewChatJobProcessor(messageRepo, ai, cfg.AI.DefaultModel, logger)
	queue.Start(processor)

	// ---- HTTP API ----
	auth := web.NewAuthManager(cfg.Auth.HMACSecret, cfg.Auth.TokenTTL, cfg.Runtime.Dev)
	chatUC := usecase.NewChatUseCase(queue, messageRepo, rateLimiter, cfg.RateLimit.MessagesPerMinute,
		func(userID int64) string { return red.UserActionKey(userID, "chat_submit") }, logger)
	srv := web.NewServer(chatUC, auth, wsHandler, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	// Stop dispatching new work, then let in-flight jobs drain.
	queue.Stop()
	queue.Wait()
	connHub.Stop()
	cancel()
}
