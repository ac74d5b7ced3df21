package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coin-scout/internal/bot"
	"coin-scout/internal/cache"
	"coin-scout/internal/config"
	"coin-scout/internal/db"
	"coin-scout/internal/embedding"
	"coin-scout/internal/handler"
	"coin-scout/internal/job"
	"coin-scout/internal/llm"
	"coin-scout/internal/portfolio"
	"coin-scout/internal/provider"
	"coin-scout/internal/recommend"
	"coin-scout/internal/repository"
	"coin-scout/internal/retriever"
	"coin-scout/internal/service"
	"coin-scout/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Repositories
	embeddingRepo := repository.NewEmbeddingRepository(db.Pool, tracer)
	tokenDataRepo := repository.NewTokenDataRepository(db.Pool, tracer)
	positionRepo := repository.NewPositionRepository(db.Pool, tracer)

	// OpenAI clients. Both stay nil without an API key; downstream services
	// degrade to their fallbacks.
	var embedClient embedding.Client
	if c := embedding.NewOpenAIClient(
		cfg.OpenAIAPIKey,
		cfg.EmbeddingModel,
		cfg.EmbeddingDimensions,
		time.Duration(cfg.EmbeddingTimeoutSec)*time.Second,
	); c != nil {
		embedClient = c
	}
	var llmClient llm.Client
	if cfg.OpenAIAPIKey != "" {
		llmClient = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	}

	// Core services
	retrieverSvc := retriever.NewService(tracer, embedClient, embeddingRepo, retriever.Config{
		SeedQueries:  cfg.SeedQueries,
		TopKPerQuery: cfg.TopKPerQuery,
	})
	embedPipeline := embedding.NewPipeline(tracer, embedClient, tokenDataRepo, embeddingRepo, cfg.TrackedTokens)
	assembler := recommend.NewAssembler(tracer, llmClient, tokenDataRepo, cfg.OpenAIModel, cfg.BudgetUSD)
	pipeline := recommend.NewPipeline(tracer, retrieverSvc, assembler, positionRepo)

	tmProvider := provider.NewTokenMetricsProvider(cfg.TokenMetricsAPIKey, tracer)
	metricsService := service.NewMetricsService(tracer, tmProvider, tokenDataRepo, cache.Client)
	portfolioManager := portfolio.NewManager(tracer, llmClient, metricsService, positionRepo, cfg.OpenAIModel, cfg.BudgetUSD)

	// Background jobs (stopped by ctx cancel)
	go job.NewEmbeddingJob(tracer, embedPipeline, time.Duration(cfg.EmbedPollSecs)*time.Second).Start(ctx)
	go job.NewPipelineJob(tracer, pipeline, time.Duration(cfg.PipelinePollSecs)*time.Second).Start(ctx)
	go job.NewPortfolioJob(tracer, portfolioManager, time.Duration(cfg.PortfolioPollSecs)*time.Second).Start(ctx)
	go job.NewMetricsJob(tracer, metricsService, cfg.TrackedTokens, time.Duration(cfg.MetricsPollSecs)*time.Second).Start(ctx)

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	startTelegramBotFunc(positionRepo, pipeline)

	// HTTP surface
	h := handler.New(tracer, retrieverSvc, embedPipeline, pipeline, portfolioManager, positionRepo, tokenDataRepo)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("coin-scout"))
	h.RegisterRoutes(r, cfg.APIKey)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
