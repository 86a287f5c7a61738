package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/api"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/config"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/database"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/health"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/llm"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/metrics"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/middleware"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/migration"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/repository"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/retrieval"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/services"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/storage"
	"github.com/mattfrans/finnish-legal-assistant-sub000/pkg/utils"
)

const healthCheckInterval = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.InitLogger(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	gin.SetMode(cfg.Server.Mode)

	logger.Info("Starting legal assistant API server...")

	dbManager, err := database.NewManager(&database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    cfg.Log.Level,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	if err := migration.NewRunner(dbManager.DB, dbManager.Migrate, logger).RunMigrations("migrations"); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repoManager := repository.NewRepositoryManager(dbManager.DB)
	cache := database.NewCache(dbManager.Redis, logger)
	appMetrics := metrics.New("legal_assistant")

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		ChatModel:      cfg.OpenAI.ChatModel,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
	}, appMetrics, logger)

	probes := []health.Probe{
		{Name: "postgresql", Check: dbManager.PingDatabase},
		{Name: "redis", Check: dbManager.PingRedis},
		{Name: "llm", Check: llmClient.Ping},
	}

	var retriever retrieval.Retriever
	switch cfg.Retrieval.Mode {
	case "remote":
		retriever = retrieval.NewRemoteRetriever(cfg.Retrieval.URL, cfg.Retrieval.APIKey, cfg.Retrieval.TopK, appMetrics, logger)
		probes = append(probes, health.HTTPProbe("retrieval", strings.TrimSuffix(cfg.Retrieval.URL, "/")+"/health"))
	default:
		retriever = retrieval.NewVectorRetriever(llmClient, repoManager.LegalDocument, cfg.Retrieval.TopK, logger)
	}
	retriever = retrieval.NewCachedRetriever(retriever, cache, cfg.Retrieval.CacheTTL, appMetrics, logger)

	store, uploadsDir, err := newStore(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize attachment storage")
	}

	queryService := services.NewLegalQueryService(repoManager, retriever, llmClient, services.QueryTimeouts{
		Generation: cfg.LLM.Timeout,
		Retrieval:  cfg.Retrieval.Timeout,
	}, logger)

	healthChecker := health.NewHealthChecker(probes, cache, repoManager.SystemHealth, logger)
	go healthChecker.PeriodicHealthCheck(ctx, healthCheckInterval)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cache, appMetrics, logger)
	go rateLimiter.Cleanup(ctx)

	router := api.NewRouter(api.RouterConfig{
		SessionService:      services.NewSessionService(repoManager, store, queryService, logger),
		FeedbackService:     services.NewFeedbackService(repoManager, logger),
		AnalysisService:     services.NewAnalysisService(repoManager, logger),
		HealthChecker:       healthChecker,
		RateLimiter:         rateLimiter,
		Metrics:             appMetrics,
		Logger:              logger,
		CORSOrigins:         cfg.Server.CORSOrigins,
		UploadsDir:          uploadsDir,
		JWTSecret:           cfg.Auth.JWTSecret,
		RequireSubscription: cfg.Auth.RequireSubscription,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      cfg.LLM.Timeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// newStore returns the attachment store and, for local storage, the
// directory to serve under /uploads.
func newStore(ctx context.Context, cfg *config.Config) (storage.Store, string, error) {
	if cfg.Storage.Driver == "s3" {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:  cfg.Storage.S3.Endpoint,
			Region:    cfg.Storage.S3.Region,
			Bucket:    cfg.Storage.S3.Bucket,
			AccessKey: cfg.Storage.S3.AccessKey,
			SecretKey: cfg.Storage.S3.SecretKey,
		})
		return s3Store, "", err
	}

	local, err := storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return nil, "", err
	}
	return local, local.Dir(), nil
}
