package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/config"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/database"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/llm"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/migration"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/repository"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/seeder"
	"github.com/mattfrans/finnish-legal-assistant-sub000/pkg/utils"
	"github.com/sirupsen/logrus"
)

var (
	dryRun     = flag.Bool("dry-run", false, "Crawl and split documents without embedding or storing them")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	pageLimit  = flag.Int("limit", 0, "Limit number of documents to process (0 = all)")
	concurrent = flag.Int("concurrent", 2, "Number of concurrent requests")
	delay      = flag.Duration("delay", 2*time.Second, "Delay between requests")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.InitLogger(cfg.Log.Level)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.Info("Starting legal source seeder...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	crawler, err := seeder.NewCrawler(seeder.CrawlerConfig{
		UserAgent:   "LegalAssistant-Bot/1.0",
		Parallelism: *concurrent,
		Delay:       *delay,
		Timeout:     30 * time.Second,
		Verbose:     *verbose,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create crawler")
	}

	var (
		embedder llm.Embedder
		store    seeder.DocumentStore
	)

	if !*dryRun {
		if cfg.OpenAI.APIKey == "" {
			logger.Fatal("OPENAI_API_KEY is required to embed documents")
		}

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

		store = repository.NewRepositoryManager(dbManager.DB).LegalDocument
		embedder = llm.NewClient(llm.Config{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		}, nil, logger)
	}

	report, err := seeder.NewSeeder(crawler, embedder, store, *dryRun, logger).Run(ctx, seeder.DefaultPages, *pageLimit)
	if err != nil {
		logger.WithError(err).Fatal("Seeding interrupted")
	}

	for _, err := range report.Errors {
		logger.WithError(err).Warn("Processing error")
	}
	logger.Info("Seeding completed successfully!")
}
