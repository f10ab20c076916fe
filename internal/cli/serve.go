package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/clauselens/clauselens/internal/api/handlers"
	"github.com/clauselens/clauselens/internal/cache"
	"github.com/clauselens/clauselens/internal/config"
	"github.com/clauselens/clauselens/internal/database"
	"github.com/clauselens/clauselens/internal/domain"
	"github.com/clauselens/clauselens/internal/extract"
	"github.com/clauselens/clauselens/internal/jobs"
	"github.com/clauselens/clauselens/internal/llm"
	"github.com/clauselens/clauselens/internal/openai"
	"github.com/clauselens/clauselens/internal/repository"
	"github.com/clauselens/clauselens/internal/server"
	"github.com/clauselens/clauselens/internal/service"
	"github.com/clauselens/clauselens/internal/storage"
	"github.com/clauselens/clauselens/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the ClauseLens API server and background workers on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	// Accept underscore spellings of flag names (--no_migrate).
	cmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, 10, 2)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required for embeddings and analysis")
	}
	if !cfg.HasS3() {
		return fmt.Errorf("S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for document storage")
	}

	docRepo := repository.NewDocumentRepository(pool)
	clauseRepo := repository.NewClauseRepository(pool)
	embedRepo := repository.NewEmbeddingRepository(pool)
	jobRepo := repository.NewAnalysisJobRepository(pool)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	embeddingClient := openai.NewClient(cfg.OpenAIAPIKey)

	providers := []llm.Provider{llm.NewOpenAIProvider(cfg.OpenAIAPIKey, llm.DefaultCompletionModel)}
	if cfg.HasGemini() {
		gemini, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, llm.DefaultGeminiModel)
		if err != nil {
			log.Printf("gemini provider init failed (continuing with openai only): %v", err)
		} else {
			defer gemini.Close()
			providers = append(providers, gemini)
		}
	}
	chain := llm.NewChain(providers...)

	extractionSvc := service.NewExtractionService(chain, service.DefaultExtractionConfig())
	riskSvc := service.NewRiskService(chain)
	summarySvc := service.NewSummaryService(chain)

	searchCache := cache.New(time.Duration(cfg.SearchCacheTTLSeconds) * time.Second)

	pipelineSvc := service.NewPipelineService(
		s3Client,
		extract.NewExtractor(),
		embeddingClient,
		extractionSvc,
		riskSvc,
		summarySvc,
		docRepo,
		clauseRepo,
		embedRepo,
		searchCache,
	)

	docSvc := service.NewDocumentService(docRepo, clauseRepo, jobRepo)
	searchSvc := service.NewSearchService(embeddingClient, &searchRepoAdapter{docs: docRepo, embeds: embedRepo}, searchCache)

	lockDuration := time.Duration(cfg.JobLockSeconds) * time.Second

	analysisWorker := jobs.NewAnalysisWorker(jobRepo, pipelineSvc, domain.AnalysisJobKindFull, cfg.AnalysisWorkers)
	analysisWorker.SetLockPolicy(lockDuration, jobs.DefaultRenewInterval, cfg.JobMaxRetries)
	go analysisWorker.Start(ctx)
	log.Println("analysis worker started")

	embeddingWorker := jobs.NewAnalysisWorker(jobRepo, pipelineSvc, domain.AnalysisJobKindEmbedding, cfg.EmbeddingWorkers)
	embeddingWorker.SetLockPolicy(lockDuration, jobs.DefaultRenewInterval, cfg.JobMaxRetries)
	go embeddingWorker.Start(ctx)
	log.Println("embedding worker started")

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(docSvc),
		SearchHandler:   handlers.NewSearchHandler(searchSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	analysisWorker.Stop()
	embeddingWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// searchRepoAdapter joins the document and embedding repositories into
// the search service's repository surface.
type searchRepoAdapter struct {
	docs   *repository.DocumentRepository
	embeds *repository.EmbeddingRepository
}

func (a *searchRepoAdapter) ListReadyDocumentIDs(ctx context.Context, orgID string, docType domain.DocumentType) ([]string, error) {
	return a.docs.ListReadyDocumentIDs(ctx, orgID, docType)
}

func (a *searchRepoAdapter) SearchByEmbedding(ctx context.Context, embedding []float32, documentIDs []string, limit int) ([]*service.ChunkMatch, error) {
	return a.embeds.SearchByEmbedding(ctx, embedding, documentIDs, limit)
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	log.Printf("migrations applied (version %d, dirty %v)", version, dirty)

	return nil
}
