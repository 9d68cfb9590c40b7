package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SanyamVb/Multi-modal-RAG/internal/api/handlers"
	"github.com/SanyamVb/Multi-modal-RAG/internal/config"
	"github.com/SanyamVb/Multi-modal-RAG/internal/database"
	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/jobs"
	"github.com/SanyamVb/Multi-modal-RAG/internal/openai"
	"github.com/SanyamVb/Multi-modal-RAG/internal/parser"
	"github.com/SanyamVb/Multi-modal-RAG/internal/repository"
	"github.com/SanyamVb/Multi-modal-RAG/internal/server"
	"github.com/SanyamVb/Multi-modal-RAG/internal/service"
	"github.com/SanyamVb/Multi-modal-RAG/internal/storage"
	"github.com/SanyamVb/Multi-modal-RAG/internal/telemetry"
	"github.com/SanyamVb/Multi-modal-RAG/internal/watcher"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the mmrag API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

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

		// Default to 10% sampling in production, 100% in development
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

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	imageRepo := repository.NewImageRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var objectStore service.ObjectStorage
	var s3Client *storage.S3Client
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err = storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		objectStore = s3Client
	} else {
		log.Println("object storage not configured; originals will not be archived")
	}

	var docParser service.DocumentParser
	if cfg.HasRemoteParser() {
		docParser = parser.NewRemoteParser(cfg.ParserURL)
		log.Printf("using remote parser at %s", cfg.ParserURL)
	} else {
		docParser = parser.NewLocalParser()
		log.Println("using built-in parser (text only, no image extraction)")
	}

	var embedder service.EmbeddingClient
	var chatClient service.ChatClient
	if cfg.HasOpenAI() {
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			EmbeddingModel: cfg.EmbeddingModel,
			ChatModel:      cfg.ChatModel,
		})
		embedder, chatClient = client, client
	} else {
		noop := &NoOpModelClient{}
		embedder, chatClient = noop, noop
		log.Println("OPENAI_API_KEY not set; ingestion and answering will report the model as unavailable")
	}

	chunker := service.NewChunker(service.ChunkConfig{
		MaxChars: cfg.ChunkMaxChars,
		MinChars: cfg.ChunkMinChars,
		Overlap:  cfg.ChunkOverlap,
	})
	uuidGen := &service.DefaultUUIDGenerator{}

	ingestSvc := service.NewIngestService(documentRepo, chunkRepo, imageRepo, objectStore, docParser, embedder, chunker, uuidGen)
	documentSvc := service.NewDocumentService(documentRepo, txRunner, objectStore)
	retrievalSvc := service.NewRetrievalService(chunkRepo, cfg.TopK, cfg.MinScore)
	assemblerSvc := service.NewAssemblerService(imageRepo, service.AssemblerConfig{
		HistoryWindow: cfg.HistoryWindow,
		MaxImages:     cfg.MaxPromptImages,
		PageProximity: cfg.PageProximity,
	})
	generationSvc := service.NewGenerationService(chatClient)
	answerSvc := service.NewAnswerService(embedder, retrievalSvc, assemblerSvc, generationSvc)

	var janitorStorage jobs.JanitorStorage
	if s3Client != nil {
		janitorStorage = s3Client
	}
	janitor := jobs.NewJanitor(documentRepo, chunkRepo, imageRepo, janitorStorage, time.Duration(cfg.StaleIngestTTLMinutes)*time.Minute)
	janitorWorker := jobs.NewWorker("janitor", janitor, 5*time.Minute)
	go janitorWorker.Start(ctx)

	var fileWatcher *watcher.Watcher
	if cfg.WatchDir != "" {
		fileWatcher = watcher.NewWatcher(cfg.WatchDir, ingestSvc, 0)
		go func() {
			if err := fileWatcher.Start(ctx); err != nil {
				log.Printf("file watcher stopped: %v", err)
			}
		}()
		log.Printf("watching %s for dropped files", cfg.WatchDir)
	}

	documentHandler := handlers.NewDocumentHandler(ingestSvc, documentSvc)
	answerHandler := handlers.NewAnswerHandler(answerSvc)

	routerCfg := server.RouterConfig{
		DocumentHandler: documentHandler,
		AnswerHandler:   answerHandler,
	}

	router := server.NewRouter(routerCfg)

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

	janitorWorker.Stop()
	if fileWatcher != nil {
		fileWatcher.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// NoOpModelClient stands in for the OpenAI client when no API key is
// configured. Every call reports the model as unavailable so the pipeline
// degrades with a clear error instead of a nil dereference.
type NoOpModelClient struct{}

func (c *NoOpModelClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, domain.NewDomainError(domain.ErrCodeModelUnavailable, "model client not configured: OPENAI_API_KEY required")
}

func (c *NoOpModelClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, domain.NewDomainError(domain.ErrCodeModelUnavailable, "model client not configured: OPENAI_API_KEY required")
}

func (c *NoOpModelClient) Complete(ctx context.Context, req service.ChatRequest) (string, error) {
	return "", domain.NewDomainError(domain.ErrCodeModelUnavailable, "model client not configured: OPENAI_API_KEY required")
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
