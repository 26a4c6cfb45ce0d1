package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/chat-rag/internal/config"
	"github.com/kirillkom/chat-rag/internal/core/ports"
	"github.com/kirillkom/chat-rag/internal/core/usecase"
	"github.com/kirillkom/chat-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/chat-rag/internal/infrastructure/extractor/pdfextract"
	"github.com/kirillkom/chat-rag/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/chat-rag/internal/infrastructure/extractor/xlsx"
	"github.com/kirillkom/chat-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/chat-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/chat-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/chat-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/chat-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/chat-rag/internal/infrastructure/webfetch"
)

type App struct {
	Config config.Config
	Log    *slog.Logger

	Queue     ports.MessageQueue
	Docs      ports.DocumentReader
	IngestUC  ports.DocumentIngestor
	SearchUC  ports.SearchService
	UploadUC  ports.FileUploader
	ProcessUC ports.UploadProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{Logger: log})

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, log, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	// Grading is the only completion path, so the grading model wins when
	// both are configured.
	model := cfg.OllamaModel
	if cfg.OllamaGradingModel != "" {
		model = cfg.OllamaGradingModel
	}
	reasoner := ollama.New(ollama.Options{
		BaseURL:            cfg.OllamaURL,
		DefaultModel:       model,
		RequestsPerSecond:  cfg.OllamaRateRPS,
		ResilienceExecutor: executor,
	})
	fetcher := webfetch.New(webfetch.Options{ResilienceExecutor: executor})

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	correctiveCfg := usecase.DefaultCorrectiveConfig()
	correctiveCfg.RelevanceThreshold = cfg.RelevanceThreshold
	correctiveCfg.HighConfidenceCutoff = cfg.HighConfidenceCutoff
	if cfg.GradeConcurrency > 0 {
		correctiveCfg.GradeConcurrency = cfg.GradeConcurrency
	}
	if cfg.GradeTimeoutSeconds > 0 {
		correctiveCfg.GradeTimeout = time.Duration(cfg.GradeTimeoutSeconds) * time.Second
	}

	fallbackCfg := usecase.DefaultFallbackConfig()
	if len(cfg.FallbackSearchURLs) > 0 {
		fallbackCfg.SearchURLTemplates = cfg.FallbackSearchURLs
	}
	if cfg.FallbackMaxChars > 0 {
		fallbackCfg.MaxContentChars = cfg.FallbackMaxChars
	}

	searchUC := usecase.NewSearchUseCase(
		repo,
		reasoner,
		fetcher,
		usecase.DefaultSearchConfig(),
		usecase.DefaultRerankConfig(),
		correctiveCfg,
		fallbackCfg,
		log,
	)
	ingestUC := usecase.NewIngestUseCase(repo, chunker, log)
	uploadUC := usecase.NewUploadUseCase(storage, queue, log)
	processUC := usecase.NewProcessUploadUseCase(
		storage,
		ingestUC,
		map[string]ports.TextExtractor{
			"pdf":  pdfextract.NewExtractor(),
			"xlsx": xlsx.NewExtractor(),
		},
		plaintext.NewExtractor(),
		log,
	)

	return &App{
		Config: cfg,
		Log:    log,

		Queue:     queue,
		Docs:      repo,
		IngestUC:  ingestUC,
		SearchUC:  searchUC,
		UploadUC:  uploadUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
