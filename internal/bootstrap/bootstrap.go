package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saglikai/medrag/internal/config"
	"github.com/saglikai/medrag/internal/core/ports"
	"github.com/saglikai/medrag/internal/core/usecase"
	"github.com/saglikai/medrag/internal/index"
	"github.com/saglikai/medrag/internal/infrastructure/chunking"
	"github.com/saglikai/medrag/internal/infrastructure/extractor"
	"github.com/saglikai/medrag/internal/infrastructure/extractor/htmltext"
	pdfextractor "github.com/saglikai/medrag/internal/infrastructure/extractor/pdf"
	"github.com/saglikai/medrag/internal/infrastructure/extractor/plaintext"
	"github.com/saglikai/medrag/internal/infrastructure/extractor/xlsx"
	"github.com/saglikai/medrag/internal/infrastructure/llm/ollama"
	natsqueue "github.com/saglikai/medrag/internal/infrastructure/queue/nats"
	"github.com/saglikai/medrag/internal/infrastructure/repository/postgres"
	"github.com/saglikai/medrag/internal/infrastructure/resilience"
	"github.com/saglikai/medrag/internal/infrastructure/storage/localfs"
	"github.com/saglikai/medrag/internal/infrastructure/textnorm"
)

// App wires infrastructure and use cases for both binaries. The api
// uses Ingest/Query/Loader; the worker uses Process. Shared pieces are
// built once.
type App struct {
	Config config.Config
	Log    *slog.Logger

	Queue      *natsqueue.Queue
	Repo       ports.DocumentRepository
	Chunks     ports.ChunkRepository
	Collection *index.Collection

	Sessions *usecase.SessionManager

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	QueryUC   ports.QueryService
	Loader    *usecase.IndexLoader

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	chunkRepo := postgres.NewChunkRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy(), log)

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSIngestSubject, cfg.NATSIndexedSubject, natsqueue.Options{
		ResilienceExecutor: executor,
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)
	rewriter := ollama.NewRewriter(ollamaClient)

	norm := textnorm.New()
	chunker := chunking.NewSplitter(norm, cfg.ChunkTargetTokens, cfg.ChunkOverlapTokens)
	collection := index.NewCollection(norm, 0, 0)

	docExtractor := extractor.NewDispatcher(
		pdfextractor.NewExtractor(storage),
		xlsx.NewExtractor(storage),
		htmltext.NewExtractor(storage),
		plaintext.NewExtractor(storage),
	)

	sessions := usecase.NewSessionManager(norm, cfg.SessionTurnWindow, rewriter, log)
	binder := usecase.NewCitationBinder(norm, cfg.GroundingOverlapThreshold, cfg.GroundingWellGroundedMin)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, chunkRepo, queue, docExtractor, norm, chunker, embedder, log)
	queryUC := usecase.NewQueryUseCase(
		usecase.QueryConfig{
			TopK:       cfg.RAGTopK,
			Candidates: cfg.RAGCandidates,
			RRFK:       cfg.RAGFusionRRFK,
		},
		sessions, norm, collection, embedder, generator, binder, repo, log,
	)
	loader := usecase.NewIndexLoader(repo, chunkRepo, collection, log)

	return &App{
		Config: cfg,
		Log:    log,

		Queue:      queue,
		Repo:       repo,
		Chunks:     chunkRepo,
		Collection: collection,

		Sessions: sessions,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,
		Loader:    loader,

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
