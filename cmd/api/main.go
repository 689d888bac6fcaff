package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"industryinsider/internal/config"
	"industryinsider/internal/corpus"
	"industryinsider/internal/handlers"
	"industryinsider/internal/http"
	"industryinsider/internal/indexer"
	"industryinsider/internal/llm"
	"industryinsider/internal/logging"
	"industryinsider/internal/metrics"
	"industryinsider/internal/rag"
	"industryinsider/internal/service"
	"industryinsider/internal/session"
	"industryinsider/internal/storage"
	"industryinsider/internal/tokens"
	"industryinsider/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, logFile, err := logging.Setup(logging.Options{
		Root:     cfg.LogDir,
		MaxSize:  cfg.LogFileSize,
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		Stdout:   os.Stdout,
		Category: logging.Chatbot,
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer func() {
		_ = logFile.Close()
	}()
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	articleRepo := storage.NewArticleRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	defer func() {
		_ = vectorStore.Close()
	}()

	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	embedder.BatchSize = cfg.EmbeddingBatchSize

	counter, err := tokens.NewCounter(cfg.TiktokenModel)
	if err != nil {
		log.Fatalf("Failed to load tokenizer: %v", err)
	}

	// The loader is reachable through POST /api/index.
	pipeline := indexer.NewPipeline(
		corpus.New(cfg.DataDir, cfg.FileExtension),
		articleRepo,
		chunkRepo,
		indexer.NewSemanticChunker(embedder, counter, cfg.MaxChunkTokens),
		embedder,
		vectorStore,
		cfg.QdrantCollection,
		indexer.IndexVersion(cfg.EmbeddingModelName, cfg.MaxChunkTokens),
		m,
	)

	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	keyword := rag.NewKeywordRetriever(cfg.KeywordTopK)
	defer func() {
		_ = keyword.Close()
	}()
	n, err := keyword.Rebuild(ctx, chunkRepo)
	if err != nil {
		log.Fatalf("Failed to build keyword index: %v", err)
	}
	slog.Info("Keyword index built", "chunks", n)

	retriever := rag.NewEnsembleRetriever(m,
		rag.WeightedRetriever{
			Name:      "dense",
			Retriever: rag.NewDenseRetriever(embedder, vectorStore, cfg.QdrantCollection, cfg.DenseTopK),
			Weight:    cfg.DenseWeight,
		},
		rag.WeightedRetriever{
			Name:      "keyword",
			Retriever: keyword,
			Weight:    cfg.KeywordWeight,
		},
	)
	chain := rag.NewChain(llmClient, retriever)

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create session store: %v", err)
	}
	defer closeSessions()
	slog.Info("Session store ready", "store", cfg.SessionStore)

	chatService := service.NewChatService(chain, sessions, counter, service.Budget{
		MaxTokens:         cfg.MaxTokens,
		HistoryPadding:    cfg.TokenHistoryPadding,
		PromptPadding:     cfg.TokenPromptPadding,
		SafetyMargin:      cfg.TokenSafetyMargin,
		MinResponseTokens: cfg.MinResponseTokens,
	}, m)

	indexHandler := handlers.NewIndexHandler(pipeline, keyword, chunkRepo)

	router := http.NewRouter(&http.Deps{
		Logger:       logger,
		ChatService:  chatService,
		VectorStore:  vectorStore,
		Collection:   cfg.QdrantCollection,
		IndexHandler: indexHandler,
		ArticleRepo:  articleRepo,
		DataDir:      cfg.DataDir,
		Gatherer:     reg,
	})

	srv := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting API server", "addr", srv.Addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	serveErr := srv.ListenAndServe()
	if errors.Is(serveErr, nethttp.ErrServerClosed) {
		serveErr = nil
	}
	stop()
	<-shutdownDone

	// A load started through /api/index writes to the database and Qdrant,
	// which the deferred Close calls above tear down.
	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := indexHandler.Shutdown(waitCtx); err != nil {
		slog.Error("Index run did not stop", "error", err)
	}
	if serveErr != nil {
		log.Fatalf("API server failed to start: %v", serveErr)
	}
	slog.Info("API server stopped")
}

// newSessionStore picks the chat history backend named by SESSION_STORE.
func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.SessionStore {
	case "redis":
		store, err := session.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return session.NewMemoryStore(), func() {}, nil
	}
}
