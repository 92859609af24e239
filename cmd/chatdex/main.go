package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/chunker"
	"github.com/kailas-cloud/chatdex/internal/config"
	dbRedis "github.com/kailas-cloud/chatdex/internal/db/redis"
	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/extract"
	logpkg "github.com/kailas-cloud/chatdex/internal/logger"
	"github.com/kailas-cloud/chatdex/internal/metrics"
	"github.com/kailas-cloud/chatdex/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/chatdex/internal/repository/index"
	recordrepo "github.com/kailas-cloud/chatdex/internal/repository/record"
	chiTransport "github.com/kailas-cloud/chatdex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/chatdex/internal/transport/openai"
	chatuc "github.com/kailas-cloud/chatdex/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/chatdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/chatdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/chatdex/internal/usecase/ingest"
	"github.com/kailas-cloud/chatdex/internal/usecase/prompt"
	retrievaluc "github.com/kailas-cloud/chatdex/internal/usecase/retrieval"
	"github.com/kailas-cloud/chatdex/internal/version"
)

const generationRetryBackoff = 500 * time.Millisecond

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting chatdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("records_path", cfg.Records.Path),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create index store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the vector store to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Index store not ready", zap.Error(err))
	}
	logger.Info("Connected to index store")

	records, err := recordrepo.New(cfg.Records.Path)
	if err != nil {
		logger.Fatal("Failed to open record store", zap.Error(err))
	}
	defer func() { _ = records.Close() }()
	logger.Info("Opened record store", zap.String("path", cfg.Records.Path))

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()

	// Build embedder chains — composition root. Document and query embedders
	// share the model and cache but carry different instruction prefixes.
	docEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, store, logger)
	queryEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, store, logger)
	logger.Info("Embedders created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache),
	)

	indexRepo := indexrepo.New(store, indexrepo.Config{
		KeyPrefix:       cfg.Storage.KeyPrefix,
		Dimensions:      cfg.Embedding.Dimensions,
		HNSWM:           cfg.RAG.HNSWM,
		HNSWEFConstruct: cfg.RAG.HNSWEFConstruct,
	})
	if err := indexRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure chunk index", zap.Error(err))
	}

	// Create use case services
	ingestSvc := ingestuc.New(
		records, indexRepo, extract.NewRegistry(),
		chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		docEmbedder,
		ingestuc.Config{MaxFileSizeBytes: cfg.Upload.MaxFileSizeBytes},
		logger,
	)

	retrievalSvc := retrievaluc.New(indexRepo, queryEmbedder, retrievaluc.Config{
		TopK:     cfg.RAG.TopK,
		MinScore: cfg.RAG.MinScore,
	}, logger)

	assembler := prompt.New(cfg.RAG.ContextTokenBudget, logger)

	chatClient := openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxResponseTokens,
		Timeout:   time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Logger:    logger,
	})
	generator := chatuc.NewRetryGenerator(
		chatClient, cfg.LLM.Model, cfg.LLM.MaxRetries, generationRetryBackoff, logger,
	)

	chatSvc := chatuc.New(
		records, retrievalSvc, assembler, generator,
		chatuc.Config{Model: cfg.LLM.Model}, logger,
	)

	healthSvc := healthuc.New(store, records, newEmbeddingHealthChecker(queryEmbedder))

	// Create chi server
	server := chiTransport.NewServer(ingestSvc, chatSvc, healthSvc, cfg.Upload.MaxFileSizeBytes, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// embedder is the full vectorization surface produced by the decorator chain.
type embedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(e domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: e}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Retry -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	embCfg config.EmbeddingConfig,
	instruction string,
	store *dbRedis.Store,
	logger *zap.Logger,
) embedder {
	// Base provider (with transport metrics built-in)
	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     embCfg.APIKey,
		BaseURL:    embCfg.BaseURL,
		Model:      embCfg.Model,
		Dimensions: embCfg.Dimensions,
		Timeout:    time.Duration(embCfg.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	// Retry (transient provider failures only)
	var emb embedder = embeddinguc.NewRetryEmbedder(
		base, embCfg.Model, embCfg.MaxRetries,
		time.Duration(embCfg.RetryBackoffMS)*time.Millisecond, logger,
	)

	// Cached
	if embCfg.Cache && store != nil {
		emb = embcache.New(emb, store, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (metrics + debug logging)
	emb = embeddinguc.NewInstrumentedEmbedder(emb, embCfg.Model, logger)

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(emb, instruction)
	}

	return emb
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
