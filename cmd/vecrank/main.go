package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/config"
	"github.com/kailas-cloud/vecrank/internal/db"
	dbRedis "github.com/kailas-cloud/vecrank/internal/db/redis"
	"github.com/kailas-cloud/vecrank/internal/domain"
	logpkg "github.com/kailas-cloud/vecrank/internal/logger"
	"github.com/kailas-cloud/vecrank/internal/metrics"
	chiTransport "github.com/kailas-cloud/vecrank/internal/transport/chi"
	"github.com/kailas-cloud/vecrank/internal/transport/huggingface"
	"github.com/kailas-cloud/vecrank/internal/transport/imaging"
	captionuc "github.com/kailas-cloud/vecrank/internal/usecase/caption"
	embeddinguc "github.com/kailas-cloud/vecrank/internal/usecase/embedding"
	"github.com/kailas-cloud/vecrank/internal/usecase/fanout"
	healthuc "github.com/kailas-cloud/vecrank/internal/usecase/health"
	rankinguc "github.com/kailas-cloud/vecrank/internal/usecase/ranking"
	"github.com/kailas-cloud/vecrank/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting vecrank API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Bool("embedding_configured", cfg.Embedding.Configured()),
		zap.Bool("caption_configured", cfg.Caption.Configured()),
		zap.Bool("cache_enabled", cfg.Cache.Enabled()),
	)

	// Optional embedding cache
	var store db.Store
	if cfg.Cache.Enabled() {
		store = connectCache(cfg.Cache, logger)
		defer store.Close()
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterFanoutMetrics()

	// Build embedder chains: composition root
	base, err := buildBaseEmbedders(cfg.Embedding, cfg.Lexical, logger)
	if err != nil {
		logger.Fatal("Failed to build embedders", zap.Error(err))
	}
	queryEmbedder := decorateEmbedder(base.query, cfg, cfg.Embedding.QueryInstruction, store, logger)
	itemEmbedder := decorateEmbedder(base.document, cfg, cfg.Embedding.DocumentInstruction, store, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Name),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	itemRunner := fanout.New("items", cfg.Fanout.ItemConcurrency, cfg.Embedding.Timeout()).
		WithRecorder(metrics.FanoutRecorder{})
	batchRunner := fanout.New("batch", cfg.Fanout.BatchConcurrency, cfg.Embedding.Timeout()).
		WithRecorder(metrics.FanoutRecorder{})
	logger.Info("Fanout runners created",
		zap.Int("item_concurrency", itemRunner.Limit()),
		zap.Int("batch_concurrency", batchRunner.Limit()),
	)

	// Services
	embeddingSvc := embeddinguc.New(itemEmbedder, batchRunner, cfg.Embedding.MaxBatchSize)
	rankingSvc := rankinguc.New(queryEmbedder, itemEmbedder, itemRunner)
	// Pass nil interface (not typed nil pointer!) when captioning is heuristic only.
	var captioner domain.Captioner
	var captionModel string
	if hf := buildCaptioner(cfg.Caption, logger); hf != nil {
		captioner, captionModel = hf, hf.Model()
	}
	captionSvc := captionuc.New(imaging.New(imaging.DefaultMaxPixels), captioner, cfg.Caption.Timeout())

	// Pass nil interface (not typed nil pointer!) when the cache is off.
	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(newEmbeddingHealthChecker(queryEmbedder), cachePinger, healthuc.Backends{
		EmbeddingConfigured: cfg.Embedding.Configured(),
		EmbeddingProvider:   cfg.Embedding.Name,
		EmbeddingModel:      cfg.Embedding.Model,
		CaptionConfigured:   captionSvc.RemoteConfigured(),
		CaptionModel:        captionModel,
	})

	server := chiTransport.NewServer(embeddingSvc, rankingSvc, captionSvc, healthSvc, chiTransport.Options{
		MaxItems:       cfg.Search.MaxItems,
		MaxUploadBytes: int64(cfg.HTTP.MaxUploadMB) << 20,
	}, logger)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID", "X-Embedding-Tokens"},
		MaxAge:         300,
	}))
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Register(r)

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// connectCache dials Redis/Valkey and waits until it answers PING.
func connectCache(cc config.CacheConfig, logger *zap.Logger) db.Store {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cc.Addrs,
		Password: cc.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}

	if err := store.WaitForReady(context.Background(), time.Duration(cc.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Cache not ready", zap.Error(err))
	}
	logger.Info("Connected to embedding cache", zap.Strings("addrs", cc.Addrs))
	return store
}

// buildCaptioner returns the remote captioner or nil when captioning falls back to heuristics only.
func buildCaptioner(cc config.CaptionConfig, logger *zap.Logger) *huggingface.Captioner {
	if !cc.Configured() {
		logger.Info("Remote captioning disabled, using heuristic captions")
		return nil
	}
	return huggingface.NewCaptioner(&huggingface.Config{
		APIToken:   cc.APIToken,
		Model:      cc.Model,
		BaseURL:    cc.BaseURL,
		MaxRetries: uint64(cc.MaxRetries), //nolint:gosec // validated non-negative
		Logger:     logger,
	})
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
