package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/luma-stream/mediadex/internal/config"
	"github.com/luma-stream/mediadex/internal/db"
	dbRedis "github.com/luma-stream/mediadex/internal/db/redis"
	"github.com/luma-stream/mediadex/internal/domain"
	"github.com/luma-stream/mediadex/internal/embcache"
	"github.com/luma-stream/mediadex/internal/health"
	"github.com/luma-stream/mediadex/internal/index"
	idxQdrant "github.com/luma-stream/mediadex/internal/index/qdrant"
	idxRedis "github.com/luma-stream/mediadex/internal/index/redis"
	"github.com/luma-stream/mediadex/internal/lexical"
	logpkg "github.com/luma-stream/mediadex/internal/logger"
	"github.com/luma-stream/mediadex/internal/metrics"
	"github.com/luma-stream/mediadex/internal/retriever"
	chiTransport "github.com/luma-stream/mediadex/internal/transport/chi"
	openaiEmb "github.com/luma-stream/mediadex/internal/transport/openai"
	"github.com/luma-stream/mediadex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting mediadex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("vector_driver", cfg.Database.VectorDriver),
	)

	// Redis carries the lexical corpus and the embedding cache; it also
	// carries vectors when the driver is redis.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Vector index backend
	var (
		vectors      index.Index
		indexChecker health.IndexChecker
	)
	switch cfg.Database.VectorDriver {
	case "redis":
		redisIdx := idxRedis.New(store, idxRedis.Settings{
			IndexName:       cfg.Index.Name,
			KeyPrefix:       cfg.Index.KeyPrefix,
			Dimensions:      cfg.Index.Dimensions,
			Metric:          index.Metric(cfg.Index.Metric),
			HNSWM:           cfg.Index.HNSWM,
			HNSWEFConstruct: cfg.Index.HNSWEFConstruct,
		}, logger)
		if err := redisIdx.EnsureIndex(ctx); err != nil {
			logger.Fatal("Failed to ensure vector index", zap.Error(err))
		}
		vectors = redisIdx
	case "qdrant":
		qdrantIdx, err := idxQdrant.New(idxQdrant.Settings{
			Addr:       cfg.Qdrant.Addr,
			Collection: cfg.Qdrant.Collection,
			Dimensions: cfg.Index.Dimensions,
			Metric:     index.Metric(cfg.Index.Metric),
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create qdrant index", zap.Error(err))
		}
		defer qdrantIdx.Close()
		if err := qdrantIdx.EnsureIndex(ctx); err != nil {
			logger.Fatal("Failed to ensure vector collection", zap.Error(err))
		}
		// The lexical leg still searches Redis; mirror writes into a text
		// corpus there so both legs see the same documents.
		corpus := lexical.NewCorpus(store, cfg.Index.Name, cfg.Index.KeyPrefix, logger)
		if err := corpus.EnsureIndex(ctx); err != nil {
			logger.Fatal("Failed to ensure lexical index", zap.Error(err))
		}
		vectors = index.Mirrored(qdrantIdx, corpus)
		indexChecker = qdrantIdx
	default:
		logger.Fatal("Unknown vector driver", zap.String("driver", cfg.Database.VectorDriver))
	}
	logger.Info("Vector index ready",
		zap.String("driver", cfg.Database.VectorDriver),
		zap.Int("dimensions", cfg.Index.Dimensions),
		zap.String("metric", cfg.Index.Metric),
	)

	// Embedder chain: OpenAI -> cache
	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Lexical leg shares the Redis index with the vector columns.
	text := lexical.New(store, cfg.Index.Name, cfg.Index.KeyPrefix)

	search := retriever.New(vectors, text, embedder, logger)

	healthSvc := health.New(store, newEmbeddingHealthChecker(embedder), indexChecker)

	server := chiTransport.NewServer(search, vectors, healthSvc, chiTransport.Defaults{
		TopK: cfg.Search.TopK,
		Weights: retriever.Weights{
			Vector:   cfg.Search.VectorWeight,
			Text:     cfg.Search.TextWeight,
			MinScore: cfg.Search.MinScore,
		},
		RecentDays: cfg.Search.RecentDays,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
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

// buildEmbedder assembles the decorator chain: OpenAI -> Cached
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	if store == nil {
		return base
	}
	ttl := time.Duration(cfg.Embedding.CacheTTL) * time.Second
	return embcache.New(base, store, cfg.Index.KeyPrefix+"emb:", ttl, metrics.EmbeddingCacheTotal, logger)
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
