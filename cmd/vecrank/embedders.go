package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/config"
	"github.com/kailas-cloud/vecrank/internal/db"
	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/metrics"
	"github.com/kailas-cloud/vecrank/internal/repository/embcache"
	"github.com/kailas-cloud/vecrank/internal/transport/lexical"
	openaiEmb "github.com/kailas-cloud/vecrank/internal/transport/openai"
	"github.com/kailas-cloud/vecrank/internal/transport/voyage"
	embeddinguc "github.com/kailas-cloud/vecrank/internal/usecase/embedding"
)

// baseEmbedders holds the provider-level embedders for each side of a retrieval pair.
// Providers without asymmetric modes use the same instance for both.
type baseEmbedders struct {
	query    domain.Embedder
	document domain.Embedder
}

// buildBaseEmbedders selects the provider named in config. A remote provider
// without credentials yields an UnconfiguredEmbedder so the server still
// starts and serves captions. The lexical backend is fitted on its corpus here,
// once, before any request is served.
func buildBaseEmbedders(ec config.EmbeddingConfig, lc config.LexicalConfig, logger *zap.Logger) (baseEmbedders, error) {
	if !ec.Configured() {
		logger.Warn("Embedding provider has no credentials, embedding endpoints will return 503",
			zap.String("provider", ec.Provider))
		u := domain.UnconfiguredEmbedder{Reason: ec.Provider + " api_key is not set"}
		return baseEmbedders{query: u, document: u}, nil
	}

	switch ec.Provider {
	case config.ProviderVoyage:
		v := voyage.NewEmbedder(&voyage.Config{
			APIKey:     ec.APIKey,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			Logger:     logger,
		})
		return baseEmbedders{
			query:    v.WithInputType(voyage.InputQuery),
			document: v.WithInputType(voyage.InputDocument),
		}, nil
	case config.ProviderLexical:
		docs, err := lc.Documents()
		if err != nil {
			return baseEmbedders{}, fmt.Errorf("lexical corpus: %w", err)
		}
		l := lexical.NewEmbedder(lc.Dimensions, docs...)
		logger.Info("Lexical embedder ready",
			zap.Int("dimensions", l.Dimensions()),
			zap.Int("corpus_documents", len(docs)),
			zap.Bool("idf_weighted", l.Weighted()),
		)
		return baseEmbedders{query: l, document: l}, nil
	default:
		o := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			Provider:   ec.Name,
			Logger:     logger,
		})
		return baseEmbedders{query: o, document: o}, nil
	}
}

// decorateEmbedder assembles the decorator chain: provider -> Cached -> Instrumented -> Instruction
func decorateEmbedder(
	base domain.Embedder,
	cfg config.Config,
	instruction string,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base

	// Cached; the lexical backend is cheaper than a round trip.
	if store != nil && cfg.Embedding.Provider != config.ProviderLexical {
		embedder = embcache.New(embedder, store, embcache.Options{
			KeyPrefix: cfg.Cache.KeyPrefix,
			Model:     cfg.Embedding.Model,
			TTL:       cfg.Cache.TTL(),
		}, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (timeout + metrics + usage)
	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Name, cfg.Embedding.Model, cfg.Embedding.Timeout(), logger,
	)

	// Instruction prefix (outermost, cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}
