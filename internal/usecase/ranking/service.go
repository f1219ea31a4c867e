package ranking

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/item"
	"github.com/kailas-cloud/vecrank/internal/domain/ranking/request"
	"github.com/kailas-cloud/vecrank/internal/domain/ranking/result"
	"github.com/kailas-cloud/vecrank/internal/domain/vector"
	"github.com/kailas-cloud/vecrank/internal/logger"
	"github.com/kailas-cloud/vecrank/internal/usecase/fanout"
)

// Service ranks caller-supplied items against a query by cosine similarity.
type Service struct {
	queryEmbedder domain.Embedder
	itemEmbedder  domain.Embedder
	runner        ItemRunner
}

// New creates a ranking service. Queries and items may use differently
// instructed embedders as long as both produce vectors in the same space.
func New(queryEmbedder, itemEmbedder domain.Embedder, runner ItemRunner) *Service {
	return &Service{
		queryEmbedder: queryEmbedder,
		itemEmbedder:  itemEmbedder,
		runner:        runner,
	}
}

// Rank scores every item against the query and returns them ordered by
// similarity, highest first. Ties keep input order. Items whose vector is
// missing or of the wrong dimension are embedded from their display text;
// an item whose embedding fails scores 0 instead of failing the request.
// Only a failure to embed the query is returned as an error.
func (s *Service) Rank(ctx context.Context, req request.Request, items []item.Item) ([]result.Result, error) {
	qres, err := s.queryEmbedder.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qres.Embedding) == 0 {
		return nil, fmt.Errorf("embed query: empty embedding: %w", domain.ErrEmbeddingProviderError)
	}
	query := vector.Normalize(qres.Embedding)
	dim := len(query)

	var tasks []fanout.Task
	for i := range items {
		if !items[i].HasUsableVector(dim) {
			tasks = append(tasks, fanout.Task{Index: i, Text: items[i].EmbeddingText()})
		}
	}

	outcome := s.runner.Run(ctx, tasks, s.itemEmbedder.Embed, dim)

	ranked := make([]result.Result, 0, len(items))
	for i := range items {
		it := &items[i]
		var (
			vec    []float32
			source result.Source
		)
		switch {
		case it.HasUsableVector(dim):
			vec, source = vector.Normalize(it.Vector()), result.SourceSupplied
		case outcome.OK(i):
			vec, source = vector.Normalize(outcome.Vectors[i]), result.SourceEmbedded
		default:
			vec, source = outcome.Vectors[i], result.SourceFallback
		}
		sim := vector.CosineSimilarity(query, vec)
		ranked = append(ranked, result.New(it.ID(), sim, it.Display(), source))
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Similarity() > ranked[b].Similarity()
	})

	out := make([]result.Result, 0, len(ranked))
	minScore, hasMin := req.MinScore()
	for _, r := range ranked {
		if hasMin && r.Similarity() < minScore {
			break
		}
		out = append(out, r)
		if req.Limit() > 0 && len(out) == req.Limit() {
			break
		}
	}

	logger.FromContext(ctx).Debug("Ranked items",
		zap.Int("items", len(items)),
		zap.Int("embedded", len(tasks)),
		zap.Int("failed", len(outcome.Failed)),
		zap.Int("returned", len(out)),
		zap.Int("dimensions", dim),
	)
	return out, nil
}
