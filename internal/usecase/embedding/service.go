package embedding

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/vector"
	"github.com/kailas-cloud/vecrank/internal/logger"
	"github.com/kailas-cloud/vecrank/internal/usecase/fanout"
)

// DefaultMaxBatchSize caps the number of texts accepted by one batch call.
const DefaultMaxBatchSize = 256

// Service turns text into unit-length vectors.
type Service struct {
	embedder domain.Embedder
	batch    BatchRunner
	maxBatch int
}

// New creates an embedding service. maxBatch <= 0 uses DefaultMaxBatchSize.
func New(embedder domain.Embedder, batch BatchRunner, maxBatch int) *Service {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	return &Service{embedder: embedder, batch: batch, maxBatch: maxBatch}
}

// EmbedText embeds one text and returns the normalized vector with its dimension.
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, fmt.Errorf("text is required: %w", domain.ErrInvalidInput)
	}

	res, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, 0, fmt.Errorf("embed text: %w", err)
	}
	if len(res.Embedding) == 0 {
		return nil, 0, fmt.Errorf("embed text: empty embedding: %w", domain.ErrEmbeddingProviderError)
	}

	vec := vector.Normalize(res.Embedding)
	return vec, len(vec), nil
}

// EmbedTextBatch embeds every text independently. The result is index-aligned with texts.
// A text that is blank or whose embedding fails gets the length-1 zero vector;
// the call as a whole fails only on an empty or oversized list.
func (s *Service) EmbedTextBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts must not be empty: %w", domain.ErrInvalidInput)
	}
	if len(texts) > s.maxBatch {
		return nil, fmt.Errorf("batch of %d exceeds limit %d: %w", len(texts), s.maxBatch, domain.ErrInvalidInput)
	}

	out := make([][]float32, len(texts))
	tasks := make([]fanout.Task, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = vector.Zero(0)
			continue
		}
		tasks = append(tasks, fanout.Task{Index: i, Text: t})
	}

	outcome := s.batch.Run(ctx, tasks, s.embedder.Embed, 0)
	for _, task := range tasks {
		vec, ok := outcome.Vectors[task.Index]
		if !ok {
			vec = vector.Zero(0)
		}
		out[task.Index] = vector.Normalize(vec)
	}

	if skipped := len(texts) - len(tasks); skipped > 0 {
		logger.FromContext(ctx).Debug("Blank texts in batch",
			zap.Int("skipped", skipped),
			zap.Int("batch_size", len(texts)),
		)
	}
	return out, nil
}
