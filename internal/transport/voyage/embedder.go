// Package voyage adapts the Voyage AI embeddings API to domain.Embedder.
package voyage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/austinfhunter/voyageai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/metrics"
)

// InputType tells Voyage which side of a retrieval pair a text is on.
type InputType string

// Input types accepted by the API. InputNone omits the field.
const (
	InputNone     InputType = ""
	InputQuery    InputType = "query"
	InputDocument InputType = "document"
)

const providerName = "voyage"

// embedFunc is the single client call the embedder depends on.
type embedFunc func(texts []string, model string, opts *voyageai.EmbeddingRequestOpts) ([][]float32, error)

// Config holds the Voyage settings.
type Config struct {
	APIKey     string
	Model      string
	Dimensions int
	InputType  InputType
	Logger     *zap.Logger
}

// Embedder calls Voyage for one text at a time.
type Embedder struct {
	embed      embedFunc
	model      string
	dimensions int
	inputType  InputType
	logger     *zap.Logger
}

// NewEmbedder creates a Voyage embedder.
func NewEmbedder(cfg *Config) *Embedder {
	client := voyageai.NewClient(&voyageai.VoyageClientOpts{Key: cfg.APIKey})
	fn := func(texts []string, model string, opts *voyageai.EmbeddingRequestOpts) ([][]float32, error) {
		resp, err := client.Embed(texts, model, opts)
		if err != nil {
			return nil, err //nolint:wrapcheck // classified by the caller
		}
		out := make([][]float32, len(resp.Data))
		for i, d := range resp.Data {
			out[i] = d.Embedding
		}
		return out, nil
	}
	return newEmbedder(fn, cfg)
}

func newEmbedder(fn embedFunc, cfg *Config) *Embedder {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		embed:      fn,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		inputType:  cfg.InputType,
		logger:     logger,
	}
}

// WithInputType returns a copy of the embedder that tags requests with t.
// Query and document embedders share one client.
func (e *Embedder) WithInputType(t InputType) *Embedder {
	c := *e
	c.inputType = t
	return &c
}

type embedReply struct {
	vectors [][]float32
	err     error
}

// Embed implements domain.Embedder. The client library takes no context,
// so the call runs in its own goroutine and is abandoned when ctx ends.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	opts := &voyageai.EmbeddingRequestOpts{}
	if e.inputType != InputNone {
		it := string(e.inputType)
		opts.InputType = &it
	}
	if e.dimensions > 0 {
		dims := e.dimensions
		opts.OutputDimension = &dims
	}

	start := time.Now()
	done := make(chan embedReply, 1)
	go func() {
		vecs, err := e.embed([]string{text}, e.model, opts)
		done <- embedReply{vectors: vecs, err: err}
	}()

	var reply embedReply
	select {
	case reply = <-done:
	case <-ctx.Done():
		e.recordError("timeout")
		return domain.EmbeddingResult{}, fmt.Errorf("voyage embed: %w: %w", domain.ErrTimeout, ctx.Err())
	}

	if reply.err != nil {
		kind, wrap := classify(reply.err)
		e.recordError(kind)
		e.logger.Debug("Voyage API call failed",
			zap.String("model", e.model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(reply.err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("voyage embed: %s: %w", reply.err.Error(), wrap)
	}
	if len(reply.vectors) == 0 || len(reply.vectors[0]) == 0 {
		e.recordError("empty_response")
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.model).Observe(time.Since(start).Seconds())

	return domain.EmbeddingResult{Embedding: reply.vectors[0]}, nil
}

func (e *Embedder) recordError(kind string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.model, kind).Inc()
}

// classify maps a client error to a metric label and a domain sentinel.
// The client reports HTTP failures as text, so the status is matched by substring.
func classify(err error) (string, error) {
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate limit") {
		return "rate_limited", domain.ErrRateLimited
	}
	return "api_error", domain.ErrEmbeddingProviderError
}
