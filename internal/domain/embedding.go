package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies backend availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// InstructionEmbedder is a domain decorator that prepends instruction text before embedding.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends instruction and delegates to inner embedder.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through decorator
	}
	return nil
}

// UnconfiguredEmbedder fails every call with ErrBackendUnavailable.
// Used when no embedding provider is configured so the service can still start
// and serve captioning.
type UnconfiguredEmbedder struct {
	Reason string
}

// Embed always returns ErrBackendUnavailable.
func (e UnconfiguredEmbedder) Embed(_ context.Context, _ string) (EmbeddingResult, error) {
	if e.Reason != "" {
		return EmbeddingResult{}, fmt.Errorf("%s: %w", e.Reason, ErrBackendUnavailable)
	}
	return EmbeddingResult{}, ErrBackendUnavailable
}

// HealthCheck reports the embedder as unavailable.
func (e UnconfiguredEmbedder) HealthCheck(ctx context.Context) error {
	_, err := e.Embed(ctx, "")
	return err
}
