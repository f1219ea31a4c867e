package vecrank

import (
	"context"
	"errors"
	"strings"
)

// mockEmbedder maps known words to axes; texts containing none of them fail.
type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

var errUnknownText = errors.New("unknown text")

func axisEmbedder() *mockEmbedder {
	return &mockEmbedder{fn: func(_ context.Context, text string) (EmbeddingResult, error) {
		t := strings.ToLower(text)
		switch {
		case strings.Contains(t, "wallet"):
			return EmbeddingResult{Embedding: []float32{1, 0, 0}, TotalTokens: 2}, nil
		case strings.Contains(t, "umbrella"):
			return EmbeddingResult{Embedding: []float32{0, 1, 0}, TotalTokens: 2}, nil
		case strings.Contains(t, "purse"):
			return EmbeddingResult{Embedding: []float32{0.8, 0.6, 0}, TotalTokens: 2}, nil
		}
		return EmbeddingResult{}, errUnknownText
	}}
}

type mockCaptioner struct {
	text string
	ok   bool
	err  error
}

func (m *mockCaptioner) Caption(_ context.Context, _ []byte) (string, bool, error) {
	return m.text, m.ok, m.err
}
