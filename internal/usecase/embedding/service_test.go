package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/vector"
	"github.com/kailas-cloud/vecrank/internal/usecase/fanout"
)

func newTestService(emb domain.Embedder) *Service {
	return New(emb, fanout.New("batch", 8, time.Second), 0)
}

func TestEmbedText_Normalized(t *testing.T) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{3, 4}}}
	svc := newTestService(emb)

	vec, dim, err := svc.EmbedText(context.Background(), "red backpack")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dim != 2 || len(vec) != 2 {
		t.Fatalf("expected dim 2, got %d (len %d)", dim, len(vec))
	}
	if math.Abs(vector.Norm(vec)-1) > 1e-6 {
		t.Errorf("expected unit norm, got %f", vector.Norm(vec))
	}
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[1])-0.8) > 1e-6 {
		t.Errorf("unexpected vector %v", vec)
	}
}

func TestEmbedText_Blank(t *testing.T) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	svc := newTestService(emb)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, _, err := svc.EmbedText(context.Background(), text)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("EmbedText(%q): expected ErrInvalidInput, got %v", text, err)
		}
	}
	if emb.calls.Load() != 0 {
		t.Errorf("backend must not be called for blank text, got %d calls", emb.calls.Load())
	}
}

func TestEmbedText_BackendErrorPropagates(t *testing.T) {
	svc := newTestService(domain.UnconfiguredEmbedder{Reason: "embedding provider"})

	_, _, err := svc.EmbedText(context.Background(), "keys")
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestEmbedText_EmptyEmbedding(t *testing.T) {
	svc := newTestService(&mockEmbedder{})

	_, _, err := svc.EmbedText(context.Background(), "keys")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedTextBatch_FailureIsolation(t *testing.T) {
	emb := &mockEmbedder{
		result: domain.EmbeddingResult{Embedding: []float32{0, 2, 0}},
		failOn: map[string]error{"c": domain.ErrEmbeddingProviderError},
	}
	svc := newTestService(emb)

	out, err := svc.EmbedTextBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("expected 5 vectors, got %d", len(out))
	}
	for i, v := range out {
		if i == 2 {
			if len(v) != 1 || v[0] != 0 {
				t.Errorf("failed item: expected [0], got %v", v)
			}
			continue
		}
		if len(v) != 3 || v[1] != 1 {
			t.Errorf("item %d: expected normalized [0 1 0], got %v", i, v)
		}
	}
}

func TestEmbedTextBatch_IndexAligned(t *testing.T) {
	emb := &mockEmbedder{byText: map[string]domain.EmbeddingResult{
		"x": {Embedding: []float32{1, 0}},
		"y": {Embedding: []float32{0, 1}},
	}}
	svc := newTestService(emb)

	out, err := svc.EmbedTextBatch(context.Background(), []string{"y", "x", "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0][1] != 1 || out[1][0] != 1 || out[2][1] != 1 {
		t.Errorf("results not aligned with input: %v", out)
	}
}

func TestEmbedTextBatch_BlankEntries(t *testing.T) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 1}}}
	svc := newTestService(emb)

	out, err := svc.EmbedTextBatch(context.Background(), []string{"wallet", " "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out[1]) != 1 || out[1][0] != 0 {
		t.Errorf("blank entry: expected [0], got %v", out[1])
	}
	if emb.calls.Load() != 1 {
		t.Errorf("expected 1 backend call, got %d", emb.calls.Load())
	}
}

func TestEmbedTextBatch_AllFail(t *testing.T) {
	svc := newTestService(domain.UnconfiguredEmbedder{})

	out, err := svc.EmbedTextBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("batch must not fail as a whole, got %v", err)
	}
	for i, v := range out {
		if len(v) != 1 || v[0] != 0 {
			t.Errorf("item %d: expected [0], got %v", i, v)
		}
	}
}

func TestEmbedTextBatch_InvalidInput(t *testing.T) {
	emb := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	svc := New(emb, fanout.New("batch", 8, time.Second), 2)

	if _, err := svc.EmbedTextBatch(context.Background(), nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty batch: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.EmbedTextBatch(context.Background(), []string{"a", "b", "c"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("oversized batch: expected ErrInvalidInput, got %v", err)
	}
}
