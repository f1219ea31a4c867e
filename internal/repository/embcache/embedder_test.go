package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/db"
	"github.com/kailas-cloud/vecrank/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	// GET → ErrKeyNotFound (cache miss)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	var setKey string
	ms.setFn = func(_ context.Context, key string, _ []byte, _ time.Duration) error {
		setKey = key
		return nil
	}

	result, err := ce.Embed(ctx, "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if !strings.HasPrefix(setKey, DefaultKeyPrefix+"emb:") {
		t.Fatalf("expected cache put under default prefix, got key %q", setKey)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.1, 0.2, 0.3},
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := vectorToCacheBytes([]float32{0.4, 0.5, 0.6})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if inner.calls != 0 {
		t.Fatalf("expected no inner calls on hit, got %d", inner.calls)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrRateLimited}
	ce, _ := newTestCachedEmbedder(t, inner)

	_, err := ce.Embed(context.Background(), "test text")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected wrapped ErrRateLimited, got %v", err)
	}
}

func TestEmbed_StoreErrorsDegradeToInner(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) { return nil, errStoreDown }
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error { return errStoreDown }

	result, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("store failures must not fail the call: %v", err)
	}
	if len(result.Embedding) != 1 || inner.calls != 1 {
		t.Fatalf("unexpected result %v after %d calls", result.Embedding, inner.calls)
	}
}

func TestEmbed_CorruptEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) { return []byte{1, 2, 3}, nil }

	if _, err := ce.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected inner call for corrupt entry, got %d", inner.calls)
	}
}

func TestEmbed_EmptyEmbeddingNotCached(t *testing.T) {
	inner := &mockEmbedder{}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		t.Fatal("empty embedding must not be cached")
		return nil
	}

	if _, err := ce.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmbed_RoundTripWithModelAndTTL(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.25, -0.5}, TotalTokens: 4}}
	store := newMemKVStore()
	total := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	ce := New(inner, store, Options{KeyPrefix: "lf:", Model: "m1", TTL: time.Hour}, total, zap.NewNop())

	for range 3 {
		res, err := ce.Embed(context.Background(), "red wallet")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Embedding[0] != 0.25 || res.Embedding[1] != -0.5 {
			t.Fatalf("unexpected vector %v", res.Embedding)
		}
	}

	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
	if got := testutil.ToFloat64(total.WithLabelValues("hit")); got != 2 {
		t.Errorf("expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(total.WithLabelValues("miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
	for key, ttl := range store.ttls {
		if !strings.HasPrefix(key, "lf:emb:m1:") {
			t.Errorf("unexpected key %q", key)
		}
		if ttl != time.Hour {
			t.Errorf("expected 1h ttl, got %s", ttl)
		}
	}
}

func TestEmbed_ModelsDoNotShareEntries(t *testing.T) {
	store := newMemKVStore()
	a := New(&mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}, store,
		Options{Model: "a"}, nil, zap.NewNop())
	bInner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{2}}}
	b := New(bInner, store, Options{Model: "b"}, nil, zap.NewNop())

	if _, err := a.Embed(context.Background(), "same"); err != nil {
		t.Fatal(err)
	}
	res, err := b.Embed(context.Background(), "same")
	if err != nil {
		t.Fatal(err)
	}
	if res.Embedding[0] != 2 || bInner.calls != 1 {
		t.Fatalf("model b served model a's vector: %v", res.Embedding)
	}
}

func TestHealthCheck_DelegatesToInner(t *testing.T) {
	inner := &mockEmbedder{healthErr: domain.ErrBackendUnavailable}
	ce, _ := newTestCachedEmbedder(t, inner)

	if err := ce.HealthCheck(context.Background()); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected inner health error, got %v", err)
	}
}

func TestBytesToVector_InvalidLength(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3, 4, 5}); err == nil {
		t.Fatal("expected error for misaligned data")
	}
}
