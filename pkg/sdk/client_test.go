package vecrank

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/transport/lexical"
)

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func solidPNG(t *testing.T, c color.Color, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestNew_NoProvider(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatal("expected error when no provider configured")
	}
}

func TestNew_NilCustomEmbedder(t *testing.T) {
	if _, err := New(context.Background(), WithEmbedder(nil)); err == nil {
		t.Fatal("expected error for nil embedder")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}
	for _, o := range []Option{
		WithOpenAI("key", "http://localhost", "m"),
		WithDimensions(256),
		WithInstructions("q: ", "d: "),
		WithConcurrency(2, 3),
		WithMaxBatchSize(10),
		WithHuggingFace("hf", "blip"),
		WithCache("localhost:6379", "pw", 0),
	} {
		o.apply(cfg)
	}

	if cfg.provider != providerOpenAI || cfg.apiKey != "key" || cfg.model != "m" {
		t.Errorf("unexpected provider config: %+v", cfg)
	}
	if cfg.dimensions != 256 {
		t.Errorf("dimensions = %d, want 256", cfg.dimensions)
	}
	if cfg.queryInstruction != "q: " || cfg.documentInstruction != "d: " {
		t.Errorf("instructions not applied: %q %q", cfg.queryInstruction, cfg.documentInstruction)
	}
	if cfg.itemConcurrency != 2 || cfg.batchConcurrency != 3 {
		t.Errorf("concurrency = %d/%d, want 2/3", cfg.itemConcurrency, cfg.batchConcurrency)
	}
	if cfg.maxBatchSize != 10 {
		t.Errorf("maxBatchSize = %d, want 10", cfg.maxBatchSize)
	}
	if cfg.hfToken != "hf" || cfg.hfModel != "blip" {
		t.Errorf("hf options not applied")
	}
	if len(cfg.cacheAddrs) != 1 || cfg.cachePassword != "pw" {
		t.Errorf("cache options not applied")
	}
}

func TestEmbedText_UnitLength(t *testing.T) {
	c := newTestClient(t, WithEmbedder(&mockEmbedder{fn: func(context.Context, string) (EmbeddingResult, error) {
		return EmbeddingResult{Embedding: []float32{3, 4}}, nil
	}}))

	vec, err := c.EmbedText(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[1])-0.8) > 1e-6 {
		t.Errorf("expected normalized [0.6 0.8], got %v", vec)
	}
}

func TestEmbedText_EmptyIsInvalid(t *testing.T) {
	c := newTestClient(t, WithLexical(32))
	if _, err := c.EmbedText(context.Background(), "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLexical_TextWithoutTermsIsInvalid(t *testing.T) {
	c := newTestClient(t, WithLexical(32))

	if _, err := c.EmbedText(context.Background(), "!!! ---"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("EmbedText: expected ErrInvalidInput, got %v", err)
	}
	_, err := c.Rank(context.Background(), "???", []Item{{ID: "1", Title: "wallet"}}, RankOptions{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Rank: expected ErrInvalidInput, got %v", err)
	}
	if errors.Is(err, ErrEmbeddingProviderError) {
		t.Error("termless text is a caller error, not a provider error")
	}
}

func TestEmbedTextBatch_IsolatesFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestClient(t, WithEmbedder(axisEmbedder()), WithPrometheus(reg))

	vecs, err := c.EmbedTextBatch(context.Background(), []string{"wallet", "???", "umbrella"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if len(vecs[1]) != 1 || vecs[1][0] != 0 {
		t.Errorf("expected [0] for failed entry, got %v", vecs[1])
	}
	if vecs[0][0] != 1 || vecs[2][1] != 1 {
		t.Errorf("unexpected vectors: %v", vecs)
	}
	if got := testutil.ToFloat64(c.obs.metrics.fallbacks); got != 1 {
		t.Errorf("expected 1 fallback, got %v", got)
	}
}

func TestRank_OrdersAndFallsBack(t *testing.T) {
	c := newTestClient(t, WithEmbedder(axisEmbedder()))

	items := []Item{
		{ID: "a", Title: "Wallet"},
		{ID: "b", Title: "Umbrella"},
		{ID: "c", Title: "Purse"},
		{ID: "d", Title: "Mystery"},
	}
	res, err := c.Rank(context.Background(), "lost wallet", items, RankOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a", "c", "b", "d"}
	if len(res) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(res))
	}
	for i, id := range want {
		if res[i].ID != id {
			t.Errorf("position %d: got %q, want %q", i, res[i].ID, id)
		}
	}
	if res[3].Source != SourceFallback || res[3].Similarity != 0 {
		t.Errorf("expected fallback with similarity 0, got %+v", res[3])
	}
	if res[0].Source != SourceEmbedded {
		t.Errorf("expected embedded source, got %q", res[0].Source)
	}
}

func TestRank_SuppliedVectorsAndOptions(t *testing.T) {
	c := newTestClient(t, WithEmbedder(axisEmbedder()))

	minScore := 0.5
	res, err := c.Rank(context.Background(), "wallet", []Item{
		{ID: "x", Embedding: []float32{2, 0, 0}},
		{ID: "y", Embedding: []float32{0, 0, 1}},
		{ID: "z", Embedding: []float32{1, 1, 0}},
	}, RankOptions{Limit: 1, MinScore: &minScore})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res) != 1 || res[0].ID != "x" || res[0].Source != SourceSupplied {
		t.Fatalf("unexpected results: %+v", res)
	}
	if math.Abs(res[0].Similarity-1) > 1e-6 {
		t.Errorf("expected similarity 1, got %v", res[0].Similarity)
	}
}

func TestRank_QueryFailureIsFatal(t *testing.T) {
	c := newTestClient(t, WithEmbedder(axisEmbedder()))

	_, err := c.Rank(context.Background(), "???", []Item{{ID: "a", Title: "Wallet"}}, RankOptions{})
	if !errors.Is(err, errUnknownText) {
		t.Fatalf("expected query embedding error, got %v", err)
	}
}

func TestRank_InvalidRequest(t *testing.T) {
	c := newTestClient(t, WithLexical(16))

	if _, err := c.Rank(context.Background(), "", nil, RankOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRank_Lexical(t *testing.T) {
	c := newTestClient(t, WithLexical(256))

	res, err := c.Rank(context.Background(), "black leather wallet", []Item{
		{ID: "1", Title: "Umbrella", Description: "red folding umbrella"},
		{ID: "2", Title: "Wallet", Description: "black leather wallet with cards"},
	}, RankOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res[0].ID != "2" {
		t.Errorf("expected wallet first, got %+v", res)
	}
}

func TestWithLexicalCorpus(t *testing.T) {
	cfg := &clientConfig{}
	for _, o := range []Option{
		WithLexical(64),
		WithLexicalCorpus("lost black wallet", "lost blue umbrella"),
		WithLexicalCorpus("lost keys"),
	} {
		o.apply(cfg)
	}
	if len(cfg.corpus) != 3 {
		t.Fatalf("corpus = %q, want 3 documents", cfg.corpus)
	}

	query, document := baseEmbedders(cfg, zap.NewNop())
	l, ok := query.(*lexical.Embedder)
	if !ok || document != query {
		t.Fatalf("expected one shared lexical embedder, got %T/%T", query, document)
	}
	if !l.Weighted() || l.Dimensions() != 64 {
		t.Errorf("expected idf-weighted 64-dim embedder")
	}

	c := newTestClient(t, WithLexical(64), WithLexicalCorpus("lost black wallet", "lost blue umbrella"))
	res, err := c.Rank(context.Background(), "lost wallet", []Item{
		{ID: "u", Title: "lost blue umbrella"},
		{ID: "w", Title: "lost black wallet"},
	}, RankOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res[0].ID != "w" {
		t.Errorf("expected wallet first, got %+v", res)
	}
}

func TestCaption_Heuristic(t *testing.T) {
	c := newTestClient(t, WithLexical(16))

	res, err := c.Caption(context.Background(), solidPNG(t, color.RGBA{R: 250, G: 20, B: 20, A: 255}, 40, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != "heuristic" {
		t.Errorf("expected heuristic source, got %q", res.Source)
	}
	if res.DominantColor != "red" || res.Width != 40 || res.Height != 30 {
		t.Errorf("unexpected features: %+v", res)
	}
	if res.Caption != "A dark red item." {
		t.Errorf("unexpected caption %q", res.Caption)
	}
}

func TestCaption_CustomCaptioner(t *testing.T) {
	c := newTestClient(t, WithLexical(16), WithCaptioner(&mockCaptioner{text: "a blue backpack", ok: true}))

	res, err := c.Caption(context.Background(), solidPNG(t, color.RGBA{B: 255, A: 255}, 8, 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Caption != "A blue backpack." || res.Source != "remote" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestCaption_HuggingFaceRetriesByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"Model is currently loading","estimated_time":1.0}`))
			return
		}
		_, _ = w.Write([]byte(`[{"generated_text":"a blue umbrella"}]`))
	}))
	defer server.Close()

	fastRetry := optionFunc(func(c *clientConfig) { c.hfRetryBase = time.Millisecond })
	c := newTestClient(t, WithLexical(16), WithHuggingFace("hf-token", ""), WithHuggingFaceEndpoint(server.URL), fastRetry)

	res, err := c.Caption(context.Background(), solidPNG(t, color.RGBA{B: 255, A: 255}, 8, 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != "remote" {
		t.Errorf("expected remote caption after retries, got %+v", res)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls with default retries, got %d", calls.Load())
	}
	if got := c.Health(context.Background()).Checks["caption"]; got != "configured" {
		t.Errorf("caption check = %q, want configured", got)
	}
}

func TestCaption_InvalidImage(t *testing.T) {
	c := newTestClient(t, WithLexical(16))

	if _, err := c.Caption(context.Background(), []byte("not an image")); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, WithLexical(16))

	h := c.Health(context.Background())
	if h.Status != "ok" {
		t.Errorf("expected ok, got %+v", h)
	}
	if _, ok := h.Checks["cache"]; ok {
		t.Error("cache check should be absent without WithCache")
	}
}

func TestObserver_MetricsAndLogs(t *testing.T) {
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newTestClient(t, WithLexical(16), WithPrometheus(reg), WithLogger(logger))

	_, _ = c.EmbedText(context.Background(), "wallet")
	_, _ = c.EmbedText(context.Background(), "")

	ops := c.obs.metrics.operations
	if got := testutil.ToFloat64(ops.WithLabelValues("embed_text", "ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("embed_text", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
	if !bytes.Contains(logs.Bytes(), []byte("operation failed")) {
		t.Errorf("expected failure log, got %s", logs.String())
	}
}

func TestWithPrometheus_ReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := newTestClient(t, WithLexical(16), WithPrometheus(reg))
	b := newTestClient(t, WithLexical(16), WithPrometheus(reg))

	if a.obs.metrics.operations != b.obs.metrics.operations {
		t.Error("expected second client to reuse registered collectors")
	}
}
