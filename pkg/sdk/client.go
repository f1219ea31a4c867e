package vecrank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/db"
	dbRedis "github.com/kailas-cloud/vecrank/internal/db/redis"
	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/item"
	"github.com/kailas-cloud/vecrank/internal/domain/ranking/request"
	"github.com/kailas-cloud/vecrank/internal/domain/ranking/result"
	"github.com/kailas-cloud/vecrank/internal/domain/vector"
	"github.com/kailas-cloud/vecrank/internal/repository/embcache"
	"github.com/kailas-cloud/vecrank/internal/transport/huggingface"
	"github.com/kailas-cloud/vecrank/internal/transport/imaging"
	"github.com/kailas-cloud/vecrank/internal/transport/lexical"
	openaiEmb "github.com/kailas-cloud/vecrank/internal/transport/openai"
	"github.com/kailas-cloud/vecrank/internal/transport/voyage"
	captionuc "github.com/kailas-cloud/vecrank/internal/usecase/caption"
	embeddinguc "github.com/kailas-cloud/vecrank/internal/usecase/embedding"
	"github.com/kailas-cloud/vecrank/internal/usecase/fanout"
	healthuc "github.com/kailas-cloud/vecrank/internal/usecase/health"
	rankinguc "github.com/kailas-cloud/vecrank/internal/usecase/ranking"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultItemConcurrency  = 6
	defaultBatchConcurrency = 8
)

// Internal interfaces so tests can swap the use cases.
type embeddingUseCase interface {
	EmbedText(ctx context.Context, text string) ([]float32, int, error)
	EmbedTextBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type rankingUseCase interface {
	Rank(ctx context.Context, req request.Request, items []item.Item) ([]result.Result, error)
}

type captionUseCase interface {
	Caption(ctx context.Context, data []byte) (captionuc.Result, error)
}

// Client is the vecrank SDK entry point.
type Client struct {
	store      db.Store
	embedSvc   embeddingUseCase
	rankSvc    rankingUseCase
	captionSvc captionUseCase
	healthSvc  healthUseCase
	obs        *observer
}

// New creates a Client. An embedding provider option is required; captioning
// works with heuristics alone. The context bounds the cache readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		itemConcurrency:  defaultItemConcurrency,
		batchConcurrency: defaultBatchConcurrency,
		callTimeout:      embeddinguc.DefaultCallTimeout,
		maxBatchSize:     embeddinguc.DefaultMaxBatchSize,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.provider == "" {
		return nil, errors.New("vecrank: embedding provider required (use WithOpenAI, WithVoyage, WithLexical or WithEmbedder)")
	}
	if cfg.provider == providerCustom && cfg.embedder == nil {
		return nil, errors.New("vecrank: WithEmbedder requires a non-nil embedder")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if len(cfg.cacheAddrs) > 0 {
		store, err = createStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	return wireClient(store, cfg, obs), nil
}

func createStore(ctx context.Context, cfg *clientConfig) (db.Store, error) {
	s, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.cacheAddrs,
		Password: cfg.cachePassword,
	})
	if err != nil {
		return nil, fmt.Errorf("vecrank: create cache store: %w", err)
	}
	if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("vecrank: cache not ready: %w", err)
	}
	return s, nil
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	logger := zap.NewNop()
	query, document := baseEmbedders(cfg, logger)
	queryEmb := decorate(query, cfg, cfg.queryInstruction, store, logger)
	itemEmb := decorate(document, cfg, cfg.documentInstruction, store, logger)

	items := fanout.New("items", cfg.itemConcurrency, cfg.callTimeout)
	batch := fanout.New("batch", cfg.batchConcurrency, cfg.callTimeout)

	// Pass nil interface (not typed nil pointer!) when remote captioning is off.
	var captioner domain.Captioner
	var captionModel string
	switch {
	case cfg.captioner != nil:
		captioner = &captionerAdapter{inner: cfg.captioner}
	case cfg.hfToken != "":
		hf := huggingface.NewCaptioner(&huggingface.Config{
			APIToken:   cfg.hfToken,
			Model:      cfg.hfModel,
			BaseURL:    cfg.hfBaseURL,
			MaxRetries: huggingface.DefaultMaxRetries,
			RetryBase:  cfg.hfRetryBase,
			Logger:     logger,
		})
		captioner, captionModel = hf, hf.Model()
	}
	captionSvc := captionuc.New(imaging.New(imaging.DefaultMaxPixels), captioner, cfg.callTimeout)

	var cache healthuc.CachePinger
	if store != nil {
		cache = store
	}
	healthSvc := healthuc.New(healthCheckerFor(queryEmb), cache, healthuc.Backends{
		EmbeddingConfigured: true,
		EmbeddingProvider:   cfg.provider,
		EmbeddingModel:      cfg.model,
		CaptionConfigured:   captionSvc.RemoteConfigured(),
		CaptionModel:        captionModel,
	})

	return &Client{
		store:      store,
		embedSvc:   embeddinguc.New(itemEmb, batch, cfg.maxBatchSize),
		rankSvc:    rankinguc.New(queryEmb, itemEmb, items),
		captionSvc: captionSvc,
		healthSvc:  healthSvc,
		obs:        obs,
	}
}

func baseEmbedders(cfg *clientConfig, logger *zap.Logger) (query, document domain.Embedder) {
	switch cfg.provider {
	case providerOpenAI:
		e := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.apiKey,
			BaseURL:    cfg.baseURL,
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
			Provider:   providerOpenAI,
			Logger:     logger,
		})
		return e, e
	case providerVoyage:
		v := voyage.NewEmbedder(&voyage.Config{
			APIKey:     cfg.apiKey,
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
			Logger:     logger,
		})
		return v.WithInputType(voyage.InputQuery), v.WithInputType(voyage.InputDocument)
	case providerLexical:
		l := lexical.NewEmbedder(cfg.dimensions, cfg.corpus...)
		return l, l
	default:
		a := &embedderAdapter{inner: cfg.embedder}
		return a, a
	}
}

// decorate assembles provider -> Cached -> Instrumented -> Instruction.
func decorate(base domain.Embedder, cfg *clientConfig, instruction string, store db.Store, logger *zap.Logger) domain.Embedder {
	emb := base
	if store != nil {
		emb = embcache.New(emb, store, embcache.Options{Model: cfg.model, TTL: cfg.cacheTTL}, nil, logger)
	}
	emb = embeddinguc.NewInstrumentedEmbedder(emb, cfg.provider, cfg.model, cfg.callTimeout, logger)
	if instruction != "" {
		return domain.NewInstructionEmbedder(emb, instruction)
	}
	return emb
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// EmbedText returns the unit-length embedding of text.
func (c *Client) EmbedText(ctx context.Context, text string) (vec []float32, err error) {
	start := time.Now()
	defer func() { c.obs.observe("embed_text", start, err) }()

	vec, _, err = c.embedSvc.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return vec, nil
}

// EmbedTextBatch embeds texts concurrently. The result is index-aligned with
// texts; an entry whose embedding failed is [0].
func (c *Client) EmbedTextBatch(ctx context.Context, texts []string) (vecs [][]float32, err error) {
	start := time.Now()
	var fallbacks int
	defer func() { c.obs.observe("embed_text_batch", start, err, "count", len(texts), "fallbacks", fallbacks) }()

	vecs, err = c.embedSvc.EmbedTextBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed text batch: %w", err)
	}
	for i, v := range vecs {
		if len(v) == 1 && vector.IsZero(v) && strings.TrimSpace(texts[i]) != "" {
			fallbacks++
		}
	}
	c.obs.fallback(fallbacks)
	return vecs, nil
}

// Rank orders items by cosine similarity to query, most similar first.
// Only a failure to embed the query fails the call.
func (c *Client) Rank(ctx context.Context, query string, items []Item, opts RankOptions) (out []RankResult, err error) {
	start := time.Now()
	var fallbacks int
	defer func() { c.obs.observe("rank", start, err, "items", len(items), "fallbacks", fallbacks) }()

	req, err := request.New(query, opts.Limit, opts.MinScore)
	if err != nil {
		return nil, fmt.Errorf("rank request: %w", err)
	}

	domItems := make([]item.Item, len(items))
	for i := range items {
		domItems[i] = itemToDomain(items[i])
	}

	results, err := c.rankSvc.Rank(ctx, req, domItems)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	out = make([]RankResult, len(results))
	for i := range results {
		out[i] = resultFromDomain(&results[i])
		if out[i].Source == SourceFallback {
			fallbacks++
		}
	}
	c.obs.fallback(fallbacks)
	return out, nil
}

// Caption describes an image. Remote captioning is used when configured and
// falls back to a color/brightness heuristic.
func (c *Client) Caption(ctx context.Context, image []byte) (res CaptionResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("caption", start, err, "source", res.Source) }()

	r, err := c.captionSvc.Caption(ctx, image)
	if err != nil {
		return CaptionResult{}, fmt.Errorf("caption: %w", err)
	}
	return CaptionResult{
		Caption:         r.Caption,
		OriginalCaption: r.OriginalCaption,
		DominantColor:   r.Features.DominantColor,
		Brightness:      r.Features.Brightness,
		Width:           r.Features.Width,
		Height:          r.Features.Height,
		Source:          r.Source,
	}, nil
}

func itemToDomain(it Item) item.Item {
	return item.New(it.ID, item.Display{
		Title:       it.Title,
		Description: it.Description,
		Category:    it.Category,
		Location:    it.Location,
		Type:        it.Type,
		ImageURL:    it.ImageURL,
		CreatedAt:   it.CreatedAt,
		User:        it.User,
	}, it.Embedding)
}

func resultFromDomain(r *result.Result) RankResult {
	d := r.Display()
	return RankResult{
		ID:          r.ID(),
		Similarity:  r.Similarity(),
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Location:    d.Location,
		Type:        d.Type,
		ImageURL:    d.ImageURL,
		CreatedAt:   d.CreatedAt,
		User:        d.User,
		Source:      VectorSource(r.Source()),
	}
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// captionerAdapter wraps public Captioner to satisfy internal domain.Captioner.
type captionerAdapter struct {
	inner Captioner
}

func (a *captionerAdapter) Caption(ctx context.Context, image []byte) (string, bool, error) {
	text, ok, err := a.inner.Caption(ctx, image)
	if err != nil {
		return "", false, fmt.Errorf("caption: %w", err)
	}
	return text, ok, nil
}
