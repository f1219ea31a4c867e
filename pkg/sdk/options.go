package vecrank

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

const (
	providerOpenAI  = "openai"
	providerVoyage  = "voyage"
	providerLexical = "lexical"
	providerCustom  = "custom"
)

type clientConfig struct {
	provider   string
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	embedder   Embedder
	corpus     []string

	queryInstruction    string
	documentInstruction string

	itemConcurrency  int
	batchConcurrency int
	callTimeout      time.Duration
	maxBatchSize     int

	hfToken     string
	hfModel     string
	hfBaseURL   string
	hfRetryBase time.Duration
	captioner   Captioner

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithOpenAI uses an OpenAI-compatible embeddings endpoint. An empty baseURL
// targets api.openai.com; Gemini and Nebius expose compatible endpoints.
func WithOpenAI(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = providerOpenAI
		c.apiKey = apiKey
		c.baseURL = baseURL
		c.model = model
	})
}

// WithVoyage uses Voyage AI embeddings with query/document input types.
func WithVoyage(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = providerVoyage
		c.apiKey = apiKey
		c.model = model
	})
}

// WithLexical uses the local hashed TF-IDF embedder. No credentials needed.
// dims <= 0 uses 512.
func WithLexical(dims int) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = providerLexical
		c.dimensions = dims
		c.model = "hashed-tfidf"
	})
}

// WithLexicalCorpus fits the lexical embedder's idf weights on docs, typically
// the item texts the client will rank. Ignored by other providers.
func WithLexicalCorpus(docs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.corpus = append(c.corpus, docs...)
	})
}

// WithEmbedder sets a custom text embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = providerCustom
		c.embedder = e
	})
}

// WithDimensions requests a specific output size from providers that support it.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithInstructions prepends instruction text to queries and items before embedding.
func WithInstructions(query, document string) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryInstruction = query
		c.documentInstruction = document
	})
}

// WithConcurrency sets the ceilings for concurrent item embedding during
// Rank and for EmbedTextBatch. Defaults: 6 and 8.
func WithConcurrency(items, batch int) Option {
	return optionFunc(func(c *clientConfig) {
		c.itemConcurrency = items
		c.batchConcurrency = batch
	})
}

// WithTimeout sets the per-call deadline for every backend call. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.callTimeout = d
	})
}

// WithMaxBatchSize caps the number of texts per EmbedTextBatch call. Default: 256.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithHuggingFace enables remote captioning through the Hugging Face
// inference API. An empty model uses Salesforce/blip-image-captioning-base.
func WithHuggingFace(token, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.hfToken = token
		c.hfModel = model
	})
}

// WithHuggingFaceEndpoint points remote captioning at a self-hosted or
// dedicated inference endpoint instead of the public inference API.
func WithHuggingFaceEndpoint(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.hfBaseURL = baseURL
	})
}

// WithCaptioner sets a custom remote captioner.
func WithCaptioner(cp Captioner) Option {
	return optionFunc(func(c *clientConfig) {
		c.captioner = cp
	})
}

// WithCache caches embeddings in Redis or Valkey. ttl of zero keeps entries forever.
func WithCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
