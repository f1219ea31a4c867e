package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/item"
	"github.com/kailas-cloud/vecrank/internal/domain/ranking/request"
	"github.com/kailas-cloud/vecrank/internal/logger"
	"github.com/kailas-cloud/vecrank/internal/version"
)

// Request size limits.
const (
	DefaultMaxItems       = 1000
	DefaultMaxUploadBytes = 10 << 20
	maxJSONBodyBytes      = 32 << 20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the embedding, ranking and captioning operations over HTTP.
type Server struct {
	embeddings     TextEmbedder
	ranking        Ranker
	captions       CaptionService
	health         HealthChecker
	maxItems       int
	maxUploadBytes int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// Options tunes request limits. Zero values take the defaults.
type Options struct {
	MaxItems       int
	MaxUploadBytes int64
}

// NewServer creates an HTTP API server.
func NewServer(
	embeddings TextEmbedder,
	ranking Ranker,
	captions CaptionService,
	health HealthChecker,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		embeddings:     embeddings,
		ranking:        ranking,
		captions:       captions,
		health:         health,
		maxItems:       opts.MaxItems,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidImage, http.StatusBadRequest, ErrorResponseCodeInvalidImage),
		sentinelHandler(domain.ErrBackendUnavailable,
			http.StatusServiceUnavailable, ErrorResponseCodeBackendUnavailable),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, ErrorResponseCodeTimeout),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorResponseCodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorResponseCodeProviderError),
		sentinelHandler(domain.ErrCaptionProviderError, http.StatusBadGateway, ErrorResponseCodeProviderError),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chirouter.Router) {
	r.Get("/", s.Index)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Post("/caption", s.Caption)
	r.Post("/embedding", s.Embedding)
	r.Post("/embeddings/batch", s.BatchEmbeddings)
	r.Post("/search", s.Search)
}

// Index handles GET /.
func (s *Server) Index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, IndexResponse{
		Message: "vecrank: text embeddings, similarity ranking and image captions",
		Version: version.Version,
		Endpoints: map[string]string{
			"caption":          "/caption",
			"embedding":        "/embedding",
			"embeddings_batch": "/embeddings/batch",
			"search":           "/search",
			"health":           "/health",
			"metrics":          "/metrics",
		},
	})
}

// Embedding handles POST /embedding.
func (s *Server) Embedding(w http.ResponseWriter, r *http.Request) {
	var req EmbeddingRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "text is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	vec, dim, err := s.embeddings.EmbedText(ctx, req.Text)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, EmbeddingResponse{Success: true, Embedding: vec, Dimension: dim})
}

// BatchEmbeddings handles POST /embeddings/batch.
func (s *Server) BatchEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req BatchEmbeddingRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "texts list is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	vecs, err := s.embeddings.EmbedTextBatch(ctx, req.Texts)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, BatchEmbeddingResponse{Success: true, Embeddings: vecs, Count: len(vecs)})
}

// Search handles POST /search?limit=&min_score=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var params struct {
		Limit    *int
		MinScore *float64
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid format for parameter limit: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "min_score", r.URL.Query(), &params.MinScore); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest,
			"Invalid format for parameter min_score: "+err.Error())
		return
	}

	var req SearchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.ItemDescriptions) > s.maxItems {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed,
			fmt.Sprintf("item_descriptions must contain at most %d items", s.maxItems))
		return
	}

	limit := 0
	if params.Limit != nil {
		if *params.Limit <= 0 {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "limit must be positive")
			return
		}
		limit = *params.Limit
	}

	rankReq, err := request.New(req.Query, limit, params.MinScore)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, err.Error())
		return
	}

	items := make([]item.Item, len(req.ItemDescriptions))
	for i := range req.ItemDescriptions {
		items[i] = itemFromDTO(&req.ItemDescriptions[i])
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.ranking.Rank(ctx, rankReq, items)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := make([]SearchResultItem, len(results))
	for i := range results {
		out[i] = searchResultToDTO(&results[i])
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{Success: true, Results: out, Count: len(out)})
}

// Caption handles POST /caption (multipart form, field "file").
func (s *Server) Caption(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "file is required")
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt != "application/octet-stream" &&
			!strings.HasPrefix(mt, "image/") {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeInvalidImage, "file must be an image")
			return
		}
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Failed to read upload")
		return
	}
	if int64(len(data)) > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, ErrorResponseCodeValidationFailed,
			fmt.Sprintf("file exceeds %d bytes", s.maxUploadBytes))
		return
	}

	res, err := s.captions.Caption(r.Context(), data)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, captionToDTO(&res))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	b := report.Backends
	// Degraded still answers 200: captioning keeps working without embeddings.
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:              string(report.Status),
		Checks:              checks,
		EmbeddingConfigured: b.EmbeddingConfigured,
		EmbeddingProvider:   b.EmbeddingProvider,
		EmbeddingModel:      b.EmbeddingModel,
		CaptionConfigured:   b.CaptionConfigured,
		CaptionModel:        b.CaptionModel,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// domainSentinels are the errors whose text is safe to show clients.
var domainSentinels = []error{
	domain.ErrInvalidInput,
	domain.ErrInvalidImage,
	domain.ErrBackendUnavailable,
	domain.ErrTimeout,
	domain.ErrRateLimited,
	domain.ErrEmbeddingProviderError,
	domain.ErrCaptionProviderError,
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range domainSentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}
