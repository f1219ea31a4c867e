package chi

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/kailas-cloud/vecrank/internal/domain/item"
	"github.com/kailas-cloud/vecrank/internal/domain/ranking/result"
	captionuc "github.com/kailas-cloud/vecrank/internal/usecase/caption"
)

// ErrorResponseCode is a machine-readable error code returned to clients.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest         ErrorResponseCode = "bad_request"
	ErrorResponseCodeValidationFailed   ErrorResponseCode = "validation_failed"
	ErrorResponseCodeInvalidImage       ErrorResponseCode = "invalid_image"
	ErrorResponseCodeBackendUnavailable ErrorResponseCode = "backend_unavailable"
	ErrorResponseCodeProviderError      ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeRateLimited        ErrorResponseCode = "rate_limited"
	ErrorResponseCodeTimeout            ErrorResponseCode = "backend_timeout"
	ErrorResponseCodeInternalError      ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// EmbeddingRequest is the body of POST /embedding.
type EmbeddingRequest struct {
	Text string `json:"text"`
}

// EmbeddingResponse is the reply of POST /embedding.
type EmbeddingResponse struct {
	Success   bool      `json:"success"`
	Embedding []float32 `json:"embedding"`
	Dimension int       `json:"dimension"`
}

// BatchEmbeddingRequest is the body of POST /embeddings/batch.
type BatchEmbeddingRequest struct {
	Texts []string `json:"texts"`
}

// BatchEmbeddingResponse is the reply of POST /embeddings/batch.
type BatchEmbeddingResponse struct {
	Success    bool        `json:"success"`
	Embeddings [][]float32 `json:"embeddings"`
	Count      int         `json:"count"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query            string    `json:"query"`
	ItemDescriptions []ItemDTO `json:"item_descriptions"`
}

// ItemDTO is a caller-supplied ranking candidate. Either id or _id identifies it.
// Fields are kept raw so that one malformed item degrades on its own instead
// of failing the whole request: scalars are rendered as text, a non-object user
// is dropped and an unusable embedding is treated as absent.
type ItemDTO struct {
	ID          json.RawMessage `json:"id,omitempty"`
	LegacyID    json.RawMessage `json:"_id,omitempty"`
	Title       json.RawMessage `json:"title,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
	Category    json.RawMessage `json:"category,omitempty"`
	Location    json.RawMessage `json:"location,omitempty"`
	Type        json.RawMessage `json:"type,omitempty"`
	ImageURL    json.RawMessage `json:"imageUrl,omitempty"`
	CreatedAt   json.RawMessage `json:"createdAt,omitempty"`
	User        json.RawMessage `json:"user,omitempty"`
	Embedding   json.RawMessage `json:"embedding,omitempty"`
}

// SearchResultItem is one ranked item.
type SearchResultItem struct {
	ItemID       string         `json:"item_id"`
	Similarity   float64        `json:"similarity"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Location     string         `json:"location"`
	Type         string         `json:"type"`
	ImageURL     string         `json:"imageUrl"`
	CreatedAt    string         `json:"createdAt"`
	User         map[string]any `json:"user"`
	VectorSource string         `json:"vector_source"`
}

// SearchResponse is the reply of POST /search.
type SearchResponse struct {
	Success bool               `json:"success"`
	Results []SearchResultItem `json:"results"`
	Count   int                `json:"count"`
}

// CaptionFeatures are the heuristic image features.
type CaptionFeatures struct {
	DominantColor string  `json:"dominant_color"`
	Brightness    float64 `json:"brightness"`
	Size          [2]int  `json:"size"`
}

// CaptionResponse is the reply of POST /caption.
type CaptionResponse struct {
	Success         bool            `json:"success"`
	Caption         string          `json:"caption"`
	OriginalCaption string          `json:"original_caption"`
	Source          string          `json:"source"`
	Features        CaptionFeatures `json:"features"`
}

// HealthResponse is the reply of GET /health.
type HealthResponse struct {
	Status              string            `json:"status"`
	Checks              map[string]string `json:"checks"`
	EmbeddingConfigured bool              `json:"embedding_configured"`
	EmbeddingProvider   string            `json:"embedding_provider,omitempty"`
	EmbeddingModel      string            `json:"embedding_model,omitempty"`
	CaptionConfigured   bool              `json:"caption_configured"`
	CaptionModel        string            `json:"caption_model,omitempty"`
}

// IndexResponse is the reply of GET /.
type IndexResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

func itemFromDTO(d *ItemDTO) item.Item {
	id := flexString(d.ID)
	if id == "" {
		id = flexString(d.LegacyID)
	}
	return item.New(id, item.Display{
		Title:       flexString(d.Title),
		Description: flexString(d.Description),
		Category:    flexString(d.Category),
		Location:    flexString(d.Location),
		Type:        flexString(d.Type),
		ImageURL:    flexString(d.ImageURL),
		CreatedAt:   flexString(d.CreatedAt),
		User:        flexObject(d.User),
	}, flexVector(d.Embedding))
}

func searchResultToDTO(r *result.Result) SearchResultItem {
	d := r.Display()
	user := d.User
	if user == nil {
		user = map[string]any{}
	}
	return SearchResultItem{
		ItemID:       r.ID(),
		Similarity:   r.Similarity(),
		Title:        d.Title,
		Description:  d.Description,
		Category:     d.Category,
		Location:     d.Location,
		Type:         d.Type,
		ImageURL:     d.ImageURL,
		CreatedAt:    d.CreatedAt,
		User:         user,
		VectorSource: string(r.Source()),
	}
}

func captionToDTO(res *captionuc.Result) CaptionResponse {
	return CaptionResponse{
		Success:         true,
		Caption:         res.Caption,
		OriginalCaption: res.OriginalCaption,
		Source:          res.Source,
		Features: CaptionFeatures{
			DominantColor: res.Features.DominantColor,
			Brightness:    res.Features.Brightness,
			Size:          [2]int{res.Features.Width, res.Features.Height},
		},
	}
}

// flexString renders a JSON scalar as text: strings unquoted, numbers and
// other values verbatim, null and absent as "".
func flexString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// flexObject decodes a JSON object; anything else yields nil.
func flexObject(raw json.RawMessage) map[string]any {
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return nil
	}
	return m
}

// flexVector decodes a JSON array of numbers into float32. It returns nil,
// meaning "no usable vector", when the value is not an array, holds a
// non-number or null element, or holds a value outside the float32 range.
func flexVector(raw json.RawMessage) []float32 {
	var elems []json.RawMessage
	if json.Unmarshal(raw, &elems) != nil || len(elems) == 0 {
		return nil
	}
	vec := make([]float32, len(elems))
	for i, e := range elems {
		var f float64
		if bytes.Equal(bytes.TrimSpace(e), []byte("null")) || json.Unmarshal(e, &f) != nil {
			return nil
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxFloat32 {
			return nil
		}
		vec[i] = float32(f)
	}
	return vec
}
