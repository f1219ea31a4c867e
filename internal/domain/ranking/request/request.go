package request

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/vecrank/internal/domain"
)

// MaxQueryLength is the maximum allowed query length in bytes.
const MaxQueryLength = 8192

// Request is a validated ranking query.
type Request struct {
	query       string
	limit       int
	minScore    float64
	hasMinScore bool
}

// New validates and normalizes ranking parameters.
// limit <= 0 means "return every item"; minScore nil disables score filtering.
func New(query string, limit int, minScore *float64) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d bytes): %w", MaxQueryLength, domain.ErrInvalidInput)
	}
	if limit < 0 {
		limit = 0
	}

	r := Request{query: query, limit: limit}
	if minScore != nil {
		if math.IsNaN(*minScore) || *minScore < -1 || *minScore > 1 {
			return Request{}, fmt.Errorf("min_score must be between -1 and 1: %w", domain.ErrInvalidInput)
		}
		r.minScore = *minScore
		r.hasMinScore = true
	}
	return r, nil
}

// Query returns the trimmed query text.
func (r *Request) Query() string { return r.query }

// Limit returns the maximum number of results, 0 for unlimited.
func (r *Request) Limit() int { return r.limit }

// MinScore returns the similarity threshold and whether one was requested.
func (r *Request) MinScore() (float64, bool) { return r.minScore, r.hasMinScore }
