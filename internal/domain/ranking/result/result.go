package result

import "github.com/kailas-cloud/vecrank/internal/domain/item"

// Source records where the vector used for scoring came from.
type Source string

// Vector source values.
const (
	// SourceSupplied means the caller's pre-computed vector was used.
	SourceSupplied Source = "supplied"
	// SourceEmbedded means the item text was embedded during the request.
	SourceEmbedded Source = "embedded"
	// SourceFallback means embedding failed and the zero sentinel was scored.
	SourceFallback Source = "fallback"
)

// Result is a single ranked item.
type Result struct {
	id         string
	similarity float64
	display    item.Display
	source     Source
}

// New creates a ranked result.
func New(id string, similarity float64, display item.Display, source Source) Result {
	return Result{id: id, similarity: similarity, display: display, source: source}
}

// ID returns the original item identifier.
func (r *Result) ID() string { return r.id }

// Similarity returns the cosine similarity against the query (not clamped).
func (r *Result) Similarity() float64 { return r.similarity }

// Display returns the copied presentation fields.
func (r *Result) Display() item.Display { return r.display }

// Source returns where the scored vector came from.
func (r *Result) Source() Source { return r.source }
