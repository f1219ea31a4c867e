// Package lexical is a local, credential-free text embedder: hashed term
// frequencies with optional inverse document frequency weights.
package lexical

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/vecrank/internal/domain"
)

// DefaultDimensions is the hashed feature space size.
const DefaultDimensions = 512

// Embedder maps text to a signed hashed bag of unigrams and bigrams.
// Weights are fixed at construction, so an Embedder is safe for concurrent use.
type Embedder struct {
	dims int
	idf  map[uint32]float64
	base float64 // idf for buckets absent from the corpus
}

// NewEmbedder creates a lexical embedder. dims <= 0 uses DefaultDimensions.
// A non-empty corpus enables smoothed idf weighting fitted from its
// documents; without one the embedder uses plain term frequencies.
func NewEmbedder(dims int, corpus ...string) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	e := &Embedder{dims: dims, base: 1}
	if len(corpus) > 0 {
		e.fit(corpus)
	}
	return e
}

// Dimensions returns the output vector length.
func (e *Embedder) Dimensions() int { return e.dims }

// Weighted reports whether idf weights were fitted from a corpus.
func (e *Embedder) Weighted() bool { return e.idf != nil }

func (e *Embedder) fit(docs []string) {
	df := make(map[uint32]int)
	for _, d := range docs {
		seen := make(map[uint32]struct{})
		for _, term := range terms(d) {
			seen[e.bucket(term)] = struct{}{}
		}
		for b := range seen {
			df[b]++
		}
	}

	n := float64(len(docs))
	e.idf = make(map[uint32]float64, len(df))
	for b, c := range df {
		e.idf[b] = math.Log((1+n)/(1+float64(c))) + 1
	}
	e.base = math.Log(1+n) + 1
}

// Embed implements domain.Embedder. Text without any letters or digits is
// rejected as invalid input so callers can fall back instead of scoring a
// zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("lexical embed: %w: %w", domain.ErrTimeout, err)
	}

	toks := terms(text)
	if len(toks) == 0 {
		return domain.EmbeddingResult{}, fmt.Errorf("lexical embed: text has no indexable terms: %w", domain.ErrInvalidInput)
	}

	tf := make(map[string]int, len(toks))
	for _, t := range toks {
		tf[t]++
	}

	vec := make([]float32, e.dims)
	for term, count := range tf {
		b := e.bucket(term)
		w := (1 + math.Log(float64(count))) * e.weight(b)
		if signOf(term) {
			w = -w
		}
		vec[b] += float32(w)
	}

	return domain.EmbeddingResult{Embedding: vec, PromptTokens: len(toks), TotalTokens: len(toks)}, nil
}

// HealthCheck always succeeds; the embedder has no remote dependency.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) weight(b uint32) float64 {
	if e.idf == nil {
		return 1
	}
	if w, ok := e.idf[b]; ok {
		return w
	}
	return e.base
}

func (e *Embedder) bucket(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return h.Sum32() % uint32(e.dims)
}

// signOf spreads collisions around zero so colliding terms tend to cancel.
func signOf(term string) bool {
	h := fnv.New32()
	_, _ = h.Write([]byte(term))
	return h.Sum32()&1 == 1
}

// terms lowercases, splits on non-alphanumerics and appends adjacent-word bigrams.
func terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, 2*len(words))
	out = append(out, words...)
	for i := 1; i < len(words); i++ {
		out = append(out, words[i-1]+" "+words[i])
	}
	return out
}
