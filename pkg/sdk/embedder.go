package vecrank

import "context"

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Captioner describes an image in natural language.
// ok=false means the backend has no caption for this image; the client then
// falls back to a heuristic color/brightness caption.
type Captioner interface {
	Caption(ctx context.Context, image []byte) (caption string, ok bool, err error)
}
