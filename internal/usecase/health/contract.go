package health

import "context"

// EmbeddingChecker verifies the embedding backend is reachable.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks embedding cache connectivity.
type CachePinger interface {
	Ping(ctx context.Context) error
}
