package chi

import (
	"context"

	"github.com/kailas-cloud/vecrank/internal/domain/item"
	"github.com/kailas-cloud/vecrank/internal/domain/ranking/request"
	"github.com/kailas-cloud/vecrank/internal/domain/ranking/result"
	captionuc "github.com/kailas-cloud/vecrank/internal/usecase/caption"
	healthuc "github.com/kailas-cloud/vecrank/internal/usecase/health"
)

// TextEmbedder turns text into normalized vectors.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, int, error)
	EmbedTextBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Ranker orders items by similarity to a query.
type Ranker interface {
	Rank(ctx context.Context, req request.Request, items []item.Item) ([]result.Result, error)
}

// CaptionService captions uploaded images.
type CaptionService interface {
	Caption(ctx context.Context, data []byte) (captionuc.Result, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
