package ranking

import (
	"context"

	"github.com/kailas-cloud/vecrank/internal/usecase/fanout"
)

// ItemRunner fills missing item vectors under a concurrency ceiling.
type ItemRunner interface {
	Run(ctx context.Context, tasks []fanout.Task, embed fanout.EmbedFunc, sentinelDim int) fanout.Outcome
}
