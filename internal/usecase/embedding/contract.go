package embedding

import (
	"context"

	"github.com/kailas-cloud/vecrank/internal/usecase/fanout"
)

// BatchRunner runs independent embed calls under a concurrency ceiling.
type BatchRunner interface {
	Run(ctx context.Context, tasks []fanout.Task, embed fanout.EmbedFunc, sentinelDim int) fanout.Outcome
}
