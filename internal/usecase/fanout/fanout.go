// Package fanout runs independent embedding calls with a hard concurrency
// ceiling and per-task failure isolation.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/vector"
	"github.com/kailas-cloud/vecrank/internal/logger"
)

// Default ceilings, chosen to stay under typical provider rate limits.
const (
	DefaultItemLimit   = 6
	DefaultBatchLimit  = 8
	DefaultCallTimeout = 30 * time.Second
)

// Task pairs a position in the caller's list with the text to embed.
type Task struct {
	Index int
	Text  string
}

// EmbedFunc embeds a single text.
type EmbedFunc func(ctx context.Context, text string) (domain.EmbeddingResult, error)

// Recorder observes fanout activity. Implemented by the metrics package.
type Recorder interface {
	TaskStarted(pool string)
	TaskFinished(pool string, ok bool, d time.Duration)
}

// Outcome is the gathered result of one Run.
type Outcome struct {
	// Vectors maps task index to its vector. Every task index is present.
	Vectors map[int][]float32
	// Failed holds the indexes that received the zero sentinel.
	Failed map[int]error
}

// OK reports whether the task at index produced a real embedding.
func (o Outcome) OK(index int) bool {
	_, failed := o.Failed[index]
	return !failed
}

// Runner is a scatter/gather executor with a concurrency ceiling.
// It holds no per-request state and is safe for concurrent use.
type Runner struct {
	pool     string
	limit    int
	timeout  time.Duration
	recorder Recorder
}

// New creates a Runner. pool names the runner in logs and metrics.
// Non-positive limit or timeout fall back to the defaults.
func New(pool string, limit int, timeout time.Duration) *Runner {
	if limit <= 0 {
		limit = DefaultItemLimit
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Runner{pool: pool, limit: limit, timeout: timeout}
}

// WithRecorder attaches a metrics recorder.
func (r *Runner) WithRecorder(rec Recorder) *Runner {
	r.recorder = rec
	return r
}

// Limit returns the concurrency ceiling.
func (r *Runner) Limit() int { return r.limit }

// Run embeds every task with at most Limit calls in flight and waits for all of them.
// A failed, timed-out or empty embedding is replaced by vector.Zero(sentinelDim);
// Run itself never fails. Tasks still queued when ctx is done are not started
// and receive the sentinel.
func (r *Runner) Run(ctx context.Context, tasks []Task, embed EmbedFunc, sentinelDim int) Outcome {
	out := Outcome{
		Vectors: make(map[int][]float32, len(tasks)),
		Failed:  make(map[int]error),
	}
	if len(tasks) == 0 {
		return out
	}

	var mu sync.Mutex
	set := func(idx int, vec []float32, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			out.Vectors[idx] = vector.Zero(sentinelDim)
			out.Failed[idx] = err
			return
		}
		out.Vectors[idx] = vec
	}

	// errgroup is used only for its limiter; tasks never return errors so one
	// failure cannot cancel its siblings.
	var g errgroup.Group
	g.SetLimit(r.limit)

	for _, task := range tasks {
		if ctx.Err() != nil {
			set(task.Index, nil, fmt.Errorf("not started: %w", ctx.Err()))
			continue
		}
		g.Go(func() error {
			vec, err := r.embedOne(ctx, task, embed)
			set(task.Index, vec, err)
			return nil
		})
	}
	_ = g.Wait()

	if len(out.Failed) > 0 {
		logger.FromContext(ctx).Warn("Fanout completed with failures",
			zap.String("pool", r.pool),
			zap.Int("tasks", len(tasks)),
			zap.Int("failed", len(out.Failed)),
		)
	}
	return out
}

func (r *Runner) embedOne(ctx context.Context, task Task, embed EmbedFunc) (vec []float32, err error) {
	start := time.Now()
	if r.recorder != nil {
		r.recorder.TaskStarted(r.pool)
		defer func() { r.recorder.TaskFinished(r.pool, err == nil, time.Since(start)) }()
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("not started: %w", ctx.Err())
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := embed(callCtx, task.Text)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
			err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
		}
		logger.FromContext(ctx).Debug("Fanout task failed",
			zap.String("pool", r.pool),
			zap.Int("index", task.Index),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingProviderError)
	}
	return res.Embedding, nil
}
