package caption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/domain"
	domcaption "github.com/kailas-cloud/vecrank/internal/domain/caption"
	"github.com/kailas-cloud/vecrank/internal/logger"
	"github.com/kailas-cloud/vecrank/internal/metrics"
)

// DefaultCallTimeout bounds one remote captioning call.
const DefaultCallTimeout = 30 * time.Second

// Caption sources reported in Result.Source and metrics.
const (
	SourceRemote    = "remote"
	SourceHeuristic = "heuristic"
)

// Result is the outcome of captioning one image.
type Result struct {
	// Caption is the enhanced final caption.
	Caption string
	// OriginalCaption is the heuristic caption, always computed.
	OriginalCaption string
	Features        domcaption.Features
	Source          string
}

// Service produces captions from image bytes.
type Service struct {
	images    ImageProcessor
	captioner domain.Captioner
	timeout   time.Duration
}

// New creates a caption service. captioner may be nil, in which case only the
// heuristic caption is produced.
func New(images ImageProcessor, captioner domain.Captioner, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Service{images: images, captioner: captioner, timeout: timeout}
}

// RemoteConfigured reports whether a remote captioner is wired in.
func (s *Service) RemoteConfigured() bool {
	return s.captioner != nil
}

// Caption decodes data, computes heuristic features and asks the remote
// captioner for a better caption. Remote failures fall back to the heuristic;
// only undecodable input is an error.
func (s *Service) Caption(ctx context.Context, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("empty upload: %w", domain.ErrInvalidImage)
	}

	img, err := s.images.Decode(data)
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	sample := s.images.Downsample(img, domcaption.SampleSize, domcaption.SampleSize)
	features := domcaption.Analyze(sample, bounds.Dx(), bounds.Dy())
	basic := features.BasicCaption()

	raw, source := basic, SourceHeuristic
	if remote, ok := s.remoteCaption(ctx, data); ok {
		raw, source = remote, SourceRemote
	}
	metrics.CaptionRequestsTotal.WithLabelValues(source).Inc()

	return Result{
		Caption:         domcaption.Enhance(raw),
		OriginalCaption: basic,
		Features:        features,
		Source:          source,
	}, nil
}

func (s *Service) remoteCaption(ctx context.Context, data []byte) (string, bool) {
	if s.captioner == nil {
		return "", false
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, ok, err := s.captioner.Caption(callCtx, data)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
			err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
		}
		logger.FromContext(ctx).Warn("Remote caption failed, using heuristic",
			zap.Error(err),
		)
		return "", false
	}
	if !ok || domcaption.Enhance(text) == "" {
		return "", false
	}
	return text, true
}
