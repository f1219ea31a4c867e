package vecrank

import "github.com/kailas-cloud/vecrank/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrInvalidImage           = domain.ErrInvalidImage
	ErrBackendUnavailable     = domain.ErrBackendUnavailable
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrCaptionProviderError   = domain.ErrCaptionProviderError
	ErrRateLimited            = domain.ErrRateLimited
	ErrTimeout                = domain.ErrTimeout
)
