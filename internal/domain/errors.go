package domain

import "errors"

var (
	// ErrInvalidInput signals a malformed client request (empty text, empty query).
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidImage signals an image that could not be decoded.
	ErrInvalidImage = errors.New("invalid image")
	// ErrBackendUnavailable signals that a required backend or credential is not configured.
	ErrBackendUnavailable = errors.New("backend not configured")
	// ErrEmbeddingProviderError signals an embedding provider failure (non-2xx, malformed response).
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCaptionProviderError signals a captioning provider failure.
	ErrCaptionProviderError = errors.New("caption provider error")
	// ErrRateLimited signals a rate limit hit at the provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout signals that a backend call exceeded its deadline.
	ErrTimeout = errors.New("backend timeout")
)
