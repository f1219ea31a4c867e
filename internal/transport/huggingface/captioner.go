// Package huggingface calls a hosted image-to-text model on the Hugging Face
// inference API.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/metrics"
)

// Defaults for the hosted inference API.
const (
	DefaultBaseURL    = "https://api-inference.huggingface.co/models"
	DefaultModel      = "Salesforce/blip-image-captioning-base"
	DefaultMaxRetries = 2
	DefaultRetryBase  = time.Second

	providerName    = "huggingface"
	maxResponseSize = 1 << 20
)

// captionKeys are the fields different image-to-text pipelines put the text in.
var captionKeys = []string{"generated_text", "caption", "text"}

// Config holds the captioner settings.
type Config struct {
	APIToken   string
	Model      string
	BaseURL    string
	MaxRetries uint64
	RetryBase  time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Captioner implements domain.Captioner against the inference API.
type Captioner struct {
	client     *http.Client
	endpoint   string
	token      string
	model      string
	maxRetries uint64
	retryBase  time.Duration
	logger     *zap.Logger
}

// NewCaptioner creates a captioner. Zero-valued fields take the package defaults.
func NewCaptioner(cfg *Config) *Captioner {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = DefaultRetryBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Captioner{
		client:     client,
		endpoint:   base + "/" + model,
		token:      cfg.APIToken,
		model:      model,
		maxRetries: cfg.MaxRetries,
		retryBase:  retryBase,
		logger:     logger,
	}
}

// Model returns the configured model id.
func (c *Captioner) Model() string { return c.model }

// statusError is a non-2xx reply from the API.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("caption API status %d: %s", e.code, e.body)
}

// Caption implements domain.Captioner. A cold model answers 503 while it
// loads, so 503 and 429 are retried with Fibonacci backoff.
func (c *Captioner) Caption(ctx context.Context, image []byte) (string, bool, error) {
	var body []byte
	b := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(c.retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		body, err = c.post(ctx, image)
		var se *statusError
		if errors.As(err, &se) && (se.code == http.StatusServiceUnavailable || se.code == http.StatusTooManyRequests) {
			c.logger.Debug("Caption model not ready, retrying", zap.Int("status", se.code))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		kind, wrapped := c.classify(ctx, err)
		metrics.CaptionProviderErrorsTotal.WithLabelValues(providerName, kind).Inc()
		return "", false, wrapped
	}

	caption, ok := parseCaption(body)
	if !ok {
		c.logger.Debug("Caption response carried no caption", zap.Int("bytes", len(body)))
	}
	return caption, ok, nil
}

func (c *Captioner) post(ctx context.Context, image []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caption request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read caption response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: truncate(string(body), 200)}
	}
	return body, nil
}

func (c *Captioner) classify(ctx context.Context, err error) (string, error) {
	if ctx.Err() != nil {
		return "timeout", fmt.Errorf("caption: %w: %w", domain.ErrTimeout, err)
	}
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusTooManyRequests {
		return "rate_limited", fmt.Errorf("caption: %w: %w", domain.ErrRateLimited, err)
	}
	return "api_error", fmt.Errorf("caption: %w: %w", domain.ErrCaptionProviderError, err)
}

// parseCaption accepts a list of objects, a single object or a bare string.
func parseCaption(body []byte) (string, bool) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return "", false
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return "", false
		}
		v = list[0]
	}
	switch t := v.(type) {
	case string:
		return nonBlank(t)
	case map[string]any:
		for _, k := range captionKeys {
			if s, ok := t[k].(string); ok {
				if text, ok := nonBlank(s); ok {
					return text, true
				}
			}
		}
	}
	return "", false
}

func nonBlank(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
