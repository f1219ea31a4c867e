package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all configured components are operational.
	Healthy Status = "ok"
	// Degraded indicates a configured component is failing or a backend is not configured.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckDisabled indicates the component is not configured.
	CheckDisabled CheckResult = "disabled"
	// CheckConfigured indicates the component is wired but not exercised by
	// the health check, since every call to it is billed inference.
	CheckConfigured CheckResult = "configured"
)

// defaultCheckTimeout bounds each check so /health never hangs on a slow backend.
const defaultCheckTimeout = 5 * time.Second

// Backends describes what was wired at startup.
type Backends struct {
	EmbeddingConfigured bool
	EmbeddingProvider   string
	EmbeddingModel      string
	CaptionConfigured   bool
	CaptionModel        string
}

// Report aggregates health check results.
type Report struct {
	Status   Status
	Checks   map[string]CheckResult
	Backends Backends
}

// Service coordinates health checks.
type Service struct {
	embedding EmbeddingChecker
	cache     CachePinger
	backends  Backends
	timeout   time.Duration
}

// New creates a Service. embedding and cache can be nil.
func New(embedding EmbeddingChecker, cache CachePinger, backends Backends) *Service {
	return &Service{
		embedding: embedding,
		cache:     cache,
		backends:  backends,
		timeout:   defaultCheckTimeout,
	}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, 3)

	switch {
	case s.embedding == nil || !s.backends.EmbeddingConfigured:
		checks["embedding"] = CheckDisabled
	default:
		checks["embedding"] = s.run(ctx, s.embedding.HealthCheck)
	}

	if s.cache != nil {
		checks["cache"] = s.run(ctx, s.cache.Ping)
	}

	if s.backends.CaptionConfigured {
		checks["caption"] = CheckConfigured
	} else {
		checks["caption"] = CheckDisabled
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if !s.backends.EmbeddingConfigured {
		status = Degraded
	}

	return Report{Status: status, Checks: checks, Backends: s.backends}
}

func (s *Service) run(ctx context.Context, fn func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
