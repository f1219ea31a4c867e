package vecrank

import (
	"context"

	"github.com/kailas-cloud/vecrank/internal/domain"
	healthuc "github.com/kailas-cloud/vecrank/internal/usecase/health"
)

// HealthStatus represents the aggregated backend health.
type HealthStatus struct {
	Status string            // "ok" or "degraded"
	Checks map[string]string // component → "ok"/"error"/"disabled"/"configured"
}

// Health checks the embedding backend and, when configured, the cache.
// A remote captioner is reported as "configured" without being called.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// embeddingChecker adapts a domain.Embedder to health.EmbeddingChecker.
type embeddingChecker struct {
	embedder domain.Embedder
}

func healthCheckerFor(e domain.Embedder) healthuc.EmbeddingChecker {
	return embeddingChecker{embedder: e}
}

func (p embeddingChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := p.embedder.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // reported as a check status
	}
	return nil
}
