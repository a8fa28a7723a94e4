package librarian

import (
	"context"

	healthuc "github.com/kailas-cloud/librarian/internal/usecase/health"
)

// HealthChecker can be implemented by an Embedder or ChatModel so that Health probes it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthStatus is the outcome of Health.
// Status is "ok", "degraded" (a model backend is down) or "error" (the store is down).
// Checks maps "database", "embedding" and "generation" to "ok" or "error";
// backends that do not implement HealthChecker are absent.
type HealthStatus struct {
	Status string
	Checks map[string]string
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Health probes the store and the model backends concurrently.
func (c *Client) Health(ctx context.Context) HealthStatus {
	rep := c.healthSvc.Check(ctx)
	st := HealthStatus{Status: string(rep.Status), Checks: make(map[string]string, len(rep.Checks))}
	for name, res := range rep.Checks {
		st.Checks[name] = string(res)
	}
	return st
}

// providerChecker narrows v to a health probe; nil when v has no HealthCheck method.
func providerChecker(v any) healthuc.ProviderChecker {
	hc, _ := v.(HealthChecker)
	if hc == nil {
		return nil
	}
	return hc
}
