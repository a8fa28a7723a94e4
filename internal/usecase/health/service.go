// Package health reports whether the librarian can serve queries.
package health

import (
	"context"
	"sync"
	"time"
)

// Status is the overall verdict.
type Status string

const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded" // store up, a model backend down
	Unhealthy Status = "error"    // store down, nothing can be served
)

// CheckResult is the verdict for one component.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	ComponentDatabase   = "database"
	ComponentEmbedding  = "embedding"
	ComponentGeneration = "generation"
)

// DefaultProbeTimeout bounds each probe so one hung backend cannot stall /health.
const DefaultProbeTimeout = 3 * time.Second

type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service probes the document store and the optional model backends.
type Service struct {
	probes  map[string]func(context.Context) error
	timeout time.Duration
}

// New creates a Service. embedding and chat may be nil when the backend cannot report health.
func New(db DBPinger, embedding, chat ProviderChecker) *Service {
	probes := map[string]func(context.Context) error{ComponentDatabase: db.Ping}
	if embedding != nil {
		probes[ComponentEmbedding] = embedding.HealthCheck
	}
	if chat != nil {
		probes[ComponentGeneration] = chat.HealthCheck
	}
	return &Service{probes: probes, timeout: DefaultProbeTimeout}
}

// Check runs every probe concurrently and folds the results into a Report.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(s.probes))
	)
	for name, probe := range s.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := CheckOK
			if probe(pctx) != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	return Report{Status: verdict(checks), Checks: checks}
}

func verdict(checks map[string]CheckResult) Status {
	if checks[ComponentDatabase] == CheckError {
		return Unhealthy
	}
	for _, r := range checks {
		if r == CheckError {
			return Degraded
		}
	}
	return Healthy
}
