package librarian

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/librarian/internal/domain"
)

// observer reports every public Client call to the optional slog logger and prometheus registry.
// A nil observer, logger or registry disables the corresponding output.
type observer struct {
	logger *slog.Logger
	ops    *prometheus.CounterVec
	dur    *prometheus.HistogramVec
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg == nil {
		return o, nil
	}

	o.ops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "librarian", Subsystem: "sdk", Name: "operations_total",
		Help: "Client calls by operation (search, ask, index, ping) and outcome.",
	}, []string{"operation", "status"})
	// ask includes a chat completion, hence the long tail.
	o.dur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "librarian", Subsystem: "sdk", Name: "operation_duration_seconds",
		Help:    "Client call latency.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})

	if err := registerOrReuse(reg, &o.ops); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &o.dur); err != nil {
		return nil, err
	}
	return o, nil
}

// registerOrReuse registers *c, or points *c at the collector a previous Client already registered.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	var dup prometheus.AlreadyRegisteredError
	switch {
	case err == nil:
		return nil
	case !errors.As(err, &dup):
		return fmt.Errorf("librarian: register metric: %w", err)
	}
	existing, ok := dup.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("librarian: metric already registered as %T", dup.ExistingCollector)
	}
	*c = existing
	return nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	status := statusOf(err)

	if o.ops != nil {
		o.ops.WithLabelValues(op, status).Inc()
		o.dur.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.Warn("librarian call failed", "op", op, "status", status, "duration", elapsed, "error", err)
		return
	}
	o.logger.Debug("librarian call done", "op", op, "duration", elapsed)
}

// statusLabels is checked in order; the first sentinel err wraps wins.
var statusLabels = []struct {
	sentinel error
	label    string
}{
	{domain.ErrInvalidRequest, "invalid_request"},
	{domain.ErrVectorDimMismatch, "reindex_required"},
	{domain.ErrEmbeddingProviderError, "provider_error"},
	{domain.ErrChatProviderError, "provider_error"},
	{domain.ErrEmptyCorpus, "empty_corpus"},
	{domain.ErrStore, "store_error"},
}

// statusOf maps err to a bounded metric label.
func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	for _, s := range statusLabels {
		if errors.Is(err, s.sentinel) {
			return s.label
		}
	}
	return "error"
}
