package health

import "context"

// DBPinger checks document store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks an embedding or chat backend.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
