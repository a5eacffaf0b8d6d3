package ports

import "context"

// HealthChecker checks one backing dependency (database, redis, document store) for /health.
type HealthChecker interface {
	Name() string
	// Check returns nil when the dependency answered within ctx.
	Check(ctx context.Context) error
}
