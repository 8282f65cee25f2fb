package ports

import "context"

// HealthChecker reports the state of one dependency on /health.
// Check returns an error when the dependency is unhealthy.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}
