package provider

import "context"

// Status represents the health status of a backend.
type Status int

const (
	// StatusHealthy indicates the backend is fully operational.
	StatusHealthy Status = iota
	// StatusDegraded indicates the backend is operational with reduced capability.
	StatusDegraded
	// StatusUnavailable indicates the backend cannot handle requests.
	StatusUnavailable
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// HealthStatus contains detailed health information for a backend.
type HealthStatus struct {
	Status  Status
	Message string
	Details map[string]any
}

// HealthChecker is optionally implemented by backends that can report more
// than Ping.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// CheckHealth returns p's detailed health when it implements HealthChecker,
// otherwise a status derived from Ping.
func CheckHealth(ctx context.Context, p Provider) HealthStatus {
	if hc, ok := p.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	if err := p.Ping(ctx); err != nil {
		return HealthStatus{Status: StatusUnavailable, Message: p.Name() + ": " + err.Error()}
	}
	return HealthStatus{Status: StatusHealthy}
}
