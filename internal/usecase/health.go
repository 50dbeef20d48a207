package usecase

import (
	"log/slog"

	"github.com/fairyhunter13/gpu-job-dispatcher/internal/domain"
)

// HealthService probes the dispatcher's dependencies.
type HealthService struct {
	Jobs  domain.JobRegistry
	Queue domain.WorkQueue
	Host  domain.HostController
}

// NewHealthService constructs a HealthService with its dependencies.
func NewHealthService(j domain.JobRegistry, q domain.WorkQueue, h domain.HostController) HealthService {
	return HealthService{Jobs: j, Queue: q, Host: h}
}

// HealthReport is the aggregate health view served to clients.
type HealthReport struct {
	Healthy    bool
	Components map[string]string
}

// Check pings the registry and queue and describes the host. The host being
// stopped or unreachable never makes the API unhealthy; the whole point of
// the dispatcher is accepting jobs while the host is down.
func (s HealthService) Check(ctx domain.Context) HealthReport {
	rep := HealthReport{Healthy: true, Components: map[string]string{}}

	if err := s.Jobs.Ping(ctx); err != nil {
		slog.Warn("registry ping failed", slog.Any("error", err))
		rep.Components["registry"] = "unavailable"
		rep.Healthy = false
	} else {
		rep.Components["registry"] = "ok"
	}

	if err := s.Queue.Ping(ctx); err != nil {
		slog.Warn("queue ping failed", slog.Any("error", err))
		rep.Components["queue"] = "unavailable"
		rep.Healthy = false
	} else {
		rep.Components["queue"] = "ok"
	}

	// The wire value is ok or unknown, never the raw host state; /health
	// reports reachability of the control plane, /debug/host reports state.
	if _, err := s.Host.Describe(ctx); err != nil {
		rep.Components["host"] = "unknown"
	} else {
		rep.Components["host"] = "ok"
	}
	return rep
}

// HostInfo returns the raw host snapshot for the debug surface.
func (s HealthService) HostInfo(ctx domain.Context) (domain.HostInfo, error) {
	return s.Host.Describe(ctx)
}
