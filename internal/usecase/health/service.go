package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the navigator works but sessions are not persisted.
	Degraded Status = "degraded"
	// Unhealthy indicates the search API is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	ComponentSearchAPI = "search_api"
	ComponentStore     = "session_store"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	api   Pinger
	store Pinger
}

// New creates a Service. store can be nil when sessions are not persisted.
func New(api, store Pinger) *Service {
	return &Service{api: api, store: store}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{ComponentSearchAPI: probe(ctx, s.api)}
	if s.store != nil {
		checks[ComponentStore] = probe(ctx, s.store)
	}

	status := Healthy
	switch {
	case checks[ComponentSearchAPI] == CheckError:
		status = Unhealthy
	case checks[ComponentStore] == CheckError:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func probe(ctx context.Context, p Pinger) CheckResult {
	if err := p.Ping(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
