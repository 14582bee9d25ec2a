package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means search works but the rewrite fallback is unavailable.
	Degraded Status = "degraded"
	// Unhealthy means storage is unreachable and search cannot run.
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

const (
	checkStorage = "storage"
	checkRewrite = "rewrite"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	storage StoragePinger
	rewrite RewriteChecker
	timeout time.Duration
}

// New creates a Service. rewrite can be nil when the fallback is disabled.
func New(storage StoragePinger, rewrite RewriteChecker) *Service {
	return &Service{storage: storage, rewrite: rewrite, timeout: 3 * time.Second}
}

// WithTimeout bounds each component check. Zero disables the bound.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		checkStorage: s.run(ctx, s.storage.Ping),
	}
	if s.rewrite != nil {
		checks[checkRewrite] = s.run(ctx, s.rewrite.HealthCheck)
	}

	status := Healthy
	switch {
	case checks[checkStorage] == CheckError:
		status = Unhealthy
	case checks[checkRewrite] == CheckError:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, check func(context.Context) error) CheckResult {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := check(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
