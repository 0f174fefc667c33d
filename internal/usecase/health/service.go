package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the embedding provider is failing; stored documents are still reachable.
	Degraded Status = "degraded"
	// Unhealthy indicates the search backend is unreachable.
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

// Component names used as Report.Checks keys.
const (
	ComponentSearch    = "search"
	ComponentEmbedding = "embedding"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	search    Pinger
	embedding EmbeddingChecker
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a Service. embedding can be nil.
func New(search Pinger, embedding EmbeddingChecker, logger *zap.Logger) *Service {
	return &Service{search: search, embedding: embedding, timeout: DefaultCheckTimeout, logger: logger}
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	var mu sync.Mutex
	// Failures are recorded, never returned, so one failing check does not stop the other.
	var g errgroup.Group

	run := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := fn(cctx); err != nil {
				s.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}

	run(ComponentSearch, s.search.Ping)
	if s.embedding != nil {
		run(ComponentEmbedding, s.embedding.HealthCheck)
	}
	_ = g.Wait()

	status := Healthy
	switch {
	case checks[ComponentSearch] == CheckError:
		status = Unhealthy
	case checks[ComponentEmbedding] == CheckError:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
