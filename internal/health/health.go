// Package health aggregates named health checks for the HTTP server.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/imedwei/s3-backup-checker/internal/storage"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy Status = "unhealthy"
)

// DefaultCheckTimeout bounds a single check run from the /health handler.
const DefaultCheckTimeout = 10 * time.Second

// Check is the result of one named check.
type Check struct {
	Status    Status         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// CheckFunc produces a Check. It must honor ctx cancellation.
type CheckFunc func(context.Context) Check

// Report is the aggregate of all checks.
type Report struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Timestamp time.Time        `json:"timestamp"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Checker runs registered checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewChecker creates a checker that gives each check at most timeout to
// finish. A zero timeout uses DefaultCheckTimeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// RegisterCheck adds or replaces the check called name.
func (c *Checker) RegisterCheck(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// Names returns the registered check names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes every check concurrently and aggregates the results.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Checks:    make(map[string]Check, len(checks)),
		Timestamp: time.Now(),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, fn := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			result := fn(checkCtx)

			mu.Lock()
			defer mu.Unlock()
			report.Checks[name] = result
			if result.Status != StatusHealthy {
				report.Status = StatusUnhealthy
			}
		}()
	}
	wg.Wait()

	return report
}

// Handler serves the aggregate report, with 503 when any check failed.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())

		code := http.StatusOK
		if !report.Healthy() {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	}
}

// StorageCheck reports whether bucket answers a HEAD request.
func StorageCheck(pinger storage.Pinger, bucket string) CheckFunc {
	return func(ctx context.Context) Check {
		details := map[string]any{"bucket": bucket}
		status := StatusHealthy
		if err := pinger.Ping(ctx, bucket); err != nil {
			status = StatusUnhealthy
			details["error"] = err.Error()
		}
		return Check{Status: status, Timestamp: time.Now(), Details: details}
	}
}

// StaticCheck always reports healthy with fixed details.
func StaticCheck(details map[string]any) CheckFunc {
	return func(context.Context) Check {
		return Check{Status: StatusHealthy, Timestamp: time.Now(), Details: details}
	}
}

// ReadinessHandler answers the readiness probe.
func ReadinessHandler() http.HandlerFunc {
	return probe("ready\n")
}

// LivenessHandler answers the liveness probe.
func LivenessHandler() http.HandlerFunc {
	return probe("alive\n")
}

func probe(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}
