package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context, bucket string) error {
	return f.err
}

func TestChecker_Run(t *testing.T) {
	tests := []struct {
		name        string
		pingErrs    map[string]error
		wantHealthy bool
	}{
		{
			name:        "no checks",
			wantHealthy: true,
		},
		{
			name:        "all buckets reachable",
			pingErrs:    map[string]error{"production": nil, "staging": nil},
			wantHealthy: true,
		},
		{
			name:        "one bucket unreachable",
			pingErrs:    map[string]error{"production": nil, "staging": errors.New("NoSuchBucket")},
			wantHealthy: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(0)
			for env, err := range tt.pingErrs {
				checker.RegisterCheck("storage:"+env, StorageCheck(fakePinger{err: err}, env+"-backups"))
			}

			report := checker.Run(context.Background())

			if report.Healthy() != tt.wantHealthy {
				t.Errorf("Healthy() = %v, want %v", report.Healthy(), tt.wantHealthy)
			}
			if len(report.Checks) != len(tt.pingErrs) {
				t.Errorf("got %d checks, want %d", len(report.Checks), len(tt.pingErrs))
			}
			for env, err := range tt.pingErrs {
				check := report.Checks["storage:"+env]
				if check.Details["bucket"] != env+"-backups" {
					t.Errorf("%s: bucket detail = %v", env, check.Details["bucket"])
				}
				if err != nil && check.Details["error"] != err.Error() {
					t.Errorf("%s: error detail = %v", env, check.Details["error"])
				}
			}
		})
	}
}

func TestChecker_RunTimeout(t *testing.T) {
	checker := NewChecker(10 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) Check {
		<-ctx.Done()
		return Check{Status: StatusUnhealthy, Timestamp: time.Now(), Details: map[string]any{"error": ctx.Err().Error()}}
	})

	report := checker.Run(context.Background())
	if report.Healthy() {
		t.Fatal("expected the timed out check to be unhealthy")
	}
	if got := report.Checks["slow"].Details["error"]; got != context.DeadlineExceeded.Error() {
		t.Errorf("error detail = %v", got)
	}
}

func TestChecker_Handler(t *testing.T) {
	checker := NewChecker(0)
	checker.RegisterCheck("registry", StaticCheck(map[string]any{"rules": 4}))

	rr := httptest.NewRecorder()
	checker.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	checker.RegisterCheck("storage:production", StorageCheck(fakePinger{err: errors.New("AccessDenied")}, "prod"))

	rr = httptest.NewRecorder()
	checker.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	var report Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != StatusUnhealthy {
		t.Errorf("report status = %v", report.Status)
	}
	if report.Checks["registry"].Details["rules"] != float64(4) {
		t.Errorf("registry details = %v", report.Checks["registry"].Details)
	}

	if names := checker.Names(); len(names) != 2 || names[0] != "registry" {
		t.Errorf("Names() = %v", names)
	}
}

func TestProbes(t *testing.T) {
	for want, handler := range map[string]http.HandlerFunc{
		"ready\n": ReadinessHandler(),
		"alive\n": LivenessHandler(),
	} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		if rr.Code != http.StatusOK {
			t.Errorf("%q: status = %d", want, rr.Code)
		}
		if rr.Body.String() != want {
			t.Errorf("body = %q, want %q", rr.Body.String(), want)
		}
	}
}
