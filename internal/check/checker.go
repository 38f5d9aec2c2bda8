package check

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/imedwei/s3-backup-checker/internal/metrics"
	"github.com/imedwei/s3-backup-checker/internal/registry"
	"github.com/imedwei/s3-backup-checker/internal/storage"
)

// Result is a completed evaluation of one rule.
type Result struct {
	Rule      registry.Rule
	Verdict   Verdict
	CheckedAt time.Time
}

// Checker answers "is the newest backup valid" for configured rules.
type Checker struct {
	registry *registry.Registry
	locators map[string]*Locator
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithClock overrides the clock used to compute backup ages.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// New creates a checker. listers holds one storage client per environment.
func New(reg *registry.Registry, listers map[string]storage.Lister, logger *slog.Logger, opts ...Option) *Checker {
	locators := make(map[string]*Locator, len(listers))
	for env, lister := range listers {
		locators[env] = NewLocator(lister)
	}

	c := &Checker{
		registry: reg,
		locators: locators,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the rules the checker serves.
func (c *Checker) Registry() *registry.Registry {
	return c.registry
}

// Check resolves the rule for environment/backup, verifies token against it
// and evaluates the newest backup. Errors match registry.ErrNotConfigured,
// ErrAccessDenied, ErrTokenNotConfigured or storage.ErrUnavailable.
func (c *Checker) Check(ctx context.Context, environment, backup, token string) (Result, error) {
	rule, err := c.registry.Resolve(environment, backup)
	if err != nil {
		return Result{}, err
	}

	decision, err := Authorize(rule.Token, token)
	if err != nil {
		c.logger.Error("Token verification failed",
			"environment", environment,
			"backup", backup,
			"error", err,
		)
		return Result{Rule: rule}, err
	}
	if !decision.Allowed {
		metrics.AccessDenied.WithLabelValues(decision.Reason).Inc()
		c.logger.Warn("Access denied",
			"environment", environment,
			"backup", backup,
			"reason", decision.Reason,
		)
		return Result{Rule: rule}, fmt.Errorf("%w: %s", ErrAccessDenied, decision.Reason)
	}

	return c.Evaluate(ctx, rule)
}

// Evaluate locates the newest backup for rule and evaluates it. No token
// verification is done.
func (c *Checker) Evaluate(ctx context.Context, rule registry.Rule) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.CheckDuration.WithLabelValues(rule.Environment).Observe(time.Since(start).Seconds())
	}()

	locator, ok := c.locators[rule.Environment]
	if !ok {
		metrics.Checks.WithLabelValues(rule.Environment, rule.Name, "error").Inc()
		metrics.RecordValidity(rule.Environment, rule.Name, false)
		return Result{Rule: rule}, fmt.Errorf("%w: no storage configured for environment %q", storage.ErrUnavailable, rule.Environment)
	}

	object, err := locator.FindNewest(ctx, rule.Bucket, rule.Prefix, rule.Suffix)
	if err != nil {
		metrics.Checks.WithLabelValues(rule.Environment, rule.Name, "error").Inc()
		metrics.RecordValidity(rule.Environment, rule.Name, false)
		c.logger.Error("Failed to locate backup",
			"environment", rule.Environment,
			"backup", rule.Name,
			"bucket", rule.Bucket,
			"prefix", rule.Prefix,
			"error", err,
		)
		return Result{Rule: rule}, err
	}

	now := c.now()
	verdict := Evaluate(object, rule, now)

	metrics.Checks.WithLabelValues(rule.Environment, rule.Name, verdict.Status.String()).Inc()
	if object != nil {
		metrics.RecordBackup(rule.Environment, rule.Name, verdict.Age.Seconds(), object.Size, verdict.Valid())
	} else {
		metrics.ClearBackup(rule.Environment, rule.Name)
		metrics.RecordValidity(rule.Environment, rule.Name, false)
	}

	attrs := []any{
		"environment", rule.Environment,
		"backup", rule.Name,
		"status", verdict.Status.String(),
	}
	if object != nil {
		attrs = append(attrs, "key", object.Key, "age", verdict.Age.Round(time.Second), "size_bytes", object.Size)
	}

	if verdict.Valid() {
		c.logger.Info("Backup is valid", attrs...)
	} else {
		c.logger.Warn("Backup is invalid", attrs...)
	}

	return Result{Rule: rule, Verdict: verdict, CheckedAt: now}, nil
}
