// Package metrics provides Prometheus metrics for the backup checker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Checks tracks evaluated backups by verdict ("error" when the check could not complete).
	Checks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backup_checker_checks_total",
		Help: "Total number of backup checks by verdict",
	}, []string{"environment", "backup", "status"})

	// CheckDuration tracks how long a check takes, storage listing included.
	CheckDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backup_checker_check_duration_seconds",
		Help:    "Duration of backup checks in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"environment"})

	// BackupAge tracks the age of the newest matching backup.
	BackupAge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "backup_checker_backup_age_seconds",
		Help: "Age of the newest matching backup in seconds",
	}, []string{"environment", "backup"})

	// BackupSize tracks the size of the newest matching backup.
	BackupSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "backup_checker_backup_size_bytes",
		Help: "Size of the newest matching backup in bytes",
	}, []string{"environment", "backup"})

	// BackupValid is 1 when the last check found a valid backup, 0 otherwise.
	BackupValid = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "backup_checker_backup_valid",
		Help: "Whether the last check found a valid backup",
	}, []string{"environment", "backup"})

	// StorageOperations tracks storage operations.
	StorageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backup_checker_storage_operations_total",
		Help: "Total number of storage operations",
	}, []string{"operation", "provider", "status"})

	// StorageRetries tracks retried storage operations.
	StorageRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backup_checker_storage_retries_total",
		Help: "Total number of retried storage operations",
	})

	// AccessDenied tracks rejected requests by reason.
	AccessDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backup_checker_access_denied_total",
		Help: "Total number of requests rejected by token verification",
	}, []string{"reason"})

	// HTTPRequests tracks served requests by route pattern.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backup_checker_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backup_checker_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// Rules tracks the number of loaded rules.
	Rules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backup_checker_rules",
		Help: "Number of configured backup rules",
	})

	// Info provides static information about the service.
	Info = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "backup_checker_info",
		Help: "Information about the backup checker",
	}, []string{"version"})
)

// RecordStorageOperation records a storage operation.
func RecordStorageOperation(operation, provider string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	StorageOperations.WithLabelValues(operation, provider, status).Inc()
}

// RecordBackup records the newest backup found for a rule.
func RecordBackup(environment, backup string, ageSeconds float64, sizeBytes int64, valid bool) {
	BackupAge.WithLabelValues(environment, backup).Set(ageSeconds)
	BackupSize.WithLabelValues(environment, backup).Set(float64(sizeBytes))
	RecordValidity(environment, backup, valid)
}

// RecordValidity records whether the last check for a rule passed.
func RecordValidity(environment, backup string, valid bool) {
	v := 0.0
	if valid {
		v = 1
	}
	BackupValid.WithLabelValues(environment, backup).Set(v)
}

// ClearBackup drops the age and size series of a rule that has no backup.
func ClearBackup(environment, backup string) {
	BackupAge.DeleteLabelValues(environment, backup)
	BackupSize.DeleteLabelValues(environment, backup)
}
