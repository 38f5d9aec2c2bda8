package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/smithy-go"

	"github.com/imedwei/s3-backup-checker/internal/config"
	"github.com/imedwei/s3-backup-checker/internal/metrics"
)

// RetryConfig holds retry configuration for storage operations.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// nonRetryableCodes are S3 error codes that will not change on a second attempt.
var nonRetryableCodes = map[string]bool{
	"AccessDenied":                 true,
	"AllAccessDisabled":            true,
	"AuthorizationHeaderMalformed": true,
	"InvalidAccessKeyId":           true,
	"InvalidBucketName":            true,
	"NoSuchBucket":                 true,
	"PermanentRedirect":            true,
	"SignatureDoesNotMatch":        true,
}

// RetryableStorage wraps a Lister with retry logic.
type RetryableStorage struct {
	storage Lister
	config  RetryConfig
}

// NewRetryableStorage creates a new storage wrapper with retry logic.
func NewRetryableStorage(storage Lister, config RetryConfig) *RetryableStorage {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryableStorage{
		storage: storage,
		config:  config,
	}
}

// List implements Lister.List with retry logic.
func (r *RetryableStorage) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var result []ObjectInfo
	err := r.retry(ctx, func() error {
		var err error
		result, err = r.storage.List(ctx, bucket, prefix)
		return err
	})
	return result, err
}

// Ping implements Pinger.Ping with retry logic when the wrapped storage supports it.
func (r *RetryableStorage) Ping(ctx context.Context, bucket string) error {
	pinger, ok := r.storage.(Pinger)
	if !ok {
		return nil
	}
	return r.retry(ctx, func() error {
		return pinger.Ping(ctx, bucket)
	})
}

// retry executes a function with exponential backoff retry logic.
// Every returned error matches ErrUnavailable.
func (r *RetryableStorage) retry(ctx context.Context, fn func() error) error {
	delay := r.config.InitialDelay
	var err error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return unavailable(err)
		}

		if attempt == r.config.MaxAttempts {
			return unavailable(fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxAttempts, err))
		}

		metrics.StorageRetries.Inc()

		select {
		case <-ctx.Done():
			return unavailable(ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * r.config.Multiplier)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}

	if err == nil {
		err = errors.New("no attempt made")
	}
	return unavailable(err)
}

// isRetryable reports whether a second attempt could succeed.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return !nonRetryableCodes[apiErr.ErrorCode()]
	}

	return true
}

// Options controls how storage clients are built.
type Options struct {
	Timeout time.Duration
	Retry   RetryConfig
}

// NewStorage creates the lister for one configured environment.
func NewStorage(ctx context.Context, env config.Environment, opts Options) (*RetryableStorage, error) {
	s3Config := S3Config{
		AccessKeyID:     env.AccessKey,
		SecretAccessKey: env.SecretKey,
		Region:          env.Region,
		Endpoint:        env.Endpoint,
		UsePathStyle:    env.PathStyle,
		Timeout:         opts.Timeout,
	}

	storage, err := NewS3Storage(ctx, s3Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 storage: %w", err)
	}

	return NewRetryableStorage(storage, opts.Retry), nil
}
