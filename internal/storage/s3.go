package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/imedwei/s3-backup-checker/internal/metrics"
)

// DefaultRegion is used for custom endpoints that do not care about regions.
const DefaultRegion = "us-east-1"

// S3Storage implements Lister for AWS S3 and S3-compatible services.
type S3Storage struct {
	client  *s3.Client
	timeout time.Duration
}

// S3Config holds S3-specific configuration.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string // Optional custom endpoint
	UsePathStyle    bool   // For S3-compatible services
	Timeout         time.Duration
}

// NewS3Storage creates a new S3 storage provider.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	// Fall back to the default credential chain when no static keys are set
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.UsePathStyle
		},
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &S3Storage{
		client:  s3.NewFromConfig(awsCfg, clientOpts...),
		timeout: cfg.Timeout,
	}, nil
}

// List implements Lister.List.
func (s *S3Storage) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			metrics.RecordStorageOperation("list", "s3", false)
			return nil, fmt.Errorf("%w: failed to list s3://%s/%s: %w", ErrUnavailable, bucket, prefix, err)
		}

		for _, obj := range page.Contents {
			objects = append(objects, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	metrics.RecordStorageOperation("list", "s3", true)
	return objects, nil
}

// Ping implements Pinger.Ping using a HeadBucket request.
func (s *S3Storage) Ping(ctx context.Context, bucket string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		metrics.RecordStorageOperation("head_bucket", "s3", false)
		return fmt.Errorf("%w: failed to reach bucket %s: %w", ErrUnavailable, bucket, err)
	}

	metrics.RecordStorageOperation("head_bucket", "s3", true)
	return nil
}

func (s *S3Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
