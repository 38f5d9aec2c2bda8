package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewS3Storage(t *testing.T) {
	tests := []struct {
		name   string
		config S3Config
	}{
		{
			name: "static credentials",
			config: S3Config{
				AccessKeyID:     "test-key",
				SecretAccessKey: "test-secret",
				Region:          "eu-west-1",
			},
		},
		{
			name: "custom endpoint without region",
			config: S3Config{
				AccessKeyID:     "test-key",
				SecretAccessKey: "test-secret",
				Endpoint:        "https://s3.custom.com",
				UsePathStyle:    true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewS3Storage(context.Background(), tt.config)
			if err != nil {
				t.Fatalf("NewS3Storage() unexpected error: %v", err)
			}
			if s.client == nil {
				t.Fatal("NewS3Storage() returned storage without client")
			}
			if tt.config.Region == "" && s.client.Options().Region != DefaultRegion {
				t.Errorf("Region = %v, want %v", s.client.Options().Region, DefaultRegion)
			}
			if s.client.Options().UsePathStyle != tt.config.UsePathStyle {
				t.Errorf("UsePathStyle = %v, want %v", s.client.Options().UsePathStyle, tt.config.UsePathStyle)
			}
		})
	}
}

func TestS3Storage_withTimeout(t *testing.T) {
	s := &S3Storage{timeout: 50 * time.Millisecond}
	ctx, cancel := s.withTimeout(context.Background())
	defer cancel()

	if _, ok := ctx.Deadline(); !ok {
		t.Error("withTimeout() did not set a deadline")
	}

	s = &S3Storage{}
	ctx, cancel = s.withTimeout(context.Background())
	defer cancel()

	if _, ok := ctx.Deadline(); ok {
		t.Error("withTimeout() set a deadline without a timeout")
	}
}

func TestUnavailable(t *testing.T) {
	if unavailable(nil) != nil {
		t.Error("unavailable(nil) should be nil")
	}

	cause := errors.New("boom")
	err := unavailable(cause)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, cause) {
		t.Errorf("unavailable() = %v, want it to match both ErrUnavailable and the cause", err)
	}

	if again := unavailable(err); again != err {
		t.Error("unavailable() wrapped an error that already matched ErrUnavailable")
	}
}
