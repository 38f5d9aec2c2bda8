// Package storage provides read access to the object storage holding backups.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is matched by any failure to complete a storage operation.
var ErrUnavailable = errors.New("storage unavailable")

// Lister enumerates objects stored in a bucket.
type Lister interface {
	// List returns every object whose key starts with prefix.
	// Pagination is handled by the implementation.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// Pinger reports whether a bucket is reachable with the configured credentials.
type Pinger interface {
	Ping(ctx context.Context, bucket string) error
}

// ObjectInfo contains information about a stored backup.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// unavailable wraps err so that it matches ErrUnavailable.
func unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}
