package check

import (
	"context"
	"fmt"
	"strings"

	"github.com/imedwei/s3-backup-checker/internal/storage"
)

// Locator finds the newest backup object in a bucket.
type Locator struct {
	lister storage.Lister
}

// NewLocator creates a locator over the given storage.
func NewLocator(lister storage.Lister) *Locator {
	return &Locator{lister: lister}
}

// FindNewest returns the newest object under prefix whose key ends with
// suffix (when suffix is set). A nil object with a nil error means no object
// matched. Listing failures match storage.ErrUnavailable.
func (l *Locator) FindNewest(ctx context.Context, bucket, prefix, suffix string) (*storage.ObjectInfo, error) {
	objects, err := l.lister.List(ctx, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	return Newest(objects, suffix), nil
}

// Newest selects the object with the latest modification time among those
// ending with suffix. Ties go to the lexicographically greatest key.
func Newest(objects []storage.ObjectInfo, suffix string) *storage.ObjectInfo {
	var newest *storage.ObjectInfo
	for i := range objects {
		obj := &objects[i]
		if suffix != "" && !strings.HasSuffix(obj.Key, suffix) {
			continue
		}
		if newest == nil ||
			obj.LastModified.After(newest.LastModified) ||
			(obj.LastModified.Equal(newest.LastModified) && obj.Key > newest.Key) {
			newest = obj
		}
	}

	if newest == nil {
		return nil
	}
	found := *newest
	return &found
}
