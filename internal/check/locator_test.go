package check

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imedwei/s3-backup-checker/internal/storage"
)

// fakeLister serves a fixed object set and records the last request.
type fakeLister struct {
	objects    []storage.ObjectInfo
	err        error
	calls      int
	lastBucket string
	lastPrefix string
}

func (f *fakeLister) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	f.calls++
	f.lastBucket = bucket
	f.lastPrefix = prefix
	if f.err != nil {
		return nil, f.err
	}

	var matched []storage.ObjectInfo
	for _, obj := range f.objects {
		if len(obj.Key) >= len(prefix) && obj.Key[:len(prefix)] == prefix {
			matched = append(matched, obj)
		}
	}
	return matched, nil
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewest(t *testing.T) {
	objects := []storage.ObjectInfo{
		{Key: "db/2024-02-28.sql.gz", Size: 100, LastModified: base.Add(-72 * time.Hour)},
		{Key: "db/2024-03-01.sql.gz", Size: 300, LastModified: base},
		{Key: "db/2024-02-29.sql.gz", Size: 200, LastModified: base.Add(-24 * time.Hour)},
		{Key: "db/2024-03-01.log", Size: 10, LastModified: base.Add(time.Hour)},
	}

	t.Run("latest modification wins", func(t *testing.T) {
		got := Newest(objects, "")
		require.NotNil(t, got)
		assert.Equal(t, "db/2024-03-01.log", got.Key)
	})

	t.Run("suffix filter", func(t *testing.T) {
		got := Newest(objects, ".sql.gz")
		require.NotNil(t, got)
		assert.Equal(t, "db/2024-03-01.sql.gz", got.Key)
		assert.Equal(t, int64(300), got.Size)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Nil(t, Newest(objects, ".tar"))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, Newest(nil, ""))
	})

	t.Run("tie goes to greatest key", func(t *testing.T) {
		tied := []storage.ObjectInfo{
			{Key: "b.gz", LastModified: base},
			{Key: "c.gz", LastModified: base},
			{Key: "a.gz", LastModified: base},
		}
		got := Newest(tied, "")
		require.NotNil(t, got)
		assert.Equal(t, "c.gz", got.Key)

		// Order of the listing must not matter
		reversed := []storage.ObjectInfo{tied[2], tied[1], tied[0]}
		assert.Equal(t, "c.gz", Newest(reversed, "").Key)
	})

	t.Run("result is a copy", func(t *testing.T) {
		got := Newest(objects, ".sql.gz")
		got.Key = "changed"
		assert.Equal(t, "db/2024-03-01.sql.gz", objects[1].Key)
	})
}

func TestLocator_FindNewest(t *testing.T) {
	lister := &fakeLister{objects: []storage.ObjectInfo{
		{Key: "db/old.sql.gz", LastModified: base.Add(-time.Hour)},
		{Key: "db/new.sql.gz", LastModified: base},
		{Key: "other/newer.sql.gz", LastModified: base.Add(time.Hour)},
	}}
	locator := NewLocator(lister)

	got, err := locator.FindNewest(context.Background(), "bucket", "db/", ".sql.gz")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "db/new.sql.gz", got.Key)
	assert.Equal(t, "bucket", lister.lastBucket)
	assert.Equal(t, "db/", lister.lastPrefix)

	got, err = locator.FindNewest(context.Background(), "bucket", "missing/", "")
	require.NoError(t, err, "absence is not an error")
	assert.Nil(t, got)
}

func TestLocator_FindNewest_StorageError(t *testing.T) {
	cause := errors.New("connection refused")
	lister := &fakeLister{err: errors.Join(storage.ErrUnavailable, cause)}

	_, err := NewLocator(lister).FindNewest(context.Background(), "bucket", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.ErrorIs(t, err, cause)
}
