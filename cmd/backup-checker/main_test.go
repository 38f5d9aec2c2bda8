package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imedwei/s3-backup-checker/internal/check"
	"github.com/imedwei/s3-backup-checker/internal/config"
	"github.com/imedwei/s3-backup-checker/internal/registry"
	"github.com/imedwei/s3-backup-checker/internal/storage"
)

const rules = `{
	"token": "global",
	"production": {
		"bucket_name": "acme-backups",
		"region": "eu-west-1",
		"backups": {
			"postgres": {"age": "1D", "prefix": "pg"},
			"redis": {"age": "2H", "prefix": "redis"}
		}
	},
	"staging": {
		"bucket_name": "acme-staging",
		"endpoint": "http://localhost:9000",
		"path_style": true,
		"backups": {
			"postgres": {"age": "1D", "prefix": "pg"}
		}
	}
}`

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type staticLister struct {
	objects []storage.ObjectInfo
	err     error
}

func (s staticLister) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	var matched []storage.ObjectInfo
	for _, obj := range s.objects {
		if strings.HasPrefix(obj.Key, prefix) {
			matched = append(matched, obj)
		}
	}
	return matched, nil
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	cfg, err := config.Parse([]byte(rules))
	require.NoError(t, err)
	reg, err := registry.New(cfg)
	require.NoError(t, err)
	return reg
}

func TestSelectRules(t *testing.T) {
	reg := testRegistry(t)

	all, err := selectRules(reg, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	prod, err := selectRules(reg, []string{"production"})
	require.NoError(t, err)
	require.Len(t, prod, 2)
	assert.Equal(t, "postgres", prod[0].Name)
	assert.Equal(t, "redis", prod[1].Name)

	one, err := selectRules(reg, []string{"staging", "postgres"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "acme-staging", one[0].Bucket)

	_, err = selectRules(reg, []string{"development"})
	assert.ErrorIs(t, err, registry.ErrNotConfigured)

	_, err = selectRules(reg, []string{"production", "mysql"})
	assert.ErrorIs(t, err, registry.ErrNotConfigured)
}

func TestEvaluateAllAndWriteRows(t *testing.T) {
	reg := testRegistry(t)
	listers := map[string]storage.Lister{
		"production": staticLister{objects: []storage.ObjectInfo{
			{Key: "pg/2024-03-01.sql.gz", Size: 2048, LastModified: now.Add(-time.Hour)},
			{Key: "redis/dump.rdb", Size: 512, LastModified: now.Add(-5 * time.Hour)},
		}},
		"staging": staticLister{err: fmt.Errorf("%w: connection refused", storage.ErrUnavailable)},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	checker := check.New(reg, listers, logger, check.WithClock(func() time.Time { return now }))

	rows := evaluateAll(context.Background(), checker, reg.Rules(), 2)
	require.Len(t, rows, 3)

	assert.NoError(t, rows[0].err)
	assert.Equal(t, check.StatusValid, rows[0].result.Verdict.Status)
	assert.NoError(t, rows[1].err)
	assert.Equal(t, check.StatusTooOld, rows[1].result.Verdict.Status)
	assert.True(t, errors.Is(rows[2].err, storage.ErrUnavailable))
	assert.Equal(t, "staging", rows[2].result.Rule.Environment)

	var out bytes.Buffer
	failed := writeRows(&out, rows)
	assert.Equal(t, 2, failed)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ENVIRONMENT"))
	assert.Contains(t, lines[1], "valid")
	assert.Contains(t, lines[1], "Backup is OK!")
	assert.Contains(t, lines[2], "too_old")
	assert.Contains(t, lines[3], "error")
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(rules), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"validate", "--config", path})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "Configuration OK: 3 rule(s) in 2 environment(s)\n", out.String())

	require.NoError(t, os.WriteFile(path, []byte(`{"production": {"bucket_name": "b", "region": "r", "backups": {"db": {"age": "1Y"}}}}`), 0o600))
	rootCmd.SetArgs([]string{"validate", "--config", path})
	assert.Error(t, rootCmd.Execute())
}
