package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/imedwei/s3-backup-checker/internal/config"
	"github.com/imedwei/s3-backup-checker/internal/logging"
	"github.com/imedwei/s3-backup-checker/internal/registry"
	"github.com/imedwei/s3-backup-checker/internal/storage"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	settings = config.DefaultServer()

	rootCmd = &cobra.Command{
		Use:           "backup-checker",
		Short:         "S3 backup freshness checker",
		Long:          "Checks that the newest backup in an S3 bucket is recent and large enough, over HTTP or from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&settings.ConfigPath, "config", settings.ConfigPath, "Path to the JSON rule file")
	rootCmd.PersistentFlags().StringVar(&settings.LogLevel, "log-level", settings.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&settings.LogFormat, "log-format", settings.LogFormat, "Log format (text, json)")
	rootCmd.PersistentFlags().DurationVar(&settings.StorageTimeout, "storage-timeout", settings.StorageTimeout, "Timeout for a single storage listing")
	rootCmd.PersistentFlags().IntVar(&settings.StorageRetries, "storage-retries", settings.StorageRetries, "Attempts per storage operation")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setupLogging installs the default logger from the persistent flags.
func setupLogging() (*slog.Logger, error) {
	logger, err := logging.New(settings.LogLevel, settings.LogFormat, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// loadRegistry reads the rule file and builds the registry from it.
func loadRegistry(path string) (*config.Config, *registry.Registry, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	reg, err := registry.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build rules: %w", err)
	}

	return cfg, reg, nil
}

// buildStorages creates one retrying S3 client per environment.
func buildStorages(ctx context.Context, cfg *config.Config) (map[string]*storage.RetryableStorage, error) {
	retry := storage.DefaultRetryConfig()
	retry.MaxAttempts = settings.StorageRetries

	opts := storage.Options{
		Timeout: settings.StorageTimeout,
		Retry:   retry,
	}

	storages := make(map[string]*storage.RetryableStorage, len(cfg.Environments))
	for _, name := range cfg.EnvironmentNames() {
		s, err := storage.NewStorage(ctx, cfg.Environments[name], opts)
		if err != nil {
			return nil, fmt.Errorf("environment %q: %w", name, err)
		}
		storages[name] = s
	}

	return storages, nil
}

func listers(storages map[string]*storage.RetryableStorage) map[string]storage.Lister {
	out := make(map[string]storage.Lister, len(storages))
	for name, s := range storages {
		out[name] = s
	}
	return out
}
