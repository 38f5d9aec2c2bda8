package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/imedwei/s3-backup-checker/internal/check"
	"github.com/imedwei/s3-backup-checker/internal/health"
	"github.com/imedwei/s3-backup-checker/internal/metrics"
	"github.com/imedwei/s3-backup-checker/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve backup checks over HTTP",
	Long:  "Start the HTTP server answering GET /{environment}/{backup}, with /metrics and health endpoints.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&settings.Port, "port", settings.Port, "HTTP listen port")
	serveCmd.Flags().BoolVar(&settings.StrictStatus, "strict-status", settings.StrictStatus, "Answer invalid backups with 404/500 instead of 200")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := setupLogging()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	logger.Info("S3 backup checker starting", "version", version, "config", settings.ConfigPath)

	cfg, reg, err := loadRegistry(settings.ConfigPath)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		"environments", len(reg.Environments()),
		"rules", reg.Len(),
		"global_token", cfg.Token != "",
		"strict_status", settings.StrictStatus,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storages, err := buildStorages(ctx, cfg)
	if err != nil {
		return err
	}

	metrics.Rules.Set(float64(reg.Len()))
	metrics.Info.WithLabelValues(version).Set(1)

	checker := check.New(reg, listers(storages), logger)

	serverConfig := server.DefaultConfig()
	serverConfig.Port = settings.Port
	httpServer := server.New(serverConfig, logger, server.NewCheckHandler(checker, logger, settings.StrictStatus))

	httpServer.RegisterHealthCheck("registry", health.StaticCheck(map[string]any{
		"environments": len(reg.Environments()),
		"rules":        reg.Len(),
	}))
	for name, s := range storages {
		httpServer.RegisterHealthCheck("storage:"+name, health.StorageCheck(s, cfg.Environments[name].BucketName))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	logger.Info("S3 backup checker stopped")
	return nil
}
