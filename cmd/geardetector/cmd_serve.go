package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/api"
	"github.com/gear-detector/backend/internal/metrics"
	appLogger "github.com/gear-detector/backend/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Gear Detector API Server", zap.String("version", version))
	metrics.Init()

	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	deps := api.Dependencies{
		Engine: c.engine,
		Health: c.healthHandler(),
	}
	if c.sqlite != nil {
		deps.History = c.sqlite
	}
	srv := api.NewServer(cfg, deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	appLogger.Info("Server shutting down gracefully...")
	if err := srv.Shutdown(); err != nil {
		appLogger.Error("Shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
	return nil
}
