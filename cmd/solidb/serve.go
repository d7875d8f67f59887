package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solidb/solidb/pkg/admin"
	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/driver"
	"github.com/solidb/solidb/pkg/httpapi"
	"github.com/solidb/solidb/pkg/log"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/ttl"
	"github.com/solidb/solidb/pkg/txn"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the SoliDB server",
	Long: `Start the HTTP/JSON API, the binary driver protocol listener, the
transaction manager's recovery pass, and the TTL reaper against a single
data directory.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig
	logger := log.WithComponent("serve")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	catalog := document.NewCatalog(cfg.DataDir)

	txMgr, err := txn.Open(catalog, cfg.DataDir, cfg.TransactionTimeout())
	if err != nil {
		return fmt.Errorf("open transaction manager: %w", err)
	}
	if err := txMgr.Recover(); err != nil {
		return fmt.Errorf("recover transaction log: %w", err)
	}
	logger.Info().Msg("transaction log recovered")

	sysDB, err := admin.Bootstrap(catalog, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap system database: %w", err)
	}
	if _, err := sysDB.Collection(admin.CollectionAdmins); err != nil {
		return fmt.Errorf("verify system database: %w", err)
	}

	views := exec.NewViewRegistry()

	ttlWorker := ttl.NewWorker(catalog, cfg.TTLSweepInterval())
	ttlWorker.Start()
	logger.Info().Dur("interval", cfg.TTLSweepInterval()).Msg("TTL reaper started")

	httpServer := httpapi.New(catalog, txMgr, views, cfg)
	httpErrCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP/JSON API listening")
		if err := httpServer.Start(cfg.ListenAddr); err != nil {
			httpErrCh <- err
		}
	}()

	driverServer := driver.New(catalog, txMgr, views, cfg.MaxMessageSize)
	driverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.DriverListenAddr).Msg("binary driver protocol listening")
		if err := driverServer.Serve(cfg.DriverListenAddr); err != nil {
			driverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case err := <-httpErrCh:
		logger.Error().Err(err).Msg("HTTP server exited unexpectedly")
	case err := <-driverErrCh:
		logger.Error().Err(err).Msg("driver server exited unexpectedly")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server shutdown error")
	}
	if err := driverServer.Close(); err != nil {
		logger.Warn().Err(err).Msg("driver server shutdown error")
	}
	ttlWorker.Stop()
	if err := txMgr.Close(); err != nil {
		logger.Warn().Err(err).Msg("transaction manager close error")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
