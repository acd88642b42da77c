package main

import (
	"context"
	"os"
	"time"

	"financify/internal/cli"
	"financify/internal/log"
	"financify/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting financify-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	// The worker consumes the events the server publishes, so a configured
	// broker must be reachable. Its own repairs are not re-published.
	events := cli.InitAMQP(logger, cfg, true)
	engine := cli.InitEngine(logger, cfg, store, nil)

	var source worker.EventSource
	if events != nil {
		source = events
	}
	auditor := worker.NewAuditor(engine.Ledger, source, worker.Config{
		Interval: cfg.AuditInterval,
		Repair:   cfg.AuditRepair,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := auditor.Stop(ctx); err != nil {
			logger.Error("Auditor stop error", log.FieldError, err.Error())
		}
		if events != nil {
			_ = events.Close()
		}
		_ = engine.Close()
	})

	if err := auditor.Start(ctx); err != nil {
		logger.Error("Failed to start auditor", log.FieldError, err.Error())
		os.Exit(1)
	}

	select {
	case <-auditor.Done():
	case <-ctx.Done():
	}
	if ctx.Err() == nil {
		// The auditor exited on its own: the event source failed for good.
		if err := auditor.Stop(context.Background()); err != nil {
			logger.Error("Auditor exited", log.FieldError, err.Error())
		}
		_ = engine.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
