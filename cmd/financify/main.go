package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"financify/internal/cli"
	apphttp "financify/internal/http"
	"financify/internal/log"
	mem "financify/internal/sheets/memory"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	events := cli.InitAMQP(logger, cfg, false)
	engine := cli.InitEngine(logger, cfg, store, events)
	engine.StartCacheSweeper(cfg.ReportCacheTTL)

	srv := apphttp.NewServer(":"+cfg.Port, engine, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Categories:         mem.NewFromFiles("data"),
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		if events != nil {
			_ = events.Close()
		}
		if err := engine.Close(); err != nil {
			logger.Error("Engine close error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting financify server",
		"port", cfg.Port,
		"events", events != nil,
		"rate_limit_per_minute", cfg.RateLimitPerMinute)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
