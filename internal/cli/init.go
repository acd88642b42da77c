// Package cli holds the bootstrap steps shared by cmd/financify,
// cmd/financify-worker and cmd/financify-import.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financify/internal/amqp"
	"financify/internal/config"
	"financify/internal/log"
	"financify/internal/services"
	"financify/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and makes it the
// slog default.
func SetupLogger(component string) *log.Logger {
	return SetupLoggerTo(component, os.Stdout)
}

func SetupLoggerTo(component string, out io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: component,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig exits the process when the configuration is invalid.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens and migrates the store, exiting on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err.Error(), "path", dbPath)
		os.Exit(1)
	}
	version, _ := repo.SchemaVersion()
	logger.Info("SQLite store ready", "path", dbPath, "schema_version", version)
	return repo
}

// InitAMQP connects the ledger event client. It returns nil when events are
// disabled or the broker is unreachable and required is false.
func InitAMQP(logger *log.Logger, cfg *config.Config, required bool) *amqp.Client {
	if !cfg.EventsEnabled() {
		logger.Info("Ledger events disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		if required {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		logger.Warn("AMQP unavailable, continuing without ledger events", log.FieldError, err.Error())
		return nil
	}
	logger.Info("AMQP client ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// InitEngine assembles the engine. publisher may be nil.
func InitEngine(logger *log.Logger, cfg *config.Config, store *storage.SQLiteRepository, publisher *amqp.Client) *services.Engine {
	opts := services.DefaultOptions()
	opts.Logger = logger
	opts.CacheSize = cfg.ReportCacheSize
	opts.CacheTTL = cfg.ReportCacheTTL
	if publisher != nil {
		opts.Publisher = publisher
	}
	return services.NewEngine(store, opts)
}

// GracefulShutdown cancels the returned context on SIGINT or SIGTERM, then
// runs cleanup with a deadline of timeout. done is closed once cleanup has
// returned.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until shutdown has finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
