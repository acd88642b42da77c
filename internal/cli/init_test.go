package cli

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"financify/internal/config"
	"financify/internal/log"
)

func TestInitAMQP_Disabled(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})
	if c := InitAMQP(logger, &config.Config{}, true); c != nil {
		t.Fatalf("expected nil client when AMQP_URL is empty")
	}
}

func TestInitEngine(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})
	cfg := &config.Config{ReportCacheSize: 8, ReportCacheTTL: 60e9}
	store := InitSQLite(logger, filepath.Join(t.TempDir(), "cli.db"))

	engine := InitEngine(logger, cfg, store, nil)
	defer engine.Close()

	if err := engine.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() = %v", err)
	}
	u, err := engine.Ledger.RegisterUser(context.Background(), "alice", "x")
	if err != nil {
		t.Fatalf("RegisterUser() = %v", err)
	}
	if u.ID == 0 {
		t.Error("expected a user id")
	}
}
