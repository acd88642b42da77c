// Command financify-import loads bank statements into an account, from a
// CSV file or the configured spreadsheet range, and exports a user's
// transactions as CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"financify/internal/cli"
	"financify/internal/config"
	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/services"
	gsheet "financify/internal/sheets/google"
)

func main() {
	var (
		userID    = flag.Int64("user", 0, "user id owning the data (required)")
		accountID = flag.Int64("account", 0, "account to import into")
		csvPath   = flag.String("csv", "", "CSV file to import (- for stdin)")
		fromSheet = flag.Bool("sheet", false, "import from GOOGLE_SPREADSHEET_ID / GOOGLE_IMPORT_RANGE")
		export    = flag.String("export", "", "write the user's transactions as CSV to this file (- for stdout)")
	)
	flag.Parse()

	cli.LoadEnvFile()
	// Logs go to stderr so -export - can stream CSV on stdout.
	logger := cli.SetupLoggerTo(log.ComponentImport, os.Stderr)
	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(logger, cfg, *userID, *accountID, *csvPath, *fromSheet, *export); err != nil {
		logger.Error("Import failed", log.FieldError, err.Error(), log.FieldErrorType, log.ErrorType(err))
		os.Exit(1)
	}
}

func run(logger *log.Logger, cfg *config.Config, userID, accountID int64, csvPath string, fromSheet bool, export string) error {
	if userID <= 0 {
		return core.NewValidationError("user", "-user is required")
	}
	modes := 0
	for _, set := range []bool{csvPath != "", fromSheet, export != ""} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return core.NewValidationError("flags", "choose exactly one of -csv, -sheet or -export")
	}
	if export == "" && accountID <= 0 {
		return core.NewValidationError("account", "-account is required for imports")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	events := cli.InitAMQP(logger, cfg, false)
	if events != nil {
		defer events.Close()
	}
	engine := cli.InitEngine(logger, cfg, store, events)
	defer engine.Close()

	switch {
	case export != "":
		return exportCSV(ctx, engine, userID, export)
	case fromSheet:
		if !cfg.SheetsEnabled() {
			return core.NewValidationError("sheet", "GOOGLE_SPREADSHEET_ID is not set")
		}
		src, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			Range:           cfg.GoogleImportRange,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return core.Unavailable("connect to Google Sheets", err)
		}
		res, err := engine.Importer.ImportFrom(ctx, userID, accountID, src)
		return report(logger, res, err)
	default:
		in := os.Stdin
		if csvPath != "-" {
			f, err := os.Open(csvPath)
			if err != nil {
				return fmt.Errorf("open %s: %w", csvPath, err)
			}
			defer f.Close()
			in = f
		}
		res, err := engine.Importer.ImportCSV(ctx, userID, accountID, in)
		return report(logger, res, err)
	}
}

func report(logger *log.Logger, res core.ImportResult, err error) error {
	if err != nil {
		return err
	}
	logger.Info("Import finished", log.FieldImported, res.Imported, log.FieldSkipped, res.Skipped)
	fmt.Printf("imported %d, skipped %d\n", res.Imported, res.Skipped)
	return nil
}

func exportCSV(ctx context.Context, engine *services.Engine, userID int64, path string) (err error) {
	if path == "-" {
		return engine.Importer.Export(ctx, userID, os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return engine.Importer.Export(ctx, userID, f)
}
