package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"financify/internal/amqp"
	"financify/internal/core"
	"financify/internal/importer"
	"financify/internal/log"
	"financify/internal/sheets"
	"financify/internal/storage"
)

// ImportService applies bulk record batches to one account. A batch is all
// or nothing, and re-importing the same records is a no-op.
type ImportService struct {
	store  *storage.SQLiteRepository
	notify *notifier
	now    func() time.Time
}

// ImportBatch normalizes records and applies them in one unit. Records that
// duplicate an existing transaction of the user on date, amount magnitude
// and description are skipped. Unparsable dates fall back to today; an
// unparsable amount fails the whole batch before anything is written.
func (s *ImportService) ImportBatch(ctx context.Context, userID, accountID int64, records []importer.Record) (core.ImportResult, error) {
	fields := log.NewFields().WithUser(userID)
	fields[log.FieldAccountID] = accountID

	batch, err := importer.ToTransactions(records, s.now())
	if err != nil {
		return core.ImportResult{}, s.fail(ctx, err, fields)
	}

	res, err := s.store.ImportTransactions(ctx, userID, accountID, batch)
	if err != nil {
		return core.ImportResult{}, s.fail(ctx, err, fields)
	}

	ev := amqp.NewLedgerEvent(amqp.ImportCommitted, userID, accountID)
	ev.Imported = res.Imported
	s.notify.committed(ctx, log.ComponentImport, log.OpImport, ev, fields.WithImport(res.Imported, res.Skipped))
	return res, nil
}

// ImportCSV reads a header-led CSV document and imports its rows.
func (s *ImportService) ImportCSV(ctx context.Context, userID, accountID int64, r io.Reader) (core.ImportResult, error) {
	records, err := importer.ReadCSV(r)
	if err != nil {
		return core.ImportResult{}, s.fail(ctx, err, log.NewFields().WithUser(userID))
	}
	return s.ImportBatch(ctx, userID, accountID, records)
}

// ImportFrom pulls records from an external source such as a spreadsheet.
func (s *ImportService) ImportFrom(ctx context.Context, userID, accountID int64, src sheets.RecordReader) (core.ImportResult, error) {
	records, err := src.ReadRecords(ctx)
	if err != nil {
		err = core.Unavailable("read import source", err)
		return core.ImportResult{}, s.fail(ctx, err, log.NewFields().WithUser(userID))
	}
	return s.ImportBatch(ctx, userID, accountID, records)
}

// Export writes the user's transactions as CSV in the import column layout.
func (s *ImportService) Export(ctx context.Context, userID int64, w io.Writer) error {
	items, err := s.store.ListTransactions(ctx, userID, "", 0)
	if err != nil {
		return err
	}
	if err := importer.WriteCSV(w, items); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func (s *ImportService) fail(ctx context.Context, err error, fields log.LogFields) error {
	s.notify.failed(ctx, "Import failed", err, log.ComponentImport, log.OpImport, fields)
	return err
}
