// Package sheets defines the spreadsheet-backed import sources.
package sheets

import (
	"context"

	"financify/internal/importer"
)

// RecordReader yields raw import records from an external source.
type RecordReader interface {
	ReadRecords(ctx context.Context) ([]importer.Record, error)
}
