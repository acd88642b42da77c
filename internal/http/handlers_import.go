package http

import (
	"bytes"
	"net/http"

	"financify/internal/core"
)

// handleImport reads a CSV body into the account named by ?account_id=.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, uid int64) error {
	accountID, err := queryInt(r, "account_id", 0)
	if err != nil {
		return err
	}
	if accountID <= 0 {
		return core.NewValidationError("account_id", "is required")
	}
	body := http.MaxBytesReader(w, r.Body, maxImportBody)
	res, err := s.engine.Importer.ImportCSV(r.Context(), uid, int64(accountID), body)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, importJSON{Imported: res.Imported, Skipped: res.Skipped})
	return nil
}

// handleExport buffers the CSV so a mid-stream failure still yields a
// proper error status.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, uid int64) error {
	var buf bytes.Buffer
	if err := s.engine.Importer.Export(r.Context(), uid, &buf); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	return nil
}
