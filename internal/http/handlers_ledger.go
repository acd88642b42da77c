package http

import (
	"net/http"
	"strings"
)

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) error {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	user, err := s.engine.Ledger.RegisterUser(r.Context(), sanitizeInput(req.Username), req.CredentialHash)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, userJSON{ID: user.ID, Username: user.Username})
	return nil
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, uid int64) error {
	if err := s.engine.Ledger.DeleteUser(r.Context(), uid); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// handleReset wipes transactions and budgets but keeps the user's accounts.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, uid int64) error {
	if err := s.engine.Ledger.Wipe(r.Context(), uid); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, uid int64) error {
	accounts, err := s.engine.Ledger.Accounts(r.Context(), uid)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toAccounts(accounts))
	return nil
}

func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request, uid int64) error {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	acc, err := s.engine.Ledger.OpenAccount(r.Context(), uid, sanitizeInput(req.Name), sanitizeInput(req.Type))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, toAccount(acc))
	return nil
}

func (s *Server) handleEnsureDefaultAccount(w http.ResponseWriter, r *http.Request, uid int64) error {
	created, err := s.engine.Ledger.EnsureDefaultAccount(r.Context(), uid)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"created": created})
	return nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, uid int64) error {
	items, err := s.engine.Reports.Transactions(r.Context(), uid, strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toTransactionViews(items))
	return nil
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request, uid int64) error {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return err
	}
	items, err := s.engine.Reports.Recent(r.Context(), uid, limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toTransactionViews(items))
	return nil
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, uid int64) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	tx, err := s.engine.Ledger.Get(r.Context(), uid, id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toTransaction(tx))
	return nil
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request, uid int64) error {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	n, err := req.toNew(s.now())
	if err != nil {
		return err
	}
	id, err := s.engine.Ledger.Add(r.Context(), uid, n)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, idJSON{ID: id})
	return nil
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request, uid int64) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	u, err := req.toUpdate(s.now())
	if err != nil {
		return err
	}
	if err := s.engine.Ledger.Edit(r.Context(), uid, id, u); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, uid int64) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if err := s.engine.Ledger.Delete(r.Context(), uid, id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) handleCloneTransaction(w http.ResponseWriter, r *http.Request, uid int64) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	cloneID, err := s.engine.Ledger.Clone(r.Context(), uid, id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, idJSON{ID: cloneID})
	return nil
}

