package http

import (
	"net/http"

	"financify/internal/core"
)

func (s *Server) handleGetTotalBudget(w http.ResponseWriter, r *http.Request, uid int64) error {
	p, err := queryPeriod(r, s.now())
	if err != nil {
		return err
	}
	amount, set, err := s.engine.Budgets.Total(r.Context(), uid, p)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, totalBudgetJSON{Year: p.Year, Month: p.Month, Amount: amount, Set: set})
	return nil
}

func (s *Server) handleSetTotalBudget(w http.ResponseWriter, r *http.Request, uid int64) error {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	amount, err := req.amount()
	if err != nil {
		return err
	}
	b := core.TotalBudget{UserID: uid, Period: period(req.Year, req.Month, s.now()), Amount: amount}
	if err := s.engine.Budgets.SetTotal(r.Context(), b); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) handleCategoryBudgets(w http.ResponseWriter, r *http.Request, uid int64) error {
	p, err := queryPeriod(r, s.now())
	if err != nil {
		return err
	}
	rows, err := s.engine.Budgets.WithSpending(r.Context(), uid, p)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toCategorySpending(rows))
	return nil
}

func (s *Server) handleSetCategoryBudget(w http.ResponseWriter, r *http.Request, uid int64) error {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	amount, err := req.amount()
	if err != nil {
		return err
	}
	b := core.CategoryBudget{
		UserID:   uid,
		Category: sanitizeInput(r.PathValue("category")),
		Period:   period(req.Year, req.Month, s.now()),
		Amount:   amount,
	}
	if err := s.engine.Budgets.SetCategory(r.Context(), b); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// handleDeleteCategoryBudget succeeds whether or not the budget existed.
func (s *Server) handleDeleteCategoryBudget(w http.ResponseWriter, r *http.Request, uid int64) error {
	p, err := queryPeriod(r, s.now())
	if err != nil {
		return err
	}
	if err := s.engine.Budgets.DeleteCategory(r.Context(), uid, sanitizeInput(r.PathValue("category")), p); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
