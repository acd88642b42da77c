package http

import (
	"net/http"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, uid int64) error {
	p, err := queryPeriod(r, s.now())
	if err != nil {
		return err
	}
	summary, err := s.engine.Reports.Dashboard(r.Context(), uid, p)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toSummary(summary))
	return nil
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request, uid int64) error {
	p, err := queryPeriod(r, s.now())
	if err != nil {
		return err
	}
	rows, err := s.engine.Reports.Breakdown(r.Context(), uid, p)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toBreakdown(rows))
	return nil
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request, uid int64) error {
	months, err := s.engine.Reports.Trend(r.Context(), uid)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toTrend(months))
	return nil
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request, uid int64) error {
	p, err := queryPeriod(r, s.now())
	if err != nil {
		return err
	}
	ov, err := s.engine.Reports.Overview(r.Context(), uid, p)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, toOverview(ov))
	return nil
}
