package server

import (
	"net/http"

	"github.com/mbalestrini/gastos-backoffice/internal/repository"
)

func (s *Server) handleCostCenterReport(w http.ResponseWriter, r *http.Request) {
	budgetPeriodID, err := queryID(r, "budgetPeriodId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	totals, err := s.reports.CostCenterTotals(r.Context(), budgetPeriodID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if totals == nil {
		totals = []*repository.CostCenterTotal{}
	}
	writeJSON(w, http.StatusOK, totals)
}
