package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/mbalestrini/gastos-backoffice/internal/entity"
	"github.com/mbalestrini/gastos-backoffice/internal/ingest"
)

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(name + " must be a positive integer")
	}
	return id, nil
}

func queryID(r *http.Request, name string) (*int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil, badRequest(name + " must be a positive integer")
	}
	return &id, nil
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, badRequest(name + " must be YYYY-MM-DD")
	}
	return &t, nil
}

func expenseFiltersFromQuery(r *http.Request) (entity.ExpenseFilters, error) {
	var f entity.ExpenseFilters
	var err error
	if f.CompanyID, err = queryID(r, "companyId"); err != nil {
		return f, err
	}
	if f.ProviderID, err = queryID(r, "providerId"); err != nil {
		return f, err
	}
	if f.CostCenterID, err = queryID(r, "costCenterId"); err != nil {
		return f, err
	}
	if f.ExpenseTypeID, err = queryID(r, "expenseTypeId"); err != nil {
		return f, err
	}
	if f.BudgetPeriodID, err = queryID(r, "budgetPeriodId"); err != nil {
		return f, err
	}
	if f.StartDate, err = queryDate(r, "startDate"); err != nil {
		return f, err
	}
	if f.EndDate, err = queryDate(r, "endDate"); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filters, err := expenseFiltersFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	expenses, err := s.expenses.FindAll(r.Context(), filters)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []*entity.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.expenses.FindByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type updateExpenseBody struct {
	ProviderID     *int64   `json:"providerId"`
	CostCenterID   *int64   `json:"costCenterId"`
	ExpenseTypeID  *int64   `json:"expenseTypeId"`
	BudgetPeriodID *int64   `json:"budgetPeriodId"`
	CompanyAreaID  *int64   `json:"companyAreaId"`
	InvoiceNumber  *string  `json:"invoiceNumber"`
	InvoiceDate    *string  `json:"invoiceDate"`
	AmountARS      *float64 `json:"amountArs"`
	Description    *string  `json:"description"`
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body updateExpenseBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body"))
		return
	}

	req := ingest.EditRequest{
		ProviderID:     body.ProviderID,
		CostCenterID:   body.CostCenterID,
		ExpenseTypeID:  body.ExpenseTypeID,
		BudgetPeriodID: body.BudgetPeriodID,
		CompanyAreaID:  body.CompanyAreaID,
		InvoiceNumber:  body.InvoiceNumber,
		AmountARS:      body.AmountARS,
		Description:    body.Description,
	}
	if body.AmountARS != nil && *body.AmountARS <= 0 {
		s.writeError(w, r, badRequest("amountArs must be greater than zero"))
		return
	}
	if body.InvoiceDate != nil {
		d, err := time.Parse("2006-01-02", *body.InvoiceDate)
		if err != nil {
			s.writeError(w, r, badRequest("invoiceDate must be YYYY-MM-DD"))
			return
		}
		req.InvoiceDate = &d
	}

	updated, err := s.orchestrator.UpdateExpense(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.expenses.SoftDelete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportExpenses(w http.ResponseWriter, r *http.Request) {
	filters, err := expenseFiltersFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	xlsx, err := s.exporter.ExportExpensesXLSX(r.Context(), filters)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filename := "gastos-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}
