package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
	"github.com/mbalestrini/gastos-backoffice/internal/export"
	"github.com/mbalestrini/gastos-backoffice/internal/ingest"
	"github.com/mbalestrini/gastos-backoffice/internal/repository"
)

// Server wires the HTTP API over the ingestion pipeline and repositories.
type Server struct {
	orchestrator *ingest.Orchestrator
	exporter     *export.Service
	expenses     repository.ExpenseRepository
	providers    repository.ProviderRepository
	companies    repository.CompanyRepository
	costCenters  repository.CostCenterRepository
	expenseTypes repository.ExpenseTypeRepository
	companyAreas repository.CompanyAreaRepository
	periods      repository.BudgetPeriodRepository
	reports      repository.ReportRepository
	logger       *slog.Logger
}

type Deps struct {
	Orchestrator *ingest.Orchestrator
	Exporter     *export.Service
	Expenses     repository.ExpenseRepository
	Providers    repository.ProviderRepository
	Companies    repository.CompanyRepository
	CostCenters  repository.CostCenterRepository
	ExpenseTypes repository.ExpenseTypeRepository
	CompanyAreas repository.CompanyAreaRepository
	Periods      repository.BudgetPeriodRepository
	Reports      repository.ReportRepository
	Logger       *slog.Logger
}

func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orchestrator: d.Orchestrator,
		exporter:     d.Exporter,
		expenses:     d.Expenses,
		providers:    d.Providers,
		companies:    d.Companies,
		costCenters:  d.CostCenters,
		expenseTypes: d.ExpenseTypes,
		companyAreas: d.CompanyAreas,
		periods:      d.Periods,
		reports:      d.Reports,
		logger:       logger,
	}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogging)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/expenses/upload/preview", s.handleUploadPreview).Methods(http.MethodPost)
	api.HandleFunc("/expenses/upload", s.handleUploadCommit).Methods(http.MethodPost)
	api.HandleFunc("/expenses/export", s.handleExportExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id:[0-9]+}", s.handleGetExpense).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id:[0-9]+}", s.handleUpdateExpense).Methods(http.MethodPut)
	api.HandleFunc("/expenses/{id:[0-9]+}", s.handleDeleteExpense).Methods(http.MethodDelete)

	api.HandleFunc("/providers", s.handleListProviders).Methods(http.MethodGet)
	api.HandleFunc("/providers", s.handleCreateProvider).Methods(http.MethodPost)
	api.HandleFunc("/providers/{id:[0-9]+}", s.handleUpdateProvider).Methods(http.MethodPut)
	api.HandleFunc("/providers/{id:[0-9]+}", s.handleDeleteProvider).Methods(http.MethodDelete)

	api.HandleFunc("/companies", s.handleListCompanies).Methods(http.MethodGet)
	api.HandleFunc("/companies", s.handleCreateCompany).Methods(http.MethodPost)
	api.HandleFunc("/companies/{id:[0-9]+}", s.handleRenameCompany).Methods(http.MethodPut)
	api.HandleFunc("/companies/{id:[0-9]+}", s.handleDeleteCompany).Methods(http.MethodDelete)

	api.HandleFunc("/companies/{companyId:[0-9]+}/cost-centers", s.handleListCostCenters).Methods(http.MethodGet)
	api.HandleFunc("/companies/{companyId:[0-9]+}/cost-centers", s.handleCreateCostCenter).Methods(http.MethodPost)
	api.HandleFunc("/cost-centers/{id:[0-9]+}", s.handleRenameCostCenter).Methods(http.MethodPut)
	api.HandleFunc("/cost-centers/{id:[0-9]+}", s.handleDeleteCostCenter).Methods(http.MethodDelete)

	api.HandleFunc("/companies/{companyId:[0-9]+}/areas", s.handleListCompanyAreas).Methods(http.MethodGet)
	api.HandleFunc("/companies/{companyId:[0-9]+}/areas", s.handleCreateCompanyArea).Methods(http.MethodPost)
	api.HandleFunc("/areas/{id:[0-9]+}", s.handleRenameCompanyArea).Methods(http.MethodPut)
	api.HandleFunc("/areas/{id:[0-9]+}", s.handleDeleteCompanyArea).Methods(http.MethodDelete)

	api.HandleFunc("/expense-types", s.handleListExpenseTypes).Methods(http.MethodGet)
	api.HandleFunc("/expense-types", s.handleCreateExpenseType).Methods(http.MethodPost)
	api.HandleFunc("/expense-types/{id:[0-9]+}", s.handleRenameExpenseType).Methods(http.MethodPut)
	api.HandleFunc("/expense-types/{id:[0-9]+}", s.handleDeleteExpenseType).Methods(http.MethodDelete)

	api.HandleFunc("/budget-periods", s.handleListBudgetPeriods).Methods(http.MethodGet)
	api.HandleFunc("/budget-periods", s.handleCreateBudgetPeriod).Methods(http.MethodPost)
	api.HandleFunc("/budget-periods/{id:[0-9]+}/activate", s.handleActivateBudgetPeriod).Methods(http.MethodPost)
	api.HandleFunc("/budget-periods/{id:[0-9]+}", s.handleDeleteBudgetPeriod).Methods(http.MethodDelete)

	api.HandleFunc("/reports/cost-center", s.handleCostCenterReport).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	return r
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		ctx := common.WithRequestID(r.Context(), reqID)
		if uid := r.Header.Get("X-User-Id"); uid != "" {
			ctx = common.WithUserID(ctx, uid)
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
		s.logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"req_id", reqID,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// writeError maps the pipeline's error taxonomy onto HTTP statuses. Duplicate
// invoices carry the conflicting expense in the payload so the client can link
// to it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var dup *common.DuplicateInvoiceError
	if errors.As(err, &dup) {
		writeJSON(w, http.StatusConflict, errorBody{
			Error: dup.Error(),
			Details: map[string]any{
				"existingExpenseId":   dup.ExistingExpenseID,
				"existingInvoiceDate": dup.ExistingInvoiceDate.Format("2006-01-02"),
				"invoiceNumber":       dup.InvoiceNumber,
				"providerName":        dup.ProviderName,
			},
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrUnreadablePDF),
		errors.Is(err, common.ErrMalformedExtraction),
		errors.Is(err, common.ErrUnidentifiedProvider),
		errors.Is(err, common.ErrNoActiveBudgetPeriod),
		errors.Is(err, common.ErrInvalidRate):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrRateUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("http.request.failed", "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func badRequest(msg string) error {
	return &common.AppError{Code: "invalid_input", Message: msg, Cause: common.ErrInvalidInput}
}
