package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
)

func testServer() *Server {
	return New(Deps{})
}

func doWriteError(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	s := testServer()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	s.writeError(w, r, err)
	return w
}

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid input", err: badRequest("nope"), want: http.StatusBadRequest},
		{name: "not found", err: fmt.Errorf("expense 9: %w", common.ErrNotFound), want: http.StatusNotFound},
		{name: "unreadable pdf", err: fmt.Errorf("%w: no text", common.ErrUnreadablePDF), want: http.StatusUnprocessableEntity},
		{name: "malformed extraction", err: common.ErrMalformedExtraction, want: http.StatusUnprocessableEntity},
		{name: "unidentified provider", err: common.ErrUnidentifiedProvider, want: http.StatusUnprocessableEntity},
		{name: "no active period", err: common.ErrNoActiveBudgetPeriod, want: http.StatusUnprocessableEntity},
		{name: "rate unavailable", err: fmt.Errorf("%w: down", common.ErrRateUnavailable), want: http.StatusBadGateway},
		{name: "unknown error", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doWriteError(t, tt.err)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	w := doWriteError(t, errors.New("pq: secret connection string"))
	if strings.Contains(w.Body.String(), "secret") {
		t.Fatalf("internal detail leaked: %s", w.Body.String())
	}
}

func TestWriteErrorDuplicatePayload(t *testing.T) {
	w := doWriteError(t, &common.DuplicateInvoiceError{
		ExistingExpenseID:   42,
		ExistingInvoiceDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		InvoiceNumber:       "0001-00012345",
		ProviderName:        "ACME S.A.",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}

	var body struct {
		Error   string `json:"error"`
		Details struct {
			ExistingExpenseID   int64  `json:"existingExpenseId"`
			ExistingInvoiceDate string `json:"existingInvoiceDate"`
			InvoiceNumber       string `json:"invoiceNumber"`
			ProviderName        string `json:"providerName"`
		} `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Details.ExistingExpenseID != 42 {
		t.Errorf("existingExpenseId = %d, want 42", body.Details.ExistingExpenseID)
	}
	if body.Details.ExistingInvoiceDate != "2024-02-01" {
		t.Errorf("existingInvoiceDate = %q", body.Details.ExistingInvoiceDate)
	}
}

func TestUserIDHeaderFlowsToContext(t *testing.T) {
	s := testServer()
	var got string
	h := s.requestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = common.UserIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/expenses/upload", nil)
	r.Header.Set("X-User-Id", "mbalestrini")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if got != "mbalestrini" {
		t.Fatalf("user id from context = %q, want mbalestrini", got)
	}

	got = "unset"
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/expenses/upload", nil))
	if got != "" {
		t.Fatalf("user id without header = %q, want empty", got)
	}
}

func formRequest(values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/test", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestFormIDHelpers(t *testing.T) {
	r := formRequest(url.Values{
		"companyId":            {"10"},
		"budgetPeriodId":       {""},
		"additionalCompanyIds": {"2, 5,9"},
		"badId":                {"abc"},
	})

	if id, err := requiredFormID(r, "companyId"); err != nil || id != 10 {
		t.Errorf("requiredFormID(companyId) = %d, %v", id, err)
	}
	if _, err := requiredFormID(r, "missing"); err == nil {
		t.Error("requiredFormID(missing) should fail")
	}
	if _, err := requiredFormID(r, "badId"); err == nil {
		t.Error("requiredFormID(badId) should fail")
	}

	if p, err := optionalFormID(r, "budgetPeriodId"); err != nil || p != nil {
		t.Errorf("optionalFormID(empty) = %v, %v, want nil, nil", p, err)
	}

	ids, err := formIDList(r, "additionalCompanyIds")
	if err != nil {
		t.Fatalf("formIDList: %v", err)
	}
	if len(ids) != 3 || ids[0] != 2 || ids[1] != 5 || ids[2] != 9 {
		t.Fatalf("formIDList = %v, want [2 5 9]", ids)
	}

	if ids, err := formIDList(r, "missing"); err != nil || ids != nil {
		t.Errorf("formIDList(missing) = %v, %v, want nil, nil", ids, err)
	}
}

func TestQueryDate(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/expenses?startDate=2024-03-01&endDate=tomorrow", nil)

	d, err := queryDate(r, "startDate")
	if err != nil || d == nil || d.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("queryDate(startDate) = %v, %v", d, err)
	}
	if _, err := queryDate(r, "endDate"); err == nil {
		t.Error("queryDate(endDate) should reject a non-ISO date")
	}
	if d, err := queryDate(r, "missing"); err != nil || d != nil {
		t.Errorf("queryDate(missing) = %v, %v, want nil, nil", d, err)
	}
}

func TestRouterKnownRoutes(t *testing.T) {
	s := testServer()
	router := s.Router()

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/expenses/upload/preview"},
		{http.MethodPost, "/api/expenses/upload"},
		{http.MethodGet, "/api/expenses"},
		{http.MethodGet, "/api/expenses/export"},
		{http.MethodGet, "/api/providers"},
		{http.MethodGet, "/api/companies"},
		{http.MethodGet, "/api/companies/1/cost-centers"},
		{http.MethodGet, "/api/expense-types"},
		{http.MethodGet, "/api/budget-periods"},
		{http.MethodGet, "/api/reports/cost-center"},
		{http.MethodGet, "/healthz"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.path, nil)
		var m mux.RouteMatch
		if !router.Match(r, &m) {
			t.Errorf("%s %s did not match any route", tt.method, tt.path)
		}
	}
}
