package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
	"github.com/mbalestrini/gastos-backoffice/internal/ingest"
)

// 20 MiB is plenty for a scanned invoice; anything bigger is rejected before
// the pipeline runs.
const maxUploadBytes = 20 << 20

func (s *Server) readUploadedPDF(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, badRequest("multipart form required with a 'file' part")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest("missing 'file' part")
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		return nil, badRequest("only PDF files are accepted")
	}
	pdf, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(pdf) == 0 {
		return nil, badRequest("uploaded file is empty")
	}
	return pdf, nil
}

func (s *Server) handleUploadPreview(w http.ResponseWriter, r *http.Request) {
	pdf, err := s.readUploadedPDF(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	draft, err := s.orchestrator.Preview(r.Context(), pdf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleUploadCommit(w http.ResponseWriter, r *http.Request) {
	pdf, err := s.readUploadedPDF(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// created_by comes from the optional X-User-Id header (placed in the
	// context by the logging middleware); the form field is a fallback for
	// clients that cannot set headers.
	createdBy := common.UserIDFromContext(r.Context())
	if createdBy == "" {
		createdBy = r.FormValue("createdBy")
	}
	req := ingest.CommitRequest{PDF: pdf, CreatedBy: createdBy}

	if req.CompanyID, err = requiredFormID(r, "companyId"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.CostCenterID, err = requiredFormID(r, "costCenterId"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ExpenseTypeID, err = requiredFormID(r, "expenseTypeId"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.BudgetPeriodID, err = optionalFormID(r, "budgetPeriodId"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.CompanyAreaID, err = optionalFormID(r, "companyAreaId"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.AdditionalCompanyIDs, err = formIDList(r, "additionalCompanyIds"); err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.orchestrator.Commit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func requiredFormID(r *http.Request, field string) (int64, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return 0, badRequest(field + " is required")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(field + " must be a positive integer")
	}
	return id, nil
}

func optionalFormID(r *http.Request, field string) (*int64, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil, badRequest(field + " must be a positive integer")
	}
	return &id, nil
}

// formIDList parses a comma-separated id list ("2,5,9").
func formIDList(r *http.Request, field string) ([]int64, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, badRequest(field + " must be a comma-separated list of positive integers")
		}
		out = append(out, id)
	}
	return out, nil
}
