package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mbalestrini/gastos-backoffice/internal/entity"
	"github.com/mbalestrini/gastos-backoffice/internal/repository"
)

type nameBody struct {
	Name string `json:"name"`
}

func decodeName(r *http.Request) (string, error) {
	var body nameBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", badRequest("invalid JSON body")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return "", badRequest("name is required")
	}
	return name, nil
}

// --- providers

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.providers.FindAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

type providerBody struct {
	Name  string  `json:"name"`
	TaxID *string `json:"taxId"`
}

func (s *Server) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var body providerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body"))
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		s.writeError(w, r, badRequest("name is required"))
		return
	}
	p, err := s.providers.Create(r.Context(), body.Name, body.TaxID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Name  *string `json:"name"`
		TaxID *string `json:"taxId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body"))
		return
	}
	p, err := s.providers.Update(r.Context(), id, repository.UpdateProvider{Name: body.Name, TaxID: body.TaxID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.providers.SoftDelete)
}

// --- companies

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.companies.FindAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	name, err := decodeName(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.companies.Create(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleRenameCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name, err := decodeName(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.companies.Rename(r.Context(), id, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCompany(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.companies.SoftDelete)
}

// --- cost centers

func (s *Server) handleListCostCenters(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ccs, err := s.costCenters.FindByCompany(r.Context(), companyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ccs)
}

func (s *Server) handleCreateCostCenter(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name, err := decodeName(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cc, err := s.costCenters.Create(r.Context(), companyID, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cc)
}

func (s *Server) handleRenameCostCenter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name, err := decodeName(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cc, err := s.costCenters.Rename(r.Context(), id, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cc)
}

func (s *Server) handleDeleteCostCenter(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.costCenters.SoftDelete)
}

// --- company areas

func (s *Server) handleListCompanyAreas(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	areas, err := s.companyAreas.FindByCompany(r.Context(), companyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, areas)
}

func (s *Server) handleCreateCompanyArea(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name, err := decodeName(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.companyAreas.Create(r.Context(), companyID, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleRenameCompanyArea(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name, err := decodeName(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.companyAreas.Rename(r.Context(), id, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteCompanyArea(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.companyAreas.SoftDelete)
}

// --- expense types

func (s *Server) handleListExpenseTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.expenseTypes.FindAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (s *Server) handleCreateExpenseType(w http.ResponseWriter, r *http.Request) {
	name, err := decodeName(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	et, err := s.expenseTypes.Create(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, et)
}

func (s *Server) handleRenameExpenseType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name, err := decodeName(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	et, err := s.expenseTypes.Rename(r.Context(), id, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, et)
}

func (s *Server) handleDeleteExpenseType(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.expenseTypes.SoftDelete)
}

// --- budget periods

func (s *Server) handleListBudgetPeriods(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("active") == "true" {
		p, err := s.periods.FindActive(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if p == nil {
			writeJSON(w, http.StatusOK, []*entity.BudgetPeriod{})
			return
		}
		writeJSON(w, http.StatusOK, []*entity.BudgetPeriod{p})
		return
	}

	periods, err := s.periods.FindAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, periods)
}

type budgetPeriodBody struct {
	Description string `json:"description"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	IsActive    bool   `json:"isActive"`
}

func (s *Server) handleCreateBudgetPeriod(w http.ResponseWriter, r *http.Request) {
	var body budgetPeriodBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body"))
		return
	}
	body.Description = strings.TrimSpace(body.Description)
	if body.Description == "" {
		s.writeError(w, r, badRequest("description is required"))
		return
	}
	start, err := time.Parse("2006-01-02", body.StartDate)
	if err != nil {
		s.writeError(w, r, badRequest("startDate must be YYYY-MM-DD"))
		return
	}
	end, err := time.Parse("2006-01-02", body.EndDate)
	if err != nil {
		s.writeError(w, r, badRequest("endDate must be YYYY-MM-DD"))
		return
	}
	if end.Before(start) {
		s.writeError(w, r, badRequest("endDate must not precede startDate"))
		return
	}

	p, err := s.periods.Create(r.Context(), repository.NewBudgetPeriod{
		Description: body.Description,
		StartDate:   start,
		EndDate:     end,
		IsActive:    body.IsActive,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleActivateBudgetPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.periods.SetActive(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteBudgetPeriod(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.periods.SoftDelete)
}

func (s *Server) deleteByID(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, id int64) error) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := del(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
