package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mbalestrini/gastos-backoffice/internal/entity"
	"github.com/mbalestrini/gastos-backoffice/internal/repository"
)

// Service produces XLSX bytes for expense exports.
type Service struct {
	expenses    repository.ExpenseRepository
	providers   repository.ProviderRepository
	companies   repository.CompanyRepository
	costCenters repository.CostCenterRepository
	types       repository.ExpenseTypeRepository
	logger      *slog.Logger
}

func NewService(
	expenses repository.ExpenseRepository,
	providers repository.ProviderRepository,
	companies repository.CompanyRepository,
	costCenters repository.CostCenterRepository,
	types repository.ExpenseTypeRepository,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		expenses:    expenses,
		providers:   providers,
		companies:   companies,
		costCenters: costCenters,
		types:       types,
		logger:      logger,
	}
}

// ExportExpensesXLSX returns an XLSX workbook (as bytes) for the filtered
// expense set. If only a start date is given the window runs to today.
func (s *Service) ExportExpensesXLSX(ctx context.Context, filters entity.ExpenseFilters) ([]byte, error) {
	start := time.Now()

	if filters.StartDate != nil && filters.EndDate == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		filters.EndDate = &t
	}

	expenses, err := s.expenses.FindAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}

	providerNames, err := s.providerNames(ctx)
	if err != nil {
		return nil, err
	}
	companyNames, costCenterNames, typeNames, err := s.masterNames(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Gastos"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Invoice Date",
		"Company",
		"Provider",
		"Cost Center",
		"Expense Type",
		"Invoice Number",
		"Amount ARS",
		"Amount USD",
		"Exchange Rate",
		"Description",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, e := range expenses {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, e.InvoiceDate.Format("2006-01-02"))
		write(2, companyNames[e.CompanyID])
		write(3, providerNames[e.ProviderID])
		write(4, costCenterNames[e.CostCenterID])
		write(5, typeNames[e.ExpenseTypeID])
		if e.InvoiceNumber != nil {
			write(6, *e.InvoiceNumber)
		} else {
			write(6, "")
		}
		write(7, e.AmountARS)
		write(8, e.AmountUSD)
		write(9, e.ExchangeRate)
		if e.Description != nil {
			write(10, truncate(*e.Description, 140))
		} else {
			write(10, "")
		}

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 14) // date
	_ = f.SetColWidth(sheet, "B", "C", 28) // company, provider
	_ = f.SetColWidth(sheet, "D", "E", 22) // cost center, type
	_ = f.SetColWidth(sheet, "F", "F", 18) // invoice number
	_ = f.SetColWidth(sheet, "G", "I", 14) // amounts, rate
	_ = f.SetColWidth(sheet, "J", "J", 48) // description

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(expenses),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) providerNames(ctx context.Context) (map[int64]string, error) {
	providers, err := s.providers.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	out := make(map[int64]string, len(providers))
	for _, p := range providers {
		out[p.ID] = p.Name
	}
	return out, nil
}

func (s *Service) masterNames(ctx context.Context) (companies, costCenters, types map[int64]string, err error) {
	cs, err := s.companies.FindAll(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("query companies: %w", err)
	}
	companies = make(map[int64]string, len(cs))
	for _, c := range cs {
		companies[c.ID] = c.Name
	}

	ccs, err := s.costCenters.FindAll(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("query cost centers: %w", err)
	}
	costCenters = make(map[int64]string, len(ccs))
	for _, cc := range ccs {
		costCenters[cc.ID] = cc.Name
	}

	ts, err := s.types.FindAll(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("query expense types: %w", err)
	}
	types = make(map[int64]string, len(ts))
	for _, t := range ts {
		types[t.ID] = t.Name
	}
	return companies, costCenters, types, nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
