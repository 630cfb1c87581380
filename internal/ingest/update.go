package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/mbalestrini/gastos-backoffice/internal/entity"
	"github.com/mbalestrini/gastos-backoffice/internal/fx"
	"github.com/mbalestrini/gastos-backoffice/internal/repository"
)

// EditRequest patches one expense row. Nil fields keep their stored value.
// Moving the invoice date re-resolves the exchange rate for the new date and
// recomputes the USD amount; changing only the ARS amount reuses the stored
// rate.
type EditRequest struct {
	ProviderID     *int64
	CostCenterID   *int64
	ExpenseTypeID  *int64
	BudgetPeriodID *int64
	CompanyAreaID  *int64
	InvoiceNumber  *string
	InvoiceDate    *time.Time
	AmountARS      *float64
	Description    *string
}

// UpdateExpense applies an edit. Unlike preview, a rate outage here is fatal:
// a row must never be stored with a stale conversion after its date moved.
func (o *Orchestrator) UpdateExpense(ctx context.Context, id int64, req EditRequest) (*entity.Expense, error) {
	current, err := o.expenses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	upd := repository.UpdateExpense{
		ProviderID:     req.ProviderID,
		CostCenterID:   req.CostCenterID,
		ExpenseTypeID:  req.ExpenseTypeID,
		BudgetPeriodID: req.BudgetPeriodID,
		CompanyAreaID:  req.CompanyAreaID,
		InvoiceNumber:  req.InvoiceNumber,
		InvoiceDate:    req.InvoiceDate,
		AmountARS:      req.AmountARS,
		Description:    req.Description,
	}

	rate := current.ExchangeRate
	dateMoved := req.InvoiceDate != nil && !sameDay(*req.InvoiceDate, current.InvoiceDate)
	if dateMoved {
		rate, err = o.rates.GetRate(ctx, *req.InvoiceDate)
		if err != nil {
			return nil, fmt.Errorf("re-resolve exchange rate for %s: %w",
				req.InvoiceDate.Format("2006-01-02"), err)
		}
		upd.ExchangeRate = &rate
	}

	if dateMoved || req.AmountARS != nil {
		ars := current.AmountARS
		if req.AmountARS != nil {
			ars = *req.AmountARS
		}
		usd, err := fx.ToUSD(ars, rate)
		if err != nil {
			return nil, err
		}
		upd.AmountUSD = &usd
	}

	updated, err := o.expenses.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	o.logger.Info("ingest.expense.updated",
		"expense_id", id,
		"date_moved", dateMoved,
		"rate", updated.ExchangeRate,
	)
	return updated, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
