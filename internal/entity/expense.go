package entity

import "time"

// Expense is one persisted row per (invoice, participating company) pair.
// AmountUSD == AmountARS / ExchangeRate always holds; all rows prorated from
// the same invoice share the same ExchangeRate.
type Expense struct {
	ID             int64      `json:"id"`
	CompanyID      int64      `json:"companyId"`
	ProviderID     int64      `json:"providerId"`
	CostCenterID   int64      `json:"costCenterId"`
	ExpenseTypeID  int64      `json:"expenseTypeId"`
	BudgetPeriodID int64      `json:"budgetPeriodId"`
	CompanyAreaID  *int64     `json:"companyAreaId,omitempty"`
	InvoiceNumber  *string    `json:"invoiceNumber,omitempty"`
	InvoiceDate    time.Time  `json:"invoiceDate"`
	AmountARS      float64    `json:"amountArs"`
	AmountUSD      float64    `json:"amountUsd"`
	ExchangeRate   float64    `json:"exchangeRate"`
	Description    *string    `json:"description,omitempty"`
	CreatedBy      *string    `json:"createdBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
}

// ExpenseFilters narrows expense listings.
type ExpenseFilters struct {
	CompanyID      *int64
	ProviderID     *int64
	CostCenterID   *int64
	ExpenseTypeID  *int64
	BudgetPeriodID *int64
	StartDate      *time.Time
	EndDate        *time.Time
}
