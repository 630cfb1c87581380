package entity

import "time"

// InvoiceDraft is the ephemeral result of the preview step. It is never
// persisted; the caller edits classification fields and commits separately.
// Once resolved, AmountUSD == AmountARS / ExchangeRate whenever ExchangeRate
// is positive. ExchangeRate 0 means the rate lookup failed on the preview
// path; Warnings carries the reason.
type InvoiceDraft struct {
	ProviderID    *int64 `json:"providerId"`
	ProviderName  string `json:"providerName"`
	ProviderTaxID string `json:"providerTaxId"`

	InvoiceNumber string    `json:"invoiceNumber"`
	InvoiceDate   time.Time `json:"invoiceDate"`

	CurrencyOriginal string  `json:"currencyOriginal"`
	AmountOriginal   float64 `json:"amountOriginal"`
	AmountARS        float64 `json:"amountArs"`
	AmountUSD        float64 `json:"amountUsd"`
	ExchangeRate     float64 `json:"exchangeRate"`

	Description string `json:"description"`

	BudgetPeriodID          *int64 `json:"budgetPeriodId"`
	BudgetPeriodDescription string `json:"budgetPeriodDescription,omitempty"`

	IsDuplicate         bool       `json:"isDuplicate"`
	ExistingExpenseID   *int64     `json:"existingExpenseId"`
	ExistingExpenseDate *time.Time `json:"existingExpenseDate"`

	Warnings []string `json:"warnings,omitempty"`
}
