package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/mbalestrini/gastos-backoffice/internal/repository"
)

// DuplicateCheck reports whether an invoice was already recorded.
type DuplicateCheck struct {
	IsDuplicate  bool
	ExpenseID    *int64
	InvoiceDate  *time.Time
	ProviderName string
}

// CheckDuplicate looks up a prior expense for the (invoice number, provider)
// pair. It only runs when both are present: a missing invoice number cannot
// be deduplicated, and without a resolved provider the number alone is
// meaningless. On preview this is advisory; the commit path re-checks inside
// the insert transaction.
func CheckDuplicate(ctx context.Context, expenses repository.ExpenseRepository, invoiceNumber string, providerID *int64) (DuplicateCheck, error) {
	if invoiceNumber == "" || providerID == nil {
		return DuplicateCheck{}, nil
	}

	normalized := repository.NormalizeInvoiceNumber(invoiceNumber)
	if normalized == "" {
		return DuplicateCheck{}, nil
	}

	match, err := expenses.FindByInvoiceNumberAndProvider(ctx, normalized, *providerID)
	if err != nil {
		return DuplicateCheck{}, fmt.Errorf("duplicate lookup: %w", err)
	}
	if match == nil {
		return DuplicateCheck{}, nil
	}

	id := match.ID
	date := match.InvoiceDate
	return DuplicateCheck{
		IsDuplicate:  true,
		ExpenseID:    &id,
		InvoiceDate:  &date,
		ProviderName: match.ProviderName,
	}, nil
}
