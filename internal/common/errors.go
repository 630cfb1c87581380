package common

import (
	"errors"
	"fmt"
	"time"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Ingestion pipeline failure kinds. Handlers map these to HTTP statuses;
// everything else is an internal error.
var (
	ErrUnreadablePDF        = errors.New("pdf has no extractable text layer")
	ErrMalformedExtraction  = errors.New("malformed extraction response")
	ErrUnidentifiedProvider = errors.New("could not identify invoice provider")
	ErrRateUnavailable      = errors.New("exchange rate unavailable")
	ErrInvalidRate          = errors.New("exchange rate must be greater than zero")
	ErrNoActiveBudgetPeriod = errors.New("no active budget period")
	ErrNotFound             = errors.New("resource not found")
	ErrInvalidInput         = errors.New("invalid input")
)

// DuplicateInvoiceError carries enough for the caller to show the existing
// record. Returned by the commit path only; preview reports duplicates as a
// flag on the draft.
type DuplicateInvoiceError struct {
	ExistingExpenseID   int64
	ExistingInvoiceDate time.Time
	InvoiceNumber       string
	ProviderName        string
}

func (e *DuplicateInvoiceError) Error() string {
	return fmt.Sprintf("invoice %s already recorded for provider %q (expense %d)",
		e.InvoiceNumber, e.ProviderName, e.ExistingExpenseID)
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
