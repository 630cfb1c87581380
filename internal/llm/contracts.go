package llm

import "context"

// InvoiceFields is the normalized shape we want from the model. Every key is
// present in the response; unknown values are explicit nulls, never omitted
// keys, so pointers distinguish "absent" from zero values.
type InvoiceFields struct {
	ProviderName  *string  `json:"provider_name"`
	ProviderTaxID *string  `json:"provider_tax_id"` // CUIT, formatting as printed
	InvoiceNumber *string  `json:"invoice_number"`
	InvoiceDate   *string  `json:"invoice_date"` // YYYY-MM-DD
	Amount        *float64 `json:"amount"`       // grand total, separators stripped
	Currency      *string  `json:"currency"`     // "ARS" | "USD"
	Description   *string  `json:"description"`
}

type ExtractRequest struct {
	InvoiceText        string
	KnownProviderNames []string
}

// FieldExtractor is the interface the ingestion pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (InvoiceFields, []byte /*rawJSON*/, error)
}
