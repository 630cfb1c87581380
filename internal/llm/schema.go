package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to OpenAI as a structured output constraint and
// also use it locally to validate. Every key is required and nullable: the
// extraction contract is "explicit null, never an omitted key".
func BuildInvoiceJSONSchema() map[string]any {
	props := map[string]any{
		"provider_name":   nullableString(1),
		"provider_tax_id": nullableString(1),
		"invoice_number":  nullableString(1),
		"invoice_date": map[string]any{
			"type":    []string{"string", "null"},
			"pattern": `^\d{4}-\d{2}-\d{2}$`,
		},
		"amount": map[string]any{
			"type":             []string{"number", "null"},
			"exclusiveMinimum": 0.0,
		},
		"currency": map[string]any{
			"enum": []any{"ARS", "USD", nil},
		},
		"description": nullableString(0),
	}
	required := []string{
		"provider_name", "provider_tax_id", "invoice_number",
		"invoice_date", "amount", "currency", "description",
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func nullableString(minLen int) map[string]any {
	p := map[string]any{"type": []string{"string", "null"}}
	if minLen > 0 {
		p["minLength"] = minLen
	}
	return p
}
