package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateJSONAgainstSchema checks a model response against the invoice
// fields schema from BuildInvoiceJSONSchema. The schema arrives as a generic
// map because the same value is sent to OpenAI as the response-format
// constraint; compiling it per call is cheap next to the chat completion
// round-trip.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	raw, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("encode invoice schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("invoice_fields.json", strings.NewReader(string(raw))); err != nil {
		return fmt.Errorf("register invoice schema: %w", err)
	}
	compiled, err := c.Compile("invoice_fields.json")
	if err != nil {
		return fmt.Errorf("compile invoice schema: %w", err)
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode extraction payload: %w", err)
	}
	if err := compiled.Validate(payload); err != nil {
		return fmt.Errorf("extraction payload violates invoice schema: %w", err)
	}
	return nil
}
