package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

// NormalizeAndSanitizeJSON repairs a near-miss model response so it can pass
// strict schema validation:
//   - Fills omitted keys with explicit nulls
//   - Trims strings; empty strings become null
//   - Upper-cases currency and maps common Argentine markers to ARS/USD
//   - Coerces string amounts ("1.234,56", "$ 1234.56") to numbers
//   - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	changed := make([]string, 0, 8)

	allowed := []string{
		"provider_name", "provider_tax_id", "invoice_number",
		"invoice_date", "amount", "currency", "description",
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = struct{}{}
	}

	// 1) drop unknown keys
	for k := range maps.Clone(m) {
		if _, ok := allowedSet[k]; !ok {
			delete(m, k)
			changed = append(changed, k+"(unknown)")
		}
	}

	// 2) every key must exist, null when absent
	for _, k := range allowed {
		if _, ok := m[k]; !ok {
			m[k] = nil
			changed = append(changed, k+"(filled-null)")
		}
	}

	// 3) trim strings; "" -> null; coerce stray numbers on string fields
	for _, k := range []string{"provider_name", "provider_tax_id", "invoice_number", "invoice_date", "description"} {
		switch t := m[k].(type) {
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				m[k] = nil
				changed = append(changed, k+"(empty)")
			} else {
				m[k] = s
			}
		case float64:
			m[k] = strconv.FormatFloat(t, 'f', -1, 64)
			changed = append(changed, k+"(num->str)")
		}
	}

	// 4) currency markers
	if v, ok := m["currency"].(string); ok {
		cur := strings.ToUpper(strings.TrimSpace(v))
		switch cur {
		case "USD", "U$S", "U$D", "US$", "DOLARES", "DÓLARES":
			m["currency"] = "USD"
		case "ARS", "$", "PESOS", "AR$":
			m["currency"] = "ARS"
		case "":
			m["currency"] = nil
			changed = append(changed, "currency(empty)")
		default:
			m["currency"] = nil
			changed = append(changed, "currency(unrecognized)")
		}
	}

	// 5) amount: accept a formatted string
	if v, ok := m["amount"].(string); ok {
		if f, err := ParseLocalizedAmount(v); err == nil && f > 0 {
			m["amount"] = f
			changed = append(changed, "amount(str->num)")
		} else {
			m["amount"] = nil
			changed = append(changed, "amount(unparsable)")
		}
	}
	if f, ok := m["amount"].(float64); ok && f <= 0 {
		m["amount"] = nil
		changed = append(changed, "amount(nonpositive)")
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "changed", changed)
	}
	return out, changed, nil
}

// ParseLocalizedAmount parses "1.234,56", "1,234.56", "$ 1234.56" and plain
// numbers. The last separator seen is taken as the decimal mark.
func ParseLocalizedAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$uU ")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma > lastDot:
		// comma is decimal, dots are thousands
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot > lastComma:
		// dot is decimal, commas are thousands
		s = strings.ReplaceAll(s, ",", "")
	}
	return strconv.ParseFloat(s, 64)
}
