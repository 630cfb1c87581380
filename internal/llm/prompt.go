package llm

import (
	"strings"
	"unicode/utf8"
)

// invoiceTextLimit caps how much extracted PDF text goes into the prompt.
const invoiceTextLimit = 6000

// BuildSystemPrompt composes the system message. The rules encode the traps
// Argentine invoices set for naive extraction: issuer vs billed-to legal
// names, client/account numbers next to the invoice number, administrative
// dates near the header, and 1.234,56-style amount formatting.
func BuildSystemPrompt(req ExtractRequest) string {
	var providersLine string
	if len(req.KnownProviderNames) > 0 {
		providersLine = "Known providers: " + strings.Join(req.KnownProviderNames, ", ") + ". " +
			"If the issuer matches one of them (ignoring case and punctuation), return that exact known name."
	} else {
		providersLine = "There is no known provider list; return the issuer's legal name as printed."
	}

	parts := []string{
		"You are an invoice parser for an Argentine expense back office. Return ONLY JSON that matches the provided JSON Schema.",
		"The invoice has an ISSUER section (the party that emitted it) and a BILLED-TO section (the customer). Both contain a legal name ('Razón Social') and a CUIT. Extract provider_name and provider_tax_id ONLY from the issuer section, never from the billed-to section.",
		providersLine,
		"invoice_number must be the value next to an invoice-number label ('Nro. de Factura', 'Comp. Nro', 'Factura N°'). Never use a client number, account number or customer code ('Nro. de Cliente', 'Nro. de Cuenta').",
		"invoice_date is the emission date printed near the invoice number, in YYYY-MM-DD. Never use administrative dates such as 'Inicio de Actividades' or service-period dates.",
		"amount is the final grand total ('Total', 'Importe Total'), as a plain number: strip currency symbols and thousands separators ('$ 1.234,56' is 1234.56).",
		"currency comes from the marker on the total line: 'U$S'/'USD'/'u$d' means USD, '$' or 'ARS' means ARS. If there is no marker, use ARS.",
		"description is a short phrase (in the invoice's language) describing what was billed.",
		"provider_tax_id is the issuer's CUIT with its printed formatting.",
		"Every schema key must be present. Use null for anything you cannot determine; never omit a key and never invent values.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the extracted PDF text.
func BuildUserPrompt(req ExtractRequest) string {
	text := strings.TrimSpace(req.InvoiceText)

	var b strings.Builder
	b.WriteString("Invoice text extracted from the PDF:\n")
	if len(text) > invoiceTextLimit {
		// back the cut off to a rune boundary so a multi-byte character at
		// the limit is dropped whole instead of split
		cut := invoiceTextLimit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		b.WriteString(text[:cut])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}
