package llm

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBuildUserPromptTruncatesOnRuneBoundary(t *testing.T) {
	// "í" is two bytes in UTF-8; padding places a continuation byte exactly at
	// the cap so a naive byte slice would split the rune
	text := strings.Repeat("a", invoiceTextLimit-1) + strings.Repeat("í", 4)

	out := BuildUserPrompt(ExtractRequest{InvoiceText: text})
	if !strings.Contains(out, "(truncated)") {
		t.Fatal("long text not truncated")
	}
	if !utf8.ValidString(out) {
		t.Fatal("prompt is not valid UTF-8")
	}
	if strings.Contains(out, "�") {
		t.Fatal("replacement character in prompt")
	}
}

func TestBuildUserPromptShortTextUnchanged(t *testing.T) {
	out := BuildUserPrompt(ExtractRequest{InvoiceText: "  FACTURA A 0001-00012345  "})
	if !strings.Contains(out, "FACTURA A 0001-00012345") {
		t.Fatalf("text missing from prompt: %q", out)
	}
	if strings.Contains(out, "(truncated)") {
		t.Fatalf("short text truncated: %q", out)
	}
}
