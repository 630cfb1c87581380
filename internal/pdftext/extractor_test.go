package pdftext

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
)

type fakeRunner struct {
	stdout   []byte
	stderr   []byte
	err      error
	gotName  string
	gotArgs  []string
	lastPath string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.gotName = name
	f.gotArgs = args
	if len(args) >= 2 {
		f.lastPath = args[len(args)-2]
	}
	return f.stdout, f.stderr, f.err
}

func TestExtractText(t *testing.T) {
	runner := &fakeRunner{stdout: []byte("FACTURA A\nACME S.A.\n\fpage two")}
	e := NewExtractorWithRunner(Config{Pdftotext: "pdftotext"}, runner, nil)

	res, err := e.ExtractText(context.Background(), []byte("%PDF-1.4 fake"))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(res.Text, "ACME S.A.") {
		t.Errorf("text missing content: %q", res.Text)
	}
	if res.Pages != 2 {
		t.Errorf("Pages = %d, want 2 (one form feed)", res.Pages)
	}

	if runner.gotName != "pdftotext" {
		t.Errorf("binary = %q", runner.gotName)
	}
	want := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	for i, a := range want {
		if i >= len(runner.gotArgs) || runner.gotArgs[i] != a {
			t.Fatalf("args = %v, want prefix %v", runner.gotArgs, want)
		}
	}
	if last := runner.gotArgs[len(runner.gotArgs)-1]; last != "-" {
		t.Errorf("last arg = %q, want stdout marker", last)
	}
	// the temp file must be cleaned up after extraction
	if _, err := os.Stat(runner.lastPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file %s still exists", runner.lastPath)
	}
}

func TestExtractTextCommandFailure(t *testing.T) {
	runner := &fakeRunner{stderr: []byte("Syntax Error: not a PDF"), err: fmt.Errorf("exit status 1")}
	e := NewExtractorWithRunner(Config{}, runner, nil)

	_, err := e.ExtractText(context.Background(), []byte("not a pdf"))
	if !errors.Is(err, common.ErrUnreadablePDF) {
		t.Fatalf("expected ErrUnreadablePDF, got %v", err)
	}
}

func TestExtractTextEmptyOutput(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
	}{
		{name: "nothing", stdout: ""},
		{name: "whitespace only", stdout: " \n\t\f\n "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{stdout: []byte(tt.stdout)}
			e := NewExtractorWithRunner(Config{}, runner, nil)

			_, err := e.ExtractText(context.Background(), []byte("%PDF-1.4 scanned"))
			if !errors.Is(err, common.ErrUnreadablePDF) {
				t.Fatalf("expected ErrUnreadablePDF, got %v", err)
			}
		})
	}
}
