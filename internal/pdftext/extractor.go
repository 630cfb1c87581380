package pdftext

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
}

// ExtractionResult is the outcome of a pdftotext run.
type ExtractionResult struct {
	Text     string
	Pages    int
	Duration time.Duration
	Warnings []string
}

// Extractor converts invoice PDFs into plain text. Scanned PDFs without a
// text layer are rejected with common.ErrUnreadablePDF rather than routed
// through OCR; extraction quality downstream depends on a real text layer.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// NewExtractorWithRunner is used by tests to stub the external command.
func NewExtractorWithRunner(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	e := NewExtractor(cfg, logger)
	e.runner = runner
	return e
}

// ExtractText writes the PDF bytes to a temp file and runs
// pdftotext -layout -enc UTF-8 -eol unix <file> -
func (e *Extractor) ExtractText(ctx context.Context, pdf []byte) (ExtractionResult, error) {
	start := time.Now()

	tmpDir, err := os.MkdirTemp("", "gb-pdf-*")
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	path := filepath.Join(tmpDir, "invoice.pdf")
	if err := os.WriteFile(path, pdf, 0o600); err != nil {
		return ExtractionResult{}, fmt.Errorf("write temp pdf: %w", err)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		e.logger.Error("pdftext.extract.failed", "error", err, "stderr_bytes", len(errb))
		return ExtractionResult{Warnings: []string{string(errb)}},
			fmt.Errorf("%w: pdftotext: %v", common.ErrUnreadablePDF, err)
	}

	text := string(out)
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("pdftext.extract.empty", "bytes", len(pdf))
		return ExtractionResult{}, fmt.Errorf("%w: document produced no text", common.ErrUnreadablePDF)
	}

	// A form-feed \f is used as page separator by default
	res := ExtractionResult{
		Text:     text,
		Pages:    1 + strings.Count(text, "\f"),
		Duration: time.Since(start),
	}
	e.logger.Debug("pdftext.extract.ok", "pages", res.Pages, "chars", len(text), "elapsed_ms", res.Duration.Milliseconds())
	return res, nil
}
