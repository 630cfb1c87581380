package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
	"github.com/mbalestrini/gastos-backoffice/internal/fx"
	"github.com/mbalestrini/gastos-backoffice/internal/ingest"
	"github.com/mbalestrini/gastos-backoffice/internal/llm/openai"
	"github.com/mbalestrini/gastos-backoffice/internal/pdftext"
	"github.com/mbalestrini/gastos-backoffice/internal/repository"
)

// invoice-preview runs the full preview pipeline against one PDF and prints
// the resulting draft as JSON. Useful for tuning the extraction prompt without
// going through the HTTP API.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: invoice-preview <invoice.pdf>")
		os.Exit(2)
	}
	pdf, err := os.ReadFile(os.Args[1])
	if err != nil {
		logger.Error("read pdf", "path", os.Args[1], "error", err)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     3 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	orchestrator := ingest.NewOrchestrator(
		pdftext.NewExtractor(pdftext.Config{Pdftotext: cfg.PDF.PdftotextBin}, logger),
		openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger),
		fx.NewBluelyticsClient(fx.Config{BaseURL: cfg.FX.BaseURL, Timeout: cfg.FX.Timeout}, logger),
		repository.NewProviderRepository(pool, logger),
		repository.NewExpenseRepository(pool, logger),
		repository.NewBudgetPeriodRepository(pool, logger),
		logger,
	)

	draft, err := orchestrator.Preview(ctx, pdf)
	if err != nil {
		logger.Error("preview failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(draft); err != nil {
		logger.Error("encode draft", "error", err)
		os.Exit(1)
	}
}
