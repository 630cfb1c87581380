package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
	"github.com/mbalestrini/gastos-backoffice/internal/export"
	"github.com/mbalestrini/gastos-backoffice/internal/fx"
	"github.com/mbalestrini/gastos-backoffice/internal/ingest"
	"github.com/mbalestrini/gastos-backoffice/internal/llm/openai"
	"github.com/mbalestrini/gastos-backoffice/internal/pdftext"
	"github.com/mbalestrini/gastos-backoffice/internal/repository"
	"github.com/mbalestrini/gastos-backoffice/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, 3*time.Second, logger); err != nil {
		logger.Error("db health check failed", "error", err)
		os.Exit(1)
	}
	logger.Info("db health ok")

	providersRepo := repository.NewProviderRepository(pool, logger)
	expensesRepo := repository.NewExpenseRepository(pool, logger)
	periodsRepo := repository.NewBudgetPeriodRepository(pool, logger)
	companiesRepo := repository.NewCompanyRepository(pool, logger)
	costCentersRepo := repository.NewCostCenterRepository(pool, logger)
	expenseTypesRepo := repository.NewExpenseTypeRepository(pool, logger)
	companyAreasRepo := repository.NewCompanyAreaRepository(pool, logger)
	reportsRepo := repository.NewReportRepository(pool, logger)

	extractor := pdftext.NewExtractor(pdftext.Config{Pdftotext: cfg.PDF.PdftotextBin}, logger)
	llmClient := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	rates := fx.NewBluelyticsClient(fx.Config{
		BaseURL: cfg.FX.BaseURL,
		Timeout: cfg.FX.Timeout,
	}, logger)

	orchestrator := ingest.NewOrchestrator(
		extractor, llmClient, rates,
		providersRepo, expensesRepo, periodsRepo,
		logger,
	)
	exporter := export.NewService(
		expensesRepo, providersRepo, companiesRepo, costCentersRepo, expenseTypesRepo,
		logger,
	)

	srv := server.New(server.Deps{
		Orchestrator: orchestrator,
		Exporter:     exporter,
		Expenses:     expensesRepo,
		Providers:    providersRepo,
		Companies:    companiesRepo,
		CostCenters:  costCentersRepo,
		ExpenseTypes: expenseTypesRepo,
		CompanyAreas: companyAreasRepo,
		Periods:      periodsRepo,
		Reports:      reportsRepo,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("stopped")
}
