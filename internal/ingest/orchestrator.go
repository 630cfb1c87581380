package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
	"github.com/mbalestrini/gastos-backoffice/internal/entity"
	"github.com/mbalestrini/gastos-backoffice/internal/fx"
	"github.com/mbalestrini/gastos-backoffice/internal/llm"
	"github.com/mbalestrini/gastos-backoffice/internal/pdftext"
	"github.com/mbalestrini/gastos-backoffice/internal/repository"
)

// TextExtractor converts PDF bytes to plain text. *pdftext.Extractor is the
// production implementation.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdf []byte) (pdftext.ExtractionResult, error)
}

// Orchestrator runs the ingestion pipeline: text extraction, field
// extraction, provider resolution, duplicate detection, rate resolution,
// proration and persistence. Preview never writes; Commit persists all rows
// of one invoice or none.
type Orchestrator struct {
	text      TextExtractor
	fields    llm.FieldExtractor
	rates     fx.RateSource
	providers repository.ProviderRepository
	expenses  repository.ExpenseRepository
	periods   repository.BudgetPeriodRepository
	logger    *slog.Logger
	now       func() time.Time
}

func NewOrchestrator(
	text TextExtractor,
	fields llm.FieldExtractor,
	rates fx.RateSource,
	providers repository.ProviderRepository,
	expenses repository.ExpenseRepository,
	periods repository.BudgetPeriodRepository,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		text:      text,
		fields:    fields,
		rates:     rates,
		providers: providers,
		expenses:  expenses,
		periods:   periods,
		logger:    logger,
		now:       time.Now,
	}
}

// CommitRequest is the caller-supplied classification for a commit.
type CommitRequest struct {
	PDF                  []byte
	CompanyID            int64
	CostCenterID         int64
	ExpenseTypeID        int64
	BudgetPeriodID       *int64
	CompanyAreaID        *int64
	AdditionalCompanyIDs []int64
	CreatedBy            string
}

// resolution carries the front half of a pipeline run. The draft holds
// registry display values for human review; extracted keeps the model's raw
// fields, which the commit path treats as the current source of truth for the
// provider record. The registry is loaded once per run and reused.
type resolution struct {
	draft     *entity.InvoiceDraft
	extracted llm.InvoiceFields
	registry  []*entity.Provider
}

// Preview runs the pipeline without persisting anything and returns the draft
// for human review. A rate outage degrades to exchangeRate 0 plus a warning
// instead of failing the whole preview.
func (o *Orchestrator) Preview(ctx context.Context, pdf []byte) (*entity.InvoiceDraft, error) {
	res, err := o.resolveDraft(ctx, pdf, false)
	if err != nil {
		return nil, err
	}
	return res.draft, nil
}

// Commit re-runs the pipeline (commit-time results are authoritative even if
// a preview happened), applies provider create-or-update, resolves the budget
// period, prorates across companies and persists every row in one
// transaction.
func (o *Orchestrator) Commit(ctx context.Context, req CommitRequest) ([]*entity.Expense, error) {
	start := time.Now()

	res, err := o.resolveDraft(ctx, req.PDF, true)
	if err != nil {
		return nil, err
	}
	draft := res.draft

	periodID, err := o.resolvePeriodID(req.BudgetPeriodID, draft)
	if err != nil {
		return nil, err
	}

	// Registry mutations (create, tax-id backfill, name overwrite) happen only
	// here, never during preview. The extracted name, not the draft's canonical
	// display name, drives the overwrite: extraction is the fresher record.
	providerID, providerName, err := EnsureProvider(ctx, o.providers, res.registry,
		deref(res.extracted.ProviderName), deref(res.extracted.ProviderTaxID), o.logger)
	if err != nil {
		return nil, err
	}

	companyIDs := DedupeCompanyIDs(req.CompanyID, req.AdditionalCompanyIDs)
	shares := Prorate(draft.AmountARS, draft.AmountUSD, companyIDs)

	var invoiceNumber *string
	if draft.InvoiceNumber != "" {
		invoiceNumber = &draft.InvoiceNumber
	}
	var description *string
	if draft.Description != "" {
		description = &draft.Description
	}
	var createdBy *string
	if req.CreatedBy != "" {
		createdBy = &req.CreatedBy
	}

	rows := make([]repository.NewExpense, len(shares))
	for i, s := range shares {
		rows[i] = repository.NewExpense{
			CompanyID:      s.CompanyID,
			ProviderID:     providerID,
			CostCenterID:   req.CostCenterID,
			ExpenseTypeID:  req.ExpenseTypeID,
			BudgetPeriodID: periodID,
			CompanyAreaID:  req.CompanyAreaID,
			InvoiceNumber:  invoiceNumber,
			InvoiceDate:    draft.InvoiceDate,
			AmountARS:      s.AmountARS,
			AmountUSD:      s.AmountUSD,
			ExchangeRate:   draft.ExchangeRate,
			Description:    description,
			CreatedBy:      createdBy,
		}
	}

	created, err := o.expenses.CreateProrated(ctx, rows)
	if err != nil {
		o.logger.Warn("ingest.commit.failed",
			"provider", providerName,
			"invoice_number", draft.InvoiceNumber,
			"companies", len(companyIDs),
			"error", err,
		)
		return nil, err
	}

	o.logger.Info("ingest.commit.ok",
		"provider_id", providerID,
		"invoice_number", draft.InvoiceNumber,
		"rows", len(created),
		"amount_ars", draft.AmountARS,
		"amount_usd", draft.AmountUSD,
		"rate", draft.ExchangeRate,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return created, nil
}

// resolveDraft is the shared preview/commit front half of the pipeline.
// forCommit tightens two policies: a missing provider name becomes
// ErrUnidentifiedProvider, and a rate outage becomes fatal instead of a
// warning (an invoice cannot be persisted without a valid conversion).
func (o *Orchestrator) resolveDraft(ctx context.Context, pdf []byte, forCommit bool) (*resolution, error) {
	start := time.Now()
	o.logger.Info("ingest.extract.start", "pdf_bytes", len(pdf), "commit", forCommit)

	text, err := o.text.ExtractText(ctx, pdf)
	if err != nil {
		return nil, err
	}

	registry, err := o.providers.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load provider registry: %w", err)
	}
	names := make([]string, 0, len(registry))
	for _, p := range registry {
		names = append(names, p.Name)
	}

	extracted, _, err := o.fields.ExtractFields(ctx, llm.ExtractRequest{
		InvoiceText:        text.Text,
		KnownProviderNames: names,
	})
	if err != nil {
		return nil, err
	}

	draft := &entity.InvoiceDraft{
		ProviderName:  deref(extracted.ProviderName),
		ProviderTaxID: deref(extracted.ProviderTaxID),
		InvoiceNumber: deref(extracted.InvoiceNumber),
		Description:   deref(extracted.Description),
	}
	res := &resolution{draft: draft, extracted: extracted, registry: registry}

	if forCommit && draft.ProviderName == "" {
		return nil, fmt.Errorf("%w: extraction returned no provider name", common.ErrUnidentifiedProvider)
	}
	if draft.ProviderName == "" {
		draft.Warnings = append(draft.Warnings, "provider could not be identified; fill it in before committing")
	}

	match := ResolveProvider(draft.ProviderName, draft.ProviderTaxID, registry)
	draft.ProviderID = match.ProviderID
	draft.ProviderName = match.DisplayName
	draft.ProviderTaxID = match.DisplayTaxID

	dup, err := CheckDuplicate(ctx, o.expenses, draft.InvoiceNumber, draft.ProviderID)
	if err != nil {
		return nil, err
	}
	draft.IsDuplicate = dup.IsDuplicate
	draft.ExistingExpenseID = dup.ExpenseID
	draft.ExistingExpenseDate = dup.InvoiceDate

	draft.InvoiceDate = o.parseInvoiceDate(extracted.InvoiceDate, draft)

	currency := deref(extracted.Currency)
	if currency == "" {
		// invoices without a currency marker are assumed to be in pesos
		currency = "ARS"
	}
	draft.CurrencyOriginal = currency
	draft.AmountOriginal = derefF(extracted.Amount)

	rate, rateErr := o.rates.GetRate(ctx, draft.InvoiceDate)
	if rateErr != nil {
		if forCommit {
			return nil, fmt.Errorf("commit requires a valid exchange rate: %w", rateErr)
		}
		o.logger.Warn("ingest.rate.unavailable", "date", draft.InvoiceDate.Format("2006-01-02"), "error", rateErr)
		draft.ExchangeRate = 0
		if currency == "USD" {
			draft.AmountUSD = draft.AmountOriginal
		} else {
			draft.AmountARS = draft.AmountOriginal
		}
		draft.Warnings = append(draft.Warnings, "exchange rate unavailable for "+draft.InvoiceDate.Format("2006-01-02")+"; amounts not converted")
	} else {
		draft.ExchangeRate = rate
		if currency == "USD" {
			draft.AmountUSD = draft.AmountOriginal
			draft.AmountARS = fx.ToARS(draft.AmountOriginal, rate)
		} else {
			draft.AmountARS = draft.AmountOriginal
			usd, convErr := fx.ToUSD(draft.AmountOriginal, rate)
			if convErr != nil {
				return nil, convErr
			}
			draft.AmountUSD = usd
		}
	}

	period, err := o.periods.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("find active budget period: %w", err)
	}
	if period != nil {
		id := period.ID
		draft.BudgetPeriodID = &id
		draft.BudgetPeriodDescription = period.Description
	}

	o.logger.Info("ingest.extract.ok",
		"provider", draft.ProviderName,
		"provider_matched", draft.ProviderID != nil,
		"invoice_number", draft.InvoiceNumber,
		"duplicate", draft.IsDuplicate,
		"currency", currency,
		"amount", draft.AmountOriginal,
		"rate", draft.ExchangeRate,
		"warnings", len(draft.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (o *Orchestrator) resolvePeriodID(requested *int64, draft *entity.InvoiceDraft) (int64, error) {
	if requested != nil {
		return *requested, nil
	}
	if draft.BudgetPeriodID != nil {
		return *draft.BudgetPeriodID, nil
	}
	return 0, common.ErrNoActiveBudgetPeriod
}

// parseInvoiceDate degrades gracefully: an unparsable or missing date becomes
// today with a warning for the operator to correct before committing.
func (o *Orchestrator) parseInvoiceDate(raw *string, draft *entity.InvoiceDraft) time.Time {
	if raw != nil {
		if d, err := time.Parse("2006-01-02", *raw); err == nil {
			return d
		}
		draft.Warnings = append(draft.Warnings, "invoice date "+*raw+" is not valid; defaulted to today")
	} else {
		draft.Warnings = append(draft.Warnings, "invoice date not found; defaulted to today")
	}
	now := o.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefF(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
