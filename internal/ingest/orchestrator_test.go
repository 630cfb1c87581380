package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
	"github.com/mbalestrini/gastos-backoffice/internal/entity"
	"github.com/mbalestrini/gastos-backoffice/internal/llm"
	"github.com/mbalestrini/gastos-backoffice/internal/pdftext"
	"github.com/mbalestrini/gastos-backoffice/internal/repository"
)

type fakeText struct {
	text string
	err  error
}

func (f *fakeText) ExtractText(ctx context.Context, pdf []byte) (pdftext.ExtractionResult, error) {
	if f.err != nil {
		return pdftext.ExtractionResult{}, f.err
	}
	return pdftext.ExtractionResult{Text: f.text, Pages: 1}, nil
}

type fakeFields struct {
	fields llm.InvoiceFields
	err    error
}

func (f *fakeFields) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.InvoiceFields, []byte, error) {
	if f.err != nil {
		return llm.InvoiceFields{}, nil, f.err
	}
	return f.fields, []byte("{}"), nil
}

type fakeRates struct {
	rate  float64
	err   error
	calls int
}

func (f *fakeRates) GetRate(ctx context.Context, date time.Time) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.rate, nil
}

type fakeExpenseRepo struct {
	existing map[string]*repository.ExpenseMatch // normalized number -> match
	byID     map[int64]*entity.Expense
	created  []repository.NewExpense
	updates  []repository.UpdateExpense
	nextID   int64
}

func newFakeExpenseRepo() *fakeExpenseRepo {
	return &fakeExpenseRepo{
		existing: make(map[string]*repository.ExpenseMatch),
		byID:     make(map[int64]*entity.Expense),
		nextID:   100,
	}
}

func (f *fakeExpenseRepo) FindAll(ctx context.Context, filters entity.ExpenseFilters) ([]*entity.Expense, error) {
	return nil, nil
}

func (f *fakeExpenseRepo) FindByID(ctx context.Context, id int64) (*entity.Expense, error) {
	e, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("expense %d: %w", id, common.ErrNotFound)
	}
	return e, nil
}

func (f *fakeExpenseRepo) FindByInvoiceNumberAndProvider(ctx context.Context, normalizedNumber string, providerID int64) (*repository.ExpenseMatch, error) {
	return f.existing[normalizedNumber], nil
}

func (f *fakeExpenseRepo) CreateProrated(ctx context.Context, rows []repository.NewExpense) ([]*entity.Expense, error) {
	if len(rows) > 0 && rows[0].InvoiceNumber != nil {
		norm := repository.NormalizeInvoiceNumber(*rows[0].InvoiceNumber)
		if m := f.existing[norm]; m != nil {
			return nil, &common.DuplicateInvoiceError{
				ExistingExpenseID:   m.ID,
				ExistingInvoiceDate: m.InvoiceDate,
				InvoiceNumber:       *rows[0].InvoiceNumber,
				ProviderName:        m.ProviderName,
			}
		}
	}

	out := make([]*entity.Expense, 0, len(rows))
	for _, row := range rows {
		e := &entity.Expense{
			ID:             f.nextID,
			CompanyID:      row.CompanyID,
			ProviderID:     row.ProviderID,
			CostCenterID:   row.CostCenterID,
			ExpenseTypeID:  row.ExpenseTypeID,
			BudgetPeriodID: row.BudgetPeriodID,
			CompanyAreaID:  row.CompanyAreaID,
			InvoiceNumber:  row.InvoiceNumber,
			InvoiceDate:    row.InvoiceDate,
			AmountARS:      row.AmountARS,
			AmountUSD:      row.AmountUSD,
			ExchangeRate:   row.ExchangeRate,
			Description:    row.Description,
			CreatedBy:      row.CreatedBy,
		}
		f.nextID++
		f.byID[e.ID] = e
		f.created = append(f.created, row)
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeExpenseRepo) Update(ctx context.Context, id int64, upd repository.UpdateExpense) (*entity.Expense, error) {
	e, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("expense %d: %w", id, common.ErrNotFound)
	}
	f.updates = append(f.updates, upd)
	if upd.InvoiceDate != nil {
		e.InvoiceDate = *upd.InvoiceDate
	}
	if upd.AmountARS != nil {
		e.AmountARS = *upd.AmountARS
	}
	if upd.AmountUSD != nil {
		e.AmountUSD = *upd.AmountUSD
	}
	if upd.ExchangeRate != nil {
		e.ExchangeRate = *upd.ExchangeRate
	}
	return e, nil
}

func (f *fakeExpenseRepo) SoftDelete(ctx context.Context, id int64) error { return nil }

type fakePeriodRepo struct {
	active *entity.BudgetPeriod
}

func (f *fakePeriodRepo) FindAll(ctx context.Context) ([]*entity.BudgetPeriod, error) {
	return nil, nil
}
func (f *fakePeriodRepo) FindByID(ctx context.Context, id int64) (*entity.BudgetPeriod, error) {
	return nil, nil
}
func (f *fakePeriodRepo) FindActive(ctx context.Context) (*entity.BudgetPeriod, error) {
	return f.active, nil
}
func (f *fakePeriodRepo) Create(ctx context.Context, np repository.NewBudgetPeriod) (*entity.BudgetPeriod, error) {
	return nil, nil
}
func (f *fakePeriodRepo) SetActive(ctx context.Context, id int64) (*entity.BudgetPeriod, error) {
	return nil, nil
}
func (f *fakePeriodRepo) SoftDelete(ctx context.Context, id int64) error { return nil }

type pipelineFakes struct {
	text     *fakeText
	fields   *fakeFields
	rates    *fakeRates
	provider *fakeProviderRepo
	expenses *fakeExpenseRepo
	periods  *fakePeriodRepo
}

func floatPtr(v float64) *float64 { return &v }

func extractedInvoice() llm.InvoiceFields {
	return llm.InvoiceFields{
		ProviderName:  strPtr("ACME S.A."),
		ProviderTaxID: strPtr("30-12345678-9"),
		InvoiceNumber: strPtr("0001-00012345"),
		InvoiceDate:   strPtr("2024-03-15"),
		Amount:        floatPtr(1234.56),
		Currency:      strPtr("ARS"),
		Description:   strPtr("Servicio de hosting marzo"),
	}
}

func newPipeline(t *testing.T) (*Orchestrator, *pipelineFakes) {
	t.Helper()
	f := &pipelineFakes{
		text:     &fakeText{text: "FACTURA A 0001-00012345 ..."},
		fields:   &fakeFields{fields: extractedInvoice()},
		rates:    &fakeRates{rate: 1000},
		provider: newFakeProviderRepo(testRegistry()),
		expenses: newFakeExpenseRepo(),
		periods: &fakePeriodRepo{active: &entity.BudgetPeriod{
			ID: 7, Description: "2024 Q1", IsActive: true,
		}},
	}
	o := NewOrchestrator(f.text, f.fields, f.rates, f.provider, f.expenses, f.periods, nil)
	o.now = func() time.Time { return time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC) }
	return o, f
}

func TestPreviewResolvesDraft(t *testing.T) {
	o, _ := newPipeline(t)

	draft, err := o.Preview(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	if draft.ProviderID == nil || *draft.ProviderID != 1 {
		t.Errorf("ProviderID = %v, want 1", draft.ProviderID)
	}
	if draft.ProviderName != "ACME S.A." {
		t.Errorf("ProviderName = %q", draft.ProviderName)
	}
	if draft.InvoiceNumber != "0001-00012345" {
		t.Errorf("InvoiceNumber = %q", draft.InvoiceNumber)
	}
	if got := draft.InvoiceDate.Format("2006-01-02"); got != "2024-03-15" {
		t.Errorf("InvoiceDate = %s", got)
	}
	if draft.CurrencyOriginal != "ARS" || draft.AmountARS != 1234.56 {
		t.Errorf("amounts: currency %q ars %v", draft.CurrencyOriginal, draft.AmountARS)
	}
	if math.Abs(draft.AmountUSD-1.23456) > 1e-9 {
		t.Errorf("AmountUSD = %v", draft.AmountUSD)
	}
	if draft.ExchangeRate != 1000 {
		t.Errorf("ExchangeRate = %v", draft.ExchangeRate)
	}
	if draft.BudgetPeriodID == nil || *draft.BudgetPeriodID != 7 {
		t.Errorf("BudgetPeriodID = %v, want 7", draft.BudgetPeriodID)
	}
	if draft.IsDuplicate {
		t.Error("fresh invoice flagged duplicate")
	}
	if len(draft.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", draft.Warnings)
	}
}

func TestPreviewUSDInvoice(t *testing.T) {
	o, f := newPipeline(t)
	f.fields.fields.Currency = strPtr("USD")
	f.fields.fields.Amount = floatPtr(150)

	draft, err := o.Preview(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if draft.AmountUSD != 150 {
		t.Errorf("AmountUSD = %v, want 150", draft.AmountUSD)
	}
	if draft.AmountARS != 150000 {
		t.Errorf("AmountARS = %v, want 150000", draft.AmountARS)
	}
}

func TestPreviewRateOutageDegrades(t *testing.T) {
	o, f := newPipeline(t)
	f.rates.err = fmt.Errorf("%w: boom", common.ErrRateUnavailable)

	draft, err := o.Preview(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Preview should tolerate a rate outage, got %v", err)
	}
	if draft.ExchangeRate != 0 {
		t.Errorf("ExchangeRate = %v, want 0", draft.ExchangeRate)
	}
	if draft.AmountARS != 1234.56 || draft.AmountUSD != 0 {
		t.Errorf("amounts = ARS %v / USD %v, want original on ARS side only", draft.AmountARS, draft.AmountUSD)
	}
	if len(draft.Warnings) == 0 {
		t.Error("expected a warning about the missing rate")
	}
}

func TestPreviewDetectsDuplicate(t *testing.T) {
	o, f := newPipeline(t)
	prior := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	f.expenses.existing["000100012345"] = &repository.ExpenseMatch{
		ID: 42, InvoiceDate: prior, ProviderName: "ACME S.A.",
	}

	draft, err := o.Preview(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !draft.IsDuplicate {
		t.Fatal("duplicate not flagged")
	}
	if draft.ExistingExpenseID == nil || *draft.ExistingExpenseID != 42 {
		t.Errorf("ExistingExpenseID = %v, want 42", draft.ExistingExpenseID)
	}
	if draft.ExistingExpenseDate == nil || !draft.ExistingExpenseDate.Equal(prior) {
		t.Errorf("ExistingExpenseDate = %v", draft.ExistingExpenseDate)
	}
}

func TestPreviewMissingProviderWarnsOnly(t *testing.T) {
	o, f := newPipeline(t)
	f.fields.fields.ProviderName = nil
	f.fields.fields.ProviderTaxID = nil

	draft, err := o.Preview(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if draft.ProviderID != nil {
		t.Errorf("ProviderID = %v, want nil", draft.ProviderID)
	}
	if len(draft.Warnings) == 0 {
		t.Error("expected a warning about the missing provider")
	}
}

func TestPreviewMissingDateDefaultsToToday(t *testing.T) {
	o, f := newPipeline(t)
	f.fields.fields.InvoiceDate = nil

	draft, err := o.Preview(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if got := draft.InvoiceDate.Format("2006-01-02"); got != "2024-04-01" {
		t.Errorf("InvoiceDate = %s, want today (2024-04-01)", got)
	}
	if len(draft.Warnings) == 0 {
		t.Error("expected a warning about the defaulted date")
	}
}

func TestCommitProratesAcrossCompanies(t *testing.T) {
	o, _ := newPipeline(t)

	created, err := o.Commit(context.Background(), CommitRequest{
		PDF:                  []byte("%PDF-1.4"),
		CompanyID:            10,
		CostCenterID:         20,
		ExpenseTypeID:        30,
		AdditionalCompanyIDs: []int64{11, 12},
		CreatedBy:            "mb",
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("got %d rows, want 3", len(created))
	}

	var sumARS float64
	for _, e := range created {
		sumARS += e.AmountARS
		if e.BudgetPeriodID != 7 {
			t.Errorf("BudgetPeriodID = %d, want active period 7", e.BudgetPeriodID)
		}
		if e.ProviderID != 1 {
			t.Errorf("ProviderID = %d, want 1", e.ProviderID)
		}
		if e.ExchangeRate != 1000 {
			t.Errorf("ExchangeRate = %v", e.ExchangeRate)
		}
	}
	if math.Abs(sumARS-1234.56) > 1e-9 {
		t.Errorf("ARS rows sum to %v, want 1234.56", sumARS)
	}
	if created[0].CompanyID != 10 {
		t.Errorf("primary row company = %d, want 10", created[0].CompanyID)
	}
}

func TestCommitCreatesUnknownProvider(t *testing.T) {
	o, f := newPipeline(t)
	f.fields.fields.ProviderName = strPtr("Proveedor Nuevo SRL")
	f.fields.fields.ProviderTaxID = strPtr("33-55566677-8")

	created, err := o.Commit(context.Background(), CommitRequest{
		PDF: []byte("%PDF-1.4"), CompanyID: 10, CostCenterID: 20, ExpenseTypeID: 30,
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	p, _ := f.provider.FindByTaxID(context.Background(), "33555666778")
	if p == nil {
		t.Fatal("provider not created")
	}
	if created[0].ProviderID != p.ID {
		t.Errorf("expense provider = %d, want %d", created[0].ProviderID, p.ID)
	}
}

func TestCommitRenamesProviderFromExtraction(t *testing.T) {
	o, f := newPipeline(t)
	// tax id matches registry entry 1 ("ACME S.A.") but the invoice prints a
	// longer legal name; commit must store the freshly extracted one
	f.fields.fields.ProviderName = strPtr("ACME Sociedad Anónima")

	created, err := o.Commit(context.Background(), CommitRequest{
		PDF: []byte("%PDF-1.4"), CompanyID: 10, CostCenterID: 20, ExpenseTypeID: 30,
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if created[0].ProviderID != 1 {
		t.Fatalf("ProviderID = %d, want 1", created[0].ProviderID)
	}
	if len(f.provider.updates) != 1 {
		t.Fatalf("provider updated %d times, want 1", len(f.provider.updates))
	}
	p, _ := f.provider.FindByID(context.Background(), 1)
	if p.Name != "ACME Sociedad Anónima" {
		t.Errorf("stored name = %q, want the extracted legal name", p.Name)
	}
}

func TestCommitLoadsProviderRegistryOnce(t *testing.T) {
	o, f := newPipeline(t)

	if _, err := o.Commit(context.Background(), CommitRequest{
		PDF: []byte("%PDF-1.4"), CompanyID: 10, CostCenterID: 20, ExpenseTypeID: 30,
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if f.provider.findAllCalls != 1 {
		t.Fatalf("registry loaded %d times, want 1", f.provider.findAllCalls)
	}
}

func TestCommitDuplicateBlocksAllRows(t *testing.T) {
	o, f := newPipeline(t)
	f.expenses.existing["000100012345"] = &repository.ExpenseMatch{
		ID: 42, InvoiceDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), ProviderName: "ACME S.A.",
	}

	_, err := o.Commit(context.Background(), CommitRequest{
		PDF: []byte("%PDF-1.4"), CompanyID: 10, CostCenterID: 20, ExpenseTypeID: 30,
		AdditionalCompanyIDs: []int64{11},
	})
	var dup *common.DuplicateInvoiceError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateInvoiceError, got %v", err)
	}
	if dup.ExistingExpenseID != 42 {
		t.Errorf("ExistingExpenseID = %d, want 42", dup.ExistingExpenseID)
	}
	if len(f.expenses.created) != 0 {
		t.Fatalf("%d rows inserted despite duplicate", len(f.expenses.created))
	}
}

func TestCommitWithoutActivePeriodFails(t *testing.T) {
	o, f := newPipeline(t)
	f.periods.active = nil

	_, err := o.Commit(context.Background(), CommitRequest{
		PDF: []byte("%PDF-1.4"), CompanyID: 10, CostCenterID: 20, ExpenseTypeID: 30,
	})
	if !errors.Is(err, common.ErrNoActiveBudgetPeriod) {
		t.Fatalf("expected ErrNoActiveBudgetPeriod, got %v", err)
	}
}

func TestCommitExplicitPeriodOverridesActive(t *testing.T) {
	o, f := newPipeline(t)
	f.periods.active = nil
	requested := int64(99)

	created, err := o.Commit(context.Background(), CommitRequest{
		PDF: []byte("%PDF-1.4"), CompanyID: 10, CostCenterID: 20, ExpenseTypeID: 30,
		BudgetPeriodID: &requested,
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if created[0].BudgetPeriodID != 99 {
		t.Errorf("BudgetPeriodID = %d, want 99", created[0].BudgetPeriodID)
	}
}

func TestCommitRateOutageIsFatal(t *testing.T) {
	o, f := newPipeline(t)
	f.rates.err = fmt.Errorf("%w: boom", common.ErrRateUnavailable)

	_, err := o.Commit(context.Background(), CommitRequest{
		PDF: []byte("%PDF-1.4"), CompanyID: 10, CostCenterID: 20, ExpenseTypeID: 30,
	})
	if !errors.Is(err, common.ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
	if len(f.expenses.created) != 0 {
		t.Fatal("rows inserted despite rate outage")
	}
}

func TestCommitMissingProviderFails(t *testing.T) {
	o, f := newPipeline(t)
	f.fields.fields.ProviderName = nil
	f.fields.fields.ProviderTaxID = nil

	_, err := o.Commit(context.Background(), CommitRequest{
		PDF: []byte("%PDF-1.4"), CompanyID: 10, CostCenterID: 20, ExpenseTypeID: 30,
	})
	if !errors.Is(err, common.ErrUnidentifiedProvider) {
		t.Fatalf("expected ErrUnidentifiedProvider, got %v", err)
	}
}

func TestUpdateExpenseDateMoveRefetchesRate(t *testing.T) {
	o, f := newPipeline(t)
	f.expenses.byID[5] = &entity.Expense{
		ID: 5, InvoiceDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		AmountARS: 1000, AmountUSD: 1, ExchangeRate: 1000,
	}
	f.rates.rate = 1250
	f.rates.calls = 0

	newDate := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	updated, err := o.UpdateExpense(context.Background(), 5, EditRequest{InvoiceDate: &newDate})
	if err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}
	if f.rates.calls != 1 {
		t.Errorf("rate fetched %d times, want 1", f.rates.calls)
	}
	if updated.ExchangeRate != 1250 {
		t.Errorf("ExchangeRate = %v, want 1250", updated.ExchangeRate)
	}
	if math.Abs(updated.AmountUSD-0.8) > 1e-9 {
		t.Errorf("AmountUSD = %v, want 0.8", updated.AmountUSD)
	}
}

func TestUpdateExpenseAmountOnlyKeepsRate(t *testing.T) {
	o, f := newPipeline(t)
	f.expenses.byID[5] = &entity.Expense{
		ID: 5, InvoiceDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		AmountARS: 1000, AmountUSD: 1, ExchangeRate: 1000,
	}
	f.rates.calls = 0

	updated, err := o.UpdateExpense(context.Background(), 5, EditRequest{AmountARS: floatPtr(2000)})
	if err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}
	if f.rates.calls != 0 {
		t.Errorf("rate fetched %d times, want 0", f.rates.calls)
	}
	if updated.ExchangeRate != 1000 {
		t.Errorf("ExchangeRate = %v, want unchanged 1000", updated.ExchangeRate)
	}
	if math.Abs(updated.AmountUSD-2) > 1e-9 {
		t.Errorf("AmountUSD = %v, want 2", updated.AmountUSD)
	}
}

func TestUpdateExpenseRateOutageOnDateMove(t *testing.T) {
	o, f := newPipeline(t)
	f.expenses.byID[5] = &entity.Expense{
		ID: 5, InvoiceDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		AmountARS: 1000, AmountUSD: 1, ExchangeRate: 1000,
	}
	f.rates.err = fmt.Errorf("%w: boom", common.ErrRateUnavailable)

	newDate := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	_, err := o.UpdateExpense(context.Background(), 5, EditRequest{InvoiceDate: &newDate})
	if !errors.Is(err, common.ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
	if len(f.expenses.updates) != 0 {
		t.Fatal("row updated despite rate outage")
	}
}
