package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
	"github.com/mbalestrini/gastos-backoffice/internal/entity"
)

// NewExpense wraps parameters for inserting one expense row.
type NewExpense struct {
	CompanyID      int64
	ProviderID     int64
	CostCenterID   int64
	ExpenseTypeID  int64
	BudgetPeriodID int64
	CompanyAreaID  *int64
	InvoiceNumber  *string
	InvoiceDate    time.Time
	AmountARS      float64
	AmountUSD      float64
	ExchangeRate   float64
	Description    *string
	CreatedBy      *string
}

// ExpenseMatch is the result of a duplicate lookup.
type ExpenseMatch struct {
	ID           int64
	InvoiceDate  time.Time
	ProviderName string
}

// UpdateExpense carries patchable expense fields; nil means leave as is.
type UpdateExpense struct {
	ProviderID     *int64
	CostCenterID   *int64
	ExpenseTypeID  *int64
	BudgetPeriodID *int64
	CompanyAreaID  *int64
	InvoiceNumber  *string
	InvoiceDate    *time.Time
	AmountARS      *float64
	AmountUSD      *float64
	ExchangeRate   *float64
	Description    *string
}

type ExpenseRepository interface {
	FindAll(ctx context.Context, filters entity.ExpenseFilters) ([]*entity.Expense, error)
	FindByID(ctx context.Context, id int64) (*entity.Expense, error)
	// FindByInvoiceNumberAndProvider looks up a non-deleted expense whose
	// normalized invoice number (whitespace/hyphens stripped, upper-cased)
	// equals normalizedNumber. Returns nil when none matches.
	FindByInvoiceNumberAndProvider(ctx context.Context, normalizedNumber string, providerID int64) (*ExpenseMatch, error)
	// CreateProrated inserts all rows of one invoice in a single transaction.
	// It re-checks the (invoice number, provider) pair inside that transaction
	// and fails the whole batch with *common.DuplicateInvoiceError on a hit:
	// the commit-time check is authoritative even if preview was skipped.
	CreateProrated(ctx context.Context, rows []NewExpense) ([]*entity.Expense, error)
	Update(ctx context.Context, id int64, upd UpdateExpense) (*entity.Expense, error)
	SoftDelete(ctx context.Context, id int64) error
}

type expenseRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewExpenseRepository(pool *pgxpool.Pool, logger *slog.Logger) ExpenseRepository {
	return &expenseRepository{pool: pool, logger: logger}
}

const expenseColumns = `id, company_id, provider_id, cost_center_id, expense_type_id,
	budget_period_id, company_area_id, invoice_number, invoice_date,
	amount_ars, amount_usd, exchange_rate, description, created_by,
	created_at, updated_at, deleted_at`

func scanExpense(row pgx.Row) (*entity.Expense, error) {
	var e entity.Expense
	err := row.Scan(
		&e.ID, &e.CompanyID, &e.ProviderID, &e.CostCenterID, &e.ExpenseTypeID,
		&e.BudgetPeriodID, &e.CompanyAreaID, &e.InvoiceNumber, &e.InvoiceDate,
		&e.AmountARS, &e.AmountUSD, &e.ExchangeRate, &e.Description, &e.CreatedBy,
		&e.CreatedAt, &e.UpdatedAt, &e.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *expenseRepository) FindAll(ctx context.Context, f entity.ExpenseFilters) ([]*entity.Expense, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + expenseColumns + ` FROM expenses WHERE deleted_at IS NULL`)
	args := make([]any, 0, 7)
	add := func(clause string, v any) {
		args = append(args, v)
		fmt.Fprintf(&sb, " AND %s = $%d", clause, len(args))
	}
	if f.CompanyID != nil {
		add("company_id", *f.CompanyID)
	}
	if f.ProviderID != nil {
		add("provider_id", *f.ProviderID)
	}
	if f.CostCenterID != nil {
		add("cost_center_id", *f.CostCenterID)
	}
	if f.ExpenseTypeID != nil {
		add("expense_type_id", *f.ExpenseTypeID)
	}
	if f.BudgetPeriodID != nil {
		add("budget_period_id", *f.BudgetPeriodID)
	}
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		fmt.Fprintf(&sb, " AND invoice_date >= $%d", len(args))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		fmt.Fprintf(&sb, " AND invoice_date <= $%d", len(args))
	}
	sb.WriteString(" ORDER BY invoice_date DESC, id DESC")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		r.logger.Error("failed to list expenses", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *expenseRepository) FindByID(ctx context.Context, id int64) (*entity.Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("expense %d: %w", id, common.ErrNotFound)
	}
	return e, err
}

const duplicateLookupSQL = `
	SELECT e.id, e.invoice_date, p.name
	FROM expenses e
	JOIN providers p ON p.id = e.provider_id
	WHERE e.provider_id = $2
	  AND upper(regexp_replace(COALESCE(e.invoice_number, ''), '[\s-]', '', 'g')) = $1
	  AND e.invoice_number IS NOT NULL
	  AND e.deleted_at IS NULL
	LIMIT 1`

func (r *expenseRepository) FindByInvoiceNumberAndProvider(ctx context.Context, normalizedNumber string, providerID int64) (*ExpenseMatch, error) {
	var m ExpenseMatch
	err := r.pool.QueryRow(ctx, duplicateLookupSQL, normalizedNumber, providerID).
		Scan(&m.ID, &m.InvoiceDate, &m.ProviderName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("duplicate lookup failed", "provider_id", providerID, "error", err)
		return nil, err
	}
	return &m, nil
}

func (r *expenseRepository) CreateProrated(ctx context.Context, rows []NewExpense) ([]*entity.Expense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("create prorated: %w: no rows", common.ErrInvalidInput)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Authoritative duplicate gate: same transaction as the inserts, so two
	// simultaneous commits of one invoice cannot both pass. A partial unique
	// index on (provider_id, normalized invoice number) backstops this at the
	// storage layer.
	first := rows[0]
	if first.InvoiceNumber != nil && *first.InvoiceNumber != "" {
		normalized := NormalizeInvoiceNumber(*first.InvoiceNumber)
		var m ExpenseMatch
		err := tx.QueryRow(ctx, duplicateLookupSQL, normalized, first.ProviderID).
			Scan(&m.ID, &m.InvoiceDate, &m.ProviderName)
		if err == nil {
			return nil, &common.DuplicateInvoiceError{
				ExistingExpenseID:   m.ID,
				ExistingInvoiceDate: m.InvoiceDate,
				InvoiceNumber:       *first.InvoiceNumber,
				ProviderName:        m.ProviderName,
			}
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("duplicate re-check: %w", err)
		}
	}

	out := make([]*entity.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := scanExpense(tx.QueryRow(ctx,
			`INSERT INTO expenses (company_id, provider_id, cost_center_id, expense_type_id,
				budget_period_id, company_area_id, invoice_number, invoice_date,
				amount_ars, amount_usd, exchange_rate, description, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 RETURNING `+expenseColumns,
			row.CompanyID, row.ProviderID, row.CostCenterID, row.ExpenseTypeID,
			row.BudgetPeriodID, row.CompanyAreaID, row.InvoiceNumber, row.InvoiceDate,
			row.AmountARS, row.AmountUSD, row.ExchangeRate, row.Description, row.CreatedBy))
		if err != nil {
			r.logger.Error("failed to insert expense row", "company_id", row.CompanyID, "error", err)
			return nil, fmt.Errorf("insert expense: %w", err)
		}
		out = append(out, e)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (r *expenseRepository) Update(ctx context.Context, id int64, upd UpdateExpense) (*entity.Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx,
		`UPDATE expenses
		 SET provider_id = COALESCE($2, provider_id),
		     cost_center_id = COALESCE($3, cost_center_id),
		     expense_type_id = COALESCE($4, expense_type_id),
		     budget_period_id = COALESCE($5, budget_period_id),
		     company_area_id = COALESCE($6, company_area_id),
		     invoice_number = COALESCE($7, invoice_number),
		     invoice_date = COALESCE($8, invoice_date),
		     amount_ars = COALESCE($9, amount_ars),
		     amount_usd = COALESCE($10, amount_usd),
		     exchange_rate = COALESCE($11, exchange_rate),
		     description = COALESCE($12, description),
		     updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+expenseColumns,
		id, upd.ProviderID, upd.CostCenterID, upd.ExpenseTypeID, upd.BudgetPeriodID,
		upd.CompanyAreaID, upd.InvoiceNumber, upd.InvoiceDate,
		upd.AmountARS, upd.AmountUSD, upd.ExchangeRate, upd.Description))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("expense %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to update expense", "expense_id", id, "error", err)
		return nil, err
	}
	return e, nil
}

func (r *expenseRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE expenses SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		r.logger.Error("failed to delete expense", "expense_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// NormalizeInvoiceNumber strips whitespace and hyphens and upper-cases, the
// same normalization the SQL lookups apply to stored numbers.
func NormalizeInvoiceNumber(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '-':
		default:
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}
