package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
	"github.com/mbalestrini/gastos-backoffice/internal/entity"
)

// NewBudgetPeriod wraps parameters for creating a budget period.
type NewBudgetPeriod struct {
	Description string
	StartDate   time.Time
	EndDate     time.Time
	IsActive    bool
}

type BudgetPeriodRepository interface {
	FindAll(ctx context.Context) ([]*entity.BudgetPeriod, error)
	FindByID(ctx context.Context, id int64) (*entity.BudgetPeriod, error)
	// FindActive returns the single active period, or nil when none exists.
	FindActive(ctx context.Context) (*entity.BudgetPeriod, error)
	Create(ctx context.Context, np NewBudgetPeriod) (*entity.BudgetPeriod, error)
	// SetActive marks one period active and deactivates the rest, keeping the
	// at-most-one-active invariant.
	SetActive(ctx context.Context, id int64) (*entity.BudgetPeriod, error)
	SoftDelete(ctx context.Context, id int64) error
}

type budgetPeriodRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewBudgetPeriodRepository(pool *pgxpool.Pool, logger *slog.Logger) BudgetPeriodRepository {
	return &budgetPeriodRepository{pool: pool, logger: logger}
}

const periodColumns = "id, description, start_date, end_date, is_active, created_at, updated_at, deleted_at"

func scanPeriod(row pgx.Row) (*entity.BudgetPeriod, error) {
	var p entity.BudgetPeriod
	err := row.Scan(&p.ID, &p.Description, &p.StartDate, &p.EndDate, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *budgetPeriodRepository) FindAll(ctx context.Context) ([]*entity.BudgetPeriod, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+periodColumns+` FROM budget_periods WHERE deleted_at IS NULL ORDER BY start_date DESC`)
	if err != nil {
		r.logger.Error("failed to list budget periods", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.BudgetPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *budgetPeriodRepository) FindByID(ctx context.Context, id int64) (*entity.BudgetPeriod, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx,
		`SELECT `+periodColumns+` FROM budget_periods WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("budget period %d: %w", id, common.ErrNotFound)
	}
	return p, err
}

func (r *budgetPeriodRepository) FindActive(ctx context.Context) (*entity.BudgetPeriod, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx,
		`SELECT `+periodColumns+` FROM budget_periods
		 WHERE is_active AND deleted_at IS NULL
		 ORDER BY start_date DESC LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *budgetPeriodRepository) Create(ctx context.Context, np NewBudgetPeriod) (*entity.BudgetPeriod, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if np.IsActive {
		if _, err := tx.Exec(ctx,
			`UPDATE budget_periods SET is_active = false, updated_at = now() WHERE is_active AND deleted_at IS NULL`); err != nil {
			return nil, fmt.Errorf("deactivate previous periods: %w", err)
		}
	}
	p, err := scanPeriod(tx.QueryRow(ctx,
		`INSERT INTO budget_periods (description, start_date, end_date, is_active)
		 VALUES ($1, $2, $3, $4) RETURNING `+periodColumns,
		np.Description, np.StartDate, np.EndDate, np.IsActive))
	if err != nil {
		r.logger.Error("failed to create budget period", "description", np.Description, "error", err)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (r *budgetPeriodRepository) SetActive(ctx context.Context, id int64) (*entity.BudgetPeriod, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx,
		`UPDATE budget_periods SET is_active = false, updated_at = now() WHERE is_active AND deleted_at IS NULL`); err != nil {
		return nil, fmt.Errorf("deactivate previous periods: %w", err)
	}
	p, err := scanPeriod(tx.QueryRow(ctx,
		`UPDATE budget_periods SET is_active = true, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL RETURNING `+periodColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("budget period %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (r *budgetPeriodRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE budget_periods SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		r.logger.Error("failed to delete budget period", "budget_period_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("budget period %d: %w", id, common.ErrNotFound)
	}
	return nil
}
