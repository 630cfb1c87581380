package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbalestrini/gastos-backoffice/internal/common"
	"github.com/mbalestrini/gastos-backoffice/internal/entity"
)

// Master-data repositories: thin persistence wrappers around the
// classification tables. The ingestion pipeline only reads them; the CRUD
// endpoints write them.

type CompanyRepository interface {
	FindAll(ctx context.Context) ([]*entity.Company, error)
	FindByID(ctx context.Context, id int64) (*entity.Company, error)
	Create(ctx context.Context, name string) (*entity.Company, error)
	Rename(ctx context.Context, id int64, name string) (*entity.Company, error)
	SoftDelete(ctx context.Context, id int64) error
}

type CostCenterRepository interface {
	FindAll(ctx context.Context) ([]*entity.CostCenter, error)
	FindByCompany(ctx context.Context, companyID int64) ([]*entity.CostCenter, error)
	Create(ctx context.Context, companyID int64, name string) (*entity.CostCenter, error)
	Rename(ctx context.Context, id int64, name string) (*entity.CostCenter, error)
	SoftDelete(ctx context.Context, id int64) error
}

type ExpenseTypeRepository interface {
	FindAll(ctx context.Context) ([]*entity.ExpenseType, error)
	Create(ctx context.Context, name string) (*entity.ExpenseType, error)
	Rename(ctx context.Context, id int64, name string) (*entity.ExpenseType, error)
	SoftDelete(ctx context.Context, id int64) error
}

type CompanyAreaRepository interface {
	FindByCompany(ctx context.Context, companyID int64) ([]*entity.CompanyArea, error)
	Create(ctx context.Context, companyID int64, name string) (*entity.CompanyArea, error)
	Rename(ctx context.Context, id int64, name string) (*entity.CompanyArea, error)
	SoftDelete(ctx context.Context, id int64) error
}

type companyRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewCompanyRepository(pool *pgxpool.Pool, logger *slog.Logger) CompanyRepository {
	return &companyRepository{pool: pool, logger: logger}
}

func (r *companyRepository) FindAll(ctx context.Context) ([]*entity.Company, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, created_at, updated_at, deleted_at
		 FROM companies WHERE deleted_at IS NULL ORDER BY name`)
	if err != nil {
		r.logger.Error("failed to list companies", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Company
	for rows.Next() {
		var c entity.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *companyRepository) FindByID(ctx context.Context, id int64) (*entity.Company, error) {
	var c entity.Company
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at, deleted_at
		 FROM companies WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("company %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *companyRepository) Create(ctx context.Context, name string) (*entity.Company, error) {
	var c entity.Company
	err := r.pool.QueryRow(ctx,
		`INSERT INTO companies (name) VALUES ($1)
		 RETURNING id, name, created_at, updated_at, deleted_at`, name).
		Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		r.logger.Error("failed to create company", "name", name, "error", err)
		return nil, err
	}
	return &c, nil
}

func (r *companyRepository) Rename(ctx context.Context, id int64, name string) (*entity.Company, error) {
	var c entity.Company
	err := r.pool.QueryRow(ctx,
		`UPDATE companies SET name = $2, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING id, name, created_at, updated_at, deleted_at`, id, name).
		Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("company %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *companyRepository) SoftDelete(ctx context.Context, id int64) error {
	return softDelete(ctx, r.pool, r.logger, "companies", id)
}

type costCenterRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewCostCenterRepository(pool *pgxpool.Pool, logger *slog.Logger) CostCenterRepository {
	return &costCenterRepository{pool: pool, logger: logger}
}

func (r *costCenterRepository) FindAll(ctx context.Context) ([]*entity.CostCenter, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, company_id, name, created_at, updated_at, deleted_at
		 FROM cost_centers WHERE deleted_at IS NULL ORDER BY company_id, name`)
	if err != nil {
		r.logger.Error("failed to list cost centers", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.CostCenter
	for rows.Next() {
		var cc entity.CostCenter
		if err := rows.Scan(&cc.ID, &cc.CompanyID, &cc.Name, &cc.CreatedAt, &cc.UpdatedAt, &cc.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, &cc)
	}
	return out, rows.Err()
}

func (r *costCenterRepository) FindByCompany(ctx context.Context, companyID int64) ([]*entity.CostCenter, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, company_id, name, created_at, updated_at, deleted_at
		 FROM cost_centers WHERE company_id = $1 AND deleted_at IS NULL ORDER BY name`, companyID)
	if err != nil {
		r.logger.Error("failed to list cost centers", "company_id", companyID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.CostCenter
	for rows.Next() {
		var cc entity.CostCenter
		if err := rows.Scan(&cc.ID, &cc.CompanyID, &cc.Name, &cc.CreatedAt, &cc.UpdatedAt, &cc.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, &cc)
	}
	return out, rows.Err()
}

func (r *costCenterRepository) Create(ctx context.Context, companyID int64, name string) (*entity.CostCenter, error) {
	var cc entity.CostCenter
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cost_centers (company_id, name) VALUES ($1, $2)
		 RETURNING id, company_id, name, created_at, updated_at, deleted_at`, companyID, name).
		Scan(&cc.ID, &cc.CompanyID, &cc.Name, &cc.CreatedAt, &cc.UpdatedAt, &cc.DeletedAt)
	if err != nil {
		r.logger.Error("failed to create cost center", "company_id", companyID, "name", name, "error", err)
		return nil, err
	}
	return &cc, nil
}

func (r *costCenterRepository) Rename(ctx context.Context, id int64, name string) (*entity.CostCenter, error) {
	var cc entity.CostCenter
	err := r.pool.QueryRow(ctx,
		`UPDATE cost_centers SET name = $2, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING id, company_id, name, created_at, updated_at, deleted_at`, id, name).
		Scan(&cc.ID, &cc.CompanyID, &cc.Name, &cc.CreatedAt, &cc.UpdatedAt, &cc.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cost center %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

func (r *costCenterRepository) SoftDelete(ctx context.Context, id int64) error {
	return softDelete(ctx, r.pool, r.logger, "cost_centers", id)
}

type expenseTypeRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewExpenseTypeRepository(pool *pgxpool.Pool, logger *slog.Logger) ExpenseTypeRepository {
	return &expenseTypeRepository{pool: pool, logger: logger}
}

func (r *expenseTypeRepository) FindAll(ctx context.Context) ([]*entity.ExpenseType, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, created_at, updated_at, deleted_at
		 FROM expense_types WHERE deleted_at IS NULL ORDER BY name`)
	if err != nil {
		r.logger.Error("failed to list expense types", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.ExpenseType
	for rows.Next() {
		var et entity.ExpenseType
		if err := rows.Scan(&et.ID, &et.Name, &et.CreatedAt, &et.UpdatedAt, &et.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, &et)
	}
	return out, rows.Err()
}

func (r *expenseTypeRepository) Create(ctx context.Context, name string) (*entity.ExpenseType, error) {
	var et entity.ExpenseType
	err := r.pool.QueryRow(ctx,
		`INSERT INTO expense_types (name) VALUES ($1)
		 RETURNING id, name, created_at, updated_at, deleted_at`, name).
		Scan(&et.ID, &et.Name, &et.CreatedAt, &et.UpdatedAt, &et.DeletedAt)
	if err != nil {
		r.logger.Error("failed to create expense type", "name", name, "error", err)
		return nil, err
	}
	return &et, nil
}

func (r *expenseTypeRepository) Rename(ctx context.Context, id int64, name string) (*entity.ExpenseType, error) {
	var et entity.ExpenseType
	err := r.pool.QueryRow(ctx,
		`UPDATE expense_types SET name = $2, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING id, name, created_at, updated_at, deleted_at`, id, name).
		Scan(&et.ID, &et.Name, &et.CreatedAt, &et.UpdatedAt, &et.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("expense type %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &et, nil
}

func (r *expenseTypeRepository) SoftDelete(ctx context.Context, id int64) error {
	return softDelete(ctx, r.pool, r.logger, "expense_types", id)
}

type companyAreaRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewCompanyAreaRepository(pool *pgxpool.Pool, logger *slog.Logger) CompanyAreaRepository {
	return &companyAreaRepository{pool: pool, logger: logger}
}

func (r *companyAreaRepository) FindByCompany(ctx context.Context, companyID int64) ([]*entity.CompanyArea, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, company_id, name, created_at, updated_at, deleted_at
		 FROM company_areas WHERE company_id = $1 AND deleted_at IS NULL ORDER BY name`, companyID)
	if err != nil {
		r.logger.Error("failed to list company areas", "company_id", companyID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.CompanyArea
	for rows.Next() {
		var a entity.CompanyArea
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Name, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *companyAreaRepository) Create(ctx context.Context, companyID int64, name string) (*entity.CompanyArea, error) {
	var a entity.CompanyArea
	err := r.pool.QueryRow(ctx,
		`INSERT INTO company_areas (company_id, name) VALUES ($1, $2)
		 RETURNING id, company_id, name, created_at, updated_at, deleted_at`, companyID, name).
		Scan(&a.ID, &a.CompanyID, &a.Name, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if err != nil {
		r.logger.Error("failed to create company area", "company_id", companyID, "name", name, "error", err)
		return nil, err
	}
	return &a, nil
}

func (r *companyAreaRepository) Rename(ctx context.Context, id int64, name string) (*entity.CompanyArea, error) {
	var a entity.CompanyArea
	err := r.pool.QueryRow(ctx,
		`UPDATE company_areas SET name = $2, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING id, company_id, name, created_at, updated_at, deleted_at`, id, name).
		Scan(&a.ID, &a.CompanyID, &a.Name, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("company area %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *companyAreaRepository) SoftDelete(ctx context.Context, id int64) error {
	return softDelete(ctx, r.pool, r.logger, "company_areas", id)
}

func softDelete(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, table string, id int64) error {
	tag, err := pool.Exec(ctx,
		`UPDATE `+table+` SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		logger.Error("failed to soft delete", "table", table, "id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", table, id, common.ErrNotFound)
	}
	return nil
}
