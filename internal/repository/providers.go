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

// UpdateProvider carries patchable provider fields; nil means leave as is.
type UpdateProvider struct {
	Name  *string
	TaxID *string
}

type ProviderRepository interface {
	FindAll(ctx context.Context) ([]*entity.Provider, error)
	FindByID(ctx context.Context, id int64) (*entity.Provider, error)
	// FindByTaxID matches on the digits-only normalization of the stored tax id.
	FindByTaxID(ctx context.Context, normalizedTaxID string) (*entity.Provider, error)
	Create(ctx context.Context, name string, taxID *string) (*entity.Provider, error)
	Update(ctx context.Context, id int64, upd UpdateProvider) (*entity.Provider, error)
	SoftDelete(ctx context.Context, id int64) error
}

type providerRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewProviderRepository(pool *pgxpool.Pool, logger *slog.Logger) ProviderRepository {
	return &providerRepository{pool: pool, logger: logger}
}

const providerColumns = "id, name, tax_id, created_at, updated_at, deleted_at"

func scanProvider(row pgx.Row) (*entity.Provider, error) {
	var p entity.Provider
	if err := row.Scan(&p.ID, &p.Name, &p.TaxID, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *providerRepository) FindAll(ctx context.Context) ([]*entity.Provider, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE deleted_at IS NULL ORDER BY name`)
	if err != nil {
		r.logger.Error("failed to list providers", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *providerRepository) FindByID(ctx context.Context, id int64) (*entity.Provider, error) {
	p, err := scanProvider(r.pool.QueryRow(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("provider %d: %w", id, common.ErrNotFound)
	}
	return p, err
}

func (r *providerRepository) FindByTaxID(ctx context.Context, normalizedTaxID string) (*entity.Provider, error) {
	p, err := scanProvider(r.pool.QueryRow(ctx,
		`SELECT `+providerColumns+` FROM providers
		 WHERE regexp_replace(COALESCE(tax_id, ''), '\D', '', 'g') = $1
		   AND tax_id IS NOT NULL AND deleted_at IS NULL
		 LIMIT 1`, normalizedTaxID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *providerRepository) Create(ctx context.Context, name string, taxID *string) (*entity.Provider, error) {
	p, err := scanProvider(r.pool.QueryRow(ctx,
		`INSERT INTO providers (name, tax_id) VALUES ($1, $2) RETURNING `+providerColumns,
		name, taxID))
	if err != nil {
		r.logger.Error("failed to create provider", "name", name, "error", err)
		return nil, err
	}
	return p, nil
}

func (r *providerRepository) Update(ctx context.Context, id int64, upd UpdateProvider) (*entity.Provider, error) {
	p, err := scanProvider(r.pool.QueryRow(ctx,
		`UPDATE providers
		 SET name = COALESCE($2, name),
		     tax_id = COALESCE($3, tax_id),
		     updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+providerColumns,
		id, upd.Name, upd.TaxID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("provider %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to update provider", "provider_id", id, "error", err)
		return nil, err
	}
	return p, nil
}

func (r *providerRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE providers SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		r.logger.Error("failed to delete provider", "provider_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("provider %d: %w", id, common.ErrNotFound)
	}
	return nil
}
