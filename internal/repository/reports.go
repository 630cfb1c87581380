package repository

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CostCenterTotal is one aggregated row of the cost-center report.
type CostCenterTotal struct {
	CostCenterID   int64   `json:"costCenterId"`
	CostCenterName string  `json:"costCenterName"`
	CompanyID      int64   `json:"companyId"`
	CompanyName    string  `json:"companyName"`
	TotalARS       float64 `json:"totalArs"`
	TotalUSD       float64 `json:"totalUsd"`
	ExpenseCount   int64   `json:"expenseCount"`
}

type ReportRepository interface {
	// CostCenterTotals sums non-deleted expenses per cost center, optionally
	// restricted to one budget period.
	CostCenterTotals(ctx context.Context, budgetPeriodID *int64) ([]*CostCenterTotal, error)
}

type reportRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewReportRepository(pool *pgxpool.Pool, logger *slog.Logger) ReportRepository {
	return &reportRepository{pool: pool, logger: logger}
}

func (r *reportRepository) CostCenterTotals(ctx context.Context, budgetPeriodID *int64) ([]*CostCenterTotal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT cc.id, cc.name, c.id, c.name,
		        COALESCE(SUM(e.amount_ars), 0),
		        COALESCE(SUM(e.amount_usd), 0),
		        COUNT(e.id)
		 FROM expenses e
		 JOIN cost_centers cc ON cc.id = e.cost_center_id
		 JOIN companies c ON c.id = cc.company_id
		 WHERE e.deleted_at IS NULL
		   AND ($1::bigint IS NULL OR e.budget_period_id = $1)
		 GROUP BY cc.id, cc.name, c.id, c.name
		 ORDER BY c.name, cc.name`, budgetPeriodID)
	if err != nil {
		r.logger.Error("failed to build cost center report", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*CostCenterTotal
	for rows.Next() {
		var t CostCenterTotal
		if err := rows.Scan(&t.CostCenterID, &t.CostCenterName, &t.CompanyID, &t.CompanyName,
			&t.TotalARS, &t.TotalUSD, &t.ExpenseCount); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
