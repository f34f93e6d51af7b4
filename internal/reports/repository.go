package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/platform/db"
	"github.com/waa-mobile/waapos/internal/shared"
)

// Repository runs the report aggregates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Totals sums invoices, expenses and returns dated inside the window in one snapshot.
func (r *Repository) Totals(ctx context.Context, from, to time.Time) (Totals, error) {
	var t Totals
	err := db.WithTxOptions(ctx, r.pool, db.ReadTx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(net_total),0), COALESCE(SUM(total_cost),0)
FROM invoices WHERE invoice_date BETWEEN $1 AND $2`, from, to).Scan(&t.Invoices, &t.Sales, &t.Cost); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount),0) FROM expenses WHERE expense_date BETWEEN $1 AND $2`,
			from, to).Scan(&t.Expenses); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount),0) FROM returns WHERE return_date BETWEEN $1 AND $2`,
			from, to).Scan(&t.Returns)
	})
	if err != nil {
		return Totals{}, shared.Storage("reports.totals", err)
	}
	return t, nil
}

// MethodFlows groups payments and expenses inside the window by method.
func (r *Repository) MethodFlows(ctx context.Context, from, to time.Time) ([]MethodFlow, error) {
	rows, err := r.pool.Query(ctx, `WITH moves AS (
    SELECT method,
           CASE WHEN direction = 'In' THEN amount ELSE 0 END AS amount_in,
           CASE WHEN direction = 'Out' THEN amount ELSE 0 END AS amount_out,
           0::numeric AS expense
    FROM payments WHERE payment_date BETWEEN $1 AND $2
    UNION ALL
    SELECT method, 0, 0, amount FROM expenses WHERE expense_date BETWEEN $1 AND $2
)
SELECT method, SUM(amount_in), SUM(amount_out), SUM(expense) FROM moves GROUP BY method ORDER BY method`, from, to)
	if err != nil {
		return nil, shared.Storage("reports.method_flows", err)
	}
	defer rows.Close()
	var out []MethodFlow
	for rows.Next() {
		var f MethodFlow
		var method string
		if err := rows.Scan(&method, &f.In, &f.Out, &f.Expenses); err != nil {
			return nil, shared.Storage("reports.method_flows", err)
		}
		f.Method = ledger.PaymentMethod(method)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("reports.method_flows", err)
	}
	return out, nil
}

// SalesOn returns the net total and count of invoices dated day.
func (r *Repository) SalesOn(ctx context.Context, day time.Time) (decimal.Decimal, int64, error) {
	var total decimal.Decimal
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(net_total),0), COUNT(*) FROM invoices WHERE invoice_date = $1`, day).
		Scan(&total, &count)
	if err != nil {
		return decimal.Zero, 0, shared.Storage("reports.sales_on", err)
	}
	return total, count, nil
}
