package procurement

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waa-mobile/waapos/internal/inventory"
	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/platform/db"
	"github.com/waa-mobile/waapos/internal/shared"
)

// Repository persists purchases.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	inventory.StockTx
	ledger.PaymentTx

	NextPurchaseNumber(ctx context.Context) (int64, error)
	InsertPurchase(ctx context.Context, p Purchase) error
	InsertPurchaseLine(ctx context.Context, line PurchaseLine) error
}

type txRepo struct {
	inventory.StockTx
	ledger.PaymentTx
	tx pgx.Tx
}

// WithTx runs fn inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("procurement repository not initialised")
	}
	return db.WithTxOptions(ctx, r.pool, db.WriteTx, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{StockTx: inventory.NewStockTx(tx), PaymentTx: ledger.NewPaymentTx(tx), tx: tx})
	})
}

func (t *txRepo) NextPurchaseNumber(ctx context.Context) (int64, error) {
	if err := db.AdvisoryXactLock(ctx, t.tx, shared.AdvisoryPurchaseNumber); err != nil {
		return 0, shared.Storage("procurement.number_lock", err)
	}
	var next int64
	if err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(number), $1) + 1 FROM purchases`, NumberSeed).Scan(&next); err != nil {
		return 0, shared.Storage("procurement.next_number", err)
	}
	return next, nil
}

func (t *txRepo) InsertPurchase(ctx context.Context, p Purchase) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchases (number, purchase_date, supplier_id, supplier_name, net_total, note, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, p.Number, p.Date, p.SupplierID, p.SupplierName, p.NetTotal, p.Note, db.NullInt(p.CreatedBy))
	if err != nil {
		return shared.Storage("procurement.insert_purchase", err)
	}
	return nil
}

func (t *txRepo) InsertPurchaseLine(ctx context.Context, line PurchaseLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchase_lines (purchase_number, line_no, item_id, item_name, quantity, unit_cost, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, line.PurchaseNumber, line.LineNo, line.ItemID, line.ItemName, line.Quantity, line.UnitCost, line.LineTotal)
	if err != nil {
		return shared.Storage("procurement.insert_line", err)
	}
	return nil
}

const purchaseColumns = `number, purchase_date, supplier_id, supplier_name, net_total, note, COALESCE(created_by, 0), created_at`

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	err := row.Scan(&p.Number, &p.Date, &p.SupplierID, &p.SupplierName, &p.NetTotal, &p.Note, &p.CreatedBy, &p.CreatedAt)
	return p, err
}

// GetPurchase loads a purchase and its lines from one snapshot.
func (r *Repository) GetPurchase(ctx context.Context, number int64) (PurchaseSnapshot, error) {
	var snap PurchaseSnapshot
	err := db.WithTxOptions(ctx, r.pool, db.ReadTx, func(tx pgx.Tx) error {
		p, err := scanPurchase(tx.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE number=$1`, number))
		if err != nil {
			if shared.IsNoRows(err) {
				return shared.NotFound("purchase", strconv.FormatInt(number, 10))
			}
			return err
		}
		rows, err := tx.Query(ctx, `SELECT purchase_number, line_no, item_id, item_name, quantity, unit_cost, line_total
FROM purchase_lines WHERE purchase_number=$1 ORDER BY line_no`, number)
		if err != nil {
			return err
		}
		defer rows.Close()
		lines := []PurchaseLine{}
		for rows.Next() {
			var l PurchaseLine
			if err := rows.Scan(&l.PurchaseNumber, &l.LineNo, &l.ItemID, &l.ItemName, &l.Quantity, &l.UnitCost, &l.LineTotal); err != nil {
				return err
			}
			lines = append(lines, l)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		snap = PurchaseSnapshot{Purchase: p, Lines: lines}
		return nil
	})
	if err != nil {
		return PurchaseSnapshot{}, shared.Storage("procurement.get_purchase", err)
	}
	return snap, nil
}

// ListPurchases returns purchase headers newest first.
func (r *Repository) ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	var supplier any
	if s := strings.TrimSpace(filter.Supplier); s != "" {
		supplier = s
	}
	rows, err := r.pool.Query(ctx, `SELECT `+purchaseColumns+` FROM purchases
WHERE ($1::date IS NULL OR purchase_date >= $1)
  AND ($2::date IS NULL OR purchase_date <= $2)
  AND ($3::text IS NULL OR supplier_name = $3)
ORDER BY number DESC
LIMIT $4`, filter.From, filter.To, supplier, filter.Limit)
	if err != nil {
		return nil, shared.Storage("procurement.list", err)
	}
	defer rows.Close()
	list := []Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, shared.Storage("procurement.list", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("procurement.list", err)
	}
	return list, nil
}
