package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waa-mobile/waapos/internal/platform/db"
	"github.com/waa-mobile/waapos/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	StockTx
	UpsertItem(ctx context.Context, item Item) (Item, error)
}

type txRepository struct {
	StockTx
	tx pgx.Tx
}

type stockTx struct {
	tx pgx.Tx
}

// NewStockTx binds the stock port to an open transaction.
func NewStockTx(tx pgx.Tx) StockTx {
	return &stockTx{tx: tx}
}

const itemColumns = `id, name, category, quantity_on_hand, unit_cost, unit_price, min_stock, updated_at`

// WithTx executes the callback inside a read-committed transaction; rows are locked explicitly.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTxOptions(ctx, r.pool, db.WriteTx, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{StockTx: NewStockTx(tx), tx: tx})
	})
}

// GetItem fetches one item by name.
func (r *Repository) GetItem(ctx context.Context, name string) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE name=$1`, name))
	if err != nil {
		if shared.IsNoRows(err) {
			return Item{}, shared.NotFound("item", name)
		}
		return Item{}, shared.Storage("inventory.get_item", err)
	}
	return item, nil
}

// ListItems lists items ordered by name.
func (r *Repository) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	var search any
	if s := strings.TrimSpace(filter.Search); s != "" {
		search = "%" + s + "%"
	}
	var category any
	if c := strings.TrimSpace(filter.Category); c != "" {
		category = c
	}
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items
WHERE ($1::text IS NULL OR name ILIKE $1)
  AND ($2::text IS NULL OR category = $2)
  AND (NOT $3 OR quantity_on_hand <= min_stock)
ORDER BY name`, search, category, filter.LowOnly)
	if err != nil {
		return nil, shared.Storage("inventory.list_items", err)
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, shared.Storage("inventory.list_items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("inventory.list_items", err)
	}
	return items, nil
}

func (r *txRepository) UpsertItem(ctx context.Context, item Item) (Item, error) {
	saved, err := scanItem(r.tx.QueryRow(ctx, `INSERT INTO inventory_items (name, category, quantity_on_hand, unit_cost, unit_price, min_stock)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (name) DO UPDATE SET category=EXCLUDED.category, unit_cost=EXCLUDED.unit_cost,
	unit_price=EXCLUDED.unit_price, min_stock=EXCLUDED.min_stock, updated_at=NOW()
RETURNING `+itemColumns, item.Name, item.Category, item.QuantityOnHand, item.UnitCost, item.UnitPrice, item.MinStock))
	if err != nil {
		return Item{}, shared.Storage("inventory.upsert_item", err)
	}
	return saved, nil
}

func (s *stockTx) GetItemForUpdate(ctx context.Context, name string) (Item, error) {
	item, err := scanItem(s.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE name=$1 FOR UPDATE`, name))
	if err != nil {
		if shared.IsNoRows(err) {
			return Item{}, shared.NotFound("item", name)
		}
		return Item{}, shared.Storage("inventory.lock_item", err)
	}
	return item, nil
}

func (s *stockTx) InsertItem(ctx context.Context, item Item) (Item, error) {
	saved, err := scanItem(s.tx.QueryRow(ctx, `INSERT INTO inventory_items (name, category, quantity_on_hand, unit_cost, unit_price, min_stock)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+itemColumns, item.Name, item.Category, item.QuantityOnHand, item.UnitCost, item.UnitPrice, item.MinStock))
	if err != nil {
		return Item{}, shared.Storage("inventory.insert_item", err)
	}
	return saved, nil
}

func (s *stockTx) UpdateItemStock(ctx context.Context, item Item) error {
	_, err := s.tx.Exec(ctx, `UPDATE inventory_items SET quantity_on_hand=$2, unit_cost=$3, unit_price=$4, updated_at=NOW() WHERE id=$1`,
		item.ID, item.QuantityOnHand, item.UnitCost, item.UnitPrice)
	return shared.Storage("inventory.update_stock", err)
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.QuantityOnHand, &item.UnitCost, &item.UnitPrice, &item.MinStock, &item.UpdatedAt)
	return item, err
}
