package sales

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

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	inventory.StockTx
	ledger.PaymentTx

	// NextInvoiceNumber serialises numbering for the rest of the transaction.
	NextInvoiceNumber(ctx context.Context) (int64, error)
	InsertInvoice(ctx context.Context, inv Invoice) error
	InsertInvoiceLine(ctx context.Context, line InvoiceLine) error
	GetLastInvoiceForUpdate(ctx context.Context) (InvoiceSnapshot, error)
	DeleteInvoice(ctx context.Context, number int64) error
}

type txRepo struct {
	inventory.StockTx
	ledger.PaymentTx
	tx pgx.Tx
}

// WithTx wraps callback in a read-committed transaction. Items are locked with FOR UPDATE
// and numbering with an advisory lock, so each statement must see committed rows.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTxOptions(ctx, r.pool, db.WriteTx, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{StockTx: inventory.NewStockTx(tx), PaymentTx: ledger.NewPaymentTx(tx), tx: tx})
	})
}

func (t *txRepo) NextInvoiceNumber(ctx context.Context) (int64, error) {
	if err := db.AdvisoryXactLock(ctx, t.tx, shared.AdvisoryInvoiceNumber); err != nil {
		return 0, shared.Storage("sales.number_lock", err)
	}
	var next int64
	if err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(number), $1) + 1 FROM invoices`, NumberSeed).Scan(&next); err != nil {
		return 0, shared.Storage("sales.next_number", err)
	}
	return next, nil
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) error {
	var method any
	if inv.PaymentMethod != "" {
		method = string(inv.PaymentMethod)
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO invoices (number, invoice_date, customer_id, customer_name, gross_total, discount, net_total, total_cost, paid, payment_method, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		inv.Number, inv.Date, inv.CustomerID, inv.CustomerName, inv.GrossTotal, inv.Discount,
		inv.NetTotal, inv.TotalCost, inv.Paid, method, db.NullInt(inv.CreatedBy))
	if err != nil {
		return shared.Storage("sales.insert_invoice", err)
	}
	return nil
}

func (t *txRepo) InsertInvoiceLine(ctx context.Context, line InvoiceLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO invoice_lines (invoice_number, line_no, item_id, item_name, quantity, unit_rate, unit_cost, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		line.InvoiceNumber, line.LineNo, line.ItemID, line.ItemName, line.Quantity, line.UnitRate, line.UnitCost, line.LineTotal)
	if err != nil {
		return shared.Storage("sales.insert_line", err)
	}
	return nil
}

func (t *txRepo) GetLastInvoiceForUpdate(ctx context.Context) (InvoiceSnapshot, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY number DESC LIMIT 1 FOR UPDATE`))
	if err != nil {
		if shared.IsNoRows(err) {
			return InvoiceSnapshot{}, shared.NotFound("invoice", "last")
		}
		return InvoiceSnapshot{}, shared.Storage("sales.last_invoice", err)
	}
	lines, err := listLines(ctx, t.tx, inv.Number)
	if err != nil {
		return InvoiceSnapshot{}, err
	}
	return InvoiceSnapshot{Invoice: inv, Lines: lines}, nil
}

func (t *txRepo) DeleteInvoice(ctx context.Context, number int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_number=$1`, number); err != nil {
		return shared.Storage("sales.delete_lines", err)
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM invoices WHERE number=$1`, number)
	if err != nil {
		return shared.Storage("sales.delete_invoice", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("invoice", strconv.FormatInt(number, 10))
	}
	return nil
}

// GetInvoice loads the header and lines from one snapshot.
func (r *Repository) GetInvoice(ctx context.Context, number int64) (InvoiceSnapshot, error) {
	var snap InvoiceSnapshot
	err := db.WithTxOptions(ctx, r.pool, db.ReadTx, func(tx pgx.Tx) error {
		inv, err := scanInvoice(tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE number=$1`, number))
		if err != nil {
			if shared.IsNoRows(err) {
				return shared.NotFound("invoice", strconv.FormatInt(number, 10))
			}
			return shared.Storage("sales.get_invoice", err)
		}
		lines, err := listLines(ctx, tx, number)
		if err != nil {
			return err
		}
		snap = InvoiceSnapshot{Invoice: inv, Lines: lines}
		return nil
	})
	if err != nil {
		return InvoiceSnapshot{}, shared.Storage("sales.get_invoice", err)
	}
	return snap, nil
}

// ListInvoices returns headers newest first.
func (r *Repository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	var customer any
	if c := strings.TrimSpace(filter.Customer); c != "" {
		customer = c
	}
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE ($1::date IS NULL OR invoice_date >= $1)
  AND ($2::date IS NULL OR invoice_date <= $2)
  AND ($3::text IS NULL OR customer_name = $3)
ORDER BY number DESC
LIMIT $4`, filter.From, filter.To, customer, filter.Limit)
	if err != nil {
		return nil, shared.Storage("sales.list_invoices", err)
	}
	defer rows.Close()
	list := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, shared.Storage("sales.list_invoices", err)
		}
		list = append(list, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("sales.list_invoices", err)
	}
	return list, nil
}

const invoiceColumns = `number, invoice_date, customer_id, customer_name, gross_total, discount, net_total, total_cost, paid, COALESCE(payment_method, ''), COALESCE(created_by, 0), created_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var method string
	err := row.Scan(&inv.Number, &inv.Date, &inv.CustomerID, &inv.CustomerName, &inv.GrossTotal, &inv.Discount,
		&inv.NetTotal, &inv.TotalCost, &inv.Paid, &method, &inv.CreatedBy, &inv.CreatedAt)
	inv.PaymentMethod = ledger.PaymentMethod(method)
	return inv, err
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listLines(ctx context.Context, q queryer, number int64) ([]InvoiceLine, error) {
	rows, err := q.Query(ctx, `SELECT invoice_number, line_no, item_id, item_name, quantity, unit_rate, unit_cost, line_total
FROM invoice_lines WHERE invoice_number=$1 ORDER BY line_no`, number)
	if err != nil {
		return nil, shared.Storage("sales.list_lines", err)
	}
	defer rows.Close()
	lines := []InvoiceLine{}
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.InvoiceNumber, &l.LineNo, &l.ItemID, &l.ItemName, &l.Quantity, &l.UnitRate, &l.UnitCost, &l.LineTotal); err != nil {
			return nil, shared.Storage("sales.list_lines", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("sales.list_lines", err)
	}
	return lines, nil
}
