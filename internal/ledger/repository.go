package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/inventory"
	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/platform/db"
	"github.com/waa-mobile/waapos/internal/shared"
)

// PaymentTx appends and removes payments inside a caller's transaction.
type PaymentTx interface {
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	// ReleaseInvoicePayments deletes the payment taken at sale and unlinks any later
	// receipts from the invoice. It returns the number of deleted rows.
	ReleaseInvoicePayments(ctx context.Context, invoiceNumber int64) (int64, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	inventory.StockTx
	PaymentTx
	InsertReturn(ctx context.Context, r Return) (int64, error)
	// InvoiceCustomerID share-locks the invoice and returns its customer.
	InvoiceCustomerID(ctx context.Context, number int64) (int64, error)
	// PurchaseSupplierID share-locks the purchase and returns its supplier.
	PurchaseSupplierID(ctx context.Context, number int64) (int64, error)
}

// Repository persists ledger rows and answers the balance aggregates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type paymentTx struct {
	tx pgx.Tx
}

// NewPaymentTx binds the payment port to an open transaction.
func NewPaymentTx(tx pgx.Tx) PaymentTx {
	return &paymentTx{tx: tx}
}

type txRepository struct {
	inventory.StockTx
	PaymentTx
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction; item rows are locked explicitly.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTxOptions(ctx, r.pool, db.WriteTx, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{StockTx: inventory.NewStockTx(tx), PaymentTx: NewPaymentTx(tx), tx: tx})
	})
}

func (p *paymentTx) InsertPayment(ctx context.Context, pay Payment) (int64, error) {
	var id int64
	err := p.tx.QueryRow(ctx, `INSERT INTO payments (payment_date, party_id, direction, amount, method, invoice_number, purchase_number, at_sale, note, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		pay.Date, pay.PartyID, string(pay.Direction), pay.Amount, string(pay.Method),
		db.NullInt(pay.InvoiceNumber), db.NullInt(pay.PurchaseNumber), pay.AtSale, pay.Note, db.NullInt(pay.CreatedBy)).Scan(&id)
	if err != nil {
		return 0, shared.Storage("ledger.insert_payment", err)
	}
	return id, nil
}

func (p *paymentTx) ReleaseInvoicePayments(ctx context.Context, invoiceNumber int64) (int64, error) {
	tag, err := p.tx.Exec(ctx, `DELETE FROM payments WHERE invoice_number=$1 AND at_sale`, invoiceNumber)
	if err != nil {
		return 0, shared.Storage("ledger.delete_sale_payment", err)
	}
	if _, err := p.tx.Exec(ctx, `UPDATE payments SET invoice_number=NULL WHERE invoice_number=$1`, invoiceNumber); err != nil {
		return 0, shared.Storage("ledger.unlink_invoice_payments", err)
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) InvoiceCustomerID(ctx context.Context, number int64) (int64, error) {
	return r.documentParty(ctx, "invoice", `SELECT customer_id FROM invoices WHERE number=$1 FOR SHARE`, number)
}

func (r *txRepository) PurchaseSupplierID(ctx context.Context, number int64) (int64, error) {
	return r.documentParty(ctx, "purchase", `SELECT supplier_id FROM purchases WHERE number=$1 FOR SHARE`, number)
}

func (r *txRepository) documentParty(ctx context.Context, entity, query string, number int64) (int64, error) {
	var partyID int64
	if err := r.tx.QueryRow(ctx, query, number).Scan(&partyID); err != nil {
		if shared.IsNoRows(err) {
			return 0, shared.NotFound(entity, strconv.FormatInt(number, 10))
		}
		return 0, shared.Storage("ledger."+entity+"_party", err)
	}
	return partyID, nil
}

func (r *txRepository) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO returns (return_date, customer_id, item_id, quantity, amount, reason, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		ret.Date, ret.CustomerID, ret.ItemID, ret.Quantity, ret.Amount, ret.Reason, db.NullInt(ret.CreatedBy)).Scan(&id)
	if err != nil {
		return 0, shared.Storage("ledger.insert_return", err)
	}
	return id, nil
}

// SalesTotal sums net invoice totals billed to a customer.
func (r *Repository) SalesTotal(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	return r.sum(ctx, "ledger.sales_total", `SELECT COALESCE(SUM(net_total), 0) FROM invoices WHERE customer_id=$1`, customerID)
}

// PurchasesTotal sums purchase totals billed by a supplier.
func (r *Repository) PurchasesTotal(ctx context.Context, supplierID int64) (decimal.Decimal, error) {
	return r.sum(ctx, "ledger.purchases_total", `SELECT COALESCE(SUM(net_total), 0) FROM purchases WHERE supplier_id=$1`, supplierID)
}

// PaymentsTotal sums payments for a party in one direction.
func (r *Repository) PaymentsTotal(ctx context.Context, partyID int64, dir Direction) (decimal.Decimal, error) {
	return r.sum(ctx, "ledger.payments_total", `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE party_id=$1 AND direction=$2`, partyID, string(dir))
}

// ReturnsTotal sums return amounts credited to a customer.
func (r *Repository) ReturnsTotal(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	return r.sum(ctx, "ledger.returns_total", `SELECT COALESCE(SUM(amount), 0) FROM returns WHERE customer_id=$1`, customerID)
}

func (r *Repository) sum(ctx context.Context, op, query string, args ...any) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, shared.Storage(op, err)
	}
	return total, nil
}

const customerEntriesSQL = `SELECT d, type, ref, debit, credit, note FROM (
	SELECT invoice_date AS d, 'invoice' AS type, number::text AS ref, net_total AS debit, 0::numeric AS credit, '' AS note, created_at
	FROM invoices WHERE customer_id=$1
	UNION ALL
	SELECT payment_date, 'payment', COALESCE('INV ' || invoice_number::text, method), 0::numeric, amount, note, created_at
	FROM payments WHERE party_id=$1 AND direction='In'
	UNION ALL
	SELECT r.return_date, 'return', i.name || ' x' || r.quantity::text, 0::numeric, r.amount, r.reason, r.created_at
	FROM returns r JOIN inventory_items i ON i.id = r.item_id WHERE r.customer_id=$1
) e
WHERE ($2::date IS NULL OR d <= $2)
ORDER BY d, created_at`

const supplierEntriesSQL = `SELECT d, type, ref, debit, credit, note FROM (
	SELECT purchase_date AS d, 'purchase' AS type, number::text AS ref, net_total AS debit, 0::numeric AS credit, note, created_at
	FROM purchases WHERE supplier_id=$1
	UNION ALL
	SELECT payment_date, 'payment', COALESCE('PUR ' || purchase_number::text, method), 0::numeric, amount, note, created_at
	FROM payments WHERE party_id=$1 AND direction='Out'
) e
WHERE ($2::date IS NULL OR d <= $2)
ORDER BY d, created_at`

// StatementEntries lists a party's postings up to and including to (all when to is nil),
// oldest first. Running balances are left for the service to compute.
func (r *Repository) StatementEntries(ctx context.Context, party parties.Party, to *time.Time) ([]StatementEntry, error) {
	var query string
	switch party.Kind {
	case parties.KindCustomer:
		query = customerEntriesSQL
	case parties.KindSupplier:
		query = supplierEntriesSQL
	default:
		return nil, shared.Invalid("kind", "unknown party kind")
	}
	rows, err := r.pool.Query(ctx, query, party.ID, to)
	if err != nil {
		return nil, shared.Storage("ledger.statement", err)
	}
	defer rows.Close()
	entries := []StatementEntry{}
	for rows.Next() {
		var e StatementEntry
		var typ string
		if err := rows.Scan(&e.Date, &typ, &e.Reference, &e.Debit, &e.Credit, &e.Note); err != nil {
			return nil, shared.Storage("ledger.statement", err)
		}
		e.Type = EntryType(typ)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("ledger.statement", err)
	}
	return entries, nil
}
