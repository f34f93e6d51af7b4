package inventory

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/shared"
)

// StockTx is the transactional stock port. Sales, purchasing and ledger embed it in their
// own transaction repositories so that stock moves commit together with the document.
type StockTx interface {
	// GetItemForUpdate locks and returns the item or a *shared.NotFoundError.
	GetItemForUpdate(ctx context.Context, name string) (Item, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	UpdateItemStock(ctx context.Context, item Item) error
}

// ApplyDelta moves stock for one item. A result below zero is rejected with
// *shared.StockInsufficientError and nothing is written.
func ApplyDelta(ctx context.Context, tx StockTx, d Delta) (Item, error) {
	name := strings.TrimSpace(d.ItemName)
	if name == "" {
		return Item{}, ErrItemNameRequired
	}
	if d.Qty == 0 {
		return Item{}, ErrZeroDelta
	}
	if (d.UnitCost.Valid && d.UnitCost.Decimal.IsNegative()) || (d.UnitPrice.Valid && d.UnitPrice.Decimal.IsNegative()) {
		return Item{}, ErrNegativeMoney
	}

	item, err := tx.GetItemForUpdate(ctx, name)
	if err != nil {
		if !d.CreateIfMissing || !isNotFound(err) {
			return Item{}, err
		}
		fresh := Item{
			Name:           name,
			Category:       defaultString(d.Category, DefaultCategory),
			QuantityOnHand: max(d.Qty, 0),
			MinStock:       DefaultMinStock,
			UnitCost:       d.UnitCost.Decimal,
			UnitPrice:      d.UnitPrice.Decimal,
		}
		return tx.InsertItem(ctx, fresh)
	}

	if d.Qty > 0 && item.QuantityOnHand > math.MaxInt64-d.Qty {
		return Item{}, shared.Invalid("quantity", "stock quantity would overflow")
	}
	next := item.QuantityOnHand + d.Qty
	if next < 0 {
		return Item{}, &shared.StockInsufficientError{Item: item.Name, Requested: -d.Qty, Available: item.QuantityOnHand}
	}
	item.QuantityOnHand = next
	if d.UnitCost.Valid {
		item.UnitCost = d.UnitCost.Decimal
	}
	if d.UnitPrice.Valid {
		item.UnitPrice = d.UnitPrice.Decimal
	}
	if err := tx.UpdateItemStock(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Money wraps a decimal as a valid NullDecimal.
func Money(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func isNotFound(err error) bool {
	var nf *shared.NotFoundError
	return errors.As(err, &nf)
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
