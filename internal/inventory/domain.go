package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/shared"
)

const (
	// DefaultMinStock is the low-stock threshold applied when none is given.
	DefaultMinStock int64 = 10
	// DefaultCategory groups items registered without a category.
	DefaultCategory = "General"
)

var (
	// ErrZeroDelta rejects adjustments that would not change stock.
	ErrZeroDelta = &shared.ValidationError{Field: "delta", Message: "must not be zero"}
	// ErrItemNameRequired rejects blank item names.
	ErrItemNameRequired = &shared.ValidationError{Field: "name", Message: "item name required"}
	// ErrNegativeMoney rejects negative cost or price.
	ErrNegativeMoney = &shared.ValidationError{Field: "unit_cost", Message: "cost and price must not be negative"}
)

// Item is a stock keeping unit identified by its unique name.
type Item struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	QuantityOnHand int64           `json:"quantity_on_hand"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	MinStock       int64           `json:"min_stock"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsLow reports whether the item has reached its reorder threshold.
func (i Item) IsLow() bool {
	return i.QuantityOnHand <= i.MinStock
}

// StockValue is on-hand quantity valued at cost.
func (i Item) StockValue() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromInt(i.QuantityOnHand))
}

// Delta is a signed stock movement applied inside a caller's transaction.
type Delta struct {
	ItemName string
	Qty      int64
	// UnitCost and UnitPrice overwrite the stored values when valid.
	UnitCost  decimal.NullDecimal
	UnitPrice decimal.NullDecimal
	Category  string
	// CreateIfMissing registers an unknown item with max(Qty, 0) instead of failing.
	CreateIfMissing bool
}

// AdjustInput describes a manual stock adjustment.
type AdjustInput struct {
	ItemName  string
	Delta     int64
	UnitCost  decimal.NullDecimal
	UnitPrice decimal.NullDecimal
	Category  string
	Reason    string
	ActorID   int64
}

// UpsertItemInput registers or updates item master data. OpeningQuantity only applies on insert.
type UpsertItemInput struct {
	Name            string
	Category        string
	UnitCost        decimal.Decimal
	UnitPrice       decimal.Decimal
	MinStock        *int64
	OpeningQuantity int64
	ActorID         int64
}

// ListFilter narrows item listings.
type ListFilter struct {
	Search   string
	Category string
	LowOnly  bool
}
