package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/shared"
)

// NumberSeed is the value the first purchase number increments from.
const NumberSeed int64 = 1000

// ErrNoLines rejects a purchase without lines.
var ErrNoLines = &shared.ValidationError{Field: "lines", Message: "purchase has no lines"}

// Purchase is a supplier bill. Receiving it raises stock and the supplier's balance.
type Purchase struct {
	Number       int64           `json:"number"`
	Date         time.Time       `json:"date"`
	SupplierID   int64           `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	NetTotal     decimal.Decimal `json:"net_total"`
	Note         string          `json:"note,omitempty"`
	CreatedBy    int64           `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PurchaseLine is one received item.
type PurchaseLine struct {
	PurchaseNumber int64           `json:"purchase_number"`
	LineNo         int             `json:"line_no"`
	ItemID         int64           `json:"item_id"`
	ItemName       string          `json:"item_name"`
	Quantity       int64           `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

// PurchaseSnapshot is a posted purchase with its lines.
type PurchaseSnapshot struct {
	Purchase
	Lines []PurchaseLine `json:"lines"`
}

// LineInput describes one received item. UnitCost replaces the item's stored cost;
// UnitPrice and Category only apply when set.
type LineInput struct {
	ItemName  string              `json:"item_name" validate:"required,max=120"`
	Quantity  int64               `json:"quantity" validate:"required,gt=0"`
	UnitCost  decimal.Decimal     `json:"unit_cost"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	Category  string              `json:"category" validate:"max=60"`
}

// PaymentAtPurchase is an optional amount paid to the supplier on receipt.
type PaymentAtPurchase struct {
	Amount decimal.Decimal
	Method ledger.PaymentMethod
}

// RecordPurchaseInput carries a purchase posting. CreateIfMissing registers unknown items
// instead of rejecting them.
type RecordPurchaseInput struct {
	SupplierName    string
	Lines           []LineInput
	Date            time.Time
	Note            string
	CreateIfMissing bool
	Payment         *PaymentAtPurchase
	ActorID         int64
	IdempotencyKey  string
}

// ListFilter narrows purchase listings.
type ListFilter struct {
	From     *time.Time
	To       *time.Time
	Supplier string
	Limit    int
}
