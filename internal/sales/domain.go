package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/shared"
)

// NumberSeed is the value the first invoice number increments from.
const NumberSeed int64 = 1000

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity int64 = 1_000_000

// ErrEmptyCart rejects a posting with no lines.
var ErrEmptyCart = &shared.ValidationError{Field: "cart", Message: "cart is empty"}

// CartLine is one requested sale line. Lines naming the same item are merged for the
// stock check but kept separate on the invoice.
type CartLine struct {
	ItemName string          `json:"item_name" validate:"required,max=120"`
	Quantity int64           `json:"quantity" validate:"required,gt=0,lte=1000000"`
	UnitRate decimal.Decimal `json:"unit_rate"`
}

// Cart is owned by the caller for the duration of one request and cleared after a
// successful posting.
type Cart struct {
	Lines []CartLine `json:"lines" validate:"dive"`
}

// Add appends a line.
func (c *Cart) Add(item string, qty int64, rate decimal.Decimal) {
	c.Lines = append(c.Lines, CartLine{ItemName: item, Quantity: qty, UnitRate: rate})
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Gross sums quantity x rate over every line, with rates rounded to paisa as they are posted.
func (c Cart) Gross() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// LineTotal is the posted amount of the line.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitRate.Round(2).Mul(decimal.NewFromInt(l.Quantity))
}

// PaymentAtSale is an optional amount tendered when the invoice is posted.
type PaymentAtSale struct {
	Amount decimal.Decimal      `json:"amount"`
	Method ledger.PaymentMethod `json:"method"`
}

// PostInvoiceInput carries everything a posting needs.
type PostInvoiceInput struct {
	CustomerName   string
	Cart           Cart
	Discount       decimal.Decimal
	Payment        *PaymentAtSale
	Date           time.Time
	ActorID        int64
	IdempotencyKey string
}

// Invoice is the header row. It is immutable once posted.
type Invoice struct {
	Number        int64                `json:"number"`
	Date          time.Time            `json:"date"`
	CustomerID    int64                `json:"customer_id"`
	CustomerName  string               `json:"customer_name"`
	GrossTotal    decimal.Decimal      `json:"gross_total"`
	Discount      decimal.Decimal      `json:"discount"`
	NetTotal      decimal.Decimal      `json:"net_total"`
	TotalCost     decimal.Decimal      `json:"total_cost"`
	Paid          decimal.Decimal      `json:"paid"`
	PaymentMethod ledger.PaymentMethod `json:"payment_method,omitempty"`
	CreatedBy     int64                `json:"-"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Due is the part of the net total not settled at the counter.
func (i Invoice) Due() decimal.Decimal {
	return i.NetTotal.Sub(i.Paid)
}

// InvoiceLine is a posted line. UnitCost is the item cost read inside the posting.
type InvoiceLine struct {
	InvoiceNumber int64           `json:"invoice_number"`
	LineNo        int             `json:"line_no"`
	ItemID        int64           `json:"item_id"`
	ItemName      string          `json:"item_name"`
	Quantity      int64           `json:"quantity"`
	UnitRate      decimal.Decimal `json:"unit_rate"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// InvoiceSnapshot is the finalised invoice handed to callers and to the receipt renderer.
type InvoiceSnapshot struct {
	Invoice
	Lines []InvoiceLine `json:"lines"`
}

// Profit is net total minus cost.
func (s InvoiceSnapshot) Profit() decimal.Decimal {
	return s.NetTotal.Sub(s.TotalCost)
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	From     *time.Time
	To       *time.Time
	Customer string
	Limit    int
}
