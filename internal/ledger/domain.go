package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/shared"
)

// PaymentMethod is the closed set of tender types accepted by the shop.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "Cash"
	MethodBankTransfer PaymentMethod = "Bank Transfer"
	MethodEasyPaisa    PaymentMethod = "EasyPaisa"
	MethodJazzCash     PaymentMethod = "JazzCash"
	MethodCheque       PaymentMethod = "Cheque"
)

// PaymentMethods lists every method in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{MethodCash, MethodBankTransfer, MethodEasyPaisa, MethodJazzCash, MethodCheque}
}

// ParsePaymentMethod maps user input onto a method. Matching ignores case and the "bank" shorthand
// resolves to Bank Transfer; anything else is a validation error.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash":
		return MethodCash, nil
	case "bank", "bank transfer":
		return MethodBankTransfer, nil
	case "easypaisa":
		return MethodEasyPaisa, nil
	case "jazzcash":
		return MethodJazzCash, nil
	case "cheque":
		return MethodCheque, nil
	default:
		return "", shared.Invalid("method", fmt.Sprintf("unknown payment method %q", raw))
	}
}

// Valid reports whether m is one of the declared methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodEasyPaisa, MethodJazzCash, MethodCheque:
		return true
	default:
		return false
	}
}

// Direction tells whether money came into the shop or left it.
type Direction string

const (
	DirectionIn  Direction = "In"
	DirectionOut Direction = "Out"
)

// DirectionFor returns the settling direction of a party's ledger.
func DirectionFor(kind parties.Kind) (Direction, error) {
	switch kind {
	case parties.KindCustomer:
		return DirectionIn, nil
	case parties.KindSupplier:
		return DirectionOut, nil
	default:
		return "", shared.Invalid("kind", fmt.Sprintf("unknown party kind %q", kind))
	}
}

// Payment is an append-only settlement against a party. AtSale marks the amount tendered
// with an invoice; it is the only payment removed when that invoice is deleted.
type Payment struct {
	ID             int64           `json:"id"`
	Date           time.Time       `json:"date"`
	PartyID        int64           `json:"party_id"`
	PartyName      string          `json:"party_name"`
	Direction      Direction       `json:"direction"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"method"`
	InvoiceNumber  int64           `json:"invoice_number,omitempty"`
	PurchaseNumber int64           `json:"purchase_number,omitempty"`
	AtSale         bool            `json:"at_sale,omitempty"`
	Note           string          `json:"note,omitempty"`
	CreatedBy      int64           `json:"-"`
}

// Return is goods brought back by a customer. It credits the customer and restocks the item.
type Return struct {
	ID           int64           `json:"id"`
	Date         time.Time       `json:"date"`
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	ItemID       int64           `json:"item_id"`
	ItemName     string          `json:"item_name"`
	Quantity     int64           `json:"quantity"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason,omitempty"`
	CreatedBy    int64           `json:"-"`
}

// Balance is the derived ledger position of a party. Sales holds invoiced totals for
// customers and purchased totals for suppliers; Returns is always zero for suppliers.
// A positive Balance is outstanding in the ledger's normal direction: the customer owes
// the shop, or the shop owes the supplier.
type Balance struct {
	Kind     parties.Kind    `json:"kind"`
	Party    string          `json:"party"`
	Opening  decimal.Decimal `json:"opening"`
	Sales    decimal.Decimal `json:"sales"`
	Payments decimal.Decimal `json:"payments"`
	Returns  decimal.Decimal `json:"returns"`
	Balance  decimal.Decimal `json:"balance"`
}

// Fold computes opening + sales - payments - returns.
func Fold(opening, sales, payments, returns decimal.Decimal) decimal.Decimal {
	return opening.Add(sales).Sub(payments).Sub(returns)
}

// EntryType labels statement rows.
type EntryType string

const (
	EntryOpening  EntryType = "opening"
	EntryInvoice  EntryType = "invoice"
	EntryPurchase EntryType = "purchase"
	EntryPayment  EntryType = "payment"
	EntryReturn   EntryType = "return"
)

// StatementEntry is one khata row. Debit raises the balance, Credit lowers it.
type StatementEntry struct {
	Date      time.Time       `json:"date"`
	Type      EntryType       `json:"type"`
	Reference string          `json:"reference"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Running   decimal.Decimal `json:"running"`
	Note      string          `json:"note,omitempty"`
}

// Statement is a chronological party ledger for a date window.
type Statement struct {
	Kind    parties.Kind     `json:"kind"`
	Party   string           `json:"party"`
	From    *time.Time       `json:"from,omitempty"`
	To      *time.Time       `json:"to,omitempty"`
	Entries []StatementEntry `json:"entries"`
	Closing decimal.Decimal  `json:"closing"`
}

// RecordPaymentInput describes a payment received from a customer or made to a supplier.
type RecordPaymentInput struct {
	Kind           parties.Kind
	PartyName      string
	Amount         decimal.Decimal
	Method         PaymentMethod
	Date           time.Time
	InvoiceNumber  int64
	PurchaseNumber int64
	Note           string
	ActorID        int64
}

// RecordReturnInput describes a customer return. A zero Amount defaults to quantity x unit price.
type RecordReturnInput struct {
	CustomerName string
	ItemName     string
	Quantity     int64
	Amount       decimal.Decimal
	Reason       string
	Date         time.Time
	ActorID      int64
}

// Today returns the current local calendar date.
func Today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// DateOrToday returns d truncated to a date, or today when d is zero.
func DateOrToday(d time.Time) time.Time {
	if d.IsZero() {
		return Today()
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
