package parties

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/shared"
)

// Kind separates the receivable (customer) and payable (supplier) ledgers.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindSupplier Kind = "supplier"
)

// WalkInCustomer is seeded by the schema for counter sales without a named buyer.
const WalkInCustomer = "Walk-in Customer"

// ParseKind accepts the singular and plural path forms.
func ParseKind(raw string) (Kind, error) {
	switch raw {
	case "customer", "customers":
		return KindCustomer, nil
	case "supplier", "suppliers":
		return KindSupplier, nil
	default:
		return "", shared.Invalid("kind", fmt.Sprintf("unknown party kind %q", raw))
	}
}

// Party is a customer or supplier. Its balance is derived by the ledger and never stored.
type Party struct {
	ID             int64           `json:"id"`
	Kind           Kind            `json:"kind"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone,omitempty"`
	Email          string          `json:"email,omitempty"`
	Address        string          `json:"address,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CreatedAt      time.Time       `json:"created_at"`
}
