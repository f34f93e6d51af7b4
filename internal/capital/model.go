package capital

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/shared"
)

// Kind separates money put into the business from money taken out.
type Kind string

const (
	KindInvestment Kind = "Investment"
	KindWithdrawal Kind = "Withdrawal"
)

// ParseKind maps user input onto a Kind, ignoring case.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "investment", "invest":
		return KindInvestment, nil
	case "withdrawal", "withdraw":
		return KindWithdrawal, nil
	default:
		return "", shared.Invalid("kind", fmt.Sprintf("unknown capital kind %q", raw))
	}
}

// Entry is one append-only capital movement.
type Entry struct {
	ID        int64           `json:"id"`
	Date      time.Time       `json:"date"`
	Partner   string          `json:"partner"`
	Kind      Kind            `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Remarks   string          `json:"remarks,omitempty"`
	CreatedBy int64           `json:"-"`
}

// Position is a partner's folded capital.
type Position struct {
	Partner     string          `json:"partner"`
	Opening     decimal.Decimal `json:"opening"`
	Investments decimal.Decimal `json:"investments"`
	Withdrawals decimal.Decimal `json:"withdrawals"`
	Net         decimal.Decimal `json:"net"`
}

// Fold computes opening + investments - withdrawals.
func (p Position) Fold() Position {
	p.Net = p.Opening.Add(p.Investments).Sub(p.Withdrawals)
	return p
}

// Summary lists every partner and the grand total.
type Summary struct {
	Partners []Position      `json:"partners"`
	Total    decimal.Decimal `json:"total"`
}

// RecordInput describes a new capital entry.
type RecordInput struct {
	Date    time.Time
	Partner string
	Kind    Kind
	Amount  decimal.Decimal
	Remarks string
	ActorID int64
}
