// Package reports derives profit, cash book and dashboard figures from posted rows.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/ledger"
)

// Window is an inclusive calendar date range.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Profit summarises trading results for a window.
type Profit struct {
	Window
	Invoices    int64           `json:"invoices"`
	Sales       decimal.Decimal `json:"sales"`
	Cost        decimal.Decimal `json:"cost"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	Expenses    decimal.Decimal `json:"expenses"`
	NetProfit   decimal.Decimal `json:"net_profit"`
	Returns     decimal.Decimal `json:"returns"`
}

// Totals are the raw sums a Profit is derived from.
type Totals struct {
	Invoices int64
	Sales    decimal.Decimal
	Cost     decimal.Decimal
	Expenses decimal.Decimal
	Returns  decimal.Decimal
}

// CashRow is one payment method in the cash book.
type CashRow struct {
	Method   ledger.PaymentMethod `json:"method"`
	In       decimal.Decimal      `json:"in"`
	Out      decimal.Decimal      `json:"out"`
	Expenses decimal.Decimal      `json:"expenses"`
	Net      decimal.Decimal      `json:"net"`
}

// MethodFlow is a per-method movement total as stored.
type MethodFlow struct {
	Method   ledger.PaymentMethod
	In       decimal.Decimal
	Out      decimal.Decimal
	Expenses decimal.Decimal
}

// Cashbook lists every payment method, including those without movement.
type Cashbook struct {
	Window
	Rows  []CashRow `json:"rows"`
	Total CashRow   `json:"total"`
}

// Dashboard is the at-a-glance shop summary.
type Dashboard struct {
	Date          time.Time       `json:"date"`
	TodaySales    decimal.Decimal `json:"today_sales"`
	TodayInvoices int64           `json:"today_invoices"`
	LowStockItems int             `json:"low_stock_items"`
	Receivable    decimal.Decimal `json:"receivable"`
	Payable       decimal.Decimal `json:"payable"`
}
