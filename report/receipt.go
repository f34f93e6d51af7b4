package report

import (
	"bytes"
	"context"
	"embed"
	"html/template"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/waa-mobile/waapos/internal/sales"
)

//go:embed templates/receipt.html
var templateFS embed.FS

// Shop is printed in the receipt header.
type Shop struct {
	Name    string
	Address string
	Phone   string
}

// ReceiptRenderer turns invoice snapshots into thermal-width PDF receipts.
type ReceiptRenderer struct {
	client *Client
	shop   Shop
	tmpl   *template.Template
}

// NewReceiptRenderer parses the embedded receipt template.
func NewReceiptRenderer(client *Client, shop Shop) (*ReceiptRenderer, error) {
	printer := message.NewPrinter(language.English)
	tmpl, err := template.New("receipt.html").Funcs(template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return printer.Sprintf("Rs %.2f", d.InexactFloat64())
		},
		"date": func(inv sales.Invoice) string {
			return inv.Date.Format("02 Jan 2006")
		},
	}).ParseFS(templateFS, "templates/receipt.html")
	if err != nil {
		return nil, err
	}
	return &ReceiptRenderer{client: client, shop: shop, tmpl: tmpl}, nil
}

type receiptData struct {
	Shop    Shop
	Invoice sales.InvoiceSnapshot
	Due     decimal.Decimal
}

// HTML renders the receipt markup without converting it.
func (r *ReceiptRenderer) HTML(snap sales.InvoiceSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, receiptData{Shop: r.shop, Invoice: snap, Due: snap.Due()}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderReceipt renders snap to PDF.
func (r *ReceiptRenderer) RenderReceipt(ctx context.Context, snap sales.InvoiceSnapshot) ([]byte, error) {
	html, err := r.HTML(snap)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}

var _ sales.Renderer = (*ReceiptRenderer)(nil)
