package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/sales"
)

func snapshot() sales.InvoiceSnapshot {
	return sales.InvoiceSnapshot{
		Invoice: sales.Invoice{
			Number:        1001,
			Date:          time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
			CustomerName:  "Aslam Mobile",
			GrossTotal:    decimal.NewFromInt(1500),
			Discount:      decimal.NewFromInt(100),
			NetTotal:      decimal.NewFromInt(1400),
			Paid:          decimal.NewFromInt(500),
			PaymentMethod: ledger.MethodCash,
		},
		Lines: []sales.InvoiceLine{
			{LineNo: 1, ItemName: "USB Cable", Quantity: 3, UnitRate: decimal.NewFromInt(500), LineTotal: decimal.NewFromInt(1500)},
		},
	}
}

func TestReceiptHTMLFormatsAmounts(t *testing.T) {
	r, err := NewReceiptRenderer(NewClient("http://127.0.0.1:0"), Shop{Name: "WAA Mobile Accessories"})
	require.NoError(t, err)

	html, err := r.HTML(snapshot())
	require.NoError(t, err)
	body := string(html)
	require.Contains(t, body, "WAA Mobile Accessories")
	require.Contains(t, body, "Invoice #1001")
	require.Contains(t, body, "01 May 2024")
	require.Contains(t, body, "Rs 1,500.00")
	require.Contains(t, body, "Rs 1,400.00")
	require.Contains(t, body, "Paid (Cash)")
	require.Contains(t, body, "Rs 900.00")
}

func TestRenderReceiptPostsToGotenberg(t *testing.T) {
	var gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		f, hdr, err := r.FormFile("files")
		require.NoError(t, err)
		defer f.Close()
		raw, _ := io.ReadAll(f)
		gotFile = hdr.Filename + ":" + string(raw[:15])
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 receipt"))
	}))
	defer srv.Close()

	r, err := NewReceiptRenderer(NewClient(srv.URL), Shop{Name: "WAA"})
	require.NoError(t, err)
	pdf, err := r.RenderReceipt(context.Background(), snapshot())
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.7 receipt", string(pdf))
	require.Equal(t, "index.html:<!DOCTYPE html>", gotFile)
}

func TestRenderSurfacesGotenbergErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RenderHTML(context.Background(), []byte("<html></html>"))
	require.ErrorContains(t, err, "status 400")
}
