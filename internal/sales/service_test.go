package sales

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/platform/lock"
	"github.com/waa-mobile/waapos/internal/shared"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func cartOf(lines ...CartLine) Cart { return Cart{Lines: lines} }

func line(item string, qty, rate int64) CartLine {
	return CartLine{ItemName: item, Quantity: qty, UnitRate: dec(rate)}
}

func TestInvoicePaymentReturnScenario(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("USB Cable", 10, 180, 250)
	ps := newMemoryParties("Aslam Mobile")
	sales := NewService(store, ps, nil, nil, nil)
	ledgerSvc := ledger.NewService(ledgerView{store}, ps, nil, nil)
	ctx := context.Background()

	cart := cartOf(line("USB Cable", 3, 300))
	snap, err := sales.PostInvoice(ctx, PostInvoiceInput{CustomerName: "Aslam Mobile", Cart: cart})
	require.NoError(t, err)
	cart.Clear()
	require.Empty(t, cart.Lines)
	require.True(t, snap.NetTotal.Equal(dec(900)))
	require.True(t, snap.TotalCost.Equal(dec(540)))
	require.True(t, snap.Profit().Equal(dec(360)))
	require.EqualValues(t, 7, store.state.items["USB Cable"].QuantityOnHand)

	bal, err := ledgerSvc.Balance(ctx, parties.KindCustomer, "Aslam Mobile")
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec(900)), bal.Balance.String())

	_, err = ledgerSvc.RecordPayment(ctx, ledger.RecordPaymentInput{Kind: parties.KindCustomer, PartyName: "Aslam Mobile", Amount: dec(400), Method: ledger.MethodCash})
	require.NoError(t, err)
	bal, err = ledgerSvc.Balance(ctx, parties.KindCustomer, "Aslam Mobile")
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec(500)), bal.Balance.String())

	_, err = ledgerSvc.RecordReturn(ctx, ledger.RecordReturnInput{CustomerName: "Aslam Mobile", ItemName: "USB Cable", Quantity: 1, Amount: dec(300)})
	require.NoError(t, err)
	bal, err = ledgerSvc.Balance(ctx, parties.KindCustomer, "Aslam Mobile")
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec(200)), bal.Balance.String())
	require.EqualValues(t, 8, store.state.items["USB Cable"].QuantityOnHand)
}

func TestPostInvoiceDecrementsEachItemAndTotalsLines(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Charger", 20, 400, 650)
	store.seedItem("Glass Protector", 50, 40, 150)
	sales := NewService(store, newMemoryParties(), nil, nil, nil)

	snap, err := sales.PostInvoice(context.Background(), PostInvoiceInput{
		CustomerName: parties.WalkInCustomer,
		Cart:         cartOf(line("Glass Protector", 4, 150), line("Charger", 2, 700), line("Glass Protector", 1, 120)),
		Discount:     dec(20),
	})
	require.NoError(t, err)
	require.Len(t, snap.Lines, 3)

	sum := decimal.Zero
	for _, l := range snap.Lines {
		sum = sum.Add(l.LineTotal)
	}
	require.True(t, sum.Equal(snap.GrossTotal))
	require.True(t, snap.GrossTotal.Equal(dec(2120)))
	require.True(t, snap.NetTotal.Equal(dec(2100)))
	require.EqualValues(t, 18, store.state.items["Charger"].QuantityOnHand)
	require.EqualValues(t, 45, store.state.items["Glass Protector"].QuantityOnHand)
	require.Equal(t, 1, snap.Lines[0].LineNo)
	require.Equal(t, "Glass Protector", snap.Lines[0].ItemName)
}

func TestPostInvoiceRejectsEmptyCart(t *testing.T) {
	metrics := &countingMetrics{}
	sales := NewService(newMemoryStore(), newMemoryParties(), nil, nil, nil).WithMetrics(metrics)
	_, err := sales.PostInvoice(context.Background(), PostInvoiceInput{CustomerName: "Aslam Mobile"})
	require.ErrorIs(t, err, ErrEmptyCart)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, 1, metrics.failures["validation"])
}

func TestPostInvoiceValidatesInputBeforeWriting(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Charger", 5, 400, 650)
	sales := NewService(store, newMemoryParties("Aslam Mobile"), nil, nil, nil)
	ctx := context.Background()

	cases := map[string]PostInvoiceInput{
		"blank customer":   {CustomerName: " ", Cart: cartOf(line("Charger", 1, 650))},
		"zero quantity":    {CustomerName: "Aslam Mobile", Cart: cartOf(line("Charger", 0, 650))},
		"negative rate":    {CustomerName: "Aslam Mobile", Cart: cartOf(line("Charger", 1, -1))},
		"blank item":       {CustomerName: "Aslam Mobile", Cart: cartOf(line("", 1, 650))},
		"discount > gross": {CustomerName: "Aslam Mobile", Cart: cartOf(line("Charger", 1, 650)), Discount: dec(651)},
		"bad method": {CustomerName: "Aslam Mobile", Cart: cartOf(line("Charger", 1, 650)),
			Payment: &PaymentAtSale{Amount: dec(100), Method: "Credit Card"}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := sales.PostInvoice(ctx, input)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
	require.Empty(t, store.state.invoices)
	require.EqualValues(t, 5, store.state.items["Charger"].QuantityOnHand)
}

func TestPostInvoiceUnknownCustomerOrItem(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Charger", 5, 400, 650)
	sales := NewService(store, newMemoryParties("Aslam Mobile"), nil, nil, nil)
	ctx := context.Background()

	_, err := sales.PostInvoice(ctx, PostInvoiceInput{CustomerName: "Stranger", Cart: cartOf(line("Charger", 1, 650))})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = sales.PostInvoice(ctx, PostInvoiceInput{CustomerName: "Aslam Mobile", Cart: cartOf(line("Charger", 1, 650), line("Airpods", 1, 3000))})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, store.state.invoices)
	require.EqualValues(t, 5, store.state.items["Charger"].QuantityOnHand)
}

func TestPostInvoiceInsufficientStockMergesDuplicateLines(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("USB Cable", 4, 180, 250)
	metrics := &countingMetrics{}
	sales := NewService(store, newMemoryParties("Aslam Mobile"), nil, nil, nil).WithMetrics(metrics)

	_, err := sales.PostInvoice(context.Background(), PostInvoiceInput{
		CustomerName: "Aslam Mobile",
		Cart:         cartOf(line("USB Cable", 3, 250), line("USB Cable", 2, 250)),
	})
	require.ErrorIs(t, err, shared.ErrStockInsufficient)
	var stockErr *shared.StockInsufficientError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, "USB Cable", stockErr.Item)
	require.EqualValues(t, 5, stockErr.Requested)
	require.EqualValues(t, 4, stockErr.Available)
	require.EqualValues(t, 4, store.state.items["USB Cable"].QuantityOnHand)
	require.Empty(t, store.state.invoices)
	require.Equal(t, 1, metrics.failures["stock"])
}

func TestPostInvoiceNeverDrivesStockNegative(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Charger", 3, 400, 650)
	sales := NewService(store, newMemoryParties(), nil, nil, nil)
	ctx := context.Background()

	posted := 0
	for i := 0; i < 5; i++ {
		_, err := sales.PostInvoice(ctx, PostInvoiceInput{CustomerName: parties.WalkInCustomer, Cart: cartOf(line("Charger", 1, 650))})
		if err != nil {
			require.ErrorIs(t, err, shared.ErrStockInsufficient)
			continue
		}
		posted++
		require.GreaterOrEqual(t, store.state.items["Charger"].QuantityOnHand, int64(0))
	}
	require.Equal(t, 3, posted)
	require.EqualValues(t, 0, store.state.items["Charger"].QuantityOnHand)
}

func TestPostInvoiceFailureAfterHeaderLeavesNoTrace(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Charger", 10, 400, 650)
	store.seedItem("USB Cable", 10, 180, 250)
	sales := NewService(store, newMemoryParties(), nil, nil, nil)
	ctx := context.Background()

	store.failLine = 2
	_, err := sales.PostInvoice(ctx, PostInvoiceInput{
		CustomerName: parties.WalkInCustomer,
		Cart:         cartOf(line("Charger", 1, 650), line("USB Cable", 2, 250)),
		Payment:      &PaymentAtSale{Amount: dec(500), Method: ledger.MethodCash},
	})
	require.ErrorIs(t, err, shared.ErrStorage)
	require.ErrorIs(t, err, errInjected)
	require.Empty(t, store.state.invoices)
	require.Empty(t, store.state.payments)
	require.EqualValues(t, 10, store.state.items["Charger"].QuantityOnHand)
	require.EqualValues(t, 10, store.state.items["USB Cable"].QuantityOnHand)

	store.failLine = 0
	snap, err := sales.PostInvoice(ctx, PostInvoiceInput{CustomerName: parties.WalkInCustomer, Cart: cartOf(line("Charger", 1, 650))})
	require.NoError(t, err)
	require.EqualValues(t, 1001, snap.Number)
}

func TestInvoiceNumbersIncreaseWithoutGaps(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Charger", 100, 400, 650)
	sales := NewService(store, newMemoryParties(), nil, nil, nil)
	ctx := context.Background()

	var numbers []int64
	for i := 0; i < 6; i++ {
		if i%2 == 1 {
			_, err := sales.PostInvoice(ctx, PostInvoiceInput{CustomerName: parties.WalkInCustomer, Cart: cartOf(line("Charger", 1000, 650))})
			require.Error(t, err)
		}
		snap, err := sales.PostInvoice(ctx, PostInvoiceInput{CustomerName: parties.WalkInCustomer, Cart: cartOf(line("Charger", 1, 650))})
		require.NoError(t, err)
		numbers = append(numbers, snap.Number)
	}
	for i, n := range numbers {
		require.EqualValues(t, NumberSeed+int64(i)+1, n)
	}
}

func TestPaymentAtSaleIsLinkedToInvoice(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Charger", 10, 400, 650)
	sales := NewService(store, newMemoryParties("Aslam Mobile"), nil, nil, nil)

	snap, err := sales.PostInvoice(context.Background(), PostInvoiceInput{
		CustomerName: "Aslam Mobile",
		Cart:         cartOf(line("Charger", 2, 650)),
		Payment:      &PaymentAtSale{Amount: dec(1000), Method: ledger.MethodEasyPaisa},
	})
	require.NoError(t, err)
	require.True(t, snap.Paid.Equal(dec(1000)))
	require.True(t, snap.Due().Equal(dec(300)))
	require.Equal(t, ledger.MethodEasyPaisa, snap.PaymentMethod)
	require.Len(t, store.state.payments, 1)
	pay := store.state.payments[0]
	require.Equal(t, snap.Number, pay.InvoiceNumber)
	require.True(t, pay.AtSale)
	require.Equal(t, ledger.DirectionIn, pay.Direction)
	require.True(t, pay.Amount.Equal(dec(1000)))
}

func TestDeleteLastInvoiceRestoresStockAndPayment(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Charger", 10, 400, 650)
	sales := NewService(store, newMemoryParties(), nil, nil, nil)
	ctx := context.Background()

	first, err := sales.PostInvoice(ctx, PostInvoiceInput{CustomerName: parties.WalkInCustomer, Cart: cartOf(line("Charger", 2, 650))})
	require.NoError(t, err)
	second, err := sales.PostInvoice(ctx, PostInvoiceInput{
		CustomerName: parties.WalkInCustomer,
		Cart:         cartOf(line("Charger", 3, 650)),
		Payment:      &PaymentAtSale{Amount: dec(1950), Method: ledger.MethodCash},
	})
	require.NoError(t, err)
	require.EqualValues(t, 5, store.state.items["Charger"].QuantityOnHand)

	deleted, err := sales.DeleteLastInvoice(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, second.Number, deleted.Number)
	require.EqualValues(t, 7, store.state.items["Charger"].QuantityOnHand)
	require.Empty(t, store.state.payments)
	_, err = sales.GetInvoice(ctx, second.Number)
	require.ErrorIs(t, err, shared.ErrNotFound)

	deleted, err = sales.DeleteLastInvoice(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first.Number, deleted.Number)

	_, err = sales.DeleteLastInvoice(ctx, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteLastInvoiceKeepsLaterReceipts(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("USB Cable", 10, 180, 300)
	ps := newMemoryParties("Aslam Mobile")
	sales := NewService(store, ps, nil, nil, nil)
	ledgerSvc := ledger.NewService(ledgerView{store}, ps, nil, nil)
	ctx := context.Background()

	snap, err := sales.PostInvoice(ctx, PostInvoiceInput{
		CustomerName: "Aslam Mobile",
		Cart:         cartOf(line("USB Cable", 3, 300)),
		Payment:      &PaymentAtSale{Amount: dec(100), Method: ledger.MethodCash},
	})
	require.NoError(t, err)
	_, err = ledgerSvc.RecordPayment(ctx, ledger.RecordPaymentInput{
		Kind: parties.KindCustomer, PartyName: "Aslam Mobile", Amount: dec(400), Method: ledger.MethodCash, InvoiceNumber: snap.Number,
	})
	require.NoError(t, err)

	_, err = sales.DeleteLastInvoice(ctx, 1)
	require.NoError(t, err)

	require.Len(t, store.state.payments, 1)
	kept := store.state.payments[0]
	require.True(t, kept.Amount.Equal(dec(400)))
	require.False(t, kept.AtSale)
	require.Zero(t, kept.InvoiceNumber)

	bal, err := ledgerSvc.Balance(ctx, parties.KindCustomer, "Aslam Mobile")
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec(-400)), bal.Balance.String())
}

func TestDeleteLastInvoiceLocksItemsInNameOrder(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Zoom Lens Clip", 5, 100, 200)
	store.seedItem("Adapter", 5, 300, 500)
	sales := NewService(store, newMemoryParties(), nil, nil, nil)
	ctx := context.Background()

	_, err := sales.PostInvoice(ctx, PostInvoiceInput{
		CustomerName: parties.WalkInCustomer,
		Cart:         cartOf(line("Zoom Lens Clip", 1, 200), line("Adapter", 2, 500), line("Zoom Lens Clip", 1, 200)),
	})
	require.NoError(t, err)

	store.locked = nil
	_, err = sales.DeleteLastInvoice(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"Adapter", "Zoom Lens Clip"}, store.locked)
	require.EqualValues(t, 5, store.state.items["Zoom Lens Clip"].QuantityOnHand)
	require.EqualValues(t, 5, store.state.items["Adapter"].QuantityOnHand)
}

func TestPostInvoiceRejectsOversizedQuantities(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Freebie", 0, 0, 0)
	sales := NewService(store, newMemoryParties("Aslam Mobile"), nil, nil, nil)
	ctx := context.Background()

	carts := map[string]Cart{
		"wrapping merge": cartOf(line("Freebie", math.MaxInt64, 0), line("Freebie", 2, 0)),
		"line over cap":  cartOf(line("Freebie", MaxLineQuantity+1, 0)),
	}
	for name, cart := range carts {
		t.Run(name, func(t *testing.T) {
			_, err := sales.PostInvoice(ctx, PostInvoiceInput{CustomerName: "Aslam Mobile", Cart: cart})
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
	require.Empty(t, store.state.invoices)
	require.Zero(t, store.state.items["Freebie"].QuantityOnHand)
}

func TestDiscountIsCheckedAgainstPostedGross(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Sticker", 5000, 0, 0)
	sales := NewService(store, newMemoryParties("Aslam Mobile"), nil, nil, nil)
	ctx := context.Background()
	rate := decimal.RequireFromString("0.004")

	_, err := sales.PostInvoice(ctx, PostInvoiceInput{
		CustomerName: "Aslam Mobile",
		Cart:         cartOf(CartLine{ItemName: "Sticker", Quantity: 1000, UnitRate: rate}),
		Discount:     dec(4),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, store.state.invoices)

	snap, err := sales.PostInvoice(ctx, PostInvoiceInput{
		CustomerName: "Aslam Mobile",
		Cart:         cartOf(CartLine{ItemName: "Sticker", Quantity: 1000, UnitRate: rate}),
	})
	require.NoError(t, err)
	require.True(t, snap.GrossTotal.IsZero())
	require.False(t, snap.NetTotal.IsNegative())
}

func TestDuplicateIdempotencyKeyIsRefused(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Charger", 10, 400, 650)
	idem := &memoryIdempotency{}
	sales := NewService(store, newMemoryParties(), nil, idem, nil)
	ctx := context.Background()
	input := PostInvoiceInput{CustomerName: parties.WalkInCustomer, Cart: cartOf(line("Charger", 1, 650)), IdempotencyKey: "till-1-0001"}

	_, err := sales.PostInvoice(ctx, input)
	require.NoError(t, err)
	_, err = sales.PostInvoice(ctx, input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, store.state.invoices, 1)

	failing := PostInvoiceInput{CustomerName: parties.WalkInCustomer, Cart: cartOf(line("Charger", 99, 650)), IdempotencyKey: "till-1-0002"}
	_, err = sales.PostInvoice(ctx, failing)
	require.ErrorIs(t, err, shared.ErrStockInsufficient)
	require.NotContains(t, idem.keys, idempotencyModule+":till-1-0002")
}

func TestPostingLockBusyIsStorageError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	holder := lock.New(rdb, 200*time.Millisecond)
	release, err := holder.Acquire(context.Background(), shared.PostingLockKey("sales"))
	require.NoError(t, err)
	defer release()

	store := newMemoryStore()
	store.seedItem("Charger", 10, 400, 650)
	sales := NewService(store, newMemoryParties(), nil, nil, nil).WithLocker(lock.New(rdb, 200*time.Millisecond))

	_, err = sales.PostInvoice(context.Background(), PostInvoiceInput{CustomerName: parties.WalkInCustomer, Cart: cartOf(line("Charger", 1, 650))})
	require.ErrorIs(t, err, shared.ErrStorage)
	require.ErrorIs(t, err, lock.ErrBusy)
	require.Empty(t, store.state.invoices)
}

type stubRenderer struct {
	got InvoiceSnapshot
}

func (s *stubRenderer) RenderReceipt(ctx context.Context, snap InvoiceSnapshot) ([]byte, error) {
	s.got = snap
	return []byte("%PDF-1.7"), nil
}

func TestRenderReceiptUsesPostedSnapshot(t *testing.T) {
	store := newMemoryStore()
	store.seedItem("Charger", 10, 400, 650)
	renderer := &stubRenderer{}
	sales := NewService(store, newMemoryParties(), nil, nil, nil).WithRenderer(renderer)
	ctx := context.Background()

	snap, err := sales.PostInvoice(ctx, PostInvoiceInput{CustomerName: parties.WalkInCustomer, Cart: cartOf(line("Charger", 1, 650))})
	require.NoError(t, err)
	pdf, err := sales.RenderReceipt(ctx, snap.Number)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.7", string(pdf))
	require.Equal(t, snap.Number, renderer.got.Number)
	require.Len(t, renderer.got.Lines, 1)

	_, err = NewService(store, newMemoryParties(), nil, nil, nil).RenderReceipt(ctx, snap.Number)
	require.ErrorIs(t, err, ErrRendererUnavailable)
}
