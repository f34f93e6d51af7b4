package ledger

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/waa-mobile/waapos/internal/inventory"
	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/shared"
)

type memoryParties struct {
	list []parties.Party
}

func (m *memoryParties) add(kind parties.Kind, name string, opening int64) parties.Party {
	p := parties.Party{ID: int64(len(m.list) + 1), Kind: kind, Name: name, OpeningBalance: decimal.NewFromInt(opening)}
	m.list = append(m.list, p)
	return p
}

func (m *memoryParties) Get(ctx context.Context, kind parties.Kind, name string) (parties.Party, error) {
	for _, p := range m.list {
		if p.Kind == kind && p.Name == name {
			return p, nil
		}
	}
	return parties.Party{}, shared.NotFound(string(kind), name)
}

func (m *memoryParties) List(ctx context.Context, req parties.ListRequest) ([]parties.Party, int, error) {
	var out []parties.Party
	for _, p := range m.list {
		if p.Kind == req.Kind {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	if req.Offset >= total {
		return nil, total, nil
	}
	end := min(req.Offset+req.Limit, total)
	return out[req.Offset:end], total, nil
}

type memoryState struct {
	items    map[string]inventory.Item
	payments []Payment
	returns  []Return
	// invoices and purchases map document numbers to the billed party.
	invoices  map[int64]int64
	purchases map[int64]int64
}

type memoryRepo struct {
	state     memoryState
	sales     map[int64][]StatementEntry
	purchases map[int64][]StatementEntry
	failNext  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		state:     memoryState{items: map[string]inventory.Item{}, invoices: map[int64]int64{}, purchases: map[int64]int64{}},
		sales:     map[int64][]StatementEntry{},
		purchases: map[int64][]StatementEntry{},
	}
}

type memoryTx struct {
	state *memoryState
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := memoryState{
		items:     make(map[string]inventory.Item, len(r.state.items)),
		payments:  append([]Payment(nil), r.state.payments...),
		returns:   append([]Return(nil), r.state.returns...),
		invoices:  r.state.invoices,
		purchases: r.state.purchases,
	}
	for k, v := range r.state.items {
		staged.items[k] = v
	}
	if err := fn(ctx, &memoryTx{state: &staged}); err != nil {
		return err
	}
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	r.state = staged
	return nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, name string) (inventory.Item, error) {
	item, ok := tx.state.items[name]
	if !ok {
		return inventory.Item{}, shared.NotFound("item", name)
	}
	return item, nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	item.ID = int64(len(tx.state.items) + 1)
	tx.state.items[item.Name] = item
	return item, nil
}

func (tx *memoryTx) UpdateItemStock(ctx context.Context, item inventory.Item) error {
	tx.state.items[item.Name] = item
	return nil
}

func (tx *memoryTx) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	p.ID = int64(len(tx.state.payments) + 1)
	tx.state.payments = append(tx.state.payments, p)
	return p.ID, nil
}

func (tx *memoryTx) ReleaseInvoicePayments(ctx context.Context, invoiceNumber int64) (int64, error) {
	kept := tx.state.payments[:0]
	var removed int64
	for _, p := range tx.state.payments {
		if p.InvoiceNumber == invoiceNumber && p.AtSale {
			removed++
			continue
		}
		if p.InvoiceNumber == invoiceNumber {
			p.InvoiceNumber = 0
		}
		kept = append(kept, p)
	}
	tx.state.payments = kept
	return removed, nil
}

func (tx *memoryTx) InvoiceCustomerID(ctx context.Context, number int64) (int64, error) {
	owner, ok := tx.state.invoices[number]
	if !ok {
		return 0, shared.NotFound("invoice", strconv.FormatInt(number, 10))
	}
	return owner, nil
}

func (tx *memoryTx) PurchaseSupplierID(ctx context.Context, number int64) (int64, error) {
	owner, ok := tx.state.purchases[number]
	if !ok {
		return 0, shared.NotFound("purchase", strconv.FormatInt(number, 10))
	}
	return owner, nil
}

func (tx *memoryTx) InsertReturn(ctx context.Context, r Return) (int64, error) {
	r.ID = int64(len(tx.state.returns) + 1)
	tx.state.returns = append(tx.state.returns, r)
	return r.ID, nil
}

func (r *memoryRepo) SalesTotal(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	return sumDebit(r.sales[customerID]), nil
}

func (r *memoryRepo) PurchasesTotal(ctx context.Context, supplierID int64) (decimal.Decimal, error) {
	return sumDebit(r.purchases[supplierID]), nil
}

func (r *memoryRepo) PaymentsTotal(ctx context.Context, partyID int64, dir Direction) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range r.state.payments {
		if p.PartyID == partyID && p.Direction == dir {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (r *memoryRepo) ReturnsTotal(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, ret := range r.state.returns {
		if ret.CustomerID == customerID {
			total = total.Add(ret.Amount)
		}
	}
	return total, nil
}

func (r *memoryRepo) StatementEntries(ctx context.Context, party parties.Party, to *time.Time) ([]StatementEntry, error) {
	var entries []StatementEntry
	switch party.Kind {
	case parties.KindCustomer:
		entries = append(entries, r.sales[party.ID]...)
		for _, p := range r.state.payments {
			if p.PartyID == party.ID && p.Direction == DirectionIn {
				entries = append(entries, StatementEntry{Date: p.Date, Type: EntryPayment, Reference: string(p.Method), Credit: p.Amount})
			}
		}
		for _, ret := range r.state.returns {
			if ret.CustomerID == party.ID {
				entries = append(entries, StatementEntry{Date: ret.Date, Type: EntryReturn, Reference: ret.ItemName, Credit: ret.Amount})
			}
		}
	case parties.KindSupplier:
		entries = append(entries, r.purchases[party.ID]...)
		for _, p := range r.state.payments {
			if p.PartyID == party.ID && p.Direction == DirectionOut {
				entries = append(entries, StatementEntry{Date: p.Date, Type: EntryPayment, Reference: string(p.Method), Credit: p.Amount})
			}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })
	if to == nil {
		return entries, nil
	}
	out := entries[:0]
	for _, e := range entries {
		if !e.Date.After(*to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func sumDebit(entries []StatementEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Debit)
	}
	return total
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestBalanceFoldsOpeningSalesPaymentsReturns(t *testing.T) {
	cases := []struct {
		name                  string
		opening, s, p, r, exp int64
	}{
		{"no activity", 0, 0, 0, 0, 0},
		{"opening only", 150, 0, 0, 0, 150},
		{"negative opening", -200, 100, 0, 0, -100},
		{"overpaid", 0, 500, 800, 0, -300},
		{"all terms", 100, 900, 400, 300, 300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, Fold(dec(tc.opening), dec(tc.s), dec(tc.p), dec(tc.r)).Equal(dec(tc.exp)))
		})
	}
}

func TestBalanceIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	ps := &memoryParties{}
	aslam := ps.add(parties.KindCustomer, "Aslam Mobile", 50)
	repo.sales[aslam.ID] = []StatementEntry{{Date: day(1), Type: EntryInvoice, Reference: "1001", Debit: dec(900)}}
	svc := NewService(repo, ps, nil, nil)
	ctx := context.Background()

	first, err := svc.Balance(ctx, parties.KindCustomer, "Aslam Mobile")
	require.NoError(t, err)
	second, err := svc.Balance(ctx, parties.KindCustomer, "Aslam Mobile")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.True(t, first.Balance.Equal(dec(950)))
}

func TestPaymentAndReturnReduceCustomerBalance(t *testing.T) {
	repo := newMemoryRepo()
	repo.state.items["USB Cable"] = inventory.Item{ID: 1, Name: "USB Cable", QuantityOnHand: 7, UnitPrice: dec(250)}
	ps := &memoryParties{}
	aslam := ps.add(parties.KindCustomer, "Aslam Mobile", 0)
	repo.sales[aslam.ID] = []StatementEntry{{Date: day(1), Type: EntryInvoice, Reference: "1001", Debit: dec(900)}}
	svc := NewService(repo, ps, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, RecordPaymentInput{Kind: parties.KindCustomer, PartyName: "Aslam Mobile", Amount: dec(400), Method: MethodCash, Date: day(2)})
	require.NoError(t, err)
	bal, err := svc.Balance(ctx, parties.KindCustomer, "Aslam Mobile")
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec(500)), bal.Balance.String())

	ret, err := svc.RecordReturn(ctx, RecordReturnInput{CustomerName: "Aslam Mobile", ItemName: "USB Cable", Quantity: 1, Amount: dec(300), Date: day(3)})
	require.NoError(t, err)
	require.True(t, ret.Amount.Equal(dec(300)))
	require.EqualValues(t, 8, repo.state.items["USB Cable"].QuantityOnHand)

	bal, err = svc.Balance(ctx, parties.KindCustomer, "Aslam Mobile")
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec(200)), bal.Balance.String())
}

func TestRecordReturnDefaultsAmountToUnitPrice(t *testing.T) {
	repo := newMemoryRepo()
	repo.state.items["Charger"] = inventory.Item{ID: 1, Name: "Charger", QuantityOnHand: 0, UnitPrice: dec(650)}
	ps := &memoryParties{}
	ps.add(parties.KindCustomer, "Bilal", 0)
	svc := NewService(repo, ps, nil, nil)

	ret, err := svc.RecordReturn(context.Background(), RecordReturnInput{CustomerName: "Bilal", ItemName: "Charger", Quantity: 2})
	require.NoError(t, err)
	require.True(t, ret.Amount.Equal(dec(1300)))
	require.EqualValues(t, 2, repo.state.items["Charger"].QuantityOnHand)
}

func TestRecordReturnRejectsUnknownItemWithoutWriting(t *testing.T) {
	repo := newMemoryRepo()
	ps := &memoryParties{}
	ps.add(parties.KindCustomer, "Bilal", 0)
	svc := NewService(repo, ps, nil, nil)

	_, err := svc.RecordReturn(context.Background(), RecordReturnInput{CustomerName: "Bilal", ItemName: "Ghost", Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.state.returns)
	require.Empty(t, repo.state.items)
}

func TestRecordReturnRollsBackStockOnCommitFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.state.items["Charger"] = inventory.Item{ID: 1, Name: "Charger", QuantityOnHand: 3, UnitPrice: dec(650)}
	repo.failNext = &shared.StorageError{Op: "commit", Err: errors.New("disk full")}
	ps := &memoryParties{}
	ps.add(parties.KindCustomer, "Bilal", 0)
	svc := NewService(repo, ps, nil, nil)

	_, err := svc.RecordReturn(context.Background(), RecordReturnInput{CustomerName: "Bilal", ItemName: "Charger", Quantity: 1})
	require.ErrorIs(t, err, shared.ErrStorage)
	require.EqualValues(t, 3, repo.state.items["Charger"].QuantityOnHand)
	require.Empty(t, repo.state.returns)
}

func TestRecordPaymentValidation(t *testing.T) {
	ps := &memoryParties{}
	ps.add(parties.KindCustomer, "Aslam Mobile", 0)
	ps.add(parties.KindSupplier, "Hall Road Traders", 0)
	svc := NewService(newMemoryRepo(), ps, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, RecordPaymentInput{Kind: parties.KindCustomer, PartyName: "Aslam Mobile", Amount: dec(0), Method: MethodCash})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{Kind: parties.KindCustomer, PartyName: "Aslam Mobile", Amount: dec(10), Method: "Bitcoin"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{Kind: parties.KindSupplier, PartyName: "Hall Road Traders", Amount: dec(10), Method: MethodCash, InvoiceNumber: 1001})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{Kind: parties.KindCustomer, PartyName: "Nobody", Amount: dec(10), Method: MethodCash})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{Kind: parties.KindCustomer, PartyName: "  ", Amount: dec(10), Method: MethodCash})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordPaymentChecksReferencedDocument(t *testing.T) {
	repo := newMemoryRepo()
	ps := &memoryParties{}
	aslam := ps.add(parties.KindCustomer, "Aslam Mobile", 0)
	bilal := ps.add(parties.KindCustomer, "Bilal", 0)
	hallRoad := ps.add(parties.KindSupplier, "Hall Road Traders", 0)
	repo.state.invoices[1001] = aslam.ID
	repo.state.invoices[1002] = bilal.ID
	repo.state.purchases[1001] = hallRoad.ID
	svc := NewService(repo, ps, nil, nil)
	ctx := context.Background()

	pay, err := svc.RecordPayment(ctx, RecordPaymentInput{Kind: parties.KindCustomer, PartyName: "Aslam Mobile", Amount: dec(400), Method: MethodCash, InvoiceNumber: 1001})
	require.NoError(t, err)
	require.EqualValues(t, 1001, pay.InvoiceNumber)
	require.False(t, pay.AtSale)

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{Kind: parties.KindCustomer, PartyName: "Aslam Mobile", Amount: dec(10), Method: MethodCash, InvoiceNumber: 4242})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{Kind: parties.KindCustomer, PartyName: "Aslam Mobile", Amount: dec(10), Method: MethodCash, InvoiceNumber: 1002})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{Kind: parties.KindSupplier, PartyName: "Hall Road Traders", Amount: dec(10), Method: MethodCash, PurchaseNumber: 1001})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{Kind: parties.KindSupplier, PartyName: "Hall Road Traders", Amount: dec(10), Method: MethodCash, PurchaseNumber: 9})
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.Len(t, repo.state.payments, 2)
}

func TestSupplierBalanceUsesPurchasesAndOutgoingPayments(t *testing.T) {
	repo := newMemoryRepo()
	ps := &memoryParties{}
	supplier := ps.add(parties.KindSupplier, "Hall Road Traders", 1000)
	customer := ps.add(parties.KindCustomer, "Hall Road Traders", 0)
	repo.purchases[supplier.ID] = []StatementEntry{{Date: day(1), Type: EntryPurchase, Reference: "1001", Debit: dec(5000)}}
	repo.state.payments = []Payment{
		{PartyID: supplier.ID, Direction: DirectionOut, Amount: dec(2500)},
		{PartyID: customer.ID, Direction: DirectionIn, Amount: dec(99)},
	}
	svc := NewService(repo, ps, nil, nil)

	bal, err := svc.Balance(context.Background(), parties.KindSupplier, "Hall Road Traders")
	require.NoError(t, err)
	require.True(t, bal.Sales.Equal(dec(5000)))
	require.True(t, bal.Payments.Equal(dec(2500)))
	require.True(t, bal.Returns.IsZero())
	require.True(t, bal.Balance.Equal(dec(3500)))
}

func TestListBalancesCoversEveryParty(t *testing.T) {
	repo := newMemoryRepo()
	ps := &memoryParties{}
	a := ps.add(parties.KindCustomer, "Aslam Mobile", 0)
	ps.add(parties.KindCustomer, "Bilal", 75)
	ps.add(parties.KindSupplier, "Hall Road Traders", 10)
	repo.sales[a.ID] = []StatementEntry{{Date: day(1), Debit: dec(900)}}
	svc := NewService(repo, ps, nil, nil)

	list, err := svc.ListBalances(context.Background(), parties.KindCustomer)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Aslam Mobile", list[0].Party)
	require.True(t, list[0].Balance.Equal(dec(900)))
	require.True(t, list[1].Balance.Equal(dec(75)))
}

func TestStatementFoldsEarlierRowsIntoOpening(t *testing.T) {
	repo := newMemoryRepo()
	ps := &memoryParties{}
	aslam := ps.add(parties.KindCustomer, "Aslam Mobile", 100)
	repo.sales[aslam.ID] = []StatementEntry{
		{Date: day(1), Type: EntryInvoice, Reference: "1001", Debit: dec(900)},
		{Date: day(5), Type: EntryInvoice, Reference: "1002", Debit: dec(300)},
	}
	repo.state.payments = []Payment{{PartyID: aslam.ID, Direction: DirectionIn, Amount: dec(400), Date: day(3), Method: MethodJazzCash}}
	svc := NewService(repo, ps, nil, nil)

	from := day(2)
	stmt, err := svc.Statement(context.Background(), parties.KindCustomer, "Aslam Mobile", &from, nil)
	require.NoError(t, err)
	require.Len(t, stmt.Entries, 3)
	require.Equal(t, EntryOpening, stmt.Entries[0].Type)
	require.True(t, stmt.Entries[0].Running.Equal(dec(1000)))
	require.True(t, stmt.Entries[1].Running.Equal(dec(600)))
	require.True(t, stmt.Entries[2].Running.Equal(dec(900)))
	require.True(t, stmt.Closing.Equal(dec(900)))

	bal, err := svc.Balance(context.Background(), parties.KindCustomer, "Aslam Mobile")
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(stmt.Closing))
}

func TestStatementRejectsInvertedWindow(t *testing.T) {
	ps := &memoryParties{}
	ps.add(parties.KindCustomer, "Aslam Mobile", 0)
	svc := NewService(newMemoryRepo(), ps, nil, nil)
	from, to := day(9), day(1)
	_, err := svc.Statement(context.Background(), parties.KindCustomer, "Aslam Mobile", &from, &to)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod(" bank ")
	require.NoError(t, err)
	require.Equal(t, MethodBankTransfer, m)
	m, err = ParsePaymentMethod("EASYPAISA")
	require.NoError(t, err)
	require.Equal(t, MethodEasyPaisa, m)
	_, err = ParsePaymentMethod("Investment%")
	require.ErrorIs(t, err, shared.ErrValidation)
	for _, method := range PaymentMethods() {
		require.True(t, method.Valid())
	}
}
