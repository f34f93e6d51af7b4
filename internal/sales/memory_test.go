package sales

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/inventory"
	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/shared"
)

var errInjected = errors.New("injected failure")

type storeState struct {
	items    map[string]inventory.Item
	invoices map[int64]InvoiceSnapshot
	payments []ledger.Payment
	returns  []ledger.Return
}

func (s storeState) clone() storeState {
	out := storeState{
		items:    make(map[string]inventory.Item, len(s.items)),
		invoices: make(map[int64]InvoiceSnapshot, len(s.invoices)),
		payments: append([]ledger.Payment(nil), s.payments...),
		returns:  append([]ledger.Return(nil), s.returns...),
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	for k, v := range s.invoices {
		v.Lines = append([]InvoiceLine(nil), v.Lines...)
		out.invoices[k] = v
	}
	return out
}

// memoryStore backs both the sales and ledger ports so postings and balances share rows.
type memoryStore struct {
	state storeState
	// failLine makes InsertInvoiceLine fail for this line number.
	failLine int
	// locked records item row locks in acquisition order.
	locked []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: storeState{items: map[string]inventory.Item{}, invoices: map[int64]InvoiceSnapshot{}}}
}

func (m *memoryStore) seedItem(name string, qty int64, cost, price int64) {
	m.state.items[name] = inventory.Item{
		ID:             int64(len(m.state.items) + 1),
		Name:           name,
		QuantityOnHand: qty,
		UnitCost:       decimal.NewFromInt(cost),
		UnitPrice:      decimal.NewFromInt(price),
		MinStock:       inventory.DefaultMinStock,
	}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := m.state.clone()
	if err := fn(ctx, &memoryTx{state: &staged, failLine: m.failLine, locked: &m.locked}); err != nil {
		return err
	}
	m.state = staged
	return nil
}

func (m *memoryStore) GetInvoice(ctx context.Context, number int64) (InvoiceSnapshot, error) {
	snap, ok := m.state.invoices[number]
	if !ok {
		return InvoiceSnapshot{}, shared.NotFound("invoice", strconv.FormatInt(number, 10))
	}
	return snap, nil
}

func (m *memoryStore) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	list := []Invoice{}
	for _, snap := range m.state.invoices {
		if filter.Customer != "" && snap.CustomerName != filter.Customer {
			continue
		}
		list = append(list, snap.Invoice)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Number > list[j].Number })
	if len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

type memoryTx struct {
	state    *storeState
	failLine int
	locked   *[]string
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, name string) (inventory.Item, error) {
	if tx.locked != nil {
		*tx.locked = append(*tx.locked, name)
	}
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
	if item.QuantityOnHand < 0 {
		return shared.Invalid("inventory_items_qty_non_negative", "violates check constraint")
	}
	tx.state.items[item.Name] = item
	return nil
}

func (tx *memoryTx) InsertPayment(ctx context.Context, p ledger.Payment) (int64, error) {
	p.ID = int64(len(tx.state.payments) + 1)
	tx.state.payments = append(tx.state.payments, p)
	return p.ID, nil
}

func (tx *memoryTx) ReleaseInvoicePayments(ctx context.Context, number int64) (int64, error) {
	kept := make([]ledger.Payment, 0, len(tx.state.payments))
	var removed int64
	for _, p := range tx.state.payments {
		if p.InvoiceNumber != number {
			kept = append(kept, p)
			continue
		}
		if p.AtSale {
			removed++
			continue
		}
		p.InvoiceNumber = 0
		kept = append(kept, p)
	}
	tx.state.payments = kept
	return removed, nil
}

func (tx *memoryTx) InvoiceCustomerID(ctx context.Context, number int64) (int64, error) {
	snap, ok := tx.state.invoices[number]
	if !ok {
		return 0, shared.NotFound("invoice", strconv.FormatInt(number, 10))
	}
	return snap.CustomerID, nil
}

func (tx *memoryTx) PurchaseSupplierID(ctx context.Context, number int64) (int64, error) {
	return 0, shared.NotFound("purchase", strconv.FormatInt(number, 10))
}

func (tx *memoryTx) InsertReturn(ctx context.Context, r ledger.Return) (int64, error) {
	r.ID = int64(len(tx.state.returns) + 1)
	tx.state.returns = append(tx.state.returns, r)
	return r.ID, nil
}

func (tx *memoryTx) NextInvoiceNumber(ctx context.Context) (int64, error) {
	last := NumberSeed
	for n := range tx.state.invoices {
		last = max(last, n)
	}
	return last + 1, nil
}

func (tx *memoryTx) InsertInvoice(ctx context.Context, inv Invoice) error {
	if _, exists := tx.state.invoices[inv.Number]; exists {
		return shared.Invalid("invoices_pkey", "already exists")
	}
	tx.state.invoices[inv.Number] = InvoiceSnapshot{Invoice: inv}
	return nil
}

func (tx *memoryTx) InsertInvoiceLine(ctx context.Context, line InvoiceLine) error {
	if tx.failLine != 0 && line.LineNo == tx.failLine {
		return errInjected
	}
	snap := tx.state.invoices[line.InvoiceNumber]
	snap.Lines = append(snap.Lines, line)
	tx.state.invoices[line.InvoiceNumber] = snap
	return nil
}

func (tx *memoryTx) GetLastInvoiceForUpdate(ctx context.Context) (InvoiceSnapshot, error) {
	var last int64
	for n := range tx.state.invoices {
		last = max(last, n)
	}
	if last == 0 {
		return InvoiceSnapshot{}, shared.NotFound("invoice", "last")
	}
	return tx.state.invoices[last], nil
}

func (tx *memoryTx) DeleteInvoice(ctx context.Context, number int64) error {
	if _, ok := tx.state.invoices[number]; !ok {
		return shared.NotFound("invoice", strconv.FormatInt(number, 10))
	}
	delete(tx.state.invoices, number)
	return nil
}

// ledgerView adapts the store to the ledger repository port.
type ledgerView struct {
	*memoryStore
}

func (v ledgerView) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	staged := v.state.clone()
	if err := fn(ctx, &memoryTx{state: &staged}); err != nil {
		return err
	}
	v.state = staged
	return nil
}

func (v ledgerView) SalesTotal(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, snap := range v.state.invoices {
		if snap.CustomerID == customerID {
			total = total.Add(snap.NetTotal)
		}
	}
	return total, nil
}

func (v ledgerView) PurchasesTotal(ctx context.Context, supplierID int64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (v ledgerView) PaymentsTotal(ctx context.Context, partyID int64, dir ledger.Direction) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range v.state.payments {
		if p.PartyID == partyID && p.Direction == dir {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (v ledgerView) ReturnsTotal(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, r := range v.state.returns {
		if r.CustomerID == customerID {
			total = total.Add(r.Amount)
		}
	}
	return total, nil
}

func (v ledgerView) StatementEntries(ctx context.Context, party parties.Party, to *time.Time) ([]ledger.StatementEntry, error) {
	return nil, nil
}

type memoryParties struct {
	list []parties.Party
}

func newMemoryParties(names ...string) *memoryParties {
	m := &memoryParties{}
	for _, name := range append([]string{parties.WalkInCustomer}, names...) {
		m.list = append(m.list, parties.Party{ID: int64(len(m.list) + 1), Kind: parties.KindCustomer, Name: name})
	}
	return m
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
	return out, len(out), nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+":"+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key, module string) error {
	delete(m.keys, module+":"+key)
	return nil
}

type countingMetrics struct {
	posted   int
	failures map[string]int
}

func (c *countingMetrics) InvoicePosted(net decimal.Decimal) { c.posted++ }

func (c *countingMetrics) PostingFailed(reason string) {
	if c.failures == nil {
		c.failures = map[string]int{}
	}
	c.failures[reason]++
}
