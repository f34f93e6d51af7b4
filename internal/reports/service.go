package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/waa-mobile/waapos/internal/inventory"
	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/shared"
)

var tracer = otel.Tracer("github.com/waa-mobile/waapos/internal/reports")

// RepositoryPort exposes the report aggregates.
type RepositoryPort interface {
	Totals(ctx context.Context, from, to time.Time) (Totals, error)
	MethodFlows(ctx context.Context, from, to time.Time) ([]MethodFlow, error)
	SalesOn(ctx context.Context, day time.Time) (decimal.Decimal, int64, error)
}

// BalancePort lists derived party balances.
type BalancePort interface {
	ListBalances(ctx context.Context, kind parties.Kind) ([]ledger.Balance, error)
}

// StockPort lists items at or below their reorder level.
type StockPort interface {
	LowStock(ctx context.Context) ([]inventory.Item, error)
}

// Service assembles reports, caching them when a Cache is configured.
type Service struct {
	repo     RepositoryPort
	balances BalancePort
	stock    StockPort
	cache    *Cache
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the report sources. cache may be nil.
func NewService(repo RepositoryPort, balances BalancePort, stock StockPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, balances: balances, stock: stock, cache: cache, logger: logger, now: ledger.Today}
}

// Invalidate drops cached reports after a posting changed the underlying rows.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("reports cache bump failed", slog.Any("error", err))
	}
}

// Profit computes the trading result for [from, to]. Zero dates default to today.
func (s *Service) Profit(ctx context.Context, from, to time.Time) (Profit, error) {
	ctx, span := tracer.Start(ctx, "reports.Profit")
	defer span.End()

	win, err := s.window(from, to)
	if err != nil {
		return Profit{}, err
	}
	var out Profit
	err = s.fetch(ctx, &out, func(ctx context.Context) (any, error) {
		t, err := s.repo.Totals(ctx, win.From, win.To)
		if err != nil {
			return nil, err
		}
		return buildProfit(win, t), nil
	}, "profit", day(win.From), day(win.To))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Profit{}, err
	}
	return out, nil
}

func buildProfit(win Window, t Totals) Profit {
	gross := t.Sales.Sub(t.Cost)
	return Profit{
		Window:      win,
		Invoices:    t.Invoices,
		Sales:       t.Sales,
		Cost:        t.Cost,
		GrossProfit: gross,
		Expenses:    t.Expenses,
		NetProfit:   gross.Sub(t.Expenses),
		Returns:     t.Returns,
	}
}

// Cashbook totals money in, money out and expenses per payment method for [from, to].
func (s *Service) Cashbook(ctx context.Context, from, to time.Time) (Cashbook, error) {
	win, err := s.window(from, to)
	if err != nil {
		return Cashbook{}, err
	}
	flows, err := s.repo.MethodFlows(ctx, win.From, win.To)
	if err != nil {
		return Cashbook{}, err
	}
	return buildCashbook(win, flows), nil
}

func buildCashbook(win Window, flows []MethodFlow) Cashbook {
	byMethod := make(map[ledger.PaymentMethod]MethodFlow, len(flows))
	for _, f := range flows {
		byMethod[f.Method] = f
	}
	book := Cashbook{Window: win, Total: CashRow{In: decimal.Zero, Out: decimal.Zero, Expenses: decimal.Zero, Net: decimal.Zero}}
	for _, m := range ledger.PaymentMethods() {
		f := byMethod[m]
		row := CashRow{Method: m, In: f.In, Out: f.Out, Expenses: f.Expenses}
		row.Net = row.In.Sub(row.Out).Sub(row.Expenses)
		book.Rows = append(book.Rows, row)
		book.Total.In = book.Total.In.Add(row.In)
		book.Total.Out = book.Total.Out.Add(row.Out)
		book.Total.Expenses = book.Total.Expenses.Add(row.Expenses)
		book.Total.Net = book.Total.Net.Add(row.Net)
	}
	return book
}

// Dashboard gathers today's figures concurrently.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	ctx, span := tracer.Start(ctx, "reports.Dashboard")
	defer span.End()

	today := s.now()
	var out Dashboard
	err := s.fetch(ctx, &out, func(ctx context.Context) (any, error) {
		return s.dashboard(ctx, today)
	}, "dashboard", day(today))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Dashboard{}, err
	}
	return out, nil
}

func (s *Service) dashboard(ctx context.Context, today time.Time) (Dashboard, error) {
	d := Dashboard{Date: today}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.TodaySales, d.TodayInvoices, err = s.repo.SalesOn(gctx, today)
		return err
	})
	g.Go(func() error {
		low, err := s.stock.LowStock(gctx)
		d.LowStockItems = len(low)
		return err
	})
	g.Go(func() (err error) {
		d.Receivable, err = s.outstanding(gctx, parties.KindCustomer)
		return err
	})
	g.Go(func() (err error) {
		d.Payable, err = s.outstanding(gctx, parties.KindSupplier)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// outstanding sums only positive balances; advances and credits are not netted off.
func (s *Service) outstanding(ctx context.Context, kind parties.Kind) (decimal.Decimal, error) {
	list, err := s.balances.ListBalances(ctx, kind)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, b := range list {
		if b.Balance.IsPositive() {
			total = total.Add(b.Balance)
		}
	}
	return total, nil
}

func (s *Service) window(from, to time.Time) (Window, error) {
	today := s.now()
	if from.IsZero() {
		from = today
	}
	if to.IsZero() {
		to = today
	}
	if from.After(to) {
		return Window{}, shared.Invalid("from", "must not be after to")
	}
	return Window{From: from, To: to}, nil
}

func (s *Service) fetch(ctx context.Context, dest any, loader func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("reports cache unavailable", slog.Any("error", err))
		var bypass *Cache
		return bypass.FetchJSON(ctx, "", dest, loader)
	}
	return s.cache.FetchJSON(ctx, key, dest, loader)
}

func day(t time.Time) string {
	return t.Format(time.DateOnly)
}
