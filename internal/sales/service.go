package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/waa-mobile/waapos/internal/inventory"
	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/shared"
)

var tracer = otel.Tracer("github.com/waa-mobile/waapos/internal/sales")

const idempotencyModule = "sales.invoice"

// ErrRendererUnavailable is returned when no receipt renderer is configured.
var ErrRendererUnavailable = errors.New("sales: receipt renderer not configured")

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, number int64) (InvoiceSnapshot, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error)
}

// PartyPort resolves customers.
type PartyPort interface {
	Get(ctx context.Context, kind parties.Kind, name string) (parties.Party, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort refuses replays of the same client key.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// LockPort serialises postings across instances.
type LockPort interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// MetricsPort receives posting outcomes.
type MetricsPort interface {
	InvoicePosted(net decimal.Decimal)
	PostingFailed(reason string)
}

// Renderer turns a finalised invoice into a printable document.
type Renderer interface {
	RenderReceipt(ctx context.Context, snap InvoiceSnapshot) ([]byte, error)
}

// Service posts and reads sales invoices.
type Service struct {
	repo        RepositoryPort
	parties     PartyPort
	audit       AuditPort
	idempotency IdempotencyPort
	locker      LockPort
	metrics     MetricsPort
	renderer    Renderer
	logger      *slog.Logger
}

// NewService constructs the sales service. Locking, metrics and rendering are optional and
// attached with the With* methods.
func NewService(repo RepositoryPort, partyPort PartyPort, audit AuditPort, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, parties: partyPort, audit: audit, idempotency: idem, logger: logger}
}

// WithLocker enables the cross-instance posting lock.
func (s *Service) WithLocker(l LockPort) *Service {
	s.locker = l
	return s
}

// WithMetrics attaches a metrics sink.
func (s *Service) WithMetrics(m MetricsPort) *Service {
	s.metrics = m
	return s
}

// WithRenderer attaches the receipt renderer.
func (s *Service) WithRenderer(r Renderer) *Service {
	s.renderer = r
	return s
}

type stockNeed struct {
	name string
	qty  int64
}

// PostInvoice records a sale: header, lines, stock decrements and the optional counter
// payment commit together or not at all. A failed posting consumes no invoice number.
func (s *Service) PostInvoice(ctx context.Context, input PostInvoiceInput) (InvoiceSnapshot, error) {
	ctx, span := tracer.Start(ctx, "sales.PostInvoice")
	defer span.End()
	span.SetAttributes(attribute.String("customer", input.CustomerName), attribute.Int("lines", len(input.Cart.Lines)))

	snap, err := s.postInvoice(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.postingFailed(err)
		return InvoiceSnapshot{}, err
	}
	span.SetAttributes(attribute.Int64("invoice", snap.Number))
	if s.metrics != nil {
		s.metrics.InvoicePosted(snap.NetTotal)
	}
	s.logger.Info("invoice posted",
		slog.Int64("invoice", snap.Number),
		slog.String("customer", snap.CustomerName),
		slog.String("net_total", snap.NetTotal.StringFixed(2)),
		slog.Int("lines", len(snap.Lines)))
	s.recordAudit(ctx, input.ActorID, "INVOICE_POST", snap.Number, map[string]any{
		"customer":  snap.CustomerName,
		"net_total": snap.NetTotal.StringFixed(2),
		"paid":      snap.Paid.StringFixed(2),
	})
	return snap, nil
}

func (s *Service) postInvoice(ctx context.Context, input PostInvoiceInput) (InvoiceSnapshot, error) {
	needs, err := validatePosting(input)
	if err != nil {
		return InvoiceSnapshot{}, err
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, idempotencyModule); err != nil {
			return InvoiceSnapshot{}, shared.Storage("sales.idempotency", err)
		}
	}

	snap, err := s.commitInvoice(ctx, input, needs)
	if err != nil && input.IdempotencyKey != "" && s.idempotency != nil {
		if delErr := s.idempotency.Delete(ctx, input.IdempotencyKey, idempotencyModule); delErr != nil {
			s.logger.Warn("release idempotency key", slog.Any("error", delErr))
		}
	}
	return snap, err
}

func (s *Service) commitInvoice(ctx context.Context, input PostInvoiceInput, needs []stockNeed) (InvoiceSnapshot, error) {
	customer, err := s.parties.Get(ctx, parties.KindCustomer, strings.TrimSpace(input.CustomerName))
	if err != nil {
		return InvoiceSnapshot{}, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return InvoiceSnapshot{}, err
	}
	defer release()

	var snap InvoiceSnapshot
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items := make(map[string]inventory.Item, len(needs))
		for _, need := range needs {
			item, err := tx.GetItemForUpdate(ctx, need.name)
			if err != nil {
				return err
			}
			if need.qty > item.QuantityOnHand {
				return &shared.StockInsufficientError{Item: item.Name, Requested: need.qty, Available: item.QuantityOnHand}
			}
			items[need.name] = item
		}

		inv := Invoice{
			Date:         ledger.DateOrToday(input.Date),
			CustomerID:   customer.ID,
			CustomerName: customer.Name,
			Discount:     input.Discount.Round(2),
			TotalCost:    decimal.Zero,
			Paid:         decimal.Zero,
			CreatedBy:    input.ActorID,
		}
		lines := make([]InvoiceLine, 0, len(input.Cart.Lines))
		gross := decimal.Zero
		for i, cl := range input.Cart.Lines {
			item := items[strings.TrimSpace(cl.ItemName)]
			qty := decimal.NewFromInt(cl.Quantity)
			line := InvoiceLine{
				LineNo:    i + 1,
				ItemID:    item.ID,
				ItemName:  item.Name,
				Quantity:  cl.Quantity,
				UnitRate:  cl.UnitRate.Round(2),
				UnitCost:  item.UnitCost,
				LineTotal: cl.LineTotal(),
			}
			gross = gross.Add(line.LineTotal)
			inv.TotalCost = inv.TotalCost.Add(item.UnitCost.Mul(qty))
			lines = append(lines, line)
		}
		if inv.Discount.GreaterThan(gross) {
			return shared.Invalid("discount", "exceeds gross total")
		}
		inv.GrossTotal = gross
		inv.NetTotal = gross.Sub(inv.Discount)
		if input.Payment != nil && input.Payment.Amount.IsPositive() {
			inv.Paid = input.Payment.Amount.Round(2)
			inv.PaymentMethod = input.Payment.Method
		}

		number, err := tx.NextInvoiceNumber(ctx)
		if err != nil {
			return err
		}
		inv.Number = number
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		for i := range lines {
			lines[i].InvoiceNumber = number
			if err := tx.InsertInvoiceLine(ctx, lines[i]); err != nil {
				return err
			}
		}
		for _, need := range needs {
			if _, err := inventory.ApplyDelta(ctx, tx, inventory.Delta{ItemName: need.name, Qty: -need.qty}); err != nil {
				return err
			}
		}
		if inv.Paid.IsPositive() {
			if _, err := tx.InsertPayment(ctx, ledger.Payment{
				Date:          inv.Date,
				PartyID:       customer.ID,
				PartyName:     customer.Name,
				Direction:     ledger.DirectionIn,
				Amount:        inv.Paid,
				Method:        inv.PaymentMethod,
				InvoiceNumber: number,
				AtSale:        true,
				Note:          "Paid at sale",
				CreatedBy:     input.ActorID,
			}); err != nil {
				return err
			}
		}
		snap = InvoiceSnapshot{Invoice: inv, Lines: lines}
		return nil
	})
	if err != nil {
		return InvoiceSnapshot{}, shared.Storage("sales.post_invoice", err)
	}
	return snap, nil
}

// validatePosting checks the request before anything is written and returns the merged
// per-item quantities in ascending name order, the order rows are locked in.
func validatePosting(input PostInvoiceInput) ([]stockNeed, error) {
	if len(input.Cart.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, shared.Invalid("customer", "customer name is required")
	}
	merged := make(map[string]int64, len(input.Cart.Lines))
	for i, l := range input.Cart.Lines {
		name := strings.TrimSpace(l.ItemName)
		field := fmt.Sprintf("cart.lines[%d]", i)
		if name == "" {
			return nil, shared.Invalid(field+".item_name", "item name is required")
		}
		if l.Quantity <= 0 {
			return nil, shared.Invalid(field+".quantity", "must be greater than zero")
		}
		if l.Quantity > MaxLineQuantity {
			return nil, shared.Invalid(field+".quantity", fmt.Sprintf("must not exceed %d", MaxLineQuantity))
		}
		if l.UnitRate.IsNegative() {
			return nil, shared.Invalid(field+".unit_rate", "must not be negative")
		}
		if merged[name] > math.MaxInt64-l.Quantity {
			return nil, shared.Invalid(field+".quantity", "total quantity for item is too large")
		}
		merged[name] += l.Quantity
	}
	if input.Discount.IsNegative() {
		return nil, shared.Invalid("discount", "must not be negative")
	}
	if input.Discount.Round(2).GreaterThan(input.Cart.Gross()) {
		return nil, shared.Invalid("discount", "exceeds gross total")
	}
	if p := input.Payment; p != nil {
		if p.Amount.IsNegative() {
			return nil, shared.Invalid("payment.amount", "must not be negative")
		}
		if p.Amount.IsPositive() && !p.Method.Valid() {
			return nil, shared.Invalid("payment.method", fmt.Sprintf("unknown payment method %q", p.Method))
		}
	}

	needs := make([]stockNeed, 0, len(merged))
	for name, qty := range merged {
		needs = append(needs, stockNeed{name: name, qty: qty})
	}
	sort.Slice(needs, func(i, j int) bool { return needs[i].name < needs[j].name })
	return needs, nil
}

// restockNeeds merges lines per item in the same ascending name order postings lock rows in.
func restockNeeds(lines []InvoiceLine) []stockNeed {
	merged := make(map[string]int64, len(lines))
	for _, l := range lines {
		merged[l.ItemName] += l.Quantity
	}
	needs := make([]stockNeed, 0, len(merged))
	for name, qty := range merged {
		needs = append(needs, stockNeed{name: name, qty: qty})
	}
	sort.Slice(needs, func(i, j int) bool { return needs[i].name < needs[j].name })
	return needs
}

// GetInvoice returns a posted invoice snapshot.
func (s *Service) GetInvoice(ctx context.Context, number int64) (InvoiceSnapshot, error) {
	if number <= 0 {
		return InvoiceSnapshot{}, shared.Invalid("number", "must be a positive number")
	}
	return s.repo.GetInvoice(ctx, number)
}

// ListInvoices lists invoice headers newest first.
func (s *Service) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, shared.Invalid("from", "must not be after to")
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListInvoices(ctx, filter)
}

// DeleteLastInvoice removes the most recent invoice, restoring its stock and dropping the
// payment taken at the counter with it. Receipts recorded later against the invoice stay on
// the customer's ledger, unlinked. Older invoices cannot be deleted.
func (s *Service) DeleteLastInvoice(ctx context.Context, actorID int64) (InvoiceSnapshot, error) {
	ctx, span := tracer.Start(ctx, "sales.DeleteLastInvoice")
	defer span.End()

	release, err := s.acquire(ctx)
	if err != nil {
		return InvoiceSnapshot{}, err
	}
	defer release()

	var snap InvoiceSnapshot
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		last, err := tx.GetLastInvoiceForUpdate(ctx)
		if err != nil {
			return err
		}
		for _, need := range restockNeeds(last.Lines) {
			if _, err := inventory.ApplyDelta(ctx, tx, inventory.Delta{ItemName: need.name, Qty: need.qty}); err != nil {
				return err
			}
		}
		if _, err := tx.ReleaseInvoicePayments(ctx, last.Number); err != nil {
			return err
		}
		if err := tx.DeleteInvoice(ctx, last.Number); err != nil {
			return err
		}
		snap = last
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return InvoiceSnapshot{}, shared.Storage("sales.delete_last", err)
	}
	s.logger.Warn("invoice deleted", slog.Int64("invoice", snap.Number), slog.Int64("actor", actorID))
	s.recordAudit(ctx, actorID, "INVOICE_DELETE", snap.Number, map[string]any{
		"customer":  snap.CustomerName,
		"net_total": snap.NetTotal.StringFixed(2),
	})
	return snap, nil
}

// RenderReceipt hands the posted snapshot to the document renderer.
func (s *Service) RenderReceipt(ctx context.Context, number int64) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "sales.RenderReceipt")
	defer span.End()
	if s.renderer == nil {
		return nil, ErrRendererUnavailable
	}
	snap, err := s.GetInvoice(ctx, number)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.RenderReceipt(ctx, snap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("sales: render receipt %d: %w", number, err)
	}
	return pdf, nil
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, shared.PostingLockKey("sales"))
	if err != nil {
		return nil, shared.Storage("sales.posting_lock", err)
	}
	return release, nil
}

func (s *Service) postingFailed(err error) {
	if s.metrics == nil {
		return
	}
	reason := "storage"
	switch {
	case errors.Is(err, shared.ErrValidation):
		reason = "validation"
	case errors.Is(err, shared.ErrStockInsufficient):
		reason = "stock"
	case errors.Is(err, shared.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, shared.ErrIdempotencyConflict):
		reason = "duplicate"
	}
	s.metrics.PostingFailed(reason)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, number int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(number, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("sales audit", slog.Any("error", err))
	}
}
