package procurement

import (
	"context"
	"fmt"
	"log/slog"
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

var tracer = otel.Tracer("github.com/waa-mobile/waapos/internal/procurement")

const idempotencyModule = "procurement.purchase"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPurchase(ctx context.Context, number int64) (PurchaseSnapshot, error)
	ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, error)
}

// PartyPort resolves suppliers.
type PartyPort interface {
	Get(ctx context.Context, kind parties.Kind, name string) (parties.Party, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort refuses replays of the same client key.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Service records supplier purchases.
type Service struct {
	repo        RepositoryPort
	parties     PartyPort
	audit       AuditPort
	idempotency IdempotencyPort
	logger      *slog.Logger
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, partyPort PartyPort, audit AuditPort, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, parties: partyPort, audit: audit, idempotency: idem, logger: logger}
}

// RecordPurchase receives stock from a supplier. Stock increments, the purchase rows and an
// optional payment to the supplier commit in one transaction.
func (s *Service) RecordPurchase(ctx context.Context, input RecordPurchaseInput) (PurchaseSnapshot, error) {
	ctx, span := tracer.Start(ctx, "procurement.RecordPurchase")
	defer span.End()
	span.SetAttributes(attribute.String("supplier", input.SupplierName), attribute.Int("lines", len(input.Lines)))

	if err := validatePurchase(input); err != nil {
		return PurchaseSnapshot{}, err
	}
	supplier, err := s.parties.Get(ctx, parties.KindSupplier, strings.TrimSpace(input.SupplierName))
	if err != nil {
		return PurchaseSnapshot{}, err
	}

	keyed := input.IdempotencyKey != "" && s.idempotency != nil
	if keyed {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, idempotencyModule); err != nil {
			return PurchaseSnapshot{}, shared.Storage("procurement.idempotency", err)
		}
	}

	var snap PurchaseSnapshot
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines := make([]PurchaseLine, len(input.Lines))
		order := make([]int, len(input.Lines))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return strings.TrimSpace(input.Lines[order[a]].ItemName) < strings.TrimSpace(input.Lines[order[b]].ItemName)
		})
		for _, i := range order {
			in := input.Lines[i]
			cost := in.UnitCost.Round(2)
			item, err := inventory.ApplyDelta(ctx, tx, inventory.Delta{
				ItemName:        in.ItemName,
				Qty:             in.Quantity,
				UnitCost:        inventory.Money(cost),
				UnitPrice:       in.UnitPrice,
				Category:        in.Category,
				CreateIfMissing: input.CreateIfMissing,
			})
			if err != nil {
				return err
			}
			lines[i] = PurchaseLine{
				LineNo:    i + 1,
				ItemID:    item.ID,
				ItemName:  item.Name,
				Quantity:  in.Quantity,
				UnitCost:  cost,
				LineTotal: cost.Mul(decimal.NewFromInt(in.Quantity)),
			}
		}

		p := Purchase{
			Date:         ledger.DateOrToday(input.Date),
			SupplierID:   supplier.ID,
			SupplierName: supplier.Name,
			NetTotal:     decimal.Zero,
			Note:         strings.TrimSpace(input.Note),
			CreatedBy:    input.ActorID,
		}
		for _, l := range lines {
			p.NetTotal = p.NetTotal.Add(l.LineTotal)
		}
		number, err := tx.NextPurchaseNumber(ctx)
		if err != nil {
			return err
		}
		p.Number = number
		if err := tx.InsertPurchase(ctx, p); err != nil {
			return err
		}
		for i := range lines {
			lines[i].PurchaseNumber = number
			if err := tx.InsertPurchaseLine(ctx, lines[i]); err != nil {
				return err
			}
		}
		if pay := input.Payment; pay != nil && pay.Amount.IsPositive() {
			if _, err := tx.InsertPayment(ctx, ledger.Payment{
				Date:           p.Date,
				PartyID:        supplier.ID,
				PartyName:      supplier.Name,
				Direction:      ledger.DirectionOut,
				Amount:         pay.Amount.Round(2),
				Method:         pay.Method,
				PurchaseNumber: number,
				Note:           "Paid on receipt",
				CreatedBy:      input.ActorID,
			}); err != nil {
				return err
			}
		}
		snap = PurchaseSnapshot{Purchase: p, Lines: lines}
		return nil
	})
	if err != nil {
		if keyed {
			if delErr := s.idempotency.Delete(ctx, input.IdempotencyKey, idempotencyModule); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return PurchaseSnapshot{}, shared.Storage("procurement.record_purchase", err)
	}

	s.logger.Info("purchase recorded",
		slog.Int64("purchase", snap.Number),
		slog.String("supplier", snap.SupplierName),
		slog.String("net_total", snap.NetTotal.StringFixed(2)))
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "PURCHASE_RECORD",
			Entity:   "purchase",
			EntityID: strconv.FormatInt(snap.Number, 10),
			Meta:     map[string]any{"supplier": snap.SupplierName, "net_total": snap.NetTotal.StringFixed(2)},
		}); err != nil {
			s.logger.Warn("procurement audit", slog.Any("error", err))
		}
	}
	return snap, nil
}

func validatePurchase(input RecordPurchaseInput) error {
	if strings.TrimSpace(input.SupplierName) == "" {
		return shared.Invalid("supplier", "supplier name is required")
	}
	if len(input.Lines) == 0 {
		return ErrNoLines
	}
	for i, l := range input.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if strings.TrimSpace(l.ItemName) == "" {
			return shared.Invalid(field+".item_name", "item name is required")
		}
		if l.Quantity <= 0 {
			return shared.Invalid(field+".quantity", "must be greater than zero")
		}
		if l.UnitCost.IsNegative() {
			return shared.Invalid(field+".unit_cost", "must not be negative")
		}
		if l.UnitPrice.Valid && l.UnitPrice.Decimal.IsNegative() {
			return shared.Invalid(field+".unit_price", "must not be negative")
		}
	}
	if p := input.Payment; p != nil {
		if p.Amount.IsNegative() {
			return shared.Invalid("payment.amount", "must not be negative")
		}
		if p.Amount.IsPositive() && !p.Method.Valid() {
			return shared.Invalid("payment.method", fmt.Sprintf("unknown payment method %q", p.Method))
		}
	}
	return nil
}

// GetPurchase returns a posted purchase.
func (s *Service) GetPurchase(ctx context.Context, number int64) (PurchaseSnapshot, error) {
	if number <= 0 {
		return PurchaseSnapshot{}, shared.Invalid("number", "must be a positive number")
	}
	return s.repo.GetPurchase(ctx, number)
}

// ListPurchases lists purchase headers newest first.
func (s *Service) ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListPurchases(ctx, filter)
}
