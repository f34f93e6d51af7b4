package inventory

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/waa-mobile/waapos/internal/shared"
)

var tracer = otel.Tracer("github.com/waa-mobile/waapos/internal/inventory")

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, name string) (Item, error)
	ListItems(ctx context.Context, filter ListFilter) ([]Item, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Adjust applies a signed stock delta. Unknown items are created with max(delta, 0).
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Item, error) {
	ctx, span := tracer.Start(ctx, "inventory.Adjust")
	defer span.End()
	span.SetAttributes(attribute.String("item", input.ItemName), attribute.Int64("delta", input.Delta))

	var result Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := ApplyDelta(ctx, tx, Delta{
			ItemName:        input.ItemName,
			Qty:             input.Delta,
			UnitCost:        input.UnitCost,
			UnitPrice:       input.UnitPrice,
			Category:        input.Category,
			CreateIfMissing: true,
		})
		if err != nil {
			return err
		}
		result = item
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Item{}, err
	}
	s.logger.Info("stock adjusted",
		slog.String("item", result.Name),
		slog.Int64("delta", input.Delta),
		slog.Int64("on_hand", result.QuantityOnHand))
	s.recordAudit(ctx, input.ActorID, "STOCK_ADJUST", result, map[string]any{
		"delta":  input.Delta,
		"reason": input.Reason,
	})
	return result, nil
}

// UpsertItem registers a new item or updates master data of an existing one.
func (s *Service) UpsertItem(ctx context.Context, input UpsertItemInput) (Item, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Item{}, ErrItemNameRequired
	}
	if input.UnitCost.IsNegative() || input.UnitPrice.IsNegative() {
		return Item{}, ErrNegativeMoney
	}
	if input.OpeningQuantity < 0 {
		return Item{}, shared.Invalid("opening_quantity", "must not be negative")
	}
	minStock := DefaultMinStock
	if input.MinStock != nil {
		if *input.MinStock < 0 {
			return Item{}, shared.Invalid("min_stock", "must not be negative")
		}
		minStock = *input.MinStock
	}
	var saved Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.UpsertItem(ctx, Item{
			Name:           name,
			Category:       defaultString(input.Category, DefaultCategory),
			QuantityOnHand: input.OpeningQuantity,
			UnitCost:       input.UnitCost,
			UnitPrice:      input.UnitPrice,
			MinStock:       minStock,
		})
		if err != nil {
			return err
		}
		saved = item
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, input.ActorID, "ITEM_UPSERT", saved, map[string]any{
		"unit_cost":  saved.UnitCost.String(),
		"unit_price": saved.UnitPrice.String(),
	})
	return saved, nil
}

// GetItem returns a single item.
func (s *Service) GetItem(ctx context.Context, name string) (Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Item{}, ErrItemNameRequired
	}
	return s.repo.GetItem(ctx, name)
}

// ListItems lists items matching filter.
func (s *Service) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	return s.repo.ListItems(ctx, filter)
}

// LowStock lists items at or below their minimum stock.
func (s *Service) LowStock(ctx context.Context) ([]Item, error) {
	return s.repo.ListItems(ctx, ListFilter{LowOnly: true})
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, item Item, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["name"] = item.Name
	meta["on_hand"] = item.QuantityOnHand
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventory_item",
		EntityID: strconv.FormatInt(item.ID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("inventory audit", slog.Any("error", err))
	}
}
