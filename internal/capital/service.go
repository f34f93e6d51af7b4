package capital

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service maintains the partner capital ledger.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the capital service.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Record appends an investment or withdrawal.
func (s *Service) Record(ctx context.Context, input RecordInput) (Entry, error) {
	partner := strings.TrimSpace(input.Partner)
	if partner == "" {
		return Entry{}, shared.Invalid("partner", "partner is required")
	}
	switch input.Kind {
	case KindInvestment, KindWithdrawal:
	default:
		return Entry{}, shared.Invalid("kind", "must be Investment or Withdrawal")
	}
	if !input.Amount.IsPositive() {
		return Entry{}, shared.Invalid("amount", "must be greater than zero")
	}
	entry := Entry{
		Date:      ledger.DateOrToday(input.Date),
		Partner:   partner,
		Kind:      input.Kind,
		Amount:    input.Amount.Round(2),
		Remarks:   strings.TrimSpace(input.Remarks),
		CreatedBy: input.ActorID,
	}
	id, err := s.repo.InsertEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	entry.ID = id
	s.logger.Info("capital entry recorded",
		slog.String("partner", entry.Partner),
		slog.String("kind", string(entry.Kind)),
		slog.String("amount", entry.Amount.StringFixed(2)))
	s.recordAudit(ctx, input.ActorID, "CAPITAL_"+strings.ToUpper(string(entry.Kind)), strconv.FormatInt(id, 10), map[string]any{
		"partner": entry.Partner,
		"amount":  entry.Amount.StringFixed(2),
	})
	return entry, nil
}

// SetOpening stores a partner's opening capital. It may be negative.
func (s *Service) SetOpening(ctx context.Context, partner string, amount decimal.Decimal, actorID int64) (Position, error) {
	partner = strings.TrimSpace(partner)
	if partner == "" {
		return Position{}, shared.Invalid("partner", "partner is required")
	}
	if err := s.repo.SetOpening(ctx, partner, amount.Round(2)); err != nil {
		return Position{}, err
	}
	s.recordAudit(ctx, actorID, "CAPITAL_OPENING", partner, map[string]any{"amount": amount.StringFixed(2)})
	return s.Net(ctx, partner)
}

// Net folds a partner's opening, investments and withdrawals.
func (s *Service) Net(ctx context.Context, partner string) (Position, error) {
	partner = strings.TrimSpace(partner)
	if partner == "" {
		return Position{}, shared.Invalid("partner", "partner is required")
	}
	pos, ok, err := s.repo.Position(ctx, partner)
	if err != nil {
		return Position{}, err
	}
	if !ok {
		return Position{}, shared.NotFound("partner", partner)
	}
	return pos.Fold(), nil
}

// Summary folds every partner and totals the result.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	list, err := s.repo.Positions(ctx)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Partners: make([]Position, 0, len(list)), Total: decimal.Zero}
	for _, p := range list {
		p = p.Fold()
		out.Partners = append(out.Partners, p)
		out.Total = out.Total.Add(p.Net)
	}
	return out, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "capital", EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("capital audit", slog.Any("error", err))
	}
}
