package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/waa-mobile/waapos/internal/inventory"
	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/shared"
)

var tracer = otel.Tracer("github.com/waa-mobile/waapos/internal/ledger")

const balancePageSize = 200

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	SalesTotal(ctx context.Context, customerID int64) (decimal.Decimal, error)
	PurchasesTotal(ctx context.Context, supplierID int64) (decimal.Decimal, error)
	PaymentsTotal(ctx context.Context, partyID int64, dir Direction) (decimal.Decimal, error)
	ReturnsTotal(ctx context.Context, customerID int64) (decimal.Decimal, error)
	StatementEntries(ctx context.Context, party parties.Party, to *time.Time) ([]StatementEntry, error)
}

// PartyPort resolves registered parties.
type PartyPort interface {
	Get(ctx context.Context, kind parties.Kind, name string) (parties.Party, error)
	List(ctx context.Context, req parties.ListRequest) ([]parties.Party, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service derives balances and records payments and returns.
type Service struct {
	repo    RepositoryPort
	parties PartyPort
	audit   AuditPort
	logger  *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, partyPort PartyPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, parties: partyPort, audit: audit, logger: logger}
}

// Balance folds the opening balance with the party's aggregates. Nothing is cached; every
// call recomputes from stored rows.
func (s *Service) Balance(ctx context.Context, kind parties.Kind, name string) (Balance, error) {
	ctx, span := tracer.Start(ctx, "ledger.Balance")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(kind)), attribute.String("party", name))

	party, err := s.resolve(ctx, kind, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Balance{}, err
	}
	bal, err := s.fold(ctx, party)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Balance{}, err
	}
	return bal, nil
}

// ListBalances computes the balance of every party of kind, ordered by name.
func (s *Service) ListBalances(ctx context.Context, kind parties.Kind) ([]Balance, error) {
	if _, err := DirectionFor(kind); err != nil {
		return nil, err
	}
	var all []parties.Party
	for offset := 0; ; offset += balancePageSize {
		page, total, err := s.parties.List(ctx, parties.ListRequest{Kind: kind, Limit: balancePageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || len(all) >= total {
			break
		}
	}

	out := make([]Balance, len(all))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, party := range all {
		g.Go(func() error {
			bal, err := s.fold(gctx, party)
			if err != nil {
				return err
			}
			out[i] = bal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) fold(ctx context.Context, party parties.Party) (Balance, error) {
	bal := Balance{Kind: party.Kind, Party: party.Name, Opening: party.OpeningBalance}
	g, gctx := errgroup.WithContext(ctx)
	switch party.Kind {
	case parties.KindCustomer:
		g.Go(func() (err error) {
			bal.Sales, err = s.repo.SalesTotal(gctx, party.ID)
			return err
		})
		g.Go(func() (err error) {
			bal.Payments, err = s.repo.PaymentsTotal(gctx, party.ID, DirectionIn)
			return err
		})
		g.Go(func() (err error) {
			bal.Returns, err = s.repo.ReturnsTotal(gctx, party.ID)
			return err
		})
	case parties.KindSupplier:
		g.Go(func() (err error) {
			bal.Sales, err = s.repo.PurchasesTotal(gctx, party.ID)
			return err
		})
		g.Go(func() (err error) {
			bal.Payments, err = s.repo.PaymentsTotal(gctx, party.ID, DirectionOut)
			return err
		})
	default:
		return Balance{}, shared.Invalid("kind", fmt.Sprintf("unknown party kind %q", party.Kind))
	}
	if err := g.Wait(); err != nil {
		return Balance{}, err
	}
	bal.Balance = Fold(bal.Opening, bal.Sales, bal.Payments, bal.Returns)
	return bal, nil
}

// RecordPayment appends a payment received from a customer or paid to a supplier.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (Payment, error) {
	ctx, span := tracer.Start(ctx, "ledger.RecordPayment")
	defer span.End()

	dir, err := DirectionFor(input.Kind)
	if err != nil {
		return Payment{}, err
	}
	if !input.Amount.IsPositive() {
		return Payment{}, shared.Invalid("amount", "must be greater than zero")
	}
	if !input.Method.Valid() {
		return Payment{}, shared.Invalid("method", fmt.Sprintf("unknown payment method %q", input.Method))
	}
	if input.InvoiceNumber != 0 && input.Kind != parties.KindCustomer {
		return Payment{}, shared.Invalid("invoice_number", "only customer payments reference invoices")
	}
	if input.PurchaseNumber != 0 && input.Kind != parties.KindSupplier {
		return Payment{}, shared.Invalid("purchase_number", "only supplier payments reference purchases")
	}
	party, err := s.resolve(ctx, input.Kind, input.PartyName)
	if err != nil {
		return Payment{}, err
	}

	pay := Payment{
		Date:           DateOrToday(input.Date),
		PartyID:        party.ID,
		PartyName:      party.Name,
		Direction:      dir,
		Amount:         input.Amount.Round(2),
		Method:         input.Method,
		InvoiceNumber:  input.InvoiceNumber,
		PurchaseNumber: input.PurchaseNumber,
		Note:           strings.TrimSpace(input.Note),
		CreatedBy:      input.ActorID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkDocumentParty(ctx, tx, pay); err != nil {
			return err
		}
		id, err := tx.InsertPayment(ctx, pay)
		if err != nil {
			return err
		}
		pay.ID = id
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Payment{}, err
	}
	s.logger.Info("payment recorded",
		slog.String("party", pay.PartyName),
		slog.String("direction", string(pay.Direction)),
		slog.String("amount", pay.Amount.StringFixed(2)),
		slog.String("method", string(pay.Method)))
	s.recordAudit(ctx, input.ActorID, "PAYMENT_RECORD", "payment", pay.ID, map[string]any{
		"party":     pay.PartyName,
		"direction": string(pay.Direction),
		"amount":    pay.Amount.StringFixed(2),
		"method":    string(pay.Method),
	})
	return pay, nil
}

// checkDocumentParty rejects a payment that references a missing document or one billed
// to another party.
func checkDocumentParty(ctx context.Context, tx TxRepository, pay Payment) error {
	if pay.InvoiceNumber != 0 {
		owner, err := tx.InvoiceCustomerID(ctx, pay.InvoiceNumber)
		if err != nil {
			return err
		}
		if owner != pay.PartyID {
			return shared.Invalid("invoice_number", fmt.Sprintf("invoice %d belongs to another customer", pay.InvoiceNumber))
		}
	}
	if pay.PurchaseNumber != 0 {
		owner, err := tx.PurchaseSupplierID(ctx, pay.PurchaseNumber)
		if err != nil {
			return err
		}
		if owner != pay.PartyID {
			return shared.Invalid("purchase_number", fmt.Sprintf("purchase %d belongs to another supplier", pay.PurchaseNumber))
		}
	}
	return nil
}

// RecordReturn credits a customer for returned goods and puts the quantity back on hand.
// Both writes share one transaction. Unknown items are rejected.
func (s *Service) RecordReturn(ctx context.Context, input RecordReturnInput) (Return, error) {
	ctx, span := tracer.Start(ctx, "ledger.RecordReturn")
	defer span.End()
	span.SetAttributes(attribute.String("item", input.ItemName), attribute.Int64("quantity", input.Quantity))

	if input.Quantity <= 0 {
		return Return{}, shared.Invalid("quantity", "must be greater than zero")
	}
	if input.Amount.IsNegative() {
		return Return{}, shared.Invalid("amount", "must not be negative")
	}
	if strings.TrimSpace(input.ItemName) == "" {
		return Return{}, inventory.ErrItemNameRequired
	}
	customer, err := s.resolve(ctx, parties.KindCustomer, input.CustomerName)
	if err != nil {
		return Return{}, err
	}

	ret := Return{
		Date:         DateOrToday(input.Date),
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		Quantity:     input.Quantity,
		Reason:       strings.TrimSpace(input.Reason),
		CreatedBy:    input.ActorID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := inventory.ApplyDelta(ctx, tx, inventory.Delta{ItemName: input.ItemName, Qty: input.Quantity})
		if err != nil {
			return err
		}
		ret.ItemID = item.ID
		ret.ItemName = item.Name
		ret.Amount = input.Amount
		if ret.Amount.IsZero() {
			ret.Amount = item.UnitPrice.Mul(decimal.NewFromInt(input.Quantity))
		}
		ret.Amount = ret.Amount.Round(2)
		id, err := tx.InsertReturn(ctx, ret)
		if err != nil {
			return err
		}
		ret.ID = id
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Return{}, err
	}
	s.logger.Info("return recorded",
		slog.String("customer", ret.CustomerName),
		slog.String("item", ret.ItemName),
		slog.Int64("quantity", ret.Quantity),
		slog.String("amount", ret.Amount.StringFixed(2)))
	s.recordAudit(ctx, input.ActorID, "RETURN_RECORD", "return", ret.ID, map[string]any{
		"customer": ret.CustomerName,
		"item":     ret.ItemName,
		"quantity": ret.Quantity,
		"amount":   ret.Amount.StringFixed(2),
	})
	return ret, nil
}

// Statement lists a party's postings in [from, to] with a running balance. Postings dated
// before from are folded into the opening row, so the closing figure always equals Balance
// as of to.
func (s *Service) Statement(ctx context.Context, kind parties.Kind, name string, from, to *time.Time) (Statement, error) {
	ctx, span := tracer.Start(ctx, "ledger.Statement")
	defer span.End()

	if from != nil && to != nil && from.After(*to) {
		return Statement{}, shared.Invalid("from", "must not be after to")
	}
	party, err := s.resolve(ctx, kind, name)
	if err != nil {
		return Statement{}, err
	}
	rows, err := s.repo.StatementEntries(ctx, party, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Statement{}, err
	}

	opening := StatementEntry{Type: EntryOpening, Reference: "Opening balance", Running: party.OpeningBalance}
	if from != nil {
		opening.Date = *from
	} else {
		opening.Date = party.CreatedAt
	}

	running := party.OpeningBalance
	entries := []StatementEntry{}
	for _, e := range rows {
		running = running.Add(e.Debit).Sub(e.Credit)
		if from != nil && e.Date.Before(*from) {
			opening.Running = running
			continue
		}
		e.Running = running
		entries = append(entries, e)
	}
	if opening.Running.IsNegative() {
		opening.Credit = opening.Running.Neg()
	} else {
		opening.Debit = opening.Running
	}
	return Statement{
		Kind:    party.Kind,
		Party:   party.Name,
		From:    from,
		To:      to,
		Entries: append([]StatementEntry{opening}, entries...),
		Closing: running,
	}, nil
}

func (s *Service) resolve(ctx context.Context, kind parties.Kind, name string) (parties.Party, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return parties.Party{}, shared.Invalid("party", "name is required")
	}
	return s.parties.Get(ctx, kind, name)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("ledger audit", slog.Any("error", err))
	}
}
