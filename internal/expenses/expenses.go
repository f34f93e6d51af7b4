// Package expenses records shop running costs such as rent, electricity and salaries.
package expenses

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/platform/db"
	"github.com/waa-mobile/waapos/internal/shared"
)

// Expense is one recorded cost.
type Expense struct {
	ID        int64                `json:"id"`
	Date      time.Time            `json:"date"`
	Category  string               `json:"category"`
	Amount    decimal.Decimal      `json:"amount"`
	Method    ledger.PaymentMethod `json:"method"`
	Note      string               `json:"note,omitempty"`
	CreatedBy int64                `json:"-"`
}

// RecordInput describes a new expense.
type RecordInput struct {
	Date     time.Time
	Category string
	Amount   decimal.Decimal
	Method   ledger.PaymentMethod
	Note     string
	ActorID  int64
}

// ListFilter narrows listings to a date window and category.
type ListFilter struct {
	From     *time.Time
	To       *time.Time
	Category string
}

// Repository persists expenses.
type Repository interface {
	Insert(ctx context.Context, e Expense) (int64, error)
	List(ctx context.Context, filter ListFilter) ([]Expense, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) Insert(ctx context.Context, e Expense) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO expenses (expense_date, category, amount, method, note, created_by)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, e.Date, e.Category, e.Amount, string(e.Method), e.Note, db.NullInt(e.CreatedBy)).Scan(&id)
	if err != nil {
		return 0, shared.Storage("expenses.insert", err)
	}
	return id, nil
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	var category any
	if c := strings.TrimSpace(filter.Category); c != "" {
		category = c
	}
	rows, err := r.pool.Query(ctx, `SELECT id, expense_date, category, amount, method, note FROM expenses
WHERE ($1::date IS NULL OR expense_date >= $1)
  AND ($2::date IS NULL OR expense_date <= $2)
  AND ($3::text IS NULL OR category = $3)
ORDER BY expense_date DESC, id DESC`, filter.From, filter.To, category)
	if err != nil {
		return nil, shared.Storage("expenses.list", err)
	}
	defer rows.Close()
	list := []Expense{}
	for rows.Next() {
		var e Expense
		var method string
		if err := rows.Scan(&e.ID, &e.Date, &e.Category, &e.Amount, &method, &e.Note); err != nil {
			return nil, shared.Storage("expenses.list", err)
		}
		e.Method = ledger.PaymentMethod(method)
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("expenses.list", err)
	}
	return list, nil
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records and lists expenses.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Record validates and stores an expense.
func (s *Service) Record(ctx context.Context, input RecordInput) (Expense, error) {
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return Expense{}, shared.Invalid("category", "category is required")
	}
	if !input.Amount.IsPositive() {
		return Expense{}, shared.Invalid("amount", "must be greater than zero")
	}
	if !input.Method.Valid() {
		return Expense{}, shared.Invalid("method", "unknown payment method")
	}
	e := Expense{
		Date:      ledger.DateOrToday(input.Date),
		Category:  category,
		Amount:    input.Amount.Round(2),
		Method:    input.Method,
		Note:      strings.TrimSpace(input.Note),
		CreatedBy: input.ActorID,
	}
	id, err := s.repo.Insert(ctx, e)
	if err != nil {
		return Expense{}, err
	}
	e.ID = id
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "EXPENSE_RECORD",
			Entity:   "expense",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"category": e.Category, "amount": e.Amount.StringFixed(2)},
		}); err != nil {
			s.logger.Warn("expenses audit", slog.Any("error", err))
		}
	}
	return e, nil
}

// List returns expenses matching filter, newest first, with their total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Expense, decimal.Decimal, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, decimal.Zero, shared.Invalid("from", "must not be after to")
	}
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range list {
		total = total.Add(e.Amount)
	}
	return list, total, nil
}
