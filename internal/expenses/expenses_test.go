package expenses

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/waa-mobile/waapos/internal/ledger"
	"github.com/waa-mobile/waapos/internal/shared"
)

type memoryRepo struct {
	rows []Expense
}

func (m *memoryRepo) Insert(ctx context.Context, e Expense) (int64, error) {
	e.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, e)
	return e.ID, nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	var out []Expense
	for _, e := range m.rows {
		if filter.From != nil && e.Date.Before(*filter.From) {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func TestRecordAndTotal(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil, nil)
	ctx := context.Background()
	may := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Record(ctx, RecordInput{Date: may, Category: "Rent", Amount: decimal.NewFromInt(25000), Method: ledger.MethodBankTransfer})
	require.NoError(t, err)
	_, err = svc.Record(ctx, RecordInput{Date: may.AddDate(0, 0, 3), Category: "Electricity", Amount: decimal.RequireFromString("4350.50"), Method: ledger.MethodCash})
	require.NoError(t, err)

	list, total, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "29350.5", total.String())

	from := may.AddDate(0, 0, 1)
	_, total, err = svc.List(ctx, ListFilter{From: &from})
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.RequireFromString("4350.50")))
}

func TestRecordValidation(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil, nil)
	ctx := context.Background()

	_, err := svc.Record(ctx, RecordInput{Category: "", Amount: decimal.NewFromInt(1), Method: ledger.MethodCash})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Record(ctx, RecordInput{Category: "Tea", Amount: decimal.Zero, Method: ledger.MethodCash})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Record(ctx, RecordInput{Category: "Tea", Amount: decimal.NewFromInt(1), Method: "Barter"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

type failingAudit struct{}

func (failingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	return errors.New("audit table locked")
}

func TestRecordLogsAuditFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	repo := &memoryRepo{}
	svc := NewService(repo, failingAudit{}, logger)

	e, err := svc.Record(context.Background(), RecordInput{Category: "Rent", Amount: decimal.NewFromInt(25000), Method: ledger.MethodCash})
	require.NoError(t, err)
	require.EqualValues(t, 1, e.ID)
	require.Len(t, repo.rows, 1)
	require.Contains(t, buf.String(), "expenses audit")
	require.Contains(t, buf.String(), "audit table locked")
}
