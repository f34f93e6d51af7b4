package capital

import (
	"context"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/waa-mobile/waapos/internal/shared"
)

type memoryRepo struct {
	entries  []Entry
	openings map[string]decimal.Decimal
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{openings: map[string]decimal.Decimal{}}
}

func (m *memoryRepo) InsertEntry(ctx context.Context, e Entry) (int64, error) {
	m.entries = append(m.entries, e)
	return int64(len(m.entries)), nil
}

func (m *memoryRepo) SetOpening(ctx context.Context, partner string, amount decimal.Decimal) error {
	m.openings[partner] = amount
	return nil
}

func (m *memoryRepo) Position(ctx context.Context, partner string) (Position, bool, error) {
	pos := Position{Partner: partner, Opening: m.openings[partner], Investments: decimal.Zero, Withdrawals: decimal.Zero}
	_, known := m.openings[partner]
	for _, e := range m.entries {
		if e.Partner != partner {
			continue
		}
		known = true
		switch e.Kind {
		case KindInvestment:
			pos.Investments = pos.Investments.Add(e.Amount)
		case KindWithdrawal:
			pos.Withdrawals = pos.Withdrawals.Add(e.Amount)
		}
	}
	return pos, known, nil
}

func (m *memoryRepo) Positions(ctx context.Context) ([]Position, error) {
	names := map[string]bool{}
	for p := range m.openings {
		names[p] = true
	}
	for _, e := range m.entries {
		names[e.Partner] = true
	}
	var out []Position
	for name := range names {
		pos, _, _ := m.Position(ctx, name)
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Partner < out[j].Partner })
	return out, nil
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestNetFoldsOpeningInvestmentsWithdrawals(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.SetOpening(ctx, "Waqas", dec(50000), 1)
	require.NoError(t, err)
	for _, in := range []RecordInput{
		{Partner: "Waqas", Kind: KindInvestment, Amount: dec(20000)},
		{Partner: "Waqas", Kind: KindWithdrawal, Amount: dec(5000)},
		{Partner: "Waqas", Kind: KindWithdrawal, Amount: dec(2500)},
		{Partner: "Adeel", Kind: KindInvestment, Amount: dec(30000)},
	} {
		_, err := svc.Record(ctx, in)
		require.NoError(t, err)
	}

	pos, err := svc.Net(ctx, "Waqas")
	require.NoError(t, err)
	require.True(t, pos.Net.Equal(dec(62500)), pos.Net.String())

	sum, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, sum.Partners, 2)
	require.Equal(t, "Adeel", sum.Partners[0].Partner)
	require.True(t, sum.Total.Equal(dec(92500)))
}

func TestRecordRejectsBadInput(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Record(ctx, RecordInput{Partner: "Waqas", Kind: "Investment%", Amount: dec(10)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Record(ctx, RecordInput{Partner: "Waqas", Kind: KindInvestment, Amount: dec(0)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Record(ctx, RecordInput{Partner: "", Kind: KindInvestment, Amount: dec(10)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestNetUnknownPartner(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.Net(context.Background(), "Ghost")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("withdraw")
	require.NoError(t, err)
	require.Equal(t, KindWithdrawal, k)
	_, err = ParseKind("Investment%")
	require.ErrorIs(t, err, shared.ErrValidation)
}
