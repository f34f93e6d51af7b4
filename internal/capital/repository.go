package capital

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/waa-mobile/waapos/internal/platform/db"
	"github.com/waa-mobile/waapos/internal/shared"
)

// Repository is the persistence port for the capital ledger.
type Repository interface {
	InsertEntry(ctx context.Context, e Entry) (int64, error)
	SetOpening(ctx context.Context, partner string, amount decimal.Decimal) error
	Position(ctx context.Context, partner string) (Position, bool, error)
	Positions(ctx context.Context) ([]Position, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) InsertEntry(ctx context.Context, e Entry) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO capital_entries (entry_date, partner, kind, amount, remarks, created_by)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, e.Date, e.Partner, string(e.Kind), e.Amount, e.Remarks, db.NullInt(e.CreatedBy)).Scan(&id)
	if err != nil {
		return 0, shared.Storage("capital.insert_entry", err)
	}
	return id, nil
}

func (r *repository) SetOpening(ctx context.Context, partner string, amount decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `INSERT INTO capital_partners (partner, opening_balance) VALUES ($1,$2)
ON CONFLICT (partner) DO UPDATE SET opening_balance=EXCLUDED.opening_balance, updated_at=NOW()`, partner, amount)
	if err != nil {
		return shared.Storage("capital.set_opening", err)
	}
	return nil
}

// positionsSQL folds every partner known from either table. $2 and $3 carry the
// investment and withdrawal kinds.
const positionsSQL = `WITH names AS (
	SELECT partner FROM capital_partners
	UNION
	SELECT partner FROM capital_entries
)
SELECT n.partner,
	COALESCE(p.opening_balance, 0),
	COALESCE((SELECT SUM(amount) FROM capital_entries e WHERE e.partner = n.partner AND e.kind = $2), 0),
	COALESCE((SELECT SUM(amount) FROM capital_entries e WHERE e.partner = n.partner AND e.kind = $3), 0)
FROM names n
LEFT JOIN capital_partners p ON p.partner = n.partner
WHERE ($1::text IS NULL OR n.partner = $1)
ORDER BY n.partner`

func (r *repository) Position(ctx context.Context, partner string) (Position, bool, error) {
	list, err := r.query(ctx, partner)
	if err != nil {
		return Position{}, false, err
	}
	if len(list) == 0 {
		return Position{Partner: partner}, false, nil
	}
	return list[0], true, nil
}

func (r *repository) Positions(ctx context.Context) ([]Position, error) {
	return r.query(ctx, nil)
}

func (r *repository) query(ctx context.Context, partner any) ([]Position, error) {
	rows, err := r.db.Query(ctx, positionsSQL, partner, string(KindInvestment), string(KindWithdrawal))
	if err != nil {
		return nil, shared.Storage("capital.positions", err)
	}
	defer rows.Close()
	list := []Position{}
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Partner, &p.Opening, &p.Investments, &p.Withdrawals); err != nil {
			return nil, shared.Storage("capital.positions", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("capital.positions", err)
	}
	return list, nil
}
