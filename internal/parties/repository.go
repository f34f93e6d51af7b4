package parties

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waa-mobile/waapos/internal/shared"
)

// Repository is the persistence port for parties.
type Repository interface {
	Create(ctx context.Context, party Party) (Party, error)
	GetByName(ctx context.Context, kind Kind, name string) (Party, error)
	List(ctx context.Context, req ListRequest) ([]Party, int, error)
	UpdateContact(ctx context.Context, id int64, phone, email, address string) error
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

const partyColumns = `id, kind, name, phone, email, address, opening_balance, created_at`

func (r *repository) Create(ctx context.Context, party Party) (Party, error) {
	created, err := scanParty(r.db.QueryRow(ctx, `INSERT INTO parties (kind, name, phone, email, address, opening_balance)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+partyColumns,
		string(party.Kind), party.Name, party.Phone, party.Email, party.Address, party.OpeningBalance))
	if err != nil {
		return Party{}, shared.Storage("parties.create", err)
	}
	return created, nil
}

func (r *repository) GetByName(ctx context.Context, kind Kind, name string) (Party, error) {
	party, err := scanParty(r.db.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE kind=$1 AND name=$2`, string(kind), name))
	if err != nil {
		if shared.IsNoRows(err) {
			return Party{}, shared.NotFound(string(kind), name)
		}
		return Party{}, shared.Storage("parties.get", err)
	}
	return party, nil
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Party, int, error) {
	var search any
	if s := strings.TrimSpace(req.Search); s != "" {
		search = "%" + s + "%"
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM parties WHERE kind=$1 AND ($2::text IS NULL OR name ILIKE $2)`,
		string(req.Kind), search).Scan(&total); err != nil {
		return nil, 0, shared.Storage("parties.count", err)
	}
	rows, err := r.db.Query(ctx, `SELECT `+partyColumns+` FROM parties
WHERE kind=$1 AND ($2::text IS NULL OR name ILIKE $2)
ORDER BY name LIMIT $3 OFFSET $4`, string(req.Kind), search, req.Limit, req.Offset)
	if err != nil {
		return nil, 0, shared.Storage("parties.list", err)
	}
	defer rows.Close()
	list := []Party{}
	for rows.Next() {
		party, err := scanParty(rows)
		if err != nil {
			return nil, 0, shared.Storage("parties.list", err)
		}
		list = append(list, party)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.Storage("parties.list", err)
	}
	return list, total, nil
}

func (r *repository) UpdateContact(ctx context.Context, id int64, phone, email, address string) error {
	tag, err := r.db.Exec(ctx, `UPDATE parties SET phone=$2, email=$3, address=$4 WHERE id=$1`, id, phone, email, address)
	if err != nil {
		return shared.Storage("parties.update_contact", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("party", "")
	}
	return nil
}

func scanParty(row pgx.Row) (Party, error) {
	var p Party
	var kind string
	if err := row.Scan(&p.ID, &kind, &p.Name, &p.Phone, &p.Email, &p.Address, &p.OpeningBalance, &p.CreatedAt); err != nil {
		return Party{}, err
	}
	p.Kind = Kind(kind)
	return p, nil
}
