package auth

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waa-mobile/waapos/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, user User) (User, error)
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, username, password_hash, role, is_active, created_at, updated_at`

// FindByUsername fetches a user by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
	if err != nil {
		if shared.IsNoRows(err) {
			return nil, shared.NotFound("user", username)
		}
		return nil, shared.Storage("auth.find_user", err)
	}
	return &user, nil
}

// Create inserts a user. A duplicate username surfaces as a validation error.
func (r *PGRepository) Create(ctx context.Context, user User) (User, error) {
	created, err := scanUser(r.pool.QueryRow(ctx, `INSERT INTO users (username, password_hash, role)
VALUES ($1,$2,$3) RETURNING `+userColumns, user.Username, user.PasswordHash, string(user.Role)))
	if err != nil {
		return User{}, shared.Storage("auth.create_user", err)
	}
	return created, nil
}

// List returns every account ordered by username.
func (r *PGRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, shared.Storage("auth.list_users", err)
	}
	defer rows.Close()
	users := []User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, shared.Storage("auth.list_users", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("auth.list_users", err)
	}
	return users, nil
}

// Count reports how many accounts exist.
func (r *PGRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, shared.Storage("auth.count_users", err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}

var _ Repository = (*PGRepository)(nil)
