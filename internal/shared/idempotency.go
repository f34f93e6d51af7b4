package shared

import (
	"context"
	"errors"
	"time"
)

// ErrIdempotencyConflict is returned when a client key was already used for the module.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore claims client supplied keys in idempotency_keys so a double-submitted
// posting is refused. Keys are scoped by module.
type IdempotencyStore struct {
	db Execer
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(db Execer) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func scopedKey(key, module string) (string, error) {
	switch {
	case key == "":
		return "", Invalid("idempotency_key", "required")
	case module == "":
		return "", Invalid("module", "required")
	}
	return module + ":" + key, nil
}

// CheckAndInsert claims key for module, or returns ErrIdempotencyConflict when it is taken.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	scoped, err := scopedKey(key, module)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`INSERT INTO idempotency_keys (key, module) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		scoped, module)
	if err != nil {
		return Storage("idempotency.claim", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Delete releases a key after a failed posting so the client may retry with it.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	scoped, err := scopedKey(key, module)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, scoped); err != nil {
		return Storage("idempotency.release", err)
	}
	return nil
}

// Cleanup removes keys claimed more than olderThan ago and reports how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, Invalid("retention", "must be positive")
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < NOW() - make_interval(secs => $1)`, olderThan.Seconds())
	if err != nil {
		return 0, Storage("idempotency.cleanup", err)
	}
	return tag.RowsAffected(), nil
}
