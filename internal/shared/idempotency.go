package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/thermaquote/thermaquote/internal/platform/db"
)

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore persists processed keys and the resource each produced.
type IdempotencyStore struct {
	conn db.DBTX
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(conn db.DBTX) *IdempotencyStore {
	return &IdempotencyStore{conn: conn}
}

// CheckAndInsert claims key within module. A second claim returns
// ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.conn.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, time.Now())
	if db.IsUniqueViolation(err) {
		return ErrIdempotencyConflict
	}
	return err
}

// Complete records the resource produced for a claimed key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, module, resourceID string) error {
	_, err := s.conn.Exec(ctx, `UPDATE idempotency_keys SET resource_id=$3 WHERE key=$1 AND module=$2`, key, module, resourceID)
	return err
}

// Resource returns the resource recorded for key, or "" if none was recorded.
func (s *IdempotencyStore) Resource(ctx context.Context, key, module string) (string, error) {
	var id *string
	err := s.conn.QueryRow(ctx, `SELECT resource_id FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if id == nil {
		return "", nil
	}
	return *id, nil
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := s.conn.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.conn.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module)
	return err
}
