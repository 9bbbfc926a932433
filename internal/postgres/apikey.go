package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rswag/pod-backend/internal/handler"
)

var _ handler.APIKeyRepository = (*APIKeyRepository)(nil)

// APIKeyRepository provides admin API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

const getAPIKeySQL = `SELECT id, key_hash, name FROM api_keys WHERE key_hash = $1 AND active`

// FindByHash looks up an active API key by its peppered HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*handler.APIKeyInfo, error) {
	var info handler.APIKeyInfo
	err := r.pool.QueryRow(ctx, getAPIKeySQL, hash).Scan(&info.ID, &info.KeyHash, &info.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("api key not found: %w", err)
		}
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}
	return &info, nil
}
