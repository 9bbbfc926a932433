package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rswag/pod-backend/internal/domain/customer"
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// The no-op DO UPDATE makes the statement return the existing row instead
// of nothing, so a single round trip covers both lookup and creation.
const upsertCustomerSQL = `INSERT INTO customers (id, email)
	VALUES ($1, $2)
	ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
	RETURNING id, email, created_at`

// GetOrCreateByEmail returns the customer for email, creating it when
// absent. Concurrent calls for the same email converge on one row.
func (r *CustomerRepository) GetOrCreateByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	var c customer.Customer
	err := r.pool.QueryRow(ctx, upsertCustomerSQL, uuid.New().String(), email).
		Scan(&c.ID, &c.Email, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting customer %q: %w", email, err)
	}
	return &c, nil
}
