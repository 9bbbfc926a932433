package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rswag/pod-backend/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

const createCartSQL = `INSERT INTO carts (id, customer_id, expires_at)
	VALUES ($1, NULLIF($2, '')::uuid, $3)`

// Create persists a new empty cart.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	_, err := r.pool.Exec(ctx, createCartSQL, c.ID, c.CustomerID, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("creating cart %q: %w", c.ID, err)
	}
	return nil
}

const getCartSQL = `SELECT id, COALESCE(customer_id::text, ''), created_at, updated_at, expires_at
	FROM carts
	WHERE id = $1 AND expires_at > now()`

const getCartItemsSQL = `SELECT id, product_slug, product_name, variant, quantity, unit_price
	FROM cart_items
	WHERE cart_id = $1
	ORDER BY created_at`

// GetByID returns a non-expired cart with its items, or cart.ErrNotFound.
func (r *CartRepository) GetByID(ctx context.Context, id string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.pool.QueryRow(ctx, getCartSQL, id).Scan(
		&c.ID, &c.CustomerID, &c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, getCartItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting cart items for %q: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it cart.Item
		if err := rows.Scan(&it.ID, &it.ProductSlug, &it.ProductName, &it.Variant, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scanning cart item: %w", err)
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading cart items: %w", err)
	}

	return &c, nil
}

const addCartItemSQL = `INSERT INTO cart_items (id, cart_id, product_slug, product_name, variant, quantity, unit_price)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

const touchCartSQL = `UPDATE carts SET updated_at = now() WHERE id = $1`

// AddItem appends an item to a cart and refreshes the cart timestamp.
func (r *CartRepository) AddItem(ctx context.Context, cartID string, item cart.Item) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, addCartItemSQL,
		item.ID, cartID, item.ProductSlug, item.ProductName, item.Variant, item.Quantity, item.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("adding item to cart %q: %w", cartID, err)
	}
	if _, err := tx.Exec(ctx, touchCartSQL, cartID); err != nil {
		return fmt.Errorf("touching cart %q: %w", cartID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

const removeCartItemSQL = `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`

// RemoveItem deletes a single item from a cart.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, itemID string) error {
	_, err := r.pool.Exec(ctx, removeCartItemSQL, itemID, cartID)
	if err != nil {
		return fmt.Errorf("removing item %q from cart %q: %w", itemID, cartID, err)
	}
	return nil
}
