package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rswag/pod-backend/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const createOrderSQL = `INSERT INTO orders (
		id, customer_id, payment_provider, payment_ref, status,
		shipping_name, shipping_email, shipping_line1, shipping_line2,
		shipping_city, shipping_state, shipping_postal_code, shipping_country,
		subtotal, shipping_cost, tax, total, currency, paid_at
	) VALUES (
		$1, NULLIF($2, '')::uuid, $3, $4, $5,
		$6, $7, $8, $9, $10, $11, $12, $13,
		$14, $15, $16, $17, $18, now()
	)`

const createOrderItemSQL = `INSERT INTO order_items (
		id, order_id, product_slug, product_name, variant, quantity, unit_price, pod_status
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Create persists the order and its items in one transaction. Returns
// order.ErrDuplicatePayment when an order already exists for the same
// (payment provider, payment reference), so duplicate webhook deliveries
// can be resolved to the original order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, createOrderSQL,
		o.ID, o.CustomerID, o.PaymentProvider, o.PaymentRef, string(o.Status),
		o.Shipping.Name, o.Shipping.Email, o.Shipping.Line1, o.Shipping.Line2,
		o.Shipping.City, o.Shipping.State, o.Shipping.PostalCode, o.Shipping.Country,
		o.Subtotal, o.ShippingCost, o.Tax, o.Total, o.Currency,
	)
	if err != nil {
		if isUniqueViolation(err, "orders_payment_ref_uniq") {
			return order.ErrDuplicatePayment
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, createOrderItemSQL,
			it.ID, o.ID, it.ProductSlug, it.ProductName, it.Variant,
			it.Quantity, it.UnitPrice, it.Fulfillment.Status,
		)
		if err != nil {
			return fmt.Errorf("creating order item %q: %w", it.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

const orderColumns = `id, COALESCE(customer_id::text, ''), payment_provider, payment_ref, status,
	shipping_name, shipping_email, shipping_line1, shipping_line2,
	shipping_city, shipping_state, shipping_postal_code, shipping_country,
	subtotal, shipping_cost, tax, total, currency,
	created_at, paid_at, shipped_at, delivered_at`

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	var status string
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.PaymentProvider, &o.PaymentRef, &status,
		&o.Shipping.Name, &o.Shipping.Email, &o.Shipping.Line1, &o.Shipping.Line2,
		&o.Shipping.City, &o.Shipping.State, &o.Shipping.PostalCode, &o.Shipping.Country,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Total, &o.Currency,
		&o.CreatedAt, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	return &o, nil
}

const getOrderItemsSQL = `SELECT id, order_id, product_slug, product_name, variant, quantity, unit_price,
		pod_provider, pod_order_id, pod_status, pod_tracking_number, pod_tracking_url
	FROM order_items
	WHERE order_id = $1
	ORDER BY created_at`

func (r *OrderRepository) loadItems(ctx context.Context, o *order.Order) error {
	rows, err := r.pool.Query(ctx, getOrderItemsSQL, o.ID)
	if err != nil {
		return fmt.Errorf("getting items for order %q: %w", o.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it order.Item
		err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductSlug, &it.ProductName, &it.Variant,
			&it.Quantity, &it.UnitPrice,
			&it.Fulfillment.Provider, &it.Fulfillment.ProviderOrder, &it.Fulfillment.Status,
			&it.Fulfillment.TrackingNumber, &it.Fulfillment.TrackingURL,
		)
		if err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *OrderRepository) getOne(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetByID returns an order with its items, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByPaymentRef returns the order materialized from the given payment.
func (r *OrderRepository) GetByPaymentRef(ctx context.Context, provider, ref string) (*order.Order, error) {
	return r.getOne(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_provider = $1 AND payment_ref = $2`,
		provider, ref,
	)
}

// GetByIDAndEmail returns the order only when its shipping email matches.
func (r *OrderRepository) GetByIDAndEmail(ctx context.Context, id, email string) (*order.Order, error) {
	return r.getOne(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND shipping_email = $2`,
		id, email,
	)
}

const listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE ($1 = '' OR status = $1)
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3`

// List returns orders newest-first, optionally filtered by status.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]*order.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, listOrdersSQL, string(f.Status), limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading orders: %w", err)
	}

	for _, o := range orders {
		if err := r.loadItems(ctx, o); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

const setStatusSQL = `UPDATE orders SET
		status = $2,
		paid_at = CASE WHEN $2 = 'paid' AND paid_at IS NULL THEN now() ELSE paid_at END,
		shipped_at = CASE WHEN $2 = 'shipped' AND shipped_at IS NULL THEN now() ELSE shipped_at END,
		delivered_at = CASE WHEN $2 = 'delivered' AND delivered_at IS NULL THEN now() ELSE delivered_at END
	WHERE id = $1`

// SetStatus updates the order status and stamps the matching lifecycle
// timestamp on first entry into paid/shipped/delivered.
func (r *OrderRepository) SetStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, setStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("setting status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

const markSubmittedSQL = `UPDATE order_items SET
		pod_provider = $2,
		pod_order_id = $3,
		pod_status = 'submitted'
	WHERE id = ANY($1)`

// MarkItemsSubmitted records a successful provider submission for the given
// item ids.
func (r *OrderRepository) MarkItemsSubmitted(ctx context.Context, itemIDs []string, provider, providerOrderID string) error {
	_, err := r.pool.Exec(ctx, markSubmittedSQL, itemIDs, provider, providerOrderID)
	if err != nil {
		return fmt.Errorf("marking items submitted for %s/%s: %w", provider, providerOrderID, err)
	}
	return nil
}

const updateFulfillmentSQL = `UPDATE order_items SET
		pod_status = $3,
		pod_tracking_number = $4,
		pod_tracking_url = $5
	WHERE pod_provider = $1 AND pod_order_id = $2`

// UpdateFulfillment applies a reconciled status to every item matching
// (provider, provider order id) and returns the number of rows updated.
// Zero matched rows is not an error.
func (r *OrderRepository) UpdateFulfillment(ctx context.Context, u order.StatusUpdate) (int64, error) {
	tag, err := r.pool.Exec(ctx, updateFulfillmentSQL,
		u.Provider, u.ProviderOrder, u.Status, u.TrackingNumber, u.TrackingURL,
	)
	if err != nil {
		return 0, fmt.Errorf("updating fulfillment for %s/%s: %w", u.Provider, u.ProviderOrder, err)
	}
	return tag.RowsAffected(), nil
}
