// Package cart defines the ephemeral pre-order container consumed by
// checkout and order materialization.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a cart does not exist or has expired.
var ErrNotFound = errors.New("cart not found")

// DefaultTTL is how long a cart stays usable after its last update.
const DefaultTTL = 7 * 24 * time.Hour

// Cart is a customer's shopping cart. It is consumed, never converted in
// place: a successful payment builds a fresh order from its contents.
type Cart struct {
	ID         string
	CustomerID string
	Items      []Item
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  time.Time
}

// Subtotal returns the sum of item prices times quantities.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Item is a single cart line.
type Item struct {
	ID          string
	ProductSlug string
	ProductName string
	Variant     string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Repository defines persistence operations for carts.
type Repository interface {
	Create(ctx context.Context, c *Cart) error
	// GetByID returns the cart with its items, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Cart, error)
	AddItem(ctx context.Context, cartID string, item Item) error
	RemoveItem(ctx context.Context, cartID, itemID string) error
}
