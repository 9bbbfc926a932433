// Package order holds the durable order model, its lifecycle state machine,
// and the services that materialize orders from payment confirmations and
// reconcile provider fulfillment callbacks into them.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// transitions describes the one-directional lifecycle. Administrative
// overrides bypass this table through Service.AdminSetStatus.
var transitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Item fulfillment states. Order-level delivery is tracked on the order
// itself, not per item.
const (
	ItemStatusPending   = "pending"
	ItemStatusSubmitted = "submitted"
	ItemStatusShipped   = "shipped"
	ItemStatusFulfilled = "fulfilled"
)

// Sentinel errors surfaced by order persistence and services.
var (
	// ErrNotFound is returned when no order matches the lookup.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicatePayment is returned by Repository.Create when an order
	// already exists for the same (payment provider, payment reference).
	ErrDuplicatePayment = errors.New("order already exists for payment reference")
	// ErrEmptyCart marks a benign no-op: the referenced cart has no items,
	// so no order is created.
	ErrEmptyCart = errors.New("cart has no items")
	// ErrIllegalTransition is returned by guarded status updates.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// ShippingAddress is the fulfillment destination captured at payment time.
type ShippingAddress struct {
	Name       string
	Email      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Empty reports whether the address is unusable as a shipping destination.
func (a ShippingAddress) Empty() bool {
	return a.Line1 == "" || a.City == "" || a.Country == ""
}

// Order is the durable record created exactly once per distinct
// (PaymentProvider, PaymentRef) pair.
type Order struct {
	ID         string
	CustomerID string // empty when the order has no linked customer

	PaymentProvider string
	PaymentRef      string

	Status   Status
	Shipping ShippingAddress

	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
	Currency     string

	Items []Item

	CreatedAt   time.Time
	PaidAt      *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
}

// Item is a single order line. Quantity and unit price are captured at
// materialization time and immutable afterwards; the fulfillment fields are
// mutated only by the dispatcher (submission) and the reconciler (callbacks).
type Item struct {
	ID          string
	OrderID     string
	ProductSlug string
	ProductName string
	Variant     string
	Quantity    int
	UnitPrice   decimal.Decimal

	Fulfillment Fulfillment
}

// Fulfillment is the per-item provider sub-record.
type Fulfillment struct {
	Provider       string
	ProviderOrder  string
	Status         string
	TrackingNumber string
	TrackingURL    string
}

// StatusUpdate carries reconciled fulfillment state for all items sharing a
// (provider, provider order id) key.
type StatusUpdate struct {
	Provider       string
	ProviderOrder  string
	Status         string
	TrackingNumber string
	TrackingURL    string
}

// ListFilter narrows List results.
type ListFilter struct {
	Status Status // zero value matches all statuses
	Limit  int
	Offset int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists the order and its items atomically. Returns
	// ErrDuplicatePayment when an order already exists for the same
	// (PaymentProvider, PaymentRef).
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// GetByPaymentRef returns the order materialized from the given
	// payment, or ErrNotFound.
	GetByPaymentRef(ctx context.Context, provider, ref string) (*Order, error)
	// GetByIDAndEmail returns the order only when its shipping email
	// matches; used for unauthenticated customer lookups.
	GetByIDAndEmail(ctx context.Context, id, email string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]*Order, error)
	// SetStatus updates the order status and stamps the matching lifecycle
	// timestamp (shipped_at, delivered_at).
	SetStatus(ctx context.Context, id string, status Status) error
	// MarkItemsSubmitted records a successful provider submission for the
	// given item IDs.
	MarkItemsSubmitted(ctx context.Context, itemIDs []string, provider, providerOrderID string) error
	// UpdateFulfillment applies a reconciled status to every item matching
	// (provider, provider order id) and returns the number of rows updated.
	UpdateFulfillment(ctx context.Context, u StatusUpdate) (int64, error)
}
