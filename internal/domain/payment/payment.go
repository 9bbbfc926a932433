// Package payment defines the canonical, provider-agnostic payment
// confirmation value that drives order materialization.
package payment

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Normalization sentinels. These mark inbound payment events that must not
// trigger materialization; callers log them and acknowledge the webhook.
var (
	// ErrPaymentOpen is returned for events that have not reached a final
	// "paid" state yet (open, pending, authorized).
	ErrPaymentOpen = errors.New("payment not yet paid")
	// ErrPaymentTerminal is returned for failed, canceled, or expired
	// payments. Terminal non-paid states never produce an order.
	ErrPaymentTerminal = errors.New("payment terminally not paid")
	// ErrNoCartReference is returned when a paid event carries no reachable
	// cart reference in its metadata.
	ErrNoCartReference = errors.New("payment metadata has no cart reference")
)

// MetadataCartKey is the metadata key carrying the cart reference set at
// checkout time.
const MetadataCartKey = "cart_id"

// Address holds the shipping destination captured by the payment provider.
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Empty reports whether the address lacks the fields required to ship a
// physical package.
func (a Address) Empty() bool {
	return a.Line1 == "" || a.City == "" || a.Country == ""
}

// Confirmation is the canonical result of normalizing a provider payment
// event. It is constructed once per inbound event and never persisted; it is
// the sole input to order materialization.
type Confirmation struct {
	// Provider names the payment provider the event came from.
	Provider string
	// Reference is the provider's payment identifier. Together with
	// Provider it forms the order idempotency key.
	Reference string

	Amount   decimal.Decimal
	Currency string
	Method   string

	// Metadata is the opaque map attached at payment creation. It must
	// contain MetadataCartKey for the confirmation to be actionable.
	Metadata map[string]string

	Email    string
	Shipping Address
}

// CartID returns the cart reference from the confirmation metadata, or
// ErrNoCartReference when it is absent.
func (c *Confirmation) CartID() (string, error) {
	id, ok := c.Metadata[MetadataCartKey]
	if !ok || id == "" {
		return "", ErrNoCartReference
	}
	return id, nil
}
