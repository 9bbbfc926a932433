// Package fulfillment partitions paid order items by print-on-demand
// provider and submits provider sub-orders, isolating failures per provider
// group.
package fulfillment

import (
	"context"

	"github.com/go-faster/errors"
)

// Sentinel errors reported by providers and catalog lookups.
var (
	// ErrVariantNotFound is returned when a provider cannot map a product
	// variant to one of its catalog identifiers.
	ErrVariantNotFound = errors.New("variant not found in provider catalog")
	// ErrProviderDisabled is returned by providers missing credentials.
	ErrProviderDisabled = errors.New("provider not configured")
	// ErrNoFulfillmentConfig is returned when a product has no fulfillment
	// configuration in the catalog.
	ErrNoFulfillmentConfig = errors.New("product has no fulfillment config")
)

// Config is the catalog's fulfillment routing entry for a product: which
// provider prints it and under which provider-native product identifier.
type Config struct {
	// Provider is the provider name, matching Provider.Name.
	Provider string
	// ProductID is the provider-native product identifier: a numeric
	// catalog product id for Printful, a SKU for Prodigi.
	ProductID string
	// Placement is the print placement for image-based providers.
	Placement string
}

// Catalog resolves product fulfillment configuration and public design
// image URLs. Implemented by the design catalog service.
type Catalog interface {
	// GetFulfillmentConfig returns the routing entry for a product slug,
	// or ErrNoFulfillmentConfig.
	GetFulfillmentConfig(ctx context.Context, slug string) (*Config, error)
	// ImageURL returns a publicly fetchable URL for the product's design
	// image. Image-based providers download the asset from this URL.
	ImageURL(slug string) string
}

// Item is a resolved line ready for provider submission.
type Item struct {
	// VariantID is the provider-native identifier resolved from the
	// product and variant (catalog variant id or SKU).
	VariantID string
	Quantity  int
	ImageURL  string
	Placement string
}

// Recipient is the shipping destination in provider-neutral form.
type Recipient struct {
	Name       string
	Email      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Provider is the uniform capability over heterogeneous POD vendor APIs.
// Implementations must report failures as errors; they never panic across
// the dispatch boundary.
type Provider interface {
	// Name returns the provider identifier used in catalog configs and
	// order item fulfillment records.
	Name() string
	// ResolveVariant maps a provider-native product identifier plus a
	// human-readable variant (size, size/color) to the identifier the
	// provider's order API expects. Returns ErrVariantNotFound when no
	// mapping exists.
	ResolveVariant(ctx context.Context, productID, variant string) (string, error)
	// SubmitOrder submits one sub-order and returns the provider's order
	// id.
	SubmitOrder(ctx context.Context, items []Item, rcpt Recipient) (string, error)
	// GetStatus fetches the provider's current status string for a
	// previously submitted order.
	GetStatus(ctx context.Context, providerOrderID string) (string, error)
}
