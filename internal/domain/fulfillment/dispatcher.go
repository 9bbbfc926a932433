package fulfillment

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rswag/pod-backend/internal/domain/order"
)

// DefaultGroupTimeout bounds a single provider sub-order submission.
const DefaultGroupTimeout = 30 * time.Second

// Dispatcher splits a paid order's items by fulfillment provider and submits
// one sub-order per provider. Dispatch is best-effort: every failure is
// logged and leaves the affected items in the pending state for a later
// externally triggered retry; it never fails the payment handling that
// invoked it.
type Dispatcher struct {
	catalog      Catalog
	orders       order.Repository
	providers    map[string]Provider
	groupTimeout time.Duration
}

// NewDispatcher creates a Dispatcher routing to the given providers.
func NewDispatcher(catalog Catalog, orders order.Repository, providers ...Provider) *Dispatcher {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Dispatcher{
		catalog:      catalog,
		orders:       orders,
		providers:    byName,
		groupTimeout: DefaultGroupTimeout,
	}
}

// group collects the resolved items and their order item ids for one
// provider sub-order.
type group struct {
	provider Provider
	itemIDs  []string
	items    []Item
}

// Dispatch resolves each order item's provider and provider-native
// identifier, partitions items by provider, and submits the groups
// concurrently. A failure in one group never blocks the others. Items whose
// group was submitted are marked "submitted" and the order moves to
// PROCESSING; everything else stays "pending".
func (d *Dispatcher) Dispatch(ctx context.Context, o *order.Order) {
	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))

	if o.Shipping.Empty() {
		lg.Warn("Order has no shipping address, skipping fulfillment dispatch")
		return
	}

	groups := make(map[string]*group)
	for _, item := range o.Items {
		if item.Fulfillment.Status != order.ItemStatusPending {
			continue
		}

		cfg, err := d.catalog.GetFulfillmentConfig(ctx, item.ProductSlug)
		if err != nil {
			lg.Error("No fulfillment config for product, leaving item pending",
				zap.String("product_slug", item.ProductSlug),
				zap.Error(err),
			)
			continue
		}

		p, ok := d.providers[cfg.Provider]
		if !ok {
			lg.Error("Fulfillment provider not configured, leaving item pending",
				zap.String("provider", cfg.Provider),
				zap.String("product_slug", item.ProductSlug),
			)
			continue
		}

		variantID, err := p.ResolveVariant(ctx, cfg.ProductID, item.Variant)
		if err != nil {
			lg.Error("Variant resolution failed, leaving item pending",
				zap.String("provider", cfg.Provider),
				zap.String("product_slug", item.ProductSlug),
				zap.String("variant", item.Variant),
				zap.Error(err),
			)
			continue
		}

		g, ok := groups[cfg.Provider]
		if !ok {
			g = &group{provider: p}
			groups[cfg.Provider] = g
		}
		g.itemIDs = append(g.itemIDs, item.ID)
		g.items = append(g.items, Item{
			VariantID: variantID,
			Quantity:  item.Quantity,
			ImageURL:  d.catalog.ImageURL(item.ProductSlug),
			Placement: cfg.Placement,
		})
	}

	if len(groups) == 0 {
		lg.Warn("No fulfillable items in order")
		return
	}

	rcpt := Recipient{
		Name:       o.Shipping.Name,
		Email:      o.Shipping.Email,
		Line1:      o.Shipping.Line1,
		Line2:      o.Shipping.Line2,
		City:       o.Shipping.City,
		State:      o.Shipping.State,
		PostalCode: o.Shipping.PostalCode,
		Country:    o.Shipping.Country,
	}

	// Submit groups concurrently. Each goroutine swallows its own error so
	// one provider's failure cannot cancel a sibling submission.
	var submitted atomic.Bool
	eg, egCtx := errgroup.WithContext(ctx)
	for name, g := range groups {
		eg.Go(func() error {
			subCtx, cancel := context.WithTimeout(egCtx, d.groupTimeout)
			defer cancel()

			providerOrderID, err := g.provider.SubmitOrder(subCtx, g.items, rcpt)
			if err != nil {
				lg.Error("Provider sub-order submission failed, items stay pending",
					zap.String("provider", name),
					zap.Int("items", len(g.items)),
					zap.Error(err),
				)
				return nil
			}

			if err := d.orders.MarkItemsSubmitted(ctx, g.itemIDs, name, providerOrderID); err != nil {
				// The provider accepted the order but we could not record
				// it; the reconciler will still match future callbacks by
				// provider order id once a retry records the submission.
				lg.Error("Failed to record provider submission",
					zap.String("provider", name),
					zap.String("provider_order_id", providerOrderID),
					zap.Error(err),
				)
				return nil
			}

			submitted.Store(true)
			lg.Info("Provider sub-order submitted",
				zap.String("provider", name),
				zap.String("provider_order_id", providerOrderID),
				zap.Int("items", len(g.items)),
			)
			return nil
		})
	}
	_ = eg.Wait()

	if submitted.Load() && o.Status == order.StatusPaid {
		if err := d.orders.SetStatus(ctx, o.ID, order.StatusProcessing); err != nil {
			lg.Error("Failed to set order processing", zap.Error(err))
		}
	}
}
