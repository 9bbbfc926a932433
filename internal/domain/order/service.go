package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rswag/pod-backend/internal/domain/cart"
	"github.com/rswag/pod-backend/internal/domain/customer"
	"github.com/rswag/pod-backend/internal/domain/payment"
)

// Service materializes orders from payment confirmations and reconciles
// provider fulfillment callbacks into them.
type Service struct {
	carts     cart.Repository
	customers customer.Repository
	orders    Repository
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	carts cart.Repository,
	customers customer.Repository,
	orders Repository,
) *Service {
	return &Service{
		carts:     carts,
		customers: customers,
		orders:    orders,
	}
}

// Materialize converts a payment confirmation into a persisted order,
// exactly once per (provider, payment reference). Duplicate deliveries of
// the same payment event return the already-created order with created
// false, so callers can skip once-only side effects on redelivery. A
// missing cart reference or an empty cart is a benign no-op signalled by
// the payment.ErrNoCartReference / ErrEmptyCart / cart.ErrNotFound
// sentinels; no order is created and the caller should acknowledge the
// event.
//
// The monetary totals come from the confirmation, not from the cart: the
// amount the gateway actually charged is authoritative.
func (s *Service) Materialize(ctx context.Context, conf *payment.Confirmation) (*Order, bool, error) {
	lg := zctx.From(ctx)

	cartID, err := conf.CartID()
	if err != nil {
		return nil, false, err
	}

	// Fast path for webhook redelivery: the order already exists.
	if existing, err := s.orders.GetByPaymentRef(ctx, conf.Provider, conf.Reference); err == nil {
		lg.Info("Payment already materialized",
			zap.String("order_id", existing.ID),
			zap.String("payment_ref", conf.Reference),
		)
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("check existing order: %w", err)
	}

	c, err := s.carts.GetByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			lg.Warn("Cart referenced by payment not found",
				zap.String("cart_id", cartID),
				zap.String("payment_ref", conf.Reference),
			)
			return nil, false, err
		}
		return nil, false, fmt.Errorf("get cart %q: %w", cartID, err)
	}
	if len(c.Items) == 0 {
		lg.Warn("Cart referenced by payment is empty", zap.String("cart_id", cartID))
		return nil, false, ErrEmptyCart
	}

	customerID := ""
	if conf.Email != "" {
		cust, err := s.customers.GetOrCreateByEmail(ctx, conf.Email)
		if err != nil {
			return nil, false, fmt.Errorf("get or create customer: %w", err)
		}
		customerID = cust.ID
	}

	o := &Order{
		ID:              uuid.New().String(),
		CustomerID:      customerID,
		PaymentProvider: conf.Provider,
		PaymentRef:      conf.Reference,
		Status:          StatusPaid,
		Shipping: ShippingAddress{
			Name:       conf.Shipping.Name,
			Email:      conf.Email,
			Line1:      conf.Shipping.Line1,
			Line2:      conf.Shipping.Line2,
			City:       conf.Shipping.City,
			State:      conf.Shipping.State,
			PostalCode: conf.Shipping.PostalCode,
			Country:    conf.Shipping.Country,
		},
		Subtotal: c.Subtotal().Round(2),
		Total:    conf.Amount.Round(2),
		Currency: conf.Currency,
	}
	// Shipping is whatever the gateway charged on top of the cart subtotal.
	o.ShippingCost = o.Total.Sub(o.Subtotal)
	if o.ShippingCost.IsNegative() {
		o.ShippingCost = decimal.Zero
	}

	o.Items = make([]Item, len(c.Items))
	for i, ci := range c.Items {
		o.Items[i] = Item{
			ID:          uuid.New().String(),
			OrderID:     o.ID,
			ProductSlug: ci.ProductSlug,
			ProductName: ci.ProductName,
			Variant:     ci.Variant,
			Quantity:    ci.Quantity,
			UnitPrice:   ci.UnitPrice,
			Fulfillment: Fulfillment{Status: ItemStatusPending},
		}
	}

	if err := s.orders.Create(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			// A concurrent delivery won the race; return its order.
			existing, getErr := s.orders.GetByPaymentRef(ctx, conf.Provider, conf.Reference)
			if getErr != nil {
				return nil, false, fmt.Errorf("get order after duplicate payment: %w", getErr)
			}
			lg.Info("Concurrent materialization detected, returning existing order",
				zap.String("order_id", existing.ID),
			)
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create order: %w", err)
	}

	lg.Info("Order materialized",
		zap.String("order_id", o.ID),
		zap.String("payment_ref", conf.Reference),
		zap.String("total", o.Total.StringFixed(2)),
		zap.Int("items", len(o.Items)),
	)
	return o, true, nil
}

// Reconcile applies an asynchronous provider status callback to every order
// item matching (provider, providerOrderID). A callback that matches no
// items is a silent no-op: providers retry on non-2xx responses, and a miss
// (stale retry, not-yet-submitted items) must not trigger a retry storm.
func (s *Service) Reconcile(ctx context.Context, u StatusUpdate) error {
	rows, err := s.orders.UpdateFulfillment(ctx, u)
	if err != nil {
		return fmt.Errorf("update fulfillment %s/%s: %w", u.Provider, u.ProviderOrder, err)
	}

	lg := zctx.From(ctx)
	if rows == 0 {
		lg.Debug("Fulfillment callback matched no items",
			zap.String("provider", u.Provider),
			zap.String("provider_order_id", u.ProviderOrder),
		)
		return nil
	}

	lg.Info("Fulfillment status reconciled",
		zap.String("provider", u.Provider),
		zap.String("provider_order_id", u.ProviderOrder),
		zap.String("status", u.Status),
		zap.Int64("items", rows),
	)
	return nil
}

// UpdateStatus moves an order along the lifecycle state machine, rejecting
// transitions the machine does not allow.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, errors.Wrapf(ErrIllegalTransition, "%s -> %s", o.Status, next)
	}
	if err := s.orders.SetStatus(ctx, id, next); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	return s.orders.GetByID(ctx, id)
}

// AdminSetStatus sets an order status directly, bypassing the transition
// guard. This is the manual-correction escape hatch; every use is logged.
func (s *Service) AdminSetStatus(ctx context.Context, id string, next Status) (*Order, error) {
	if !next.Valid() {
		return nil, errors.Errorf("unknown status %q", next)
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Warn("Admin status override",
		zap.String("order_id", id),
		zap.String("from", string(o.Status)),
		zap.String("to", string(next)),
	)
	if err := s.orders.SetStatus(ctx, id, next); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	return s.orders.GetByID(ctx, id)
}
