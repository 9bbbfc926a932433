// Package revenue forwards a configured fraction of each order total to an
// external revenue ledger. Routing is advisory: it never blocks or rolls
// back order creation or fulfillment.
package revenue

import (
	"context"
	"fmt"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rswag/pod-backend/internal/domain/order"
)

// Ledger is the external deposit endpoint. Implemented by the flow-service
// client.
type Ledger interface {
	// Deposit forwards an amount with the order id and a human-readable
	// note for traceability.
	Deposit(ctx context.Context, amount decimal.Decimal, currency, orderID, note string) error
}

// Router computes the margin split for an order and deposits it.
type Router struct {
	ledger Ledger
	// split is the fraction of the order total routed to the ledger,
	// in [0, 1].
	split decimal.Decimal
}

// NewRouter creates a Router with the given split fraction.
func NewRouter(ledger Ledger, split decimal.Decimal) *Router {
	return &Router{ledger: ledger, split: split}
}

// Route deposits total * split, rounded to 2 decimal places. Non-positive
// splits or amounts are no-ops. Deposit failures are logged and swallowed.
func (r *Router) Route(ctx context.Context, o *order.Order) {
	if r.split.LessThanOrEqual(decimal.Zero) {
		return
	}

	amount := o.Total.Mul(r.split).Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return
	}

	lg := zctx.From(ctx)
	note := fmt.Sprintf("swag order %s margin split", o.ID)
	if err := r.ledger.Deposit(ctx, amount, o.Currency, o.ID, note); err != nil {
		lg.Error("Revenue deposit failed",
			zap.String("order_id", o.ID),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err),
		)
		return
	}

	lg.Info("Revenue routed",
		zap.String("order_id", o.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("currency", o.Currency),
	)
}
