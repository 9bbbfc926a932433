package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/rswag/pod-backend/internal/domain/fulfillment"
	"github.com/rswag/pod-backend/internal/domain/order"
	"github.com/rswag/pod-backend/internal/flow"
	"github.com/rswag/pod-backend/internal/mollie"
	"github.com/rswag/pod-backend/internal/pod/prodigi"
)

// RevenueLedger exposes the flow-service balance for the admin dashboard.
type RevenueLedger interface {
	GetStats(ctx context.Context) (*flow.Stats, error)
}

// Quoter fetches provider pricing before an order is placed.
type Quoter interface {
	GetQuote(ctx context.Context, skus []string, copies []int, destinationCountry string) (*prodigi.Quote, error)
}

// AdminRefundOrder refunds an order's payment in full and moves it to
// refunded.
func (h *Handler) AdminRefundOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	o, err := h.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(ctx).Error("Failed to get order", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to get order")
		return
	}
	if !o.Status.CanTransitionTo(order.StatusRefunded) {
		respondError(w, r, http.StatusConflict, "order cannot be refunded from status "+string(o.Status))
		return
	}

	if err := h.payments.CreateRefund(ctx, o.PaymentRef, o.Total, o.Currency); err != nil {
		if errors.Is(err, mollie.ErrDisabled) {
			respondError(w, r, http.StatusServiceUnavailable, "payments are not configured")
			return
		}
		zctx.From(ctx).Error("Refund failed", zap.String("order_id", id), zap.Error(err))
		respondError(w, r, http.StatusBadGateway, "refund failed")
		return
	}

	o, err = h.orderSvc.UpdateStatus(ctx, id, order.StatusRefunded)
	if err != nil {
		// The money moved but the status did not. Surface loudly.
		zctx.From(ctx).Error("Refund succeeded but status update failed",
			zap.String("order_id", id), zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "refund issued but status update failed")
		return
	}
	respondJSON(w, r, http.StatusOK, newOrderResponse(o))
}

// AdminRevenueStats proxies the flow-service balance.
func (h *Handler) AdminRevenueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.GetStats(r.Context())
	if err != nil {
		if errors.Is(err, flow.ErrDisabled) {
			respondError(w, r, http.StatusServiceUnavailable, "revenue routing is not configured")
			return
		}
		zctx.From(r.Context()).Error("Failed to fetch revenue stats", zap.Error(err))
		respondError(w, r, http.StatusBadGateway, "stats fetch failed")
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{
		"balance":   stats.Balance.StringFixed(2),
		"threshold": stats.Threshold.StringFixed(2),
	})
}

// AdminQuote fetches fulfillment pricing for a set of SKUs, for example
// ?skus=GLOBAL-STI-3X4,GLOBAL-MUG-11OZ&copies=2,1&country=DE.
func (h *Handler) AdminQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	country := q.Get("country")
	skus := splitCSV(q.Get("skus"))
	if country == "" || len(skus) == 0 {
		respondError(w, r, http.StatusBadRequest, "skus and country required")
		return
	}

	rawCopies := splitCSV(q.Get("copies"))
	copies := make([]int, len(skus))
	for i := range skus {
		copies[i] = 1
		if i < len(rawCopies) {
			n, err := strconv.Atoi(rawCopies[i])
			if err != nil || n < 1 {
				respondError(w, r, http.StatusBadRequest, "copies must be positive integers")
				return
			}
			copies[i] = n
		}
	}

	quote, err := h.quotes.GetQuote(r.Context(), skus, copies, country)
	if err != nil {
		if errors.Is(err, fulfillment.ErrProviderDisabled) {
			respondError(w, r, http.StatusServiceUnavailable, "provider is not configured")
			return
		}
		zctx.From(r.Context()).Error("Quote failed", zap.Error(err))
		respondError(w, r, http.StatusBadGateway, "quote failed")
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{
		"shipment_method": quote.ShipmentMethod,
		"total_cost":      quote.TotalCost.StringFixed(2),
	})
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
