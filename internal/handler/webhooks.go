package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/rswag/pod-backend/internal/domain/cart"
	"github.com/rswag/pod-backend/internal/domain/order"
	"github.com/rswag/pod-backend/internal/domain/payment"
	"github.com/rswag/pod-backend/internal/mollie"
	"github.com/rswag/pod-backend/internal/pod/printful"
	"github.com/rswag/pod-backend/internal/pod/prodigi"
)

// ackResponse is the body webhook callers receive once an event was
// processed. Providers retry on non-2xx, so anything short of a retryable
// internal failure must acknowledge.
var ackResponse = map[string]string{"status": "ok"}

// MollieWebhook handles Mollie payment events. Mollie posts form data
// containing only the payment id; fetching the payment back from the API is
// the authenticity check. A paid event materializes the order and kicks off
// fulfillment dispatch and revenue routing as detached best-effort work.
func (h *Handler) MollieWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lg := zctx.From(ctx)

	if err := r.ParseForm(); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed form body")
		return
	}
	paymentID := r.PostFormValue("id")
	if paymentID == "" {
		respondError(w, r, http.StatusBadRequest, "missing payment id")
		return
	}

	p, err := h.payments.GetPayment(ctx, paymentID)
	if err != nil {
		// Mollie redelivers on non-2xx; a fetch failure is retryable.
		lg.Error("Failed to fetch payment", zap.String("payment_id", paymentID), zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "payment fetch failed")
		return
	}

	conf, err := mollie.Normalize(p)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrPaymentOpen):
			lg.Info("Payment not yet paid", zap.String("payment_id", paymentID), zap.String("payment_status", p.Status))
		case errors.Is(err, payment.ErrPaymentTerminal):
			lg.Info("Payment terminally not paid", zap.String("payment_id", paymentID), zap.String("payment_status", p.Status))
		case errors.Is(err, payment.ErrNoCartReference):
			lg.Warn("Paid event without cart reference", zap.String("payment_id", paymentID))
		default:
			lg.Error("Failed to normalize payment", zap.String("payment_id", paymentID), zap.Error(err))
		}
		respondJSON(w, r, http.StatusOK, ackResponse)
		return
	}

	o, created, err := h.orderSvc.Materialize(ctx, conf)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) || errors.Is(err, order.ErrEmptyCart) {
			// Benign: the event references nothing actionable.
			respondJSON(w, r, http.StatusOK, ackResponse)
			return
		}
		lg.Error("Materialization failed", zap.String("payment_id", paymentID), zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "materialization failed")
		return
	}

	// Side effects are best-effort and must not hold the webhook response:
	// detach from the request's cancellation but keep its values (logger,
	// request id). Revenue is deposited only for a freshly created order;
	// a redelivery must not route the split twice. Dispatch reruns safely
	// because it only touches pending items.
	bgCtx := context.WithoutCancel(ctx)
	if created {
		go h.revenue.Route(bgCtx, o)
	}
	go h.dispatcher.Dispatch(bgCtx, o)

	respondJSON(w, r, http.StatusOK, ackResponse)
}

// printfulEvent is the subset of Printful webhook payloads the reconciler
// needs.
type printfulEvent struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			ID json.Number `json:"id"`
		} `json:"order"`
		Shipment struct {
			TrackingNumber string `json:"tracking_number"`
			TrackingURL    string `json:"tracking_url"`
		} `json:"shipment"`
	} `json:"data"`
}

// PrintfulWebhook reconciles Printful shipment events into order items.
// Unknown event types are acknowledged and ignored.
func (h *Handler) PrintfulWebhook(w http.ResponseWriter, r *http.Request) {
	var ev printfulEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed payload")
		return
	}

	var status string
	switch ev.Type {
	case "package_shipped":
		status = order.ItemStatusShipped
	case "order_fulfilled":
		status = order.ItemStatusFulfilled
	default:
		respondJSON(w, r, http.StatusOK, ackResponse)
		return
	}

	err := h.orderSvc.Reconcile(r.Context(), order.StatusUpdate{
		Provider:       printful.ProviderName,
		ProviderOrder:  ev.Data.Order.ID.String(),
		Status:         status,
		TrackingNumber: ev.Data.Shipment.TrackingNumber,
		TrackingURL:    ev.Data.Shipment.TrackingURL,
	})
	if err != nil {
		zctx.From(r.Context()).Error("Printful reconciliation failed", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "reconciliation failed")
		return
	}
	respondJSON(w, r, http.StatusOK, ackResponse)
}

// prodigiEvent is the subset of Prodigi webhook payloads the reconciler
// needs.
type prodigiEvent struct {
	Event string `json:"event"`
	Order struct {
		ID        string `json:"id"`
		Shipments []struct {
			TrackingNumber string `json:"trackingNumber"`
			TrackingURL    string `json:"trackingUrl"`
		} `json:"shipments"`
	} `json:"order"`
}

// ProdigiWebhook reconciles Prodigi order events into order items.
func (h *Handler) ProdigiWebhook(w http.ResponseWriter, r *http.Request) {
	var ev prodigiEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed payload")
		return
	}

	var status string
	switch ev.Event {
	case "order.shipped":
		status = order.ItemStatusShipped
	case "order.complete":
		status = order.ItemStatusFulfilled
	default:
		respondJSON(w, r, http.StatusOK, ackResponse)
		return
	}

	u := order.StatusUpdate{
		Provider:      prodigi.ProviderName,
		ProviderOrder: ev.Order.ID,
		Status:        status,
	}
	if len(ev.Order.Shipments) > 0 {
		u.TrackingNumber = ev.Order.Shipments[0].TrackingNumber
		u.TrackingURL = ev.Order.Shipments[0].TrackingURL
	}

	if err := h.orderSvc.Reconcile(r.Context(), u); err != nil {
		zctx.From(r.Context()).Error("Prodigi reconciliation failed", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "reconciliation failed")
		return
	}
	respondJSON(w, r, http.StatusOK, ackResponse)
}
