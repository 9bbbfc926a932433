package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/rswag/pod-backend/internal/domain/order"
)

type orderItemResponse struct {
	ID          string `json:"id"`
	ProductSlug string `json:"product_slug"`
	ProductName string `json:"product_name"`
	Variant     string `json:"variant,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`

	FulfillmentStatus string `json:"fulfillment_status"`
	TrackingNumber    string `json:"tracking_number,omitempty"`
	TrackingURL       string `json:"tracking_url,omitempty"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	Status       string              `json:"status"`
	Subtotal     string              `json:"subtotal"`
	ShippingCost string              `json:"shipping_cost"`
	Total        string              `json:"total"`
	Currency     string              `json:"currency"`
	Items        []orderItemResponse `json:"items"`
	CreatedAt    time.Time           `json:"created_at"`
	PaidAt       *time.Time          `json:"paid_at,omitempty"`
	ShippedAt    *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt  *time.Time          `json:"delivered_at,omitempty"`
}

func newOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		Status:       string(o.Status),
		Subtotal:     o.Subtotal.StringFixed(2),
		ShippingCost: o.ShippingCost.StringFixed(2),
		Total:        o.Total.StringFixed(2),
		Currency:     o.Currency,
		Items:        make([]orderItemResponse, 0, len(o.Items)),
		CreatedAt:    o.CreatedAt,
		PaidAt:       o.PaidAt,
		ShippedAt:    o.ShippedAt,
		DeliveredAt:  o.DeliveredAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:                it.ID,
			ProductSlug:       it.ProductSlug,
			ProductName:       it.ProductName,
			Variant:           it.Variant,
			Quantity:          it.Quantity,
			UnitPrice:         it.UnitPrice.StringFixed(2),
			FulfillmentStatus: it.Fulfillment.Status,
			TrackingNumber:    it.Fulfillment.TrackingNumber,
			TrackingURL:       it.Fulfillment.TrackingURL,
		})
	}
	return resp
}

// GetOrder is the customer-facing order lookup. The email query parameter
// must match the order's shipping email; there is no customer login.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, r, http.StatusBadRequest, "email query parameter required")
		return
	}

	o, err := h.orders.GetByIDAndEmail(r.Context(), r.PathValue("id"), email)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(r.Context()).Error("Failed to get order", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to get order")
		return
	}
	respondJSON(w, r, http.StatusOK, newOrderResponse(o))
}

// AdminListOrders lists orders, optionally filtered by status.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := order.ListFilter{Status: order.Status(q.Get("status"))}
	if f.Status != "" && !f.Status.Valid() {
		respondError(w, r, http.StatusBadRequest, "unknown status")
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		f.Offset = n
	}

	list, err := h.orders.List(r.Context(), f)
	if err != nil {
		zctx.From(r.Context()).Error("Failed to list orders", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to list orders")
		return
	}

	resp := make([]orderResponse, 0, len(list))
	for _, o := range list {
		resp = append(resp, newOrderResponse(o))
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"orders": resp})
}

// AdminGetOrder returns a single order by id.
func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(r.Context()).Error("Failed to get order", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to get order")
		return
	}
	respondJSON(w, r, http.StatusOK, newOrderResponse(o))
}

type setStatusRequest struct {
	Status string `json:"status"`
	// Force bypasses the lifecycle transition guard.
	Force bool `json:"force"`
}

// AdminSetOrderStatus moves an order to a new status. Transitions are
// checked against the lifecycle machine unless force is set.
func (h *Handler) AdminSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed payload")
		return
	}
	next := order.Status(req.Status)
	if !next.Valid() {
		respondError(w, r, http.StatusBadRequest, "unknown status")
		return
	}

	var (
		o   *order.Order
		err error
	)
	if req.Force {
		o, err = h.orderSvc.AdminSetStatus(r.Context(), r.PathValue("id"), next)
	} else {
		o, err = h.orderSvc.UpdateStatus(r.Context(), r.PathValue("id"), next)
	}
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			respondError(w, r, http.StatusNotFound, "order not found")
		case errors.Is(err, order.ErrIllegalTransition):
			respondError(w, r, http.StatusConflict, err.Error())
		default:
			zctx.From(r.Context()).Error("Failed to set order status", zap.Error(err))
			respondError(w, r, http.StatusInternalServerError, "failed to set status")
		}
		return
	}
	respondJSON(w, r, http.StatusOK, newOrderResponse(o))
}

// AdminRedispatch re-runs fulfillment dispatch for an order. Items already
// submitted are skipped, so this is safe to call after a partial failure.
func (h *Handler) AdminRedispatch(w http.ResponseWriter, r *http.Request) {
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

	h.dispatcher.Dispatch(ctx, o)

	o, err = h.orders.GetByID(ctx, id)
	if err != nil {
		zctx.From(ctx).Error("Failed to reload order after dispatch", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "dispatch ran but reload failed")
		return
	}
	respondJSON(w, r, http.StatusOK, newOrderResponse(o))
}
