package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rswag/pod-backend/internal/domain/cart"
	"github.com/rswag/pod-backend/internal/domain/payment"
	"github.com/rswag/pod-backend/internal/mollie"
)

// checkoutCurrency is the only currency the shop sells in.
const checkoutCurrency = "EUR"

type checkoutRequest struct {
	CartID       string          `json:"cart_id"`
	Email        string          `json:"email"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
}

type checkoutResponse struct {
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
}

// CreateCheckoutSession creates a hosted payment for a cart. The payment
// metadata carries the cart id; the payment webhook turns the paid event
// back into an order.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lg := zctx.From(ctx)

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed payload")
		return
	}
	if req.CartID == "" {
		respondError(w, r, http.StatusBadRequest, "cart_id required")
		return
	}
	if req.ShippingCost.IsNegative() {
		respondError(w, r, http.StatusBadRequest, "shipping_cost must not be negative")
		return
	}

	c, err := h.carts.GetByID(ctx, req.CartID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "cart not found")
			return
		}
		lg.Error("Failed to get cart", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to get cart")
		return
	}
	if len(c.Items) == 0 {
		respondError(w, r, http.StatusConflict, "cart is empty")
		return
	}

	total := c.Subtotal().Add(req.ShippingCost).Round(2)

	meta := map[string]string{payment.MetadataCartKey: c.ID}
	if req.Email != "" {
		meta["email"] = req.Email
	}

	p, err := h.payments.CreatePayment(ctx, mollie.CreatePaymentRequest{
		Amount:      mollie.NewAmount(total, checkoutCurrency),
		Description: checkoutDescription(c),
		RedirectURL: h.cfg.StorefrontURL + "/checkout/complete",
		CancelURL:   h.cfg.StorefrontURL + "/checkout/cancelled",
		WebhookURL:  h.cfg.BaseURL + "/webhooks/mollie",
		Metadata:    meta,
	})
	if err != nil {
		if errors.Is(err, mollie.ErrDisabled) {
			respondError(w, r, http.StatusServiceUnavailable, "payments are not configured")
			return
		}
		lg.Error("Failed to create payment", zap.String("cart_id", c.ID), zap.Error(err))
		respondError(w, r, http.StatusBadGateway, "payment creation failed")
		return
	}

	lg.Info("Checkout session created",
		zap.String("cart_id", c.ID),
		zap.String("payment_id", p.ID),
		zap.String("total", total.StringFixed(2)),
	)
	respondJSON(w, r, http.StatusCreated, checkoutResponse{
		PaymentID:   p.ID,
		CheckoutURL: p.CheckoutURL(),
	})
}

// checkoutDescription builds the statement line shown to the customer, a
// comma-joined list of item names truncated to Mollie's limit.
func checkoutDescription(c *cart.Cart) string {
	names := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Quantity > 1 {
			names = append(names, fmt.Sprintf("%s x%d", it.ProductName, it.Quantity))
		} else {
			names = append(names, it.ProductName)
		}
	}
	desc := strings.Join(names, ", ")
	if len(desc) > 255 {
		desc = desc[:252] + "..."
	}
	return desc
}
