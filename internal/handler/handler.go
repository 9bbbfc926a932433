// Package handler exposes the webhook, checkout, cart, and admin HTTP
// endpoints. Handlers are thin adapters: parsing and response mapping live
// here, orchestration lives in the domain services.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/rswag/pod-backend/internal/catalog"
	"github.com/rswag/pod-backend/internal/domain/cart"
	"github.com/rswag/pod-backend/internal/domain/fulfillment"
	"github.com/rswag/pod-backend/internal/domain/order"
	"github.com/rswag/pod-backend/internal/domain/revenue"
	"github.com/rswag/pod-backend/internal/mollie"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// BaseURL is the public base URL of this service, used to build
	// webhook and redirect URLs handed to the payment provider.
	BaseURL string
	// StorefrontURL is where customers land after checkout.
	StorefrontURL string
	// APIKeyPepper is mixed into admin API key hashes.
	APIKeyPepper []byte
}

// DesignCatalog resolves sellable designs for cart item validation and
// pricing.
type DesignCatalog interface {
	Get(ctx context.Context, slug string) (*catalog.Design, error)
}

// Handler carries the dependencies shared by all endpoints.
type Handler struct {
	cfg Config

	carts      cart.Repository
	orders     order.Repository
	orderSvc   *order.Service
	dispatcher *fulfillment.Dispatcher
	revenue    *revenue.Router
	payments   *mollie.Client
	designs    DesignCatalog
	ledger     RevenueLedger
	quotes     Quoter
	apikeys    APIKeyRepository
}

// New constructs a Handler with the required dependencies.
func New(
	cfg Config,
	carts cart.Repository,
	orders order.Repository,
	orderSvc *order.Service,
	dispatcher *fulfillment.Dispatcher,
	rev *revenue.Router,
	payments *mollie.Client,
	designs DesignCatalog,
	ledger RevenueLedger,
	quotes Quoter,
	apikeys APIKeyRepository,
) *Handler {
	return &Handler{
		cfg:        cfg,
		carts:      carts,
		orders:     orders,
		orderSvc:   orderSvc,
		dispatcher: dispatcher,
		revenue:    rev,
		payments:   payments,
		designs:    designs,
		ledger:     ledger,
		quotes:     quotes,
		apikeys:    apikeys,
	}
}

// Routes registers all endpoints on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhooks/mollie", h.MollieWebhook)
	mux.HandleFunc("POST /webhooks/printful", h.PrintfulWebhook)
	mux.HandleFunc("POST /webhooks/prodigi", h.ProdigiWebhook)

	mux.HandleFunc("POST /api/carts", h.CreateCart)
	mux.HandleFunc("GET /api/carts/{id}", h.GetCart)
	mux.HandleFunc("POST /api/carts/{id}/items", h.AddCartItem)
	mux.HandleFunc("DELETE /api/carts/{id}/items/{itemID}", h.RemoveCartItem)

	mux.HandleFunc("POST /api/checkout/session", h.CreateCheckoutSession)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)

	mux.Handle("GET /api/admin/orders", h.requireAPIKey(http.HandlerFunc(h.AdminListOrders)))
	mux.Handle("GET /api/admin/orders/{id}", h.requireAPIKey(http.HandlerFunc(h.AdminGetOrder)))
	mux.Handle("PUT /api/admin/orders/{id}/status", h.requireAPIKey(http.HandlerFunc(h.AdminSetOrderStatus)))
	mux.Handle("POST /api/admin/orders/{id}/dispatch", h.requireAPIKey(http.HandlerFunc(h.AdminRedispatch)))
	mux.Handle("POST /api/admin/orders/{id}/refund", h.requireAPIKey(http.HandlerFunc(h.AdminRefundOrder)))
	mux.Handle("GET /api/admin/revenue", h.requireAPIKey(http.HandlerFunc(h.AdminRevenueStats)))
	mux.Handle("GET /api/admin/quote", h.requireAPIKey(http.HandlerFunc(h.AdminQuote)))

	return mux
}

// errorResponse is the JSON error body shared by all endpoints.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("Failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respondJSON(w, r, status, errorResponse{Code: status, Message: msg})
}
