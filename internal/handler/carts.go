package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rswag/pod-backend/internal/catalog"
	"github.com/rswag/pod-backend/internal/domain/cart"
)

type cartItemResponse struct {
	ID          string `json:"id"`
	ProductSlug string `json:"product_slug"`
	ProductName string `json:"product_name"`
	Variant     string `json:"variant,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type cartResponse struct {
	ID        string             `json:"id"`
	Items     []cartItemResponse `json:"items"`
	Subtotal  string             `json:"subtotal"`
	ExpiresAt time.Time          `json:"expires_at"`
}

func newCartResponse(c *cart.Cart) cartResponse {
	resp := cartResponse{
		ID:        c.ID,
		Items:     make([]cartItemResponse, 0, len(c.Items)),
		Subtotal:  c.Subtotal().StringFixed(2),
		ExpiresAt: c.ExpiresAt,
	}
	for _, it := range c.Items {
		resp.Items = append(resp.Items, cartItemResponse{
			ID:          it.ID,
			ProductSlug: it.ProductSlug,
			ProductName: it.ProductName,
			Variant:     it.Variant,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice.StringFixed(2),
		})
	}
	return resp
}

// CreateCart opens a fresh empty cart.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	c := &cart.Cart{
		ID:        uuid.NewString(),
		ExpiresAt: time.Now().Add(cart.DefaultTTL),
	}
	if err := h.carts.Create(r.Context(), c); err != nil {
		zctx.From(r.Context()).Error("Failed to create cart", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to create cart")
		return
	}
	respondJSON(w, r, http.StatusCreated, newCartResponse(c))
}

// GetCart returns a cart with its items.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "cart not found")
			return
		}
		zctx.From(r.Context()).Error("Failed to get cart", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to get cart")
		return
	}
	respondJSON(w, r, http.StatusOK, newCartResponse(c))
}

type addCartItemRequest struct {
	ProductSlug string `json:"product_slug"`
	Variant     string `json:"variant"`
	Quantity    int    `json:"quantity"`
}

// AddCartItem adds a catalog product to a cart. Name and price come from the
// catalog, never from the request.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cartID := r.PathValue("id")

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed payload")
		return
	}
	if req.ProductSlug == "" || req.Quantity < 1 {
		respondError(w, r, http.StatusBadRequest, "product_slug and positive quantity required")
		return
	}

	c, err := h.carts.GetByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "cart not found")
			return
		}
		zctx.From(ctx).Error("Failed to get cart", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to get cart")
		return
	}

	d, err := h.designs.Get(ctx, req.ProductSlug)
	if err != nil {
		if errors.Is(err, catalog.ErrDesignNotFound) {
			respondError(w, r, http.StatusNotFound, "product not found")
			return
		}
		zctx.From(ctx).Error("Failed to load design", zap.String("slug", req.ProductSlug), zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to load product")
		return
	}
	price, err := d.UnitPrice()
	if err != nil {
		zctx.From(ctx).Error("Unpriced design requested", zap.String("slug", req.ProductSlug), zap.Error(err))
		respondError(w, r, http.StatusConflict, "product is not sellable")
		return
	}

	item := cart.Item{
		ID:          uuid.NewString(),
		ProductSlug: d.Slug,
		ProductName: d.Name,
		Variant:     req.Variant,
		Quantity:    req.Quantity,
		UnitPrice:   price,
	}
	if err := h.carts.AddItem(ctx, c.ID, item); err != nil {
		zctx.From(ctx).Error("Failed to add cart item", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to add item")
		return
	}

	c.Items = append(c.Items, item)
	respondJSON(w, r, http.StatusCreated, newCartResponse(c))
}

// RemoveCartItem deletes one item from a cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.RemoveItem(r.Context(), r.PathValue("id"), r.PathValue("itemID")); err != nil {
		zctx.From(r.Context()).Error("Failed to remove cart item", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "failed to remove item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
