// Package printful implements the fulfillment provider capability against
// the Printful v2 API.
//
// Rate limit: 120 req/60s (leaky bucket). Catalog variant listings are
// cached for 24h to stay well under it.
package printful

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/rswag/pod-backend/internal/domain/fulfillment"
	"github.com/rswag/pod-backend/pkg/cache"
)

const (
	defaultBaseURL = "https://api.printful.com/v2"

	// ProviderName is the provider identifier used in catalog configs.
	ProviderName = "printful"

	variantCacheTTL  = 24 * time.Hour
	defaultPlacement = "front_large"
	defaultColor     = "Black"
)

// Variant is one entry of a catalog product's variant list.
type Variant struct {
	ID    int    `json:"id"`
	Size  string `json:"size"`
	Color string `json:"color"`
}

// Client calls the Printful v2 API and implements fulfillment.Provider.
type Client struct {
	token   string
	baseURL string
	// sandbox submits orders as drafts so nothing reaches production.
	sandbox bool
	http    *http.Client

	variants *cache.Cache[string, []Variant]
}

var _ fulfillment.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// NewClient creates a Printful client. An empty token yields a disabled
// client whose calls return fulfillment.ErrProviderDisabled.
func NewClient(token string, sandbox bool, opts ...Option) *Client {
	c := &Client{
		token:    token,
		baseURL:  defaultBaseURL,
		sandbox:  sandbox,
		http:     &http.Client{Timeout: 30 * time.Second},
		variants: cache.New[string, []Variant](variantCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements fulfillment.Provider.
func (c *Client) Name() string { return ProviderName }

// CatalogVariants lists the variants of a catalog product, cached for 24h.
func (c *Client) CatalogVariants(ctx context.Context, productID string) ([]Variant, error) {
	if vs, ok := c.variants.Get(productID); ok {
		return vs, nil
	}

	var out struct {
		Data []Variant `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/catalog-products/"+productID+"/catalog-variants", nil, &out); err != nil {
		return nil, fmt.Errorf("list catalog variants for %q: %w", productID, err)
	}

	c.variants.Set(productID, out.Data)
	return out.Data, nil
}

// ResolveVariant maps (catalog product id, human variant) to a numeric
// catalog variant id. The variant string is "size" or "size/color"; the
// color defaults to Black. An exact size+color match is preferred, with a
// fallback to a size-only match when the color is not stocked.
func (c *Client) ResolveVariant(ctx context.Context, productID, variant string) (string, error) {
	size, color := splitVariant(variant)

	vs, err := c.CatalogVariants(ctx, productID)
	if err != nil {
		return "", err
	}

	for _, v := range vs {
		if strings.EqualFold(v.Size, size) &&
			strings.Contains(strings.ToLower(v.Color), strings.ToLower(color)) {
			return strconv.Itoa(v.ID), nil
		}
	}
	for _, v := range vs {
		if strings.EqualFold(v.Size, size) {
			return strconv.Itoa(v.ID), nil
		}
	}

	return "", errors.Wrapf(fulfillment.ErrVariantNotFound, "product %s variant %q", productID, variant)
}

// splitVariant parses "M" or "M/White" into size and color.
func splitVariant(variant string) (size, color string) {
	size, color, found := strings.Cut(variant, "/")
	size = strings.TrimSpace(size)
	color = strings.TrimSpace(color)
	if !found || color == "" {
		color = defaultColor
	}
	return size, color
}

// SubmitOrder creates a fulfillment order. In sandbox mode the order is
// created as a draft and not sent to production.
func (c *Client) SubmitOrder(ctx context.Context, items []fulfillment.Item, rcpt fulfillment.Recipient) (string, error) {
	type layer struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	}
	type placement struct {
		Placement string  `json:"placement"`
		Technique string  `json:"technique"`
		Layers    []layer `json:"layers"`
	}
	type orderItem struct {
		Source           string      `json:"source"`
		CatalogVariantID int         `json:"catalog_variant_id"`
		Quantity         int         `json:"quantity"`
		Placements       []placement `json:"placements"`
	}

	orderItems := make([]orderItem, len(items))
	for i, it := range items {
		variantID, err := strconv.Atoi(it.VariantID)
		if err != nil {
			return "", errors.Wrapf(err, "variant id %q is not numeric", it.VariantID)
		}
		pl := it.Placement
		if pl == "" {
			pl = defaultPlacement
		}
		orderItems[i] = orderItem{
			Source:           "catalog",
			CatalogVariantID: variantID,
			Quantity:         it.Quantity,
			Placements: []placement{{
				Placement: pl,
				Technique: "dtg",
				Layers:    []layer{{Type: "file", URL: it.ImageURL}},
			}},
		}
	}

	payload := map[string]any{
		"recipient": map[string]string{
			"name":         rcpt.Name,
			"email":        rcpt.Email,
			"address1":     rcpt.Line1,
			"address2":     rcpt.Line2,
			"city":         rcpt.City,
			"state_code":   rcpt.State,
			"zip":          rcpt.PostalCode,
			"country_code": rcpt.Country,
		},
		"items": orderItems,
	}
	if c.sandbox {
		payload["draft"] = true
	}

	var out struct {
		Data struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", payload, &out); err != nil {
		return "", fmt.Errorf("create printful order: %w", err)
	}
	return out.Data.ID.String(), nil
}

// GetStatus fetches the current status string of a submitted order.
func (c *Client) GetStatus(ctx context.Context, providerOrderID string) (string, error) {
	var out struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+providerOrderID, nil, &out); err != nil {
		return "", fmt.Errorf("get printful order %q: %w", providerOrderID, err)
	}
	return out.Data.Status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.token == "" {
		return fulfillment.ErrProviderDisabled
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return errors.Errorf("printful: status %d: %s", resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
