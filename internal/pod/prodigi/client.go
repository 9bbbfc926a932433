// Package prodigi implements the fulfillment provider capability against
// the Prodigi v4 Print API.
package prodigi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/rswag/pod-backend/internal/domain/fulfillment"
)

const (
	sandboxBaseURL    = "https://api.sandbox.prodigi.com/v4.0"
	productionBaseURL = "https://api.prodigi.com/v4.0"

	// ProviderName is the provider identifier used in catalog configs.
	ProviderName = "prodigi"

	defaultShippingMethod = "Budget"
	defaultSizing         = "fillPrintArea"
	defaultPrintArea      = "default"
)

// Client calls the Prodigi v4 API and implements fulfillment.Provider.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

var _ fulfillment.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// NewClient creates a Prodigi client. sandbox selects the sandbox endpoint;
// an empty apiKey yields a disabled client whose calls return
// fulfillment.ErrProviderDisabled.
func NewClient(apiKey string, sandbox bool, opts ...Option) *Client {
	base := productionBaseURL
	if sandbox {
		base = sandboxBaseURL
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: base,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements fulfillment.Provider.
func (c *Client) Name() string { return ProviderName }

// ResolveVariant returns the Prodigi SKU for an item. Prodigi SKUs are
// complete product identifiers (e.g. GLOBAL-STI-KIS-4X4), so the catalog's
// product id is already the orderable unit and the variant needs no lookup.
func (c *Client) ResolveVariant(_ context.Context, productID, _ string) (string, error) {
	if productID == "" {
		return "", errors.Wrap(fulfillment.ErrVariantNotFound, "empty prodigi sku")
	}
	return productID, nil
}

type orderItem struct {
	SKU    string  `json:"sku"`
	Copies int     `json:"copies"`
	Sizing string  `json:"sizing"`
	Assets []asset `json:"assets"`
}

type asset struct {
	PrintArea string `json:"printArea"`
	URL       string `json:"url"`
}

// SubmitOrder creates a Prodigi print order and returns its id.
func (c *Client) SubmitOrder(ctx context.Context, items []fulfillment.Item, rcpt fulfillment.Recipient) (string, error) {
	orderItems := make([]orderItem, len(items))
	for i, it := range items {
		area := it.Placement
		if area == "" {
			area = defaultPrintArea
		}
		orderItems[i] = orderItem{
			SKU:    it.VariantID,
			Copies: it.Quantity,
			Sizing: defaultSizing,
			Assets: []asset{{PrintArea: area, URL: it.ImageURL}},
		}
	}

	payload := map[string]any{
		"shippingMethod": defaultShippingMethod,
		"recipient": map[string]any{
			"name":  rcpt.Name,
			"email": rcpt.Email,
			"address": map[string]string{
				"line1":           rcpt.Line1,
				"line2":           rcpt.Line2,
				"townOrCity":      rcpt.City,
				"stateOrCounty":   rcpt.State,
				"postalOrZipCode": rcpt.PostalCode,
				"countryCode":     rcpt.Country,
			},
		},
		"items": orderItems,
	}

	var out struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/Orders", payload, &out); err != nil {
		return "", fmt.Errorf("create prodigi order: %w", err)
	}
	return out.Order.ID, nil
}

// GetStatus fetches the current fulfillment stage of a submitted order.
func (c *Client) GetStatus(ctx context.Context, providerOrderID string) (string, error) {
	var out struct {
		Order struct {
			Status struct {
				Stage string `json:"stage"`
			} `json:"status"`
		} `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/Orders/"+providerOrderID, nil, &out); err != nil {
		return "", fmt.Errorf("get prodigi order %q: %w", providerOrderID, err)
	}
	return out.Order.Status.Stage, nil
}

// Quote is a per-shipment pricing quote.
type Quote struct {
	ShipmentMethod string          `json:"shipmentMethod"`
	TotalCost      decimal.Decimal `json:"-"`
}

// GetQuote fetches pricing for a set of SKUs before ordering.
func (c *Client) GetQuote(ctx context.Context, skus []string, copies []int, destinationCountry string) (*Quote, error) {
	if len(skus) != len(copies) {
		return nil, errors.New("skus and copies length mismatch")
	}
	items := make([]map[string]any, len(skus))
	for i, sku := range skus {
		items[i] = map[string]any{"sku": sku, "copies": copies[i]}
	}
	payload := map[string]any{
		"shippingMethod":         defaultShippingMethod,
		"destinationCountryCode": destinationCountry,
		"items":                  items,
	}

	var out struct {
		Quotes []struct {
			ShipmentMethod string `json:"shipmentMethod"`
			CostSummary    struct {
				TotalCost struct {
					Amount string `json:"amount"`
				} `json:"totalCost"`
			} `json:"costSummary"`
		} `json:"quotes"`
	}
	if err := c.do(ctx, http.MethodPost, "/quotes", payload, &out); err != nil {
		return nil, fmt.Errorf("get prodigi quote: %w", err)
	}
	if len(out.Quotes) == 0 {
		return nil, errors.New("prodigi returned no quotes")
	}

	q := out.Quotes[0]
	total, err := decimal.NewFromString(q.CostSummary.TotalCost.Amount)
	if err != nil {
		return nil, errors.Wrapf(err, "parse quote amount %q", q.CostSummary.TotalCost.Amount)
	}
	return &Quote{ShipmentMethod: q.ShipmentMethod, TotalCost: total}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.apiKey == "" {
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
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return errors.Errorf("prodigi: status %d: %s", resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
