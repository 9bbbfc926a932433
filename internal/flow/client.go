// Package flow implements the client for the payment-infra flow-service,
// the ledger that receives margin deposits after each sale. The flow-service
// handles threshold-based distribution downstream; this client only
// deposits.
package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/rswag/pod-backend/internal/domain/revenue"
)

// ErrDisabled is returned when the flow-service is not configured.
var ErrDisabled = errors.New("flow service not configured")

// source tags deposits with their origin system.
const source = "rswag"

// Client calls the flow-service deposit API and implements revenue.Ledger.
type Client struct {
	baseURL  string
	flowID   string
	funnelID string
	http     *http.Client
}

var _ revenue.Ledger = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a flow-service client. Missing configuration yields a
// disabled client; Enabled reports whether deposits will be attempted.
func NewClient(baseURL, flowID, funnelID string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		flowID:   flowID,
		funnelID: funnelID,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the client has a full flow-service configuration.
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.flowID != "" && c.funnelID != ""
}

// Deposit forwards an amount into the configured funnel, tagged with the
// order id and note for traceability.
func (c *Client) Deposit(ctx context.Context, amount decimal.Decimal, currency, orderID, note string) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	payload := map[string]any{
		"funnelId": c.funnelID,
		"amount":   amount.Round(2),
		"currency": currency,
		"source":   source,
		"metadata": map[string]string{
			"order_id":    orderID,
			"description": note,
		},
	}

	path := fmt.Sprintf("/api/flows/%s/deposit", c.flowID)
	if err := c.post(ctx, path, payload); err != nil {
		return fmt.Errorf("deposit to flow %s: %w", c.flowID, err)
	}
	return nil
}

// Stats is the current state of the configured flow.
type Stats struct {
	Balance   decimal.Decimal `json:"balance"`
	Threshold decimal.Decimal `json:"threshold"`
}

// GetStats fetches the flow's current balance and thresholds.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/flows/"+c.flowID, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("flow service: status %d", resp.StatusCode)
	}

	var s Stats
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	return &s, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return errors.Errorf("flow service: status %d: %s", resp.StatusCode, raw)
	}
	return nil
}
