package prodigi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rswag/pod-backend/internal/domain/fulfillment"
)

func TestResolveVariant_SKUIsTheIdentifier(t *testing.T) {
	c := NewClient("test-key", true)

	sku, err := c.ResolveVariant(context.Background(), "GLOBAL-STI-KIS-4X4", "4x4")
	require.NoError(t, err)
	assert.Equal(t, "GLOBAL-STI-KIS-4X4", sku)

	_, err = c.ResolveVariant(context.Background(), "", "4x4")
	require.ErrorIs(t, err, fulfillment.ErrVariantNotFound)
}

func TestSubmitOrder(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/Orders", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"order":{"id":"ord_12345"}}`))
	}))
	defer srv.Close()
	c := NewClient("test-key", true, WithBaseURL(srv.URL))

	id, err := c.SubmitOrder(context.Background(),
		[]fulfillment.Item{{
			VariantID: "GLOBAL-STI-KIS-4X4",
			Quantity:  2,
			ImageURL:  "https://cdn.example.com/designs/sticker-a.png",
		}},
		fulfillment.Recipient{
			Name:       "A Buyer",
			Line1:      "Mainstreet 1",
			City:       "Berlin",
			PostalCode: "10115",
			Country:    "DE",
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "ord_12345", id)

	assert.Equal(t, defaultShippingMethod, got["shippingMethod"])

	items := got["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "GLOBAL-STI-KIS-4X4", item["sku"])
	assert.Equal(t, float64(2), item["copies"])
	assert.Equal(t, defaultSizing, item["sizing"])

	assets := item["assets"].([]any)
	require.Len(t, assets, 1)
	assert.Equal(t, defaultPrintArea, assets[0].(map[string]any)["printArea"])

	rcpt := got["recipient"].(map[string]any)
	addr := rcpt["address"].(map[string]any)
	assert.Equal(t, "Berlin", addr["townOrCity"])
	assert.Equal(t, "DE", addr["countryCode"])
}

func TestGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Orders/ord_12345", r.URL.Path)
		_, _ = w.Write([]byte(`{"order":{"status":{"stage":"InProgress"}}}`))
	}))
	defer srv.Close()
	c := NewClient("test-key", true, WithBaseURL(srv.URL))

	stage, err := c.GetStatus(context.Background(), "ord_12345")
	require.NoError(t, err)
	assert.Equal(t, "InProgress", stage)
}

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quotes", r.URL.Path)

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "DE", got["destinationCountryCode"])
		assert.Len(t, got["items"], 2)

		_, _ = w.Write([]byte(`{"quotes":[{"shipmentMethod":"Budget","costSummary":{"totalCost":{"amount":"12.40"}}}]}`))
	}))
	defer srv.Close()
	c := NewClient("test-key", true, WithBaseURL(srv.URL))

	q, err := c.GetQuote(context.Background(),
		[]string{"GLOBAL-STI-KIS-4X4", "GLOBAL-MUG-11OZ"}, []int{2, 1}, "DE")
	require.NoError(t, err)
	assert.Equal(t, "Budget", q.ShipmentMethod)
	assert.Equal(t, "12.40", q.TotalCost.StringFixed(2))
}

func TestGetQuote_LengthMismatch(t *testing.T) {
	c := NewClient("test-key", true)

	_, err := c.GetQuote(context.Background(), []string{"A", "B"}, []int{1}, "DE")
	require.Error(t, err)
}

func TestClient_DisabledWithoutKey(t *testing.T) {
	c := NewClient("", true)

	_, err := c.SubmitOrder(context.Background(), nil, fulfillment.Recipient{})
	require.ErrorIs(t, err, fulfillment.ErrProviderDisabled)
}
