package fulfillment

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rswag/pod-backend/internal/domain/order"
)

// --- Mock implementations ---

type mockCatalog struct {
	configs map[string]*Config
}

func (m *mockCatalog) GetFulfillmentConfig(_ context.Context, slug string) (*Config, error) {
	cfg, ok := m.configs[slug]
	if !ok {
		return nil, ErrNoFulfillmentConfig
	}
	return cfg, nil
}

func (m *mockCatalog) ImageURL(slug string) string {
	return "https://cdn.example.com/designs/" + slug + ".png"
}

type submission struct {
	items []Item
	rcpt  Recipient
}

type mockProvider struct {
	name       string
	resolveErr error
	submitErr  error
	orderID    string

	mu          sync.Mutex
	submissions []submission
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) ResolveVariant(_ context.Context, productID, variant string) (string, error) {
	if m.resolveErr != nil {
		return "", m.resolveErr
	}
	return productID + ":" + variant, nil
}

func (m *mockProvider) SubmitOrder(_ context.Context, items []Item, rcpt Recipient) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return "", m.submitErr
	}
	m.submissions = append(m.submissions, submission{items: items, rcpt: rcpt})
	return m.orderID, nil
}

func (m *mockProvider) GetStatus(_ context.Context, _ string) (string, error) {
	return "", nil
}

func (m *mockProvider) submitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submissions)
}

type markCall struct {
	itemIDs         []string
	provider        string
	providerOrderID string
}

type recordingOrderRepo struct {
	order.Repository

	mu       sync.Mutex
	marks    []markCall
	statuses []order.Status
	markErr  error
}

func (m *recordingOrderRepo) MarkItemsSubmitted(_ context.Context, itemIDs []string, provider, providerOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.marks = append(m.marks, markCall{itemIDs: itemIDs, provider: provider, providerOrderID: providerOrderID})
	return nil
}

func (m *recordingOrderRepo) SetStatus(_ context.Context, _ string, status order.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return nil
}

// --- Helpers ---

func shippableOrder(items ...order.Item) *order.Order {
	return &order.Order{
		ID:     "order-1",
		Status: order.StatusPaid,
		Shipping: order.ShippingAddress{
			Name:    "A Buyer",
			Line1:   "Mainstreet 1",
			City:    "Berlin",
			Country: "DE",
		},
		Items: items,
	}
}

func pendingItem(id, slug, variant string) order.Item {
	return order.Item{
		ID:          id,
		ProductSlug: slug,
		Variant:     variant,
		Quantity:    1,
		Fulfillment: order.Fulfillment{Status: order.ItemStatusPending},
	}
}

// --- Tests ---

func TestDispatch_PartitionsByProvider(t *testing.T) {
	cat := &mockCatalog{configs: map[string]*Config{
		"sticker-a": {Provider: "printful", ProductID: "505", Placement: "front"},
		"sticker-b": {Provider: "printful", ProductID: "505", Placement: "front"},
		"mug-a":     {Provider: "prodigi", ProductID: "GLOBAL-MUG-11OZ"},
	}}
	printful := &mockProvider{name: "printful", orderID: "pf-1"}
	prodigi := &mockProvider{name: "prodigi", orderID: "pg-1"}
	repo := &recordingOrderRepo{}

	d := NewDispatcher(cat, repo, printful, prodigi)
	d.Dispatch(context.Background(), shippableOrder(
		pendingItem("i1", "sticker-a", "3x4"),
		pendingItem("i2", "sticker-b", "3x4"),
		pendingItem("i3", "mug-a", ""),
	))

	require.Equal(t, 1, printful.submitCount())
	assert.Len(t, printful.submissions[0].items, 2)
	require.Equal(t, 1, prodigi.submitCount())
	assert.Len(t, prodigi.submissions[0].items, 1)

	require.Len(t, repo.marks, 2)
	assert.Equal(t, []order.Status{order.StatusProcessing}, repo.statuses)
}

func TestDispatch_NoShippingAddress(t *testing.T) {
	printful := &mockProvider{name: "printful", orderID: "pf-1"}
	repo := &recordingOrderRepo{}
	d := NewDispatcher(&mockCatalog{}, repo, printful)

	o := shippableOrder(pendingItem("i1", "sticker-a", "3x4"))
	o.Shipping = order.ShippingAddress{}
	d.Dispatch(context.Background(), o)

	assert.Zero(t, printful.submitCount())
	assert.Empty(t, repo.marks)
	assert.Empty(t, repo.statuses)
}

func TestDispatch_SkipsNonPendingItems(t *testing.T) {
	cat := &mockCatalog{configs: map[string]*Config{
		"sticker-a": {Provider: "printful", ProductID: "505"},
	}}
	printful := &mockProvider{name: "printful", orderID: "pf-1"}
	repo := &recordingOrderRepo{}
	d := NewDispatcher(cat, repo, printful)

	done := pendingItem("i1", "sticker-a", "3x4")
	done.Fulfillment.Status = order.ItemStatusSubmitted
	d.Dispatch(context.Background(), shippableOrder(done))

	assert.Zero(t, printful.submitCount())
	assert.Empty(t, repo.statuses)
}

func TestDispatch_OneProviderFailureIsolated(t *testing.T) {
	cat := &mockCatalog{configs: map[string]*Config{
		"sticker-a": {Provider: "printful", ProductID: "505"},
		"mug-a":     {Provider: "prodigi", ProductID: "GLOBAL-MUG-11OZ"},
	}}
	printful := &mockProvider{name: "printful", submitErr: errors.New("api down")}
	prodigi := &mockProvider{name: "prodigi", orderID: "pg-1"}
	repo := &recordingOrderRepo{}

	d := NewDispatcher(cat, repo, printful, prodigi)
	d.Dispatch(context.Background(), shippableOrder(
		pendingItem("i1", "sticker-a", "3x4"),
		pendingItem("i2", "mug-a", ""),
	))

	// The prodigi group still lands even though printful failed.
	require.Len(t, repo.marks, 1)
	assert.Equal(t, "prodigi", repo.marks[0].provider)
	assert.Equal(t, "pg-1", repo.marks[0].providerOrderID)
	assert.Equal(t, []string{"i2"}, repo.marks[0].itemIDs)

	// A partial submission still moves the order forward.
	assert.Equal(t, []order.Status{order.StatusProcessing}, repo.statuses)
}

func TestDispatch_AllProvidersFail(t *testing.T) {
	cat := &mockCatalog{configs: map[string]*Config{
		"sticker-a": {Provider: "printful", ProductID: "505"},
	}}
	printful := &mockProvider{name: "printful", submitErr: errors.New("api down")}
	repo := &recordingOrderRepo{}

	d := NewDispatcher(cat, repo, printful)
	d.Dispatch(context.Background(), shippableOrder(pendingItem("i1", "sticker-a", "3x4")))

	assert.Empty(t, repo.marks)
	assert.Empty(t, repo.statuses)
}

func TestDispatch_MissingConfigLeavesItemPending(t *testing.T) {
	cat := &mockCatalog{configs: map[string]*Config{
		"mug-a": {Provider: "prodigi", ProductID: "GLOBAL-MUG-11OZ"},
	}}
	prodigi := &mockProvider{name: "prodigi", orderID: "pg-1"}
	repo := &recordingOrderRepo{}

	d := NewDispatcher(cat, repo, prodigi)
	d.Dispatch(context.Background(), shippableOrder(
		pendingItem("i1", "unconfigured", "M"),
		pendingItem("i2", "mug-a", ""),
	))

	require.Len(t, repo.marks, 1)
	assert.Equal(t, []string{"i2"}, repo.marks[0].itemIDs)
}

func TestDispatch_VariantResolutionFailureLeavesItemPending(t *testing.T) {
	cat := &mockCatalog{configs: map[string]*Config{
		"tee-a": {Provider: "printful", ProductID: "71"},
	}}
	printful := &mockProvider{name: "printful", resolveErr: ErrVariantNotFound}
	repo := &recordingOrderRepo{}

	d := NewDispatcher(cat, repo, printful)
	d.Dispatch(context.Background(), shippableOrder(pendingItem("i1", "tee-a", "XXXL/Chartreuse")))

	assert.Zero(t, printful.submitCount())
	assert.Empty(t, repo.marks)
}

func TestDispatch_UnknownProviderLeavesItemPending(t *testing.T) {
	cat := &mockCatalog{configs: map[string]*Config{
		"poster-a": {Provider: "gelato", ProductID: "p-1"},
	}}
	repo := &recordingOrderRepo{}

	d := NewDispatcher(cat, repo, &mockProvider{name: "printful"})
	d.Dispatch(context.Background(), shippableOrder(pendingItem("i1", "poster-a", "")))

	assert.Empty(t, repo.marks)
}

func TestDispatch_MarkFailureSkipsStatusChange(t *testing.T) {
	cat := &mockCatalog{configs: map[string]*Config{
		"sticker-a": {Provider: "printful", ProductID: "505"},
	}}
	printful := &mockProvider{name: "printful", orderID: "pf-1"}
	repo := &recordingOrderRepo{markErr: errors.New("db down")}

	d := NewDispatcher(cat, repo, printful)
	d.Dispatch(context.Background(), shippableOrder(pendingItem("i1", "sticker-a", "3x4")))

	assert.Equal(t, 1, printful.submitCount())
	assert.Empty(t, repo.statuses)
}
