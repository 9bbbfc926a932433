package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rswag/pod-backend/internal/domain/cart"
	"github.com/rswag/pod-backend/internal/domain/customer"
	"github.com/rswag/pod-backend/internal/domain/payment"
)

// --- Mock implementations ---

type mockCartRepo struct {
	byID map[string]*cart.Cart
	err  error
}

func (m *mockCartRepo) Create(_ context.Context, _ *cart.Cart) error { return nil }

func (m *mockCartRepo) GetByID(_ context.Context, id string) (*cart.Cart, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.byID[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return c, nil
}

func (m *mockCartRepo) AddItem(_ context.Context, _ string, _ cart.Item) error { return nil }

func (m *mockCartRepo) RemoveItem(_ context.Context, _, _ string) error { return nil }

type mockCustomerRepo struct {
	created []string
	err     error
}

func (m *mockCustomerRepo) GetOrCreateByEmail(_ context.Context, email string) (*customer.Customer, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = append(m.created, email)
	return &customer.Customer{ID: "cust-" + email, Email: email}, nil
}

type mockOrderRepo struct {
	byPaymentRef map[string]*Order
	byID         map[string]*Order

	created       *Order
	createErr     error
	statusUpdates []Status
	fulfillRows   int64
	fulfillErr    error
	lastUpdate    StatusUpdate
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{
		byPaymentRef: make(map[string]*Order),
		byID:         make(map[string]*Order),
	}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = o
	m.byID[o.ID] = o
	m.byPaymentRef[o.PaymentProvider+"/"+o.PaymentRef] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) GetByPaymentRef(_ context.Context, provider, ref string) (*Order, error) {
	o, ok := m.byPaymentRef[provider+"/"+ref]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) GetByIDAndEmail(_ context.Context, id, _ string) (*Order, error) {
	return m.GetByID(context.Background(), id)
}

func (m *mockOrderRepo) List(_ context.Context, _ ListFilter) ([]*Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) SetStatus(_ context.Context, id string, status Status) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	m.statusUpdates = append(m.statusUpdates, status)
	return nil
}

func (m *mockOrderRepo) MarkItemsSubmitted(_ context.Context, _ []string, _, _ string) error {
	return nil
}

func (m *mockOrderRepo) UpdateFulfillment(_ context.Context, u StatusUpdate) (int64, error) {
	m.lastUpdate = u
	return m.fulfillRows, m.fulfillErr
}

// --- Helpers ---

func newConfirmation(cartID string) *payment.Confirmation {
	return &payment.Confirmation{
		Provider:  "mollie",
		Reference: "tr_abc123",
		Amount:    decimal.RequireFromString("7.00"),
		Currency:  "EUR",
		Metadata:  map[string]string{payment.MetadataCartKey: cartID},
		Email:     "buyer@example.com",
		Shipping: payment.Address{
			Name:    "A Buyer",
			Line1:   "Mainstreet 1",
			City:    "Berlin",
			Country: "DE",
		},
	}
}

func newCartRepo(carts ...*cart.Cart) *mockCartRepo {
	byID := make(map[string]*cart.Cart, len(carts))
	for _, c := range carts {
		byID[c.ID] = c
	}
	return &mockCartRepo{byID: byID}
}

func stickerCart(id string) *cart.Cart {
	return &cart.Cart{
		ID: id,
		Items: []cart.Item{{
			ID:          "item-1",
			ProductSlug: "sticker-a",
			ProductName: "Sticker A",
			Variant:     "3x4",
			Quantity:    2,
			UnitPrice:   decimal.RequireFromString("3.50"),
		}},
	}
}

// --- Tests ---

func TestMaterialize_CreatesPaidOrder(t *testing.T) {
	orders := newMockOrderRepo()
	customers := &mockCustomerRepo{}
	svc := NewService(newCartRepo(stickerCart("cart-1")), customers, orders)

	o, created, err := svc.Materialize(context.Background(), newConfirmation("cart-1"))
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, "mollie", o.PaymentProvider)
	assert.Equal(t, "tr_abc123", o.PaymentRef)
	assert.True(t, decimal.RequireFromString("7.00").Equal(o.Total))
	assert.True(t, decimal.RequireFromString("7.00").Equal(o.Subtotal))
	assert.True(t, decimal.Zero.Equal(o.ShippingCost))
	assert.Equal(t, "cust-buyer@example.com", o.CustomerID)
	assert.Equal(t, []string{"buyer@example.com"}, customers.created)

	require.Len(t, o.Items, 1)
	assert.Equal(t, "sticker-a", o.Items[0].ProductSlug)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, ItemStatusPending, o.Items[0].Fulfillment.Status)
	assert.Equal(t, o.ID, o.Items[0].OrderID)
}

func TestMaterialize_ShippingCostIsChargedOverSubtotal(t *testing.T) {
	orders := newMockOrderRepo()
	svc := NewService(newCartRepo(stickerCart("cart-1")), &mockCustomerRepo{}, orders)

	conf := newConfirmation("cart-1")
	conf.Amount = decimal.RequireFromString("11.50")

	o, _, err := svc.Materialize(context.Background(), conf)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("4.50").Equal(o.ShippingCost))
}

func TestMaterialize_UnderchargeFloorsShippingAtZero(t *testing.T) {
	orders := newMockOrderRepo()
	svc := NewService(newCartRepo(stickerCart("cart-1")), &mockCustomerRepo{}, orders)

	conf := newConfirmation("cart-1")
	conf.Amount = decimal.RequireFromString("5.00")

	o, _, err := svc.Materialize(context.Background(), conf)
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(o.ShippingCost))
	assert.True(t, decimal.RequireFromString("5.00").Equal(o.Total))
}

func TestMaterialize_RedeliveryReturnsExistingOrder(t *testing.T) {
	orders := newMockOrderRepo()
	svc := NewService(newCartRepo(stickerCart("cart-1")), &mockCustomerRepo{}, orders)

	first, created, err := svc.Materialize(context.Background(), newConfirmation("cart-1"))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.Materialize(context.Background(), newConfirmation("cart-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestMaterialize_DuplicateRaceReturnsExistingOrder(t *testing.T) {
	existing := &Order{ID: "winner", PaymentProvider: "mollie", PaymentRef: "tr_abc123"}
	orders := newMockOrderRepo()
	orders.createErr = ErrDuplicatePayment
	svc := NewService(newCartRepo(stickerCart("cart-1")), &mockCustomerRepo{}, orders)

	// The unique constraint fires on Create, after the fast-path lookup
	// missed. Simulate the winner landing in between.
	orders.byPaymentRef["mollie/tr_abc123"] = existing

	o, created, err := svc.Materialize(context.Background(), newConfirmation("cart-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "winner", o.ID)
}

func TestMaterialize_NoCartReference(t *testing.T) {
	svc := NewService(newCartRepo(), &mockCustomerRepo{}, newMockOrderRepo())

	conf := newConfirmation("cart-1")
	conf.Metadata = nil

	_, _, err := svc.Materialize(context.Background(), conf)
	require.ErrorIs(t, err, payment.ErrNoCartReference)
}

func TestMaterialize_CartNotFound(t *testing.T) {
	svc := NewService(newCartRepo(), &mockCustomerRepo{}, newMockOrderRepo())

	_, _, err := svc.Materialize(context.Background(), newConfirmation("missing"))
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestMaterialize_EmptyCart(t *testing.T) {
	empty := &cart.Cart{ID: "cart-empty"}
	svc := NewService(newCartRepo(empty), &mockCustomerRepo{}, newMockOrderRepo())

	_, _, err := svc.Materialize(context.Background(), newConfirmation("cart-empty"))
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestMaterialize_NoEmailSkipsCustomer(t *testing.T) {
	orders := newMockOrderRepo()
	customers := &mockCustomerRepo{}
	svc := NewService(newCartRepo(stickerCart("cart-1")), customers, orders)

	conf := newConfirmation("cart-1")
	conf.Email = ""

	o, _, err := svc.Materialize(context.Background(), conf)
	require.NoError(t, err)
	assert.Empty(t, o.CustomerID)
	assert.Empty(t, customers.created)
}

func TestMaterialize_CreateError(t *testing.T) {
	orders := newMockOrderRepo()
	orders.createErr = errors.New("db write failed")
	svc := NewService(newCartRepo(stickerCart("cart-1")), &mockCustomerRepo{}, orders)

	_, _, err := svc.Materialize(context.Background(), newConfirmation("cart-1"))
	require.Error(t, err)
}

func TestReconcile_AppliesUpdate(t *testing.T) {
	orders := newMockOrderRepo()
	orders.fulfillRows = 2
	svc := NewService(newCartRepo(), &mockCustomerRepo{}, orders)

	err := svc.Reconcile(context.Background(), StatusUpdate{
		Provider:       "printful",
		ProviderOrder:  "98765",
		Status:         ItemStatusShipped,
		TrackingNumber: "TRACK123",
	})
	require.NoError(t, err)
	assert.Equal(t, "printful", orders.lastUpdate.Provider)
	assert.Equal(t, ItemStatusShipped, orders.lastUpdate.Status)
}

func TestReconcile_NoMatchingItemsIsNoOp(t *testing.T) {
	orders := newMockOrderRepo()
	orders.fulfillRows = 0
	svc := NewService(newCartRepo(), &mockCustomerRepo{}, orders)

	err := svc.Reconcile(context.Background(), StatusUpdate{
		Provider:      "prodigi",
		ProviderOrder: "unknown",
		Status:        ItemStatusShipped,
	})
	require.NoError(t, err)
}

func TestUpdateStatus_AllowedTransition(t *testing.T) {
	orders := newMockOrderRepo()
	orders.byID["o1"] = &Order{ID: "o1", Status: StatusPaid}
	svc := NewService(newCartRepo(), &mockCustomerRepo{}, orders)

	o, err := svc.UpdateStatus(context.Background(), "o1", StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, o.Status)
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	orders := newMockOrderRepo()
	orders.byID["o1"] = &Order{ID: "o1", Status: StatusDelivered}
	svc := NewService(newCartRepo(), &mockCustomerRepo{}, orders)

	_, err := svc.UpdateStatus(context.Background(), "o1", StatusPaid)
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Empty(t, orders.statusUpdates)
}

func TestAdminSetStatus_BypassesGuard(t *testing.T) {
	orders := newMockOrderRepo()
	orders.byID["o1"] = &Order{ID: "o1", Status: StatusDelivered}
	svc := NewService(newCartRepo(), &mockCustomerRepo{}, orders)

	o, err := svc.AdminSetStatus(context.Background(), "o1", StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, o.Status)
}

func TestAdminSetStatus_UnknownStatus(t *testing.T) {
	svc := NewService(newCartRepo(), &mockCustomerRepo{}, newMockOrderRepo())

	_, err := svc.AdminSetStatus(context.Background(), "o1", Status("bogus"))
	require.Error(t, err)
}
