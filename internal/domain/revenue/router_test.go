package revenue

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rswag/pod-backend/internal/domain/order"
)

type deposit struct {
	amount   decimal.Decimal
	currency string
	orderID  string
	note     string
}

type mockLedger struct {
	deposits []deposit
	err      error
}

func (m *mockLedger) Deposit(_ context.Context, amount decimal.Decimal, currency, orderID, note string) error {
	if m.err != nil {
		return m.err
	}
	m.deposits = append(m.deposits, deposit{amount: amount, currency: currency, orderID: orderID, note: note})
	return nil
}

func paidOrder(total string) *order.Order {
	return &order.Order{
		ID:       "order-1",
		Status:   order.StatusPaid,
		Total:    decimal.RequireFromString(total),
		Currency: "EUR",
	}
}

func TestRoute_DepositsSplitOfTotal(t *testing.T) {
	ledger := &mockLedger{}
	r := NewRouter(ledger, decimal.RequireFromString("0.5"))

	r.Route(context.Background(), paidOrder("100.00"))

	require.Len(t, ledger.deposits, 1)
	d := ledger.deposits[0]
	assert.True(t, decimal.RequireFromString("50.00").Equal(d.amount))
	assert.Equal(t, "EUR", d.currency)
	assert.Equal(t, "order-1", d.orderID)
	assert.Contains(t, d.note, "order-1")
}

func TestRoute_RoundsToCents(t *testing.T) {
	ledger := &mockLedger{}
	r := NewRouter(ledger, decimal.RequireFromString("0.5"))

	r.Route(context.Background(), paidOrder("7.05"))

	require.Len(t, ledger.deposits, 1)
	assert.Equal(t, "3.53", ledger.deposits[0].amount.StringFixed(2))
}

func TestRoute_ZeroSplitIsNoOp(t *testing.T) {
	ledger := &mockLedger{}
	r := NewRouter(ledger, decimal.Zero)

	r.Route(context.Background(), paidOrder("100.00"))
	assert.Empty(t, ledger.deposits)
}

func TestRoute_ZeroTotalIsNoOp(t *testing.T) {
	ledger := &mockLedger{}
	r := NewRouter(ledger, decimal.RequireFromString("0.5"))

	r.Route(context.Background(), paidOrder("0.00"))
	assert.Empty(t, ledger.deposits)
}

func TestRoute_DepositFailureIsSwallowed(t *testing.T) {
	ledger := &mockLedger{err: errors.New("flow service down")}
	r := NewRouter(ledger, decimal.RequireFromString("0.5"))

	// Must not panic or propagate; routing is advisory.
	r.Route(context.Background(), paidOrder("100.00"))
	assert.Empty(t, ledger.deposits)
}
