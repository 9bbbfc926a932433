package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to Status
	}{
		{StatusPending, StatusPaid},
		{StatusPending, StatusCancelled},
		{StatusPaid, StatusProcessing},
		{StatusPaid, StatusCancelled},
		{StatusPaid, StatusRefunded},
		{StatusProcessing, StatusShipped},
		{StatusProcessing, StatusRefunded},
		{StatusShipped, StatusDelivered},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct {
		from, to Status
	}{
		{StatusPaid, StatusPending},
		{StatusShipped, StatusPaid},
		{StatusDelivered, StatusShipped},
		{StatusCancelled, StatusPaid},
		{StatusRefunded, StatusPaid},
		{StatusShipped, StatusRefunded},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPaid.Valid())
	assert.True(t, StatusRefunded.Valid())
	assert.False(t, Status("printing").Valid())
	assert.False(t, Status("").Valid())
}

func TestShippingAddressEmpty(t *testing.T) {
	assert.True(t, ShippingAddress{}.Empty())
	assert.True(t, ShippingAddress{Line1: "Mainstreet 1", City: "Berlin"}.Empty())
	assert.False(t, ShippingAddress{Line1: "Mainstreet 1", City: "Berlin", Country: "DE"}.Empty())
}
