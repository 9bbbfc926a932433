// Package customer defines the customer record derived from payment
// metadata. Orders may exist without a linked customer.
package customer

import (
	"context"
	"time"
)

// Customer is a known buyer, keyed by email.
type Customer struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Repository provides lookup and creation of customers.
type Repository interface {
	// GetOrCreateByEmail returns the customer with the given email,
	// creating it when absent. Safe under concurrent calls for the same
	// email: at most one row is created.
	GetOrCreateByEmail(ctx context.Context, email string) (*Customer, error)
}
