package mollie

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/rswag/pod-backend/internal/domain/payment"
)

// Normalize converts a Mollie payment into the canonical confirmation.
//
// Only the "paid" status is actionable. Terminal non-paid states (failed,
// canceled, expired) return payment.ErrPaymentTerminal; everything else
// (open, pending, authorized) returns payment.ErrPaymentOpen. A paid event
// without a cart reference in metadata returns payment.ErrNoCartReference.
// Callers log these sentinels and acknowledge the webhook without acting.
func Normalize(p *Payment) (*payment.Confirmation, error) {
	switch p.Status {
	case "paid":
	case "failed", "canceled", "expired":
		return nil, errors.Wrap(payment.ErrPaymentTerminal, p.Status)
	default:
		return nil, errors.Wrap(payment.ErrPaymentOpen, p.Status)
	}

	amount, err := decimal.NewFromString(p.Amount.Value)
	if err != nil {
		return nil, errors.Wrapf(err, "parse amount %q", p.Amount.Value)
	}

	conf := &payment.Confirmation{
		Provider:  ProviderName,
		Reference: p.ID,
		Amount:    amount,
		Currency:  p.Amount.Currency,
		Method:    p.Method,
		Metadata:  p.Metadata,
	}

	if addr := p.ShippingAddress; addr != nil {
		conf.Email = addr.Email
		conf.Shipping = payment.Address{
			Name:       strings.TrimSpace(addr.GivenName + " " + addr.FamilyName),
			Line1:      addr.StreetAndNumber,
			Line2:      addr.StreetAdditional,
			City:       addr.City,
			State:      addr.Region,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}
	if conf.Email == "" {
		conf.Email = p.Metadata["email"]
	}

	if _, err := conf.CartID(); err != nil {
		return nil, err
	}
	return conf, nil
}
