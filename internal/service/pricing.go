package service

import (
	"unicode/utf8"

	"github.com/egannguyen/energystack-storefront/internal/apperr"
	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/shopspring/decimal"
)

// Pricing is the money configuration injected into the cart and order services.
type Pricing struct {
	TaxRate  decimal.Decimal
	Shipping entity.ShippingPolicy
}

// DefaultPricing is 8% tax with a 25.00 flat shipping fee waived from 500.00.
func DefaultPricing() Pricing {
	return Pricing{
		TaxRate: entity.DefaultTaxRate,
		Shipping: entity.ShippingPolicy{
			FlatFee:       decimal.NewFromInt(25),
			FreeThreshold: decimal.NewFromInt(500),
		},
	}
}

const (
	maxSessionIDLength = 255
	// MaxLineQuantity caps the quantity of a single cart line.
	MaxLineQuantity = 100
)

func validateSessionID(sessionID string) error {
	if sessionID == "" || utf8.RuneCountInString(sessionID) > maxSessionIDLength {
		return apperr.Validation("Session ID is required")
	}
	return nil
}
