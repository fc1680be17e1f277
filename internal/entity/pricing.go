package entity

import "github.com/shopspring/decimal"

// DefaultTaxRate applies when no rate is configured.
var DefaultTaxRate = decimal.RequireFromString("0.08")

// Line is a priced quantity used for totals.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals are the persisted money fields of an order.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// CalculateTotals prices lines at taxRate. Each field is rounded half-up to cents; total is
// subtotal plus tax with no shipping.
func CalculateTotals(lines []Line, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	tax := subtotal.Mul(taxRate)
	return Totals{
		Subtotal: subtotal.Round(2),
		Tax:      tax.Round(2),
		Total:    subtotal.Add(tax).Round(2),
	}
}

// ShippingPolicy is the flat-fee shipping rule shown to shoppers.
type ShippingPolicy struct {
	FlatFee       decimal.Decimal
	FreeThreshold decimal.Decimal
}

// Charge returns the shipping fee for subtotal. Empty carts ship free.
func (p ShippingPolicy) Charge(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || subtotal.GreaterThanOrEqual(p.FreeThreshold) {
		return decimal.Zero
	}
	return p.FlatFee
}

// CartSummary is the display-only breakdown of a cart. EstimatedTotal includes shipping,
// which is never part of a persisted order total.
type CartSummary struct {
	ItemCount      int             `json:"itemCount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	Shipping       decimal.Decimal `json:"shipping"`
	EstimatedTotal decimal.Decimal `json:"estimatedTotal"`
}

// SummarizeCart prices c at the products' current prices.
func SummarizeCart(c *Cart, taxRate decimal.Decimal, shipping ShippingPolicy) CartSummary {
	lines := make([]Line, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Product == nil {
			continue
		}
		lines = append(lines, Line{UnitPrice: item.Product.Price, Quantity: item.Quantity})
	}
	totals := CalculateTotals(lines, taxRate)
	fee := shipping.Charge(totals.Subtotal)
	return CartSummary{
		ItemCount:      c.ItemCount(),
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		Shipping:       fee,
		EstimatedTotal: totals.Total.Add(fee),
	}
}
