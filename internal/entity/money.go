package entity

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Amounts leave the API as strings with exactly two decimals, e.g. "216.00".
// decimal.Decimal alone would drop trailing zeros.

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func (p Product) MarshalJSON() ([]byte, error) {
	type product Product
	return json.Marshal(struct {
		product
		Price string `json:"price"`
	}{product(p), money(p.Price)})
}

func (i OrderItem) MarshalJSON() ([]byte, error) {
	type orderItem OrderItem
	return json.Marshal(struct {
		orderItem
		Price string `json:"price"`
	}{orderItem(i), money(i.Price)})
}

func (o Order) MarshalJSON() ([]byte, error) {
	type order Order
	return json.Marshal(struct {
		order
		Subtotal string `json:"subtotal"`
		Tax      string `json:"tax"`
		Total    string `json:"total"`
	}{order(o), money(o.Subtotal), money(o.Tax), money(o.Total)})
}

func (s CartSummary) MarshalJSON() ([]byte, error) {
	type summary CartSummary
	return json.Marshal(struct {
		summary
		Subtotal       string `json:"subtotal"`
		Tax            string `json:"tax"`
		Shipping       string `json:"shipping"`
		EstimatedTotal string `json:"estimatedTotal"`
	}{summary(s), money(s.Subtotal), money(s.Tax), money(s.Shipping), money(s.EstimatedTotal)})
}
