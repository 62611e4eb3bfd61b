package order

import (
	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/quantity"
)

// Quote is the priced purchase of one variant.
type Quote struct {
	// Quantity is expressed in the variant unit.
	Quantity    float64
	Unit        string
	UnitPrice   float64
	Subtotal    float64
	DeliveryFee float64
	Total       float64
}

// Price converts q into the variant unit, multiplies by the unit price and adds the delivery fee of
// the first band matching the unit class and quantity. No matching band means no fee.
func Price(q quantity.Quantity, v domain.Variant, fees []domain.DeliveryFee) Quote {
	qty := q.InUnit(v.Unit)
	subtotal := v.Price * qty
	fee := DeliveryFee(fees, quantity.ClassOf(v.Unit).UnitType(), qty)

	return Quote{
		Quantity:    qty,
		Unit:        v.Unit,
		UnitPrice:   v.Price,
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       subtotal + fee,
	}
}

// DeliveryFee returns the fee of the first band containing qty for unitType.
func DeliveryFee(fees []domain.DeliveryFee, unitType domain.UnitType, qty float64) float64 {
	for _, f := range fees {
		if f.Matches(unitType, qty) {
			return f.Fee
		}
	}
	return 0
}

// quoteOf rebuilds the quote of a stored single-item order.
func quoteOf(o *domain.Order) Quote {
	q := Quote{DeliveryFee: o.DeliveryFee, Total: o.TotalAmount}
	if len(o.Items) > 0 {
		it := o.Items[0]
		q.Quantity = it.Quantity
		q.Unit = it.Unit
		q.UnitPrice = it.PricePerUnit
		q.Subtotal = it.TotalPrice
	}
	return q
}
