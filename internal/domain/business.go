// Package domain holds the commerce entities shared by the engine, the order lifecycle and the repositories.
package domain

import "time"

// Business is a tenant that owns a catalog, payment options and a bot account.
type Business struct {
	ID       int64
	Name     string
	Email    string
	Phone    string
	Address  string
	IsActive bool
}

// PaymentOption is a payment method a business has configured for checkout.
type PaymentOption struct {
	ID         int64
	BusinessID int64
	Name       string
	Key        PaymentMethod
	Enabled    bool
	SortOrder  int
}

// DeliveryFee is a flat fee applied when an order quantity falls in [MinValue, MaxValue]
// for the given unit class.
type DeliveryFee struct {
	ID         int64
	BusinessID int64
	UnitType   UnitType
	MinValue   float64
	MaxValue   float64
	Fee        float64
}

// Matches reports whether qty falls inside the fee band.
func (f DeliveryFee) Matches(unitType UnitType, qty float64) bool {
	return f.UnitType == unitType && qty >= f.MinValue && qty <= f.MaxValue
}

// Customer is the purchasing party captured by the checkout wizard. ChatAddress is the conversation
// address notifications are delivered to; Phone is the number the customer gave.
type Customer struct {
	ID          int64
	BusinessID  int64
	ChatAddress string
	Name        string
	Phone       string
	Email       string
	Address     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UnitType is the unit class used for delivery-fee bands.
type UnitType string

const (
	UnitTypeWeight UnitType = "weight"
	UnitTypeVolume UnitType = "volume"
	UnitTypeCount  UnitType = "count"
)
