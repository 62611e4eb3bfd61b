package domain

import "time"

// StockDirection is the sign of an inventory movement.
type StockDirection string

const (
	StockIn  StockDirection = "IN"
	StockOut StockDirection = "OUT"
)

// WarehouseLocation is the stock row every order adjustment is booked against.
const WarehouseLocation = "warehouse"

// InventoryTransaction is the append-only audit record of one stock movement.
type InventoryTransaction struct {
	ID        int64
	ProductID int64
	VariantID int64
	Quantity  float64
	Type      StockDirection
	Note      string
	CreatedAt time.Time
}
