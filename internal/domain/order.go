package domain

import "time"

// PaymentMethod identifies how an order is paid.
type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodDeposit PaymentMethod = "deposit"
	PaymentMethodCOD     PaymentMethod = "cod"
)

// PaymentStatus tracks the money side of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentRefund  PaymentStatus = "refund"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefund:
		return true
	}
	return false
}

// DeliveryStatus tracks the fulfilment side of an order.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryShipped   DeliveryStatus = "shipped"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryCanceled  DeliveryStatus = "canceled"
)

// Valid reports whether s is one of the delivery statuses accepted by updates.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliveryShipped, DeliveryDelivered, DeliveryCanceled:
		return true
	}
	return false
}

// OrderStatus is the customer-facing aggregate status.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCanceled  OrderStatus = "canceled"
	OrderRefunded  OrderStatus = "refunded"
)

// OrderStatuses lists aggregate statuses in the order the history menu offers them.
var OrderStatuses = []OrderStatus{
	OrderPending,
	OrderConfirmed,
	OrderPaid,
	OrderShipped,
	OrderDelivered,
	OrderCanceled,
	OrderRefunded,
}

// Order is one purchase.
type Order struct {
	ID                 int64
	BusinessID         int64
	CustomerID         int64
	TotalAmount        float64
	DeliveryFee        float64
	PaymentMethod      PaymentMethod
	PaymentStatus      PaymentStatus
	DeliveryStatus     DeliveryStatus
	Status             OrderStatus
	PaymentReceiptURL  string
	CheckoutKey        string
	CreatedAt          time.Time
	Items              []OrderItem
	Customer           *Customer
	LatestCancellation *OrderCancellation
}

// Subtotal returns the sum of the item line totals.
func (o Order) Subtotal() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.TotalPrice
	}
	return sum
}

// OrderItem is an immutable line with a price snapshot.
type OrderItem struct {
	ID           int64
	OrderID      int64
	ProductID    int64
	VariantID    int64
	ProductName  string
	VariantName  string
	Unit         string
	Quantity     float64
	PricePerUnit float64
	TotalPrice   float64
}

// CancellationStatus is the review state of a cancellation request.
type CancellationStatus string

const (
	CancellationPending  CancellationStatus = "pending"
	CancellationApproved CancellationStatus = "approved"
	CancellationRejected CancellationStatus = "rejected"
)

// OrderCancellation is a customer's request to cancel an order.
type OrderCancellation struct {
	ID        int64
	OrderID   int64
	Reason    string
	Status    CancellationStatus
	CreatedAt time.Time
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	CustomerID     int64
	Status         OrderStatus
	PaymentStatus  PaymentStatus
	DeliveryStatus DeliveryStatus
	PaymentMethod  PaymentMethod
	From           time.Time
	To             time.Time
	Limit          int
}
