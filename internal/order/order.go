// Package order manages the order lifecycle: pricing, creation, payment and delivery status updates
// with their inventory side effects, receipts and cancellation requests.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/Proton-105/chatshop/internal/domain"
)

var (
	// ErrOrderNotFound is returned when an order does not exist or belongs to another customer.
	ErrOrderNotFound = errors.New("order not found")
	// ErrVariantNotFound is returned when a stock adjustment targets a missing variant.
	ErrVariantNotFound = errors.New("variant not found")
	// ErrInvalidStatus is returned for a payment or delivery status outside the accepted set.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrPaymentMethodUnavailable is returned when the chosen payment option is not enabled.
	ErrPaymentMethodUnavailable = errors.New("payment method unavailable")
	// ErrCancellationExists is returned when a cancellation was already requested for the order.
	ErrCancellationExists = errors.New("cancellation already requested")
	// ErrNotCancellable is returned when the order status does not allow cancellation.
	ErrNotCancellable = errors.New("order cannot be cancelled")
	// ErrOrderBusy is returned when another update holds the order lock.
	ErrOrderBusy = errors.New("order is being updated")
)

// Repository persists orders, their items, cancellations and the inventory moves they cause.
type Repository interface {
	// Create stores the order with its items and fills in the generated ids.
	Create(ctx context.Context, o *domain.Order) error
	// Get returns the order with items, customer and latest cancellation.
	Get(ctx context.Context, id int64) (*domain.Order, error)
	// FindByCheckoutKey returns the customer order placed under key, or ErrOrderNotFound.
	FindByCheckoutKey(ctx context.Context, businessID, customerID int64, key string) (*domain.Order, error)
	// List returns the business orders matching f, newest first.
	List(ctx context.Context, businessID int64, f domain.OrderFilter) ([]domain.Order, error)
	// PendingDeposits returns deposit orders still waiting for a receipt. Zero ids match any
	// business or customer; a zero createdBefore matches any age.
	PendingDeposits(ctx context.Context, businessID, customerID int64, createdBefore time.Time) ([]domain.Order, error)
	// SetReceipt records the receipt reference and keeps the payment pending.
	SetReceipt(ctx context.Context, id int64, url string) error
	// UpdatePayment writes the payment and aggregate status and applies moves to variant stock, the
	// warehouse stock row and the transaction log atomically.
	UpdatePayment(ctx context.Context, id int64, status domain.PaymentStatus, derived domain.OrderStatus, moves []domain.InventoryTransaction) error
	// UpdateDelivery writes the delivery and aggregate status.
	UpdateDelivery(ctx context.Context, id int64, status domain.DeliveryStatus, derived domain.OrderStatus) error
	// CreateCancellation stores a cancellation request.
	CreateCancellation(ctx context.Context, c *domain.OrderCancellation) error
}

// BusinessSource provides the checkout configuration of a business.
type BusinessSource interface {
	PaymentOptions(ctx context.Context, businessID int64) ([]domain.PaymentOption, error)
	DeliveryFees(ctx context.Context, businessID int64) ([]domain.DeliveryFee, error)
}

// Notifier tells the customer about status changes.
type Notifier interface {
	PaymentStatusChanged(ctx context.Context, o *domain.Order) error
	DeliveryStatusChanged(ctx context.Context, o *domain.Order) error
}

// Publisher emits order events to the back office.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
}

// Locker serialises updates to one order.
type Locker interface {
	Lock(ctx context.Context, key string, ttl, wait time.Duration) (func(context.Context) error, error)
}

// Event routing keys.
const (
	EventCreated               = "order.created"
	EventPaymentStatus         = "order.payment_status"
	EventDeliveryStatus        = "order.delivery_status"
	EventReceiptUploaded       = "order.receipt_uploaded"
	EventCancellationRequested = "order.cancellation_requested"
)

// Event is the payload published for every order change.
type Event struct {
	OrderID        int64                 `json:"order_id"`
	BusinessID     int64                 `json:"business_id"`
	CustomerID     int64                 `json:"customer_id"`
	Status         domain.OrderStatus    `json:"status"`
	PaymentStatus  domain.PaymentStatus  `json:"payment_status"`
	DeliveryStatus domain.DeliveryStatus `json:"delivery_status"`
	PaymentMethod  domain.PaymentMethod  `json:"payment_method"`
	TotalAmount    float64               `json:"total_amount"`
	Reason         string                `json:"reason,omitempty"`
	ReceiptURL     string                `json:"receipt_url,omitempty"`
	At             time.Time             `json:"at"`
}

func eventFor(o *domain.Order) Event {
	return Event{
		OrderID:        o.ID,
		BusinessID:     o.BusinessID,
		CustomerID:     o.CustomerID,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		DeliveryStatus: o.DeliveryStatus,
		PaymentMethod:  o.PaymentMethod,
		TotalAmount:    o.TotalAmount,
		ReceiptURL:     o.PaymentReceiptURL,
		At:             time.Now().UTC(),
	}
}
