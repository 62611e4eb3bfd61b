package order

import "github.com/Proton-105/chatshop/internal/domain"

// Derive computes the aggregate status from the payment and delivery statuses. A canceled delivery
// wins over everything, a refund comes next, and shipping progress only shows once the order is paid.
func Derive(payment domain.PaymentStatus, delivery domain.DeliveryStatus) domain.OrderStatus {
	if delivery == domain.DeliveryCanceled {
		return domain.OrderCanceled
	}

	switch payment {
	case domain.PaymentRefund:
		return domain.OrderRefunded
	case domain.PaymentPaid:
		switch delivery {
		case domain.DeliveryShipped:
			return domain.OrderShipped
		case domain.DeliveryDelivered:
			return domain.OrderDelivered
		}
		return domain.OrderPaid
	}

	return domain.OrderPending
}

// CanCancel reports whether the customer may request cancellation of o.
func CanCancel(o *domain.Order) error {
	if o.LatestCancellation != nil {
		return ErrCancellationExists
	}
	if o.Status != domain.OrderPaid && o.Status != domain.OrderConfirmed {
		return ErrNotCancellable
	}
	if o.DeliveryStatus != domain.DeliveryPending {
		return ErrNotCancellable
	}
	return nil
}

// Cancellable reports whether listings should offer cancellation for orders in status.
func Cancellable(status domain.OrderStatus) bool {
	return status == domain.OrderPaid || status == domain.OrderConfirmed
}
