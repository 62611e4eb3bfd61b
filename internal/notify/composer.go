// Package notify composes customer-facing order messages from templates and hands them to the
// delivery queue.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Proton-105/chatshop/internal/catalog"
	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/quantity"
)

// Templates resolves localized message templates.
type Templates interface {
	Resolve(ctx context.Context, businessID int64, lang, key string) string
	Format(ctx context.Context, businessID int64, lang, key string, vars map[string]any) string
}

// Composer builds order summaries and status messages.
type Composer struct {
	t Templates
}

// NewComposer creates a Composer.
func NewComposer(t Templates) *Composer {
	return &Composer{t: t}
}

// Invoice renders the summary sent after an order is placed.
func (c *Composer) Invoice(ctx context.Context, lang string, o *domain.Order) string {
	if len(o.Items) == 0 {
		return c.t.Format(ctx, o.BusinessID, lang, "order_total", map[string]any{"total": catalog.FormatPrice(o.TotalAmount)})
	}

	it := o.Items[0]
	return c.t.Format(ctx, o.BusinessID, lang, "invoice", map[string]any{
		"order_id":     o.ID,
		"product":      it.ProductName,
		"variant":      it.VariantName,
		"quantity":     quantity.Format(it.Quantity, it.Unit),
		"unit_price":   catalog.FormatPrice(it.PricePerUnit),
		"subtotal":     catalog.FormatPrice(o.Subtotal()),
		"delivery_fee": catalog.FormatPrice(o.DeliveryFee),
		"total":        catalog.FormatPrice(o.TotalAmount),
	})
}

// PaymentStatus renders the message for a payment status change.
func (c *Composer) PaymentStatus(ctx context.Context, lang string, o *domain.Order) string {
	header := c.t.Format(ctx, o.BusinessID, lang, "payment_status_"+string(o.PaymentStatus), map[string]any{"order_id": o.ID})
	return c.statusMessage(ctx, lang, o, header)
}

// DeliveryStatus renders the message for a delivery status change.
func (c *Composer) DeliveryStatus(ctx context.Context, lang string, o *domain.Order) string {
	header := c.t.Format(ctx, o.BusinessID, lang, "delivery_status_"+string(o.DeliveryStatus), map[string]any{"order_id": o.ID})
	return c.statusMessage(ctx, lang, o, header)
}

func (c *Composer) statusMessage(ctx context.Context, lang string, o *domain.Order, header string) string {
	var b strings.Builder
	if o.Customer != nil && o.Customer.Name != "" {
		b.WriteString(c.t.Format(ctx, o.BusinessID, lang, "greeting_customer", map[string]any{"name": o.Customer.Name}))
		b.WriteString("\n\n")
	}
	b.WriteString(header)
	b.WriteString("\n\n")
	b.WriteString(c.Details(ctx, lang, o))
	b.WriteString("\n\n")
	b.WriteString(c.t.Resolve(ctx, o.BusinessID, lang, "thank_you"))
	return b.String()
}

// Details lists the order items and the total.
func (c *Composer) Details(ctx context.Context, lang string, o *domain.Order) string {
	var b strings.Builder
	b.WriteString(c.t.Resolve(ctx, o.BusinessID, lang, "order_details_header"))
	b.WriteString("\n")
	b.WriteString(c.items(ctx, lang, o))
	b.WriteString(c.t.Format(ctx, o.BusinessID, lang, "order_total", map[string]any{"total": catalog.FormatPrice(o.TotalAmount)}))
	return b.String()
}

func (c *Composer) items(ctx context.Context, lang string, o *domain.Order) string {
	var b strings.Builder
	for i, it := range o.Items {
		name := it.ProductName
		if name == "" {
			name = c.t.Resolve(ctx, o.BusinessID, lang, "product_default_name")
		}
		if it.VariantName != "" {
			name = fmt.Sprintf("%s (%s)", name, it.VariantName)
		}
		b.WriteString(c.t.Format(ctx, o.BusinessID, lang, "order_item_line", map[string]any{
			"index":    i + 1,
			"name":     name,
			"quantity": quantity.Format(it.Quantity, it.Unit),
			"total":    catalog.FormatPrice(it.TotalPrice),
		}))
		b.WriteString("\n")
	}
	return b.String()
}

// OrderList renders an order-history listing. Cancellation details are shown for orders that
// can still be cancelled.
func (c *Composer) OrderList(ctx context.Context, businessID int64, lang string, orders []domain.Order, cancellable bool) string {
	if len(orders) == 0 {
		return c.t.Resolve(ctx, businessID, lang, "orders_none")
	}

	var b strings.Builder
	for i := range orders {
		o := &orders[i]
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.t.Format(ctx, businessID, lang, "order_history_entry", map[string]any{
			"order_id":        o.ID,
			"date":            o.CreatedAt.Format("2006-01-02"),
			"payment_status":  o.PaymentStatus,
			"delivery_status": o.DeliveryStatus,
			"payment_method":  o.PaymentMethod,
		}))
		b.WriteString("\n")
		b.WriteString(c.items(ctx, lang, o))
		b.WriteString(c.t.Format(ctx, businessID, lang, "order_total", map[string]any{"total": catalog.FormatPrice(o.TotalAmount)}))

		if o.PaymentMethod == domain.PaymentMethodDeposit {
			b.WriteString("\n")
			if o.PaymentReceiptURL != "" {
				b.WriteString(c.t.Resolve(ctx, businessID, lang, "receipt_received"))
			} else {
				b.WriteString(c.t.Resolve(ctx, businessID, lang, "receipt_missing"))
			}
		}

		if cancellable {
			b.WriteString("\n")
			if o.LatestCancellation != nil {
				b.WriteString(c.t.Format(ctx, businessID, lang, "cancellation_status", map[string]any{"status": o.LatestCancellation.Status}))
			} else if o.DeliveryStatus == domain.DeliveryPending {
				b.WriteString(c.t.Resolve(ctx, businessID, lang, "cancellation_available"))
			}
		}
	}
	return b.String()
}

// DepositOrders renders the numbered list of deposit orders waiting for a receipt.
func (c *Composer) DepositOrders(ctx context.Context, businessID int64, lang string, orders []domain.Order) string {
	var b strings.Builder
	b.WriteString(c.t.Resolve(ctx, businessID, lang, "receipt_select_order"))
	for i, o := range orders {
		b.WriteString("\n")
		b.WriteString(c.t.Format(ctx, businessID, lang, "receipt_order_option", map[string]any{
			"index":    i + 1,
			"order_id": o.ID,
			"date":     o.CreatedAt.Format("2006-01-02"),
			"total":    catalog.FormatPrice(o.TotalAmount),
		}))
	}
	return b.String()
}

// DepositReminder renders the reminder for a deposit order still missing its receipt.
func (c *Composer) DepositReminder(ctx context.Context, lang string, o *domain.Order) string {
	return c.t.Format(ctx, o.BusinessID, lang, "deposit_reminder", map[string]any{
		"order_id": o.ID,
		"total":    catalog.FormatPrice(o.TotalAmount),
	})
}
