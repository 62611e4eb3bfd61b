package state

import (
	"time"

	"github.com/Proton-105/chatshop/internal/catalog"
	"github.com/Proton-105/chatshop/internal/domain"
)

// maxBackDepth bounds the back stack; the oldest frames are dropped first.
const maxBackDepth = 32

// Context is the wizard data carried between messages. Each wizard family owns one frame; a
// frame is nil while its family is not in progress.
type Context struct {
	Catalog  *CatalogFrame  `json:"catalog,omitempty"`
	Customer *CustomerFrame `json:"customer,omitempty"`
	Payment  *PaymentFrame  `json:"payment,omitempty"`
	Orders   *OrdersFrame   `json:"orders,omitempty"`
	Support  *SupportFrame  `json:"support,omitempty"`
	Back     []Frame        `json:"back,omitempty"`
}

// CatalogFrame holds the drill-down path and the entered quantity.
type CatalogFrame struct {
	Selection catalog.Selection `json:"selection"`
	Quantity  *QuantityInput    `json:"quantity,omitempty"`
	// CheckoutKey is minted when the quantity is accepted. Placing the order again under the same
	// key returns the order already placed.
	CheckoutKey string `json:"checkout_key,omitempty"`
}

// QuantityInput is the quantity as the customer typed it.
type QuantityInput struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// CustomerFrame holds the customer details collected for checkout.
type CustomerFrame struct {
	Name       string `json:"name,omitempty"`
	Address    string `json:"address,omitempty"`
	Email      string `json:"email,omitempty"`
	EmailSet   bool   `json:"email_set,omitempty"`
	Phone      string `json:"phone,omitempty"`
	CustomerID int64  `json:"customer_id,omitempty"`
	// Editing is set when a field is re-entered from the confirmation step.
	Editing bool `json:"editing,omitempty"`
}

// Complete reports whether every checkout field was captured.
func (c *CustomerFrame) Complete() bool {
	return c != nil && c.Name != "" && c.Address != "" && c.EmailSet && c.Phone != ""
}

// PaymentFrame holds the chosen payment option and the created order.
type PaymentFrame struct {
	Method     domain.PaymentMethod `json:"method"`
	OptionName string               `json:"option_name,omitempty"`
	OrderID    int64                `json:"order_id,omitempty"`
}

// OrdersFrame holds the order-management selection.
type OrdersFrame struct {
	Status  domain.OrderStatus `json:"status,omitempty"`
	OrderID int64              `json:"order_id,omitempty"`
	// Candidates are the order ids offered in the last receipt-upload list.
	Candidates []int64 `json:"candidates,omitempty"`
}

// SupportFrame holds the customer-service passthrough session.
type SupportFrame struct {
	EnteredAt  time.Time         `json:"entered_at"`
	Transcript []TranscriptEntry `json:"transcript,omitempty"`
}

// Expired reports whether the passthrough is older than ttl.
func (f *SupportFrame) Expired(now time.Time, ttl time.Duration) bool {
	return f == nil || f.EnteredAt.IsZero() || now.Sub(f.EnteredAt) > ttl
}

// TranscriptEntry is one archived customer-service message.
type TranscriptEntry struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
	From string    `json:"from"`
}

// Snapshot is a copy of the wizard frames taken when a step is left.
type Snapshot struct {
	Catalog  *CatalogFrame  `json:"catalog,omitempty"`
	Customer *CustomerFrame `json:"customer,omitempty"`
	Payment  *PaymentFrame  `json:"payment,omitempty"`
	Orders   *OrdersFrame   `json:"orders,omitempty"`
}

// Frame is one back-stack entry.
type Frame struct {
	State    State     `json:"state"`
	Snapshot Snapshot  `json:"snapshot"`
	At       time.Time `json:"at"`
}

// Snapshot copies the wizard frames. The support transcript is not part of back navigation.
func (c *Context) Snapshot() Snapshot {
	return Snapshot{
		Catalog:  cloneCatalog(c.Catalog),
		Customer: clonePtr(c.Customer),
		Payment:  clonePtr(c.Payment),
		Orders:   cloneOrders(c.Orders),
	}
}

func (c *Context) restore(s Snapshot) {
	c.Catalog = cloneCatalog(s.Catalog)
	c.Customer = clonePtr(s.Customer)
	c.Payment = clonePtr(s.Payment)
	c.Orders = cloneOrders(s.Orders)
}

func (c *Context) push(f Frame) {
	c.Back = append(c.Back, f)
	if len(c.Back) > maxBackDepth {
		c.Back = append([]Frame(nil), c.Back[len(c.Back)-maxBackDepth:]...)
	}
}

func (c *Context) pop() (Frame, bool) {
	n := len(c.Back)
	if n == 0 {
		return Frame{}, false
	}
	f := c.Back[n-1]
	c.Back = c.Back[:n-1]
	return f, true
}

// CatalogOrNew returns the catalog frame, creating it when absent.
func (c *Context) CatalogOrNew() *CatalogFrame {
	if c.Catalog == nil {
		c.Catalog = &CatalogFrame{}
	}
	return c.Catalog
}

// CustomerOrNew returns the customer frame, creating it when absent.
func (c *Context) CustomerOrNew() *CustomerFrame {
	if c.Customer == nil {
		c.Customer = &CustomerFrame{}
	}
	return c.Customer
}

// OrdersOrNew returns the orders frame, creating it when absent.
func (c *Context) OrdersOrNew() *OrdersFrame {
	if c.Orders == nil {
		c.Orders = &OrdersFrame{}
	}
	return c.Orders
}

// Variant returns the selected catalog path when a variant is chosen.
func (c *Context) Variant() (catalog.Selection, error) {
	if c.Catalog == nil || c.Catalog.Selection.VariantID == 0 || c.Catalog.Selection.ProductID == 0 {
		return catalog.Selection{}, ErrMissingContext
	}
	return c.Catalog.Selection, nil
}

// Purchase returns the frames needed to place an order.
func (c *Context) Purchase() (catalog.Selection, QuantityInput, *CustomerFrame, error) {
	sel, err := c.Variant()
	if err != nil {
		return sel, QuantityInput{}, nil, err
	}
	if c.Catalog.Quantity == nil || !c.Customer.Complete() {
		return sel, QuantityInput{}, nil, ErrMissingContext
	}
	return sel, *c.Catalog.Quantity, c.Customer, nil
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneCatalog(f *CatalogFrame) *CatalogFrame {
	cp := clonePtr(f)
	if cp != nil && cp.Quantity != nil {
		cp.Quantity = clonePtr(cp.Quantity)
	}
	return cp
}

func cloneOrders(f *OrdersFrame) *OrdersFrame {
	cp := clonePtr(f)
	if cp != nil && cp.Candidates != nil {
		cp.Candidates = append([]int64(nil), cp.Candidates...)
	}
	return cp
}
