package engine

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Proton-105/chatshop/internal/catalog"
	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/media"
	"github.com/Proton-105/chatshop/internal/order"
	"github.com/Proton-105/chatshop/internal/quantity"
	"github.com/Proton-105/chatshop/internal/state"
)

// editTargets are the fields the confirmation step can re-open, keyed by the option the customer types.
var editTargets = []state.State{
	state.StateCollectName,
	state.StateCollectAddress,
	state.StateCollectEmail,
	state.StateCollectPhone,
}

func (e *Engine) handleName(t *turn) error {
	if t.text == "" {
		t.say("name_required", backKey)
		return nil
	}
	t.s.Context.CustomerOrNew().Name = t.text
	return t.nextField(state.StateCollectAddress)
}

func (e *Engine) handleAddress(t *turn) error {
	if t.text == "" {
		t.say("address_required", backKey)
		return nil
	}
	t.s.Context.CustomerOrNew().Address = t.text
	return t.nextField(state.StateCollectEmail)
}

func (e *Engine) handleEmail(t *turn) error {
	email, err := e.deps.Customers.NormalizeEmail(t.text)
	if err != nil {
		t.say("email_invalid")
		return nil
	}

	c := t.s.Context.CustomerOrNew()
	c.Email = email
	c.EmailSet = true
	return t.nextField(state.StateCollectPhone)
}

func (e *Engine) handlePhone(t *turn) error {
	phone, err := e.deps.Customers.NormalizePhone(t.text, t.in.Address)
	if err != nil {
		t.say("phone_invalid")
		return nil
	}

	t.s.Context.CustomerOrNew().Phone = phone
	return t.nextField(state.StateConfirmOrder)
}

// nextField advances the customer wizard. A field re-entered from the confirmation step returns
// straight to it. The customer record is stored whenever the details are complete.
func (t *turn) nextField(next state.State) error {
	c := t.s.Context.CustomerOrNew()
	editing := c.Editing
	c.Editing = false

	if editing || next == state.StateConfirmOrder {
		if c.Complete() {
			if err := t.saveCustomer(c); err != nil {
				return err
			}
		}
	}

	if editing {
		if t.s.Unwind(state.StateConfirmOrder) {
			return t.prompt()
		}
		return t.enter(state.StateConfirmOrder)
	}
	return t.enter(next)
}

func (t *turn) saveCustomer(c *state.CustomerFrame) error {
	cust := &domain.Customer{
		ID:          c.CustomerID,
		BusinessID:  t.businessID(),
		ChatAddress: t.in.Address,
		Name:        c.Name,
		Phone:       c.Phone,
		Email:       c.Email,
		Address:     c.Address,
	}
	if err := t.e.deps.Customers.Save(t.ctx, cust); err != nil {
		return err
	}
	c.CustomerID = cust.ID
	return nil
}

func (t *turn) promptField(key string, options ...string) error {
	if t.s.Context.Customer == nil {
		return state.ErrMissingContext
	}
	t.say(key, options...)
	return nil
}

func (e *Engine) handleConfirmOrder(t *turn) error {
	switch {
	case isYes(t.text):
		opts, err := e.deps.Orders.PaymentOptions(t.ctx, t.businessID())
		if err != nil {
			return err
		}
		if len(opts) == 0 {
			t.say("payment_no_options")
			return nil
		}
		t.s.Context.Payment = nil
		return t.enter(state.StateSelectPaymentMethod)

	case isNo(t.text):
		t.say("order_discarded")
		return t.resetToMainMenu()
	}

	i, ok := menuIndex(t.text, len(editTargets))
	if !ok {
		t.say("confirm_order_hint", "yes", "no", "1", "2", "3", "4", backKey)
		return nil
	}

	t.s.Context.CustomerOrNew().Editing = true
	return t.enter(editTargets[i])
}

// purchase gathers everything needed to price or place the order from the wizard context.
func (t *turn) purchase() (domain.Product, domain.Variant, quantity.Quantity, *state.CustomerFrame, error) {
	_, qi, cust, err := t.s.Context.Purchase()
	if err != nil {
		return domain.Product{}, domain.Variant{}, quantity.Quantity{}, nil, err
	}
	p, v, err := t.selectedVariant()
	if err != nil {
		return domain.Product{}, domain.Variant{}, quantity.Quantity{}, nil, err
	}
	return p, v, quantity.Of(qi.Value, qi.Unit), cust, nil
}

func (t *turn) promptConfirmOrder() error {
	p, v, q, cust, err := t.purchase()
	if err != nil {
		return err
	}

	quote, err := t.e.deps.Orders.Quote(t.ctx, t.businessID(), q, v)
	if err != nil {
		return err
	}

	email := cust.Email
	if email == "" {
		email = t.resolve("email_none")
	}

	t.sayf("confirm_order", map[string]any{
		"product":      p.Name,
		"variant":      v.Name,
		"quantity":     q.String(),
		"unit_price":   catalog.FormatPrice(quote.UnitPrice),
		"subtotal":     catalog.FormatPrice(quote.Subtotal),
		"delivery_fee": catalog.FormatPrice(quote.DeliveryFee),
		"total":        catalog.FormatPrice(quote.Total),
		"name":         cust.Name,
		"address":      cust.Address,
		"email":        email,
		"phone":        cust.Phone,
	}, "yes", "no", "1", "2", "3", "4", backKey)
	return nil
}

func (t *turn) promptPaymentMethods() error {
	opts, err := t.e.deps.Orders.PaymentOptions(t.ctx, t.businessID())
	if err != nil {
		return err
	}
	if len(opts) == 0 {
		t.say("payment_no_options", backKey)
		return nil
	}

	keys := numberedKeys(len(opts))
	lines := make([]catalog.Option, 0, len(opts))
	for i, o := range opts {
		lines = append(lines, catalog.Option{Key: keys[i], ID: o.ID, Label: o.Name})
	}
	t.sayf("select_payment_method", map[string]any{
		"options": catalog.RenderOptions(lines),
	}, withBack(keys)...)
	return nil
}

// handlePaymentMethod places the order under the checkout key minted with the quantity, so a retry
// after a failed save returns the same order. The back stack is cleared once the order exists so
// "0" cannot walk back into checkout and place it twice.
func (e *Engine) handlePaymentMethod(t *turn) error {
	opts, err := e.deps.Orders.PaymentOptions(t.ctx, t.businessID())
	if err != nil {
		return err
	}
	i, ok := menuIndex(t.text, len(opts))
	if !ok {
		t.say("invalid_choice")
		return t.prompt()
	}
	chosen := opts[i]

	p, v, q, cust, err := t.purchase()
	if err != nil {
		return err
	}
	if cust.CustomerID == 0 {
		if err := t.saveCustomer(cust); err != nil {
			return err
		}
	}

	frame := t.s.Context.Catalog
	if frame.CheckoutKey == "" {
		frame.CheckoutKey = uuid.NewString()
	}

	o, _, err := e.deps.Orders.Create(t.ctx, order.NewOrder{
		BusinessID:  t.businessID(),
		CustomerID:  cust.CustomerID,
		Product:     p,
		Variant:     v,
		Quantity:    q,
		Method:      chosen.Key,
		CheckoutKey: frame.CheckoutKey,
	})
	switch {
	case errors.Is(err, quantity.ErrInsufficientStock):
		t.sayf("quantity_insufficient_stock", map[string]any{
			"requested": q.String(),
			"available": quantity.Format(v.Stock, v.Unit),
		})
		t.s.Context.Catalog.Quantity = nil
		if !t.s.Unwind(state.StateEnterQuantity) {
			return t.resetToMainMenu()
		}
		return t.prompt()
	case errors.Is(err, order.ErrPaymentMethodUnavailable):
		t.say("invalid_choice")
		return t.prompt()
	case err != nil && o == nil:
		return err
	case err != nil:
		// The order exists; only the card settlement failed and stays pending for the back office.
		t.logSwallowed("failed to settle card order", err)
	}

	t.s.Context.Payment = &state.PaymentFrame{Method: chosen.Key, OptionName: chosen.Name, OrderID: o.ID}
	t.send(t.e.composer.Invoice(t.ctx, t.lang, o))
	e.log.Info("order placed from conversation",
		slog.String("conversation", t.s.Key().String()),
		slog.Int64("order_id", o.ID),
		slog.String("payment_method", string(chosen.Key)),
	)

	switch chosen.Key {
	case domain.PaymentMethodDeposit:
		t.sayf("payment_deposit_instructions", map[string]any{"order_id": o.ID})
		t.s.Forward(state.StateUploadPaymentReceipt)
		t.s.ClearBack()
		return t.prompt()
	case domain.PaymentMethodCOD:
		t.sayf("payment_cod_instructions", map[string]any{"order_id": o.ID})
	}
	t.s.Forward(state.StatePostPayment)
	t.s.ClearBack()
	return t.prompt()
}

// receiptOrderID is the order the next receipt belongs to: the one just placed, or the one picked
// from the pending deposit list.
func (t *turn) receiptOrderID() (int64, error) {
	if p := t.s.Context.Payment; p != nil && p.OrderID != 0 {
		return p.OrderID, nil
	}
	if o := t.s.Context.Orders; o != nil && o.OrderID != 0 {
		return o.OrderID, nil
	}
	return 0, state.ErrMissingContext
}

func (e *Engine) handleReceiptUpload(t *turn) error {
	orderID, err := t.receiptOrderID()
	if err != nil {
		return err
	}
	if t.in.Media == nil || len(t.in.Media.Data) == 0 {
		t.say("receipt_media_required", backKey)
		return nil
	}

	customerID, err := t.customerID()
	if err != nil {
		return err
	}
	if customerID == 0 {
		return order.ErrOrderNotFound
	}

	url, err := e.deps.Receipts.Save(t.ctx, media.Receipt{
		BusinessID: t.businessID(),
		CustomerID: customerID,
		OrderID:    orderID,
		Phone:      t.in.Address,
		Ext:        strings.TrimPrefix(t.in.Media.Ext, "."),
	}, t.in.Media.Data)
	if err != nil {
		return err
	}

	if _, err := e.deps.Orders.AttachReceipt(t.ctx, customerID, orderID, url); err != nil {
		return err
	}

	t.sayf("receipt_saved", map[string]any{"order_id": orderID})
	return t.enter(state.StatePostPayment)
}

func (e *Engine) handlePostPayment(t *turn) error {
	if t.text == backKey {
		return t.resetToMainMenu()
	}
	return t.prompt()
}
