package engine

import (
	"errors"
	"strconv"
	"strings"

	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/order"
	"github.com/Proton-105/chatshop/internal/state"
)

func (e *Engine) handleOrderHistoryMenu(t *turn) error {
	i, ok := menuIndex(t.text, len(domain.OrderStatuses))
	if !ok {
		t.say("invalid_choice")
		return t.prompt()
	}

	status := domain.OrderStatuses[i]
	orders, err := t.ordersWithStatus(status)
	if err != nil {
		return err
	}

	t.s.Context.OrdersOrNew().Status = status
	if order.Cancellable(status) && anyCancellable(orders) {
		t.s.Forward(state.StateAwaitingOrderCancellation)
		t.send(e.composer.OrderList(t.ctx, t.businessID(), t.lang, orders, true))
		t.say("cancellation_enter_order", backKey)
		return nil
	}

	t.s.Forward(state.StateListOrders)
	t.send(e.composer.OrderList(t.ctx, t.businessID(), t.lang, orders, order.Cancellable(status)), backKey)
	return nil
}

func (t *turn) ordersWithStatus(status domain.OrderStatus) ([]domain.Order, error) {
	customerID, err := t.customerID()
	if err != nil || customerID == 0 {
		return nil, err
	}
	return t.e.deps.Orders.ListByStatus(t.ctx, t.businessID(), customerID, status)
}

func anyCancellable(orders []domain.Order) bool {
	for i := range orders {
		if order.CanCancel(&orders[i]) == nil {
			return true
		}
	}
	return false
}

func (t *turn) promptOrderList() error {
	f := t.s.Context.Orders
	if f == nil || f.Status == "" {
		return state.ErrMissingContext
	}
	orders, err := t.ordersWithStatus(f.Status)
	if err != nil {
		return err
	}
	t.send(t.e.composer.OrderList(t.ctx, t.businessID(), t.lang, orders, order.Cancellable(f.Status)), backKey)
	return nil
}

func (e *Engine) handleListOrders(t *turn) error {
	t.say("list_orders_hint", backKey)
	return nil
}

// parseOrderNumber accepts "12" and "#12".
func parseOrderNumber(text string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(text, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (e *Engine) handleCancellationOrderNumber(t *turn) error {
	id, ok := parseOrderNumber(t.text)
	if !ok {
		t.say("cancellation_order_not_found", backKey)
		return nil
	}

	customerID, err := t.customerID()
	if err != nil {
		return err
	}

	_, err = e.deps.Orders.RequestCancellation(t.ctx, customerID, id)
	if key, rejected := cancellationRejection(err); rejected {
		t.sayf(key, map[string]any{"order_id": id}, backKey)
		return nil
	}
	if err != nil {
		return err
	}

	t.s.Context.OrdersOrNew().OrderID = id
	return t.enter(state.StateConfirmCancellation)
}

// cancellationRejection maps the reasons a cancellation is refused onto the message shown for it.
func cancellationRejection(err error) (string, bool) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return "cancellation_order_not_found", true
	case errors.Is(err, order.ErrCancellationExists):
		return "cancellation_already_requested", true
	case errors.Is(err, order.ErrNotCancellable):
		return "cancellation_not_eligible", true
	}
	return "", false
}

func (e *Engine) handleConfirmCancellation(t *turn) error {
	switch {
	case isYes(t.text):
		return t.enter(state.StateEnterCancellationReason)
	case isNo(t.text):
		t.say("cancellation_aborted")
		return t.resetToMainMenu()
	}
	return t.prompt()
}

// handleCancellationReason records the request. The order itself is left for the business to review.
func (e *Engine) handleCancellationReason(t *turn) error {
	if t.text == "" {
		return t.prompt()
	}

	f := t.s.Context.Orders
	if f == nil || f.OrderID == 0 {
		return state.ErrMissingContext
	}
	customerID, err := t.customerID()
	if err != nil {
		return err
	}

	_, err = e.deps.Orders.SubmitCancellation(t.ctx, customerID, f.OrderID, t.text)
	if key, rejected := cancellationRejection(err); rejected {
		t.sayf(key, map[string]any{"order_id": f.OrderID})
		return t.resetToMainMenu()
	}
	if err != nil {
		return err
	}

	t.sayf("cancellation_submitted", map[string]any{"order_id": f.OrderID})
	return t.resetToMainMenu()
}

const (
	receiptOptionUpload = iota
	receiptOptionHelp
	receiptOptionCount
)

func (e *Engine) handleReceiptOption(t *turn) error {
	i, ok := menuIndex(t.text, receiptOptionCount)
	if !ok {
		t.say("invalid_choice")
		return t.prompt()
	}

	if i == receiptOptionHelp {
		t.say("receipt_help", "1", "2", backKey)
		return nil
	}

	orders, err := t.pendingDeposits()
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		t.say("receipt_no_pending", "1", "2", backKey)
		return nil
	}

	t.s.Forward(state.StateSelectOrderForReceiptUpload)
	t.renderDepositOrders(orders)
	return nil
}

func (t *turn) pendingDeposits() ([]domain.Order, error) {
	customerID, err := t.customerID()
	if err != nil || customerID == 0 {
		return nil, err
	}
	return t.e.deps.Orders.PendingDepositOrders(t.ctx, t.businessID(), customerID)
}

func (t *turn) renderDepositOrders(orders []domain.Order) {
	f := t.s.Context.OrdersOrNew()
	f.Candidates = f.Candidates[:0]
	for _, o := range orders {
		f.Candidates = append(f.Candidates, o.ID)
	}
	t.send(t.e.composer.DepositOrders(t.ctx, t.businessID(), t.lang, orders), withBack(numberedKeys(len(orders)))...)
}

func (t *turn) promptDepositOrders() error {
	orders, err := t.pendingDeposits()
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		t.say("receipt_no_pending")
		return t.resetToMainMenu()
	}
	t.renderDepositOrders(orders)
	return nil
}

func (e *Engine) handleReceiptOrder(t *turn) error {
	f := t.s.Context.Orders
	if f == nil || len(f.Candidates) == 0 {
		return state.ErrMissingContext
	}

	i, ok := menuIndex(t.text, len(f.Candidates))
	if !ok {
		t.say("invalid_choice")
		return t.prompt()
	}

	f.OrderID = f.Candidates[i]
	t.s.Context.Payment = nil
	return t.enter(state.StateUploadPaymentReceipt)
}
