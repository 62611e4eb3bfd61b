package engine

import (
	"fmt"
	"log/slog"

	"github.com/Proton-105/chatshop/internal/catalog"
	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/state"
)

// prompt renders the question of the current state from the stored context. It is used both when
// a state is entered and when the customer comes back to it.
func (t *turn) prompt() error {
	switch t.s.State {
	case state.StateSelectLanguage:
		t.say("select_language", "1", "2", "3")
		return nil
	case state.StateMainMenu:
		t.promptMainMenu()
		return nil
	case state.StateBusinessInfo:
		return t.promptBusinessInfo()

	case state.StateSelectCategory:
		return t.promptLevel(catalog.LevelCategory)
	case state.StateSelectSubcategory:
		return t.promptLevel(catalog.LevelSubcategory)
	case state.StateSelectSubsubcategory:
		return t.promptLevel(catalog.LevelSubsubcategory)
	case state.StateSelectProduct:
		return t.promptLevel(catalog.LevelProduct)
	case state.StateSelectVariant:
		return t.promptLevel(catalog.LevelVariant)
	case state.StateEnterQuantity:
		return t.promptQuantity()

	case state.StateCollectName:
		return t.promptField("collect_name", backKey)
	case state.StateCollectAddress:
		return t.promptField("collect_address", backKey)
	case state.StateCollectEmail:
		return t.promptField("collect_email", backKey)
	case state.StateCollectPhone:
		return t.promptField("collect_phone", backKey)

	case state.StateConfirmOrder:
		return t.promptConfirmOrder()
	case state.StateSelectPaymentMethod:
		return t.promptPaymentMethods()
	case state.StateUploadPaymentReceipt:
		if _, err := t.receiptOrderID(); err != nil {
			return err
		}
		t.say("upload_receipt", backKey)
		return nil
	case state.StatePostPayment:
		t.say("post_payment", backKey)
		return nil

	case state.StateOrderHistoryMenu:
		t.say("order_history_menu", withBack(numberedKeys(len(domain.OrderStatuses)))...)
		return nil
	case state.StateListOrders:
		return t.promptOrderList()
	case state.StateAwaitingOrderCancellation:
		t.say("cancellation_enter_order", backKey)
		return nil
	case state.StateConfirmCancellation:
		f := t.s.Context.Orders
		if f == nil || f.OrderID == 0 {
			return state.ErrMissingContext
		}
		t.sayf("cancellation_confirm", map[string]any{"order_id": f.OrderID}, "yes", "no", backKey)
		return nil
	case state.StateEnterCancellationReason:
		t.say("cancellation_reason", backKey)
		return nil
	case state.StateSelectReceiptOption:
		t.say("receipt_option_menu", "1", "2", backKey)
		return nil
	case state.StateSelectOrderForReceiptUpload:
		return t.promptDepositOrders()

	case state.StateCustomerService:
		t.say("customer_service_welcome", "menu")
		return nil
	}

	return fmt.Errorf("prompt: %w: %s", state.ErrUnknownState, t.s.State)
}

func (t *turn) promptMainMenu() {
	name := ""
	b, err := t.e.deps.Businesses.Business(t.ctx, t.businessID())
	if err != nil {
		t.e.log.Warn("failed to load business", slog.Int64("business_id", t.businessID()), slog.Any("error", err))
	} else {
		name = b.Name
	}
	t.sayf("main_menu", map[string]any{"business": name}, numberedKeys(mainOptionCount)...)
}

func (t *turn) promptBusinessInfo() error {
	b, err := t.e.deps.Businesses.Business(t.ctx, t.businessID())
	if err != nil {
		return fmt.Errorf("load business: %w", err)
	}
	t.sayf("business_info", map[string]any{
		"name":    b.Name,
		"phone":   b.Phone,
		"email":   b.Email,
		"address": b.Address,
	}, backKey)
	return nil
}
