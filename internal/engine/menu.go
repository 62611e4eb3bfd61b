package engine

import (
	"strings"

	"github.com/Proton-105/chatshop/internal/state"
)

// languages are offered in this order at language selection.
var languages = []string{"en", "si", "ta"}

const (
	mainBusinessInfo = iota
	mainMyOrders
	mainPlaceOrder
	mainChangeLanguage
	mainUploadReceipt
	mainCustomerService
	mainOptionCount
)

func (e *Engine) handleSelectLanguage(t *turn) error {
	i, ok := menuIndex(t.text, len(languages))
	if !ok {
		return t.prompt()
	}

	t.s.Language = languages[i]
	t.lang = t.s.Language
	return t.resetToMainMenu()
}

func (e *Engine) handleMainMenu(t *turn) error {
	i, ok := menuIndex(t.text, mainOptionCount)
	if !ok {
		t.say("invalid_choice")
		return t.prompt()
	}

	switch i {
	case mainBusinessInfo:
		return t.enter(state.StateBusinessInfo)
	case mainMyOrders:
		return t.enter(state.StateOrderHistoryMenu)
	case mainPlaceOrder:
		return e.openCatalog(t)
	case mainChangeLanguage:
		return t.enter(state.StateSelectLanguage)
	case mainUploadReceipt:
		return t.enter(state.StateSelectReceiptOption)
	default:
		t.s.Context.Support = &state.SupportFrame{EnteredAt: e.now().UTC()}
		return t.enter(state.StateCustomerService)
	}
}

func (e *Engine) handleBusinessInfo(t *turn) error {
	return t.prompt()
}

// handleCustomerService archives everything the customer writes until they type "menu" or the
// passthrough expires. Expiry is only noticed when the next message arrives.
func (e *Engine) handleCustomerService(t *turn) error {
	support := t.s.Context.Support
	if support.Expired(e.now(), e.cfg.SupportTTL) {
		t.say("customer_service_expired")
		return t.resetToMainMenu()
	}

	if strings.EqualFold(t.text, "menu") {
		return t.resetToMainMenu()
	}

	text := t.text
	if text == "" && t.in.Media != nil {
		text = "[media]"
	}
	support.Transcript = append(support.Transcript, state.TranscriptEntry{
		Text: text,
		At:   e.now().UTC(),
		From: t.s.Name,
	})
	t.say("customer_service_received", "menu")
	return nil
}
