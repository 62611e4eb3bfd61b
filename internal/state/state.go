package state

import (
	"fmt"
	"time"
)

// State is a step of the conversation wizard.
type State string

const (
	StateSelectLanguage State = "select_language"
	StateMainMenu       State = "main_menu"
	StateBusinessInfo   State = "business_info"

	StateSelectCategory       State = "select_category"
	StateSelectSubcategory    State = "select_subcategory"
	StateSelectSubsubcategory State = "select_subsubcategory"
	StateSelectProduct        State = "select_product"
	StateSelectVariant        State = "select_variant"
	StateEnterQuantity        State = "enter_quantity"

	StateCollectName    State = "collect_customer_name"
	StateCollectAddress State = "collect_customer_address"
	StateCollectEmail   State = "collect_customer_email"
	StateCollectPhone   State = "collect_customer_phone"

	StateConfirmOrder         State = "confirm_order"
	StateSelectPaymentMethod  State = "select_payment_method"
	StateUploadPaymentReceipt State = "upload_payment_receipt"
	StatePostPayment          State = "post_payment"

	StateOrderHistoryMenu            State = "order_history_menu"
	StateListOrders                  State = "list_orders"
	StateAwaitingOrderCancellation   State = "awaiting_order_cancellation"
	StateConfirmCancellation         State = "confirm_cancellation"
	StateEnterCancellationReason     State = "enter_cancellation_reason"
	StateSelectReceiptOption         State = "select_receipt_option"
	StateSelectOrderForReceiptUpload State = "select_order_for_receipt_upload"

	StateCustomerService State = "customer_service"
)

// All lists every state; dispatch tables are checked against it.
var All = []State{
	StateSelectLanguage,
	StateMainMenu,
	StateBusinessInfo,
	StateSelectCategory,
	StateSelectSubcategory,
	StateSelectSubsubcategory,
	StateSelectProduct,
	StateSelectVariant,
	StateEnterQuantity,
	StateCollectName,
	StateCollectAddress,
	StateCollectEmail,
	StateCollectPhone,
	StateConfirmOrder,
	StateSelectPaymentMethod,
	StateUploadPaymentReceipt,
	StatePostPayment,
	StateOrderHistoryMenu,
	StateListOrders,
	StateAwaitingOrderCancellation,
	StateConfirmCancellation,
	StateEnterCancellationReason,
	StateSelectReceiptOption,
	StateSelectOrderForReceiptUpload,
	StateCustomerService,
}

var known = func() map[State]struct{} {
	m := make(map[State]struct{}, len(All))
	for _, s := range All {
		m[s] = struct{}{}
	}
	return m
}()

// Parse validates a persisted state name.
func Parse(name string) (State, error) {
	s := State(name)
	if _, ok := known[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, name)
	}
	return s, nil
}

// Family groups states into wizards.
type Family int

const (
	FamilyBootstrap Family = iota
	FamilyMain
	FamilyCatalog
	FamilyCustomer
	FamilyCheckout
	FamilyOrders
	FamilySupport
)

// Family returns the wizard the state belongs to.
func (s State) Family() Family {
	switch s {
	case StateSelectLanguage:
		return FamilyBootstrap
	case StateSelectCategory, StateSelectSubcategory, StateSelectSubsubcategory,
		StateSelectProduct, StateSelectVariant, StateEnterQuantity:
		return FamilyCatalog
	case StateCollectName, StateCollectAddress, StateCollectEmail, StateCollectPhone:
		return FamilyCustomer
	case StateConfirmOrder, StateSelectPaymentMethod, StateUploadPaymentReceipt, StatePostPayment:
		return FamilyCheckout
	case StateOrderHistoryMenu, StateListOrders, StateAwaitingOrderCancellation, StateConfirmCancellation,
		StateEnterCancellationReason, StateSelectReceiptOption, StateSelectOrderForReceiptUpload:
		return FamilyOrders
	case StateCustomerService:
		return FamilySupport
	default:
		return FamilyMain
	}
}

// AcceptsBack reports whether "0" pops the back stack in this state. The email and phone steps
// read "0" as "none" and "use this chat" instead.
func (s State) AcceptsBack() bool {
	switch s.Family() {
	case FamilyCatalog, FamilyOrders:
		return true
	case FamilyCustomer:
		return s == StateCollectName || s == StateCollectAddress
	case FamilyCheckout:
		return s != StatePostPayment
	}
	return s == StateBusinessInfo
}

// Key identifies a conversation: one customer address talking to one business.
type Key struct {
	Phone      string
	BusinessID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%s", k.BusinessID, k.Phone)
}

// Session is the persisted conversation record.
type Session struct {
	Phone         string    `json:"phone"`
	BusinessID    int64     `json:"business_id"`
	Name          string    `json:"name"`
	State         State     `json:"state"`
	PreviousState State     `json:"previous_state,omitempty"`
	Language      string    `json:"language,omitempty"`
	Context       Context   `json:"context"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	loaded   State
	snapshot Snapshot
	popped   bool
}

// NewSession starts a conversation in language selection.
func NewSession(key Key, name string) *Session {
	now := time.Now().UTC()
	s := &Session{
		Phone:      key.Phone,
		BusinessID: key.BusinessID,
		Name:       name,
		State:      StateSelectLanguage,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.Begin()
	return s
}

// Key returns the conversation key.
func (s *Session) Key() Key {
	return Key{Phone: s.Phone, BusinessID: s.BusinessID}
}

// Begin marks the start of processing one inbound message.
func (s *Session) Begin() {
	s.loaded = s.State
	s.snapshot = s.Context.Snapshot()
	s.popped = false
}

// Loaded returns the state the session was in when the current message arrived.
func (s *Session) Loaded() State {
	return s.loaded
}

// Forward moves to next and remembers the current step and its context on the back stack.
func (s *Session) Forward(next State) {
	if next == s.State {
		return
	}
	s.Context.push(Frame{State: s.State, Snapshot: s.snapshot, At: time.Now().UTC()})
	s.State = next
}

// Back restores the most recent frame. It returns false when there is nothing to go back to.
func (s *Session) Back() bool {
	frame, ok := s.Context.pop()
	if !ok {
		return false
	}
	s.Context.restore(frame.Snapshot)
	s.State = frame.State
	s.popped = true
	return true
}

// Unwind returns to target, dropping frames pushed after it while keeping the current context.
func (s *Session) Unwind(target State) bool {
	for i := len(s.Context.Back) - 1; i >= 0; i-- {
		if s.Context.Back[i].State == target {
			s.Context.Back = s.Context.Back[:i]
			s.State = target
			s.popped = true
			return true
		}
	}
	return false
}

// ClearBack forgets the back stack so "0" can no longer leave the current step.
func (s *Session) ClearBack() {
	s.Context.Back = nil
}

// Reset drops all wizard data and the back stack and moves to next.
func (s *Session) Reset(next State) {
	s.Context = Context{}
	s.State = next
	s.popped = true
}

// previous is the state "back" would return to, or the state the message arrived in.
func (s *Session) previous() State {
	if n := len(s.Context.Back); n > 0 {
		return s.Context.Back[n-1].State
	}
	if s.loaded != s.State {
		return s.loaded
	}
	return s.PreviousState
}
