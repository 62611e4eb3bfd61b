package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/state"
	"github.com/Proton-105/chatshop/pkg/metrics"
)

// ErrNoRecipient is returned when an order has no customer address to notify.
var ErrNoRecipient = errors.New("order has no recipient")

// Message is one outbound text to a conversation address.
type Message struct {
	BusinessID int64  `json:"business_id"`
	Address    string `json:"address"`
	Text       string `json:"text"`
}

// Dispatcher delivers or queues messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// Languages returns the language a customer chose in their conversation with a business.
type Languages interface {
	Language(ctx context.Context, businessID int64, address string) string
}

// Notifier sends order status messages in the customer's language.
type Notifier struct {
	composer   *Composer
	dispatcher Dispatcher
	languages  Languages
	log        *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(composer *Composer, dispatcher Dispatcher, languages Languages, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}

	return &Notifier{composer: composer, dispatcher: dispatcher, languages: languages, log: log}
}

// PaymentStatusChanged notifies the customer of the order's new payment status.
func (n *Notifier) PaymentStatusChanged(ctx context.Context, o *domain.Order) error {
	return n.send(ctx, o, n.composer.PaymentStatus)
}

// DeliveryStatusChanged notifies the customer of the order's new delivery status.
func (n *Notifier) DeliveryStatusChanged(ctx context.Context, o *domain.Order) error {
	return n.send(ctx, o, n.composer.DeliveryStatus)
}

// DepositReminder asks the customer for the missing deposit receipt.
func (n *Notifier) DepositReminder(ctx context.Context, o *domain.Order) error {
	return n.send(ctx, o, n.composer.DepositReminder)
}

func (n *Notifier) send(ctx context.Context, o *domain.Order, compose func(context.Context, string, *domain.Order) string) error {
	if o.Customer == nil || o.Customer.ChatAddress == "" {
		return fmt.Errorf("%w: order %d", ErrNoRecipient, o.ID)
	}

	address := o.Customer.ChatAddress
	lang := ""
	if n.languages != nil {
		lang = n.languages.Language(ctx, o.BusinessID, address)
	}

	msg := Message{BusinessID: o.BusinessID, Address: address, Text: compose(ctx, lang, o)}
	if err := n.dispatcher.Dispatch(ctx, msg); err != nil {
		metrics.RecordNotification(false)
		return fmt.Errorf("dispatch notification: %w", err)
	}

	metrics.RecordNotification(true)
	n.log.Debug("notification queued", slog.Int64("order_id", o.ID), slog.Int64("business_id", o.BusinessID))
	return nil
}

// SessionLanguages reads the customer language from the conversation store.
type SessionLanguages struct {
	Store state.Store
}

// Language returns the stored conversation language, or "" when there is none.
func (s SessionLanguages) Language(ctx context.Context, businessID int64, address string) string {
	session, err := s.Store.Load(ctx, state.Key{Phone: address, BusinessID: businessID})
	if err != nil || session == nil {
		return ""
	}
	return session.Language
}
