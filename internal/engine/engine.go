// Package engine runs the conversation: it loads the customer's session, dispatches the inbound
// message to the handler of the current state and persists the result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/chatshop/internal/catalog"
	"github.com/Proton-105/chatshop/internal/domain"
	apperrors "github.com/Proton-105/chatshop/internal/errors"
	"github.com/Proton-105/chatshop/internal/media"
	"github.com/Proton-105/chatshop/internal/notify"
	"github.com/Proton-105/chatshop/internal/order"
	"github.com/Proton-105/chatshop/internal/quantity"
	"github.com/Proton-105/chatshop/internal/state"
	"github.com/Proton-105/chatshop/pkg/metrics"
)

// Inbound is one customer message.
type Inbound struct {
	BusinessID int64
	// Address is the conversation address replies go to.
	Address string
	Name    string
	Text    string
	Media   *Media
}

// Media is an attachment sent with a message.
type Media struct {
	Data []byte
	Ext  string
}

// Outbound is one reply. Options are the short answers a transport may offer as buttons.
type Outbound struct {
	Text    string
	Options []string
}

// Sessions loads and saves conversation sessions under a per-conversation lock.
type Sessions interface {
	Acquire(ctx context.Context, key state.Key, name string) (*state.Session, func(), error)
	Save(ctx context.Context, session *state.Session) error
}

// Catalogs reads the live catalog of a business.
type Catalogs interface {
	Catalog(ctx context.Context, businessID int64) (*domain.Catalog, error)
}

// Businesses reads business profiles.
type Businesses interface {
	Business(ctx context.Context, id int64) (*domain.Business, error)
}

// Orders is the order lifecycle as seen from the conversation.
type Orders interface {
	PaymentOptions(ctx context.Context, businessID int64) ([]domain.PaymentOption, error)
	Quote(ctx context.Context, businessID int64, q quantity.Quantity, v domain.Variant) (order.Quote, error)
	Create(ctx context.Context, in order.NewOrder) (*domain.Order, order.Quote, error)
	ListByStatus(ctx context.Context, businessID, customerID int64, status domain.OrderStatus) ([]domain.Order, error)
	PendingDepositOrders(ctx context.Context, businessID, customerID int64) ([]domain.Order, error)
	AttachReceipt(ctx context.Context, customerID, orderID int64, url string) (*domain.Order, error)
	RequestCancellation(ctx context.Context, customerID, orderID int64) (*domain.Order, error)
	SubmitCancellation(ctx context.Context, customerID, orderID int64, reason string) (*domain.OrderCancellation, error)
}

// Customers stores checkout details.
type Customers interface {
	Find(ctx context.Context, businessID int64, address string) (*domain.Customer, error)
	Save(ctx context.Context, c *domain.Customer) error
	NormalizeEmail(input string) (string, error)
	NormalizePhone(input, address string) (string, error)
}

// Receipts stores uploaded payment receipts.
type Receipts interface {
	Save(ctx context.Context, r media.Receipt, data []byte) (string, error)
}

// Deps are the collaborators of the engine.
type Deps struct {
	Sessions   Sessions
	Catalogs   Catalogs
	Businesses Businesses
	Orders     Orders
	Customers  Customers
	Receipts   Receipts
	Templates  notify.Templates
	Errors     *apperrors.Handler
}

// Config tunes conversation behaviour.
type Config struct {
	DefaultLanguage string
	// SupportTTL is how long the customer-service passthrough stays open.
	SupportTTL time.Duration
}

// Engine handles inbound messages.
type Engine struct {
	deps     Deps
	composer *notify.Composer
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

// New creates an Engine.
func New(deps Deps, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if cfg.SupportTTL <= 0 {
		cfg.SupportTTL = 24 * time.Hour
	}

	return &Engine{
		deps:     deps,
		composer: notify.NewComposer(deps.Templates),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Handle processes one inbound message and returns the replies to send. The session is saved only
// when the handler succeeds, so a failed step leaves the conversation where it was.
func (e *Engine) Handle(ctx context.Context, in Inbound) ([]Outbound, error) {
	started := e.now()
	key := state.Key{Phone: in.Address, BusinessID: in.BusinessID}

	session, release, err := e.deps.Sessions.Acquire(ctx, key, in.Name)
	if err != nil {
		return e.failure(ctx, key, "", err)
	}
	defer release()

	t := &turn{
		e:       e,
		ctx:     ctx,
		s:       session,
		in:      in,
		text:    normalizeInput(in.Text),
		lang:    session.Language,
		started: started,
	}
	if t.lang == "" {
		t.lang = e.cfg.DefaultLanguage
	}

	loaded := session.State
	if err := e.dispatch(t); err != nil {
		if err := e.rescue(t, err); err != nil {
			metrics.RecordMessage(string(loaded), "error", e.now().Sub(started))
			return e.failure(ctx, key, session.Language, err)
		}
	}

	if err := e.deps.Sessions.Save(ctx, session); err != nil {
		metrics.RecordMessage(string(loaded), "error", e.now().Sub(started))
		return e.failure(ctx, key, session.Language, fmt.Errorf("save session: %w", err))
	}

	metrics.RecordMessage(string(loaded), "ok", e.now().Sub(started))
	return t.out, nil
}

// dispatch applies the rules that hold in every state before handing over to the state handler.
func (e *Engine) dispatch(t *turn) error {
	current := t.s.State

	if current == state.StateCustomerService {
		return e.handleCustomerService(t)
	}

	if isGreeting(t.text) {
		if t.s.Language == "" {
			t.s.Reset(state.StateSelectLanguage)
			return t.prompt()
		}
		t.s.Reset(state.StateMainMenu)
		return t.prompt()
	}

	if t.text == backKey && current.AcceptsBack() {
		return t.back()
	}

	handle := e.handler(current)
	if handle == nil {
		return fmt.Errorf("%w: %s", state.ErrUnknownState, current)
	}
	return handle(t)
}

// handler returns the step handler of st. Every state has exactly one.
func (e *Engine) handler(st state.State) func(*turn) error {
	switch st {
	case state.StateSelectLanguage:
		return e.handleSelectLanguage
	case state.StateMainMenu:
		return e.handleMainMenu
	case state.StateBusinessInfo:
		return e.handleBusinessInfo
	case state.StateSelectCategory:
		return e.catalogHandler(catalog.LevelCategory)
	case state.StateSelectSubcategory:
		return e.catalogHandler(catalog.LevelSubcategory)
	case state.StateSelectSubsubcategory:
		return e.catalogHandler(catalog.LevelSubsubcategory)
	case state.StateSelectProduct:
		return e.catalogHandler(catalog.LevelProduct)
	case state.StateSelectVariant:
		return e.catalogHandler(catalog.LevelVariant)
	case state.StateEnterQuantity:
		return e.handleQuantity
	case state.StateCollectName:
		return e.handleName
	case state.StateCollectAddress:
		return e.handleAddress
	case state.StateCollectEmail:
		return e.handleEmail
	case state.StateCollectPhone:
		return e.handlePhone
	case state.StateConfirmOrder:
		return e.handleConfirmOrder
	case state.StateSelectPaymentMethod:
		return e.handlePaymentMethod
	case state.StateUploadPaymentReceipt:
		return e.handleReceiptUpload
	case state.StatePostPayment:
		return e.handlePostPayment
	case state.StateOrderHistoryMenu:
		return e.handleOrderHistoryMenu
	case state.StateListOrders:
		return e.handleListOrders
	case state.StateAwaitingOrderCancellation:
		return e.handleCancellationOrderNumber
	case state.StateConfirmCancellation:
		return e.handleConfirmCancellation
	case state.StateEnterCancellationReason:
		return e.handleCancellationReason
	case state.StateSelectReceiptOption:
		return e.handleReceiptOption
	case state.StateSelectOrderForReceiptUpload:
		return e.handleReceiptOrder
	case state.StateCustomerService:
		return e.handleCustomerService
	}
	return nil
}

// rescue turns handler errors that have a safe answer into replies. Missing wizard data and
// vanished records send the customer back to the main menu; anything else is returned.
func (e *Engine) rescue(t *turn, err error) error {
	switch {
	case errors.Is(err, state.ErrMissingContext), errors.Is(err, state.ErrUnknownState):
		e.log.Warn("conversation context incomplete, resetting",
			slog.String("conversation", t.s.Key().String()),
			slog.String("state", string(t.s.State)),
			slog.Any("error", err),
		)
		metrics.RecordError(apperrors.CodeMissingContext, string(apperrors.SeverityMedium))
		t.out = nil
		t.say("error_session_reset")
		return t.resetToMainMenu()

	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrVariantNotFound):
		e.log.Info("referenced record not found",
			slog.String("conversation", t.s.Key().String()),
			slog.Any("error", err),
		)
		metrics.RecordError(apperrors.CodeNotFound, string(apperrors.SeverityLow))
		t.out = nil
		t.say("error_not_found")
		return t.resetToMainMenu()
	}
	return err
}

func (e *Engine) failure(ctx context.Context, key state.Key, lang string, err error) ([]Outbound, error) {
	userKey := "error_temporary"
	switch {
	case errors.Is(err, state.ErrStateLocked), errors.Is(err, order.ErrOrderBusy):
		userKey = "error_busy"
	case e.deps.Errors != nil:
		userKey, _ = e.deps.Errors.Handle(ctx, err)
	default:
		e.log.Error("failed to handle message", slog.String("conversation", key.String()), slog.Any("error", err))
	}

	if lang == "" {
		lang = e.cfg.DefaultLanguage
	}
	text := e.deps.Templates.Resolve(ctx, key.BusinessID, lang, userKey)
	return []Outbound{{Text: text}}, err
}
