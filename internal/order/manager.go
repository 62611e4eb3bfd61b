package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/quantity"
	"github.com/Proton-105/chatshop/pkg/metrics"
)

const (
	orderLockKeyPattern = "order:lock:%d"
	defaultLockTTL      = 10 * time.Second
	defaultLockWait     = 3 * time.Second
)

// NewOrder is a single-variant purchase ready to be placed.
type NewOrder struct {
	BusinessID int64
	CustomerID int64
	Product    domain.Product
	Variant    domain.Variant
	Quantity   quantity.Quantity
	Method     domain.PaymentMethod
	// CheckoutKey makes placement idempotent: a repeated key returns the order already placed.
	CheckoutKey string
}

// Manager runs the order lifecycle.
type Manager struct {
	repo      Repository
	business  BusinessSource
	notifier  Notifier
	publisher Publisher
	locker    Locker
	log       *slog.Logger
	lockTTL   time.Duration
	lockWait  time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets the customer notifier.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithPublisher sets the back-office event publisher.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithLocker serialises status updates per order.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = l
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// NewManager creates a Manager.
func NewManager(repo Repository, business BusinessSource, log *slog.Logger, opts ...Option) *Manager {
	if log == nil {
		log = slog.Default()
	}

	m := &Manager{
		repo:     repo,
		business: business,
		log:      log,
		lockTTL:  defaultLockTTL,
		lockWait: defaultLockWait,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PaymentOptions returns the enabled payment options of a business in offer order.
func (m *Manager) PaymentOptions(ctx context.Context, businessID int64) ([]domain.PaymentOption, error) {
	all, err := m.business.PaymentOptions(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("load payment options: %w", err)
	}

	enabled := make([]domain.PaymentOption, 0, len(all))
	for _, opt := range all {
		if opt.Enabled {
			enabled = append(enabled, opt)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		if enabled[i].SortOrder != enabled[j].SortOrder {
			return enabled[i].SortOrder < enabled[j].SortOrder
		}
		return enabled[i].ID < enabled[j].ID
	})
	return enabled, nil
}

// Quote prices a purchase without placing it.
func (m *Manager) Quote(ctx context.Context, businessID int64, q quantity.Quantity, v domain.Variant) (Quote, error) {
	fees, err := m.business.DeliveryFees(ctx, businessID)
	if err != nil {
		return Quote{}, fmt.Errorf("load delivery fees: %w", err)
	}
	return Price(q, v, fees), nil
}

// Create prices and stores the order. Card orders are marked paid immediately, which books the stock
// out; every other method leaves the payment pending.
func (m *Manager) Create(ctx context.Context, in NewOrder) (*domain.Order, Quote, error) {
	if in.CheckoutKey != "" {
		placed, err := m.repo.FindByCheckoutKey(ctx, in.BusinessID, in.CustomerID, in.CheckoutKey)
		switch {
		case err == nil:
			return m.resume(ctx, placed)
		case !errors.Is(err, ErrOrderNotFound):
			return nil, Quote{}, fmt.Errorf("find order by checkout key: %w", err)
		}
	}

	if _, err := quantity.CheckStock(in.Quantity, in.Variant); err != nil {
		return nil, Quote{}, err
	}
	if err := m.checkMethod(ctx, in.BusinessID, in.Method); err != nil {
		return nil, Quote{}, err
	}

	quote, err := m.Quote(ctx, in.BusinessID, in.Quantity, in.Variant)
	if err != nil {
		return nil, Quote{}, err
	}

	o := &domain.Order{
		BusinessID:     in.BusinessID,
		CustomerID:     in.CustomerID,
		TotalAmount:    quote.Total,
		DeliveryFee:    quote.DeliveryFee,
		PaymentMethod:  in.Method,
		PaymentStatus:  domain.PaymentPending,
		DeliveryStatus: domain.DeliveryPending,
		Status:         Derive(domain.PaymentPending, domain.DeliveryPending),
		CheckoutKey:    in.CheckoutKey,
		CreatedAt:      time.Now().UTC(),
		Items: []domain.OrderItem{{
			ProductID:    in.Product.ID,
			VariantID:    in.Variant.ID,
			ProductName:  in.Product.Name,
			VariantName:  in.Variant.Name,
			Unit:         in.Variant.Unit,
			Quantity:     quote.Quantity,
			PricePerUnit: quote.UnitPrice,
			TotalPrice:   quote.Subtotal,
		}},
	}

	if err := m.repo.Create(ctx, o); err != nil {
		return nil, Quote{}, fmt.Errorf("create order: %w", err)
	}

	metrics.RecordOrderCreated(string(in.Method))
	m.publish(ctx, EventCreated, eventFor(o))
	m.log.Info("order created",
		slog.Int64("order_id", o.ID),
		slog.Int64("business_id", o.BusinessID),
		slog.String("payment_method", string(o.PaymentMethod)),
	)

	if in.Method == domain.PaymentMethodCard {
		paid, err := m.UpdatePaymentStatus(ctx, o.ID, domain.PaymentPaid)
		if err != nil {
			return o, quote, fmt.Errorf("mark card order paid: %w", err)
		}
		o = paid
	}

	return o, quote, nil
}

// resume returns an order placed by an earlier attempt of the same checkout. A card order whose
// settlement failed last time is settled now; stock is never booked twice.
func (m *Manager) resume(ctx context.Context, o *domain.Order) (*domain.Order, Quote, error) {
	m.log.Info("order already placed for checkout",
		slog.Int64("order_id", o.ID),
		slog.Int64("business_id", o.BusinessID),
	)

	quote := quoteOf(o)
	if o.PaymentMethod == domain.PaymentMethodCard && o.PaymentStatus == domain.PaymentPending {
		paid, err := m.UpdatePaymentStatus(ctx, o.ID, domain.PaymentPaid)
		if err != nil {
			return o, quote, fmt.Errorf("mark card order paid: %w", err)
		}
		o = paid
	}
	return o, quote, nil
}

func (m *Manager) checkMethod(ctx context.Context, businessID int64, method domain.PaymentMethod) error {
	opts, err := m.PaymentOptions(ctx, businessID)
	if err != nil {
		return err
	}
	for _, opt := range opts {
		if opt.Key == method {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrPaymentMethodUnavailable, method)
}

// Get returns an order with its relations.
func (m *Manager) Get(ctx context.Context, id int64) (*domain.Order, error) {
	return m.repo.Get(ctx, id)
}

// UpdatePaymentStatus sets the payment status and re-derives the aggregate status. Paid books every
// item out of stock and refund books it back in, each with its transaction record, in the same
// write. The customer is notified afterwards; a failed notification does not undo the update.
func (m *Manager) UpdatePaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: payment %q", ErrInvalidStatus, status)
	}

	release, err := m.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	o, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	derived := Derive(status, o.DeliveryStatus)
	moves := stockMoves(o, status)

	if err := m.repo.UpdatePayment(ctx, id, status, derived, moves); err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	o.PaymentStatus = status
	o.Status = derived

	metrics.RecordStatusChange("payment", string(status))
	m.log.Info("payment status updated",
		slog.Int64("order_id", id),
		slog.String("payment_status", string(status)),
		slog.String("status", string(derived)),
		slog.Int("stock_moves", len(moves)),
	)

	m.publish(ctx, EventPaymentStatus, eventFor(o))
	if m.notifier != nil {
		if err := m.notifier.PaymentStatusChanged(ctx, o); err != nil {
			m.log.Error("failed to notify payment status", slog.Int64("order_id", id), slog.Any("error", err))
		}
	}

	return o, nil
}

func stockMoves(o *domain.Order, status domain.PaymentStatus) []domain.InventoryTransaction {
	var direction domain.StockDirection
	switch status {
	case domain.PaymentPaid:
		direction = domain.StockOut
	case domain.PaymentRefund:
		direction = domain.StockIn
	default:
		return nil
	}

	moves := make([]domain.InventoryTransaction, 0, len(o.Items))
	for _, it := range o.Items {
		moves = append(moves, domain.InventoryTransaction{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Type:      direction,
			Note:      fmt.Sprintf("Order #%d %s", o.ID, status),
		})
	}
	return moves
}

// UpdateDeliveryStatus sets the delivery status and re-derives the aggregate status.
func (m *Manager) UpdateDeliveryStatus(ctx context.Context, id int64, status domain.DeliveryStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: delivery %q", ErrInvalidStatus, status)
	}

	release, err := m.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	o, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	derived := Derive(o.PaymentStatus, status)
	if err := m.repo.UpdateDelivery(ctx, id, status, derived); err != nil {
		return nil, fmt.Errorf("update delivery status: %w", err)
	}

	o.DeliveryStatus = status
	o.Status = derived

	metrics.RecordStatusChange("delivery", string(status))
	m.log.Info("delivery status updated",
		slog.Int64("order_id", id),
		slog.String("delivery_status", string(status)),
		slog.String("status", string(derived)),
	)

	m.publish(ctx, EventDeliveryStatus, eventFor(o))
	if m.notifier != nil {
		if err := m.notifier.DeliveryStatusChanged(ctx, o); err != nil {
			m.log.Error("failed to notify delivery status", slog.Int64("order_id", id), slog.Any("error", err))
		}
	}

	return o, nil
}

// ListByStatus returns a customer's orders in status, newest first.
func (m *Manager) ListByStatus(ctx context.Context, businessID, customerID int64, status domain.OrderStatus) ([]domain.Order, error) {
	return m.repo.List(ctx, businessID, domain.OrderFilter{CustomerID: customerID, Status: status})
}

// List returns business orders matching f.
func (m *Manager) List(ctx context.Context, businessID int64, f domain.OrderFilter) ([]domain.Order, error) {
	return m.repo.List(ctx, businessID, f)
}

// PendingDepositOrders returns a customer's deposit orders that still need a receipt.
func (m *Manager) PendingDepositOrders(ctx context.Context, businessID, customerID int64) ([]domain.Order, error) {
	return m.repo.PendingDeposits(ctx, businessID, customerID, time.Time{})
}

// StaleDepositOrders returns deposit orders across all businesses still missing a receipt after minAge.
func (m *Manager) StaleDepositOrders(ctx context.Context, minAge time.Duration) ([]domain.Order, error) {
	return m.repo.PendingDeposits(ctx, 0, 0, time.Now().UTC().Add(-minAge))
}

// AttachReceipt stores the receipt reference on a customer's order. The payment stays pending
// until the business confirms it.
func (m *Manager) AttachReceipt(ctx context.Context, customerID, orderID int64, url string) (*domain.Order, error) {
	o, err := m.owned(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}

	if err := m.repo.SetReceipt(ctx, orderID, url); err != nil {
		return nil, fmt.Errorf("set receipt: %w", err)
	}
	o.PaymentReceiptURL = url
	o.PaymentStatus = domain.PaymentPending

	m.publish(ctx, EventReceiptUploaded, eventFor(o))
	return o, nil
}

// RequestCancellation checks that a customer's order may be cancelled and returns it.
func (m *Manager) RequestCancellation(ctx context.Context, customerID, orderID int64) (*domain.Order, error) {
	o, err := m.owned(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	if err := CanCancel(o); err != nil {
		return o, err
	}
	return o, nil
}

// SubmitCancellation records a pending cancellation request with reason. The order status is
// left for the business to decide.
func (m *Manager) SubmitCancellation(ctx context.Context, customerID, orderID int64, reason string) (*domain.OrderCancellation, error) {
	release, err := m.lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	o, err := m.RequestCancellation(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}

	c := &domain.OrderCancellation{
		OrderID:   orderID,
		Reason:    reason,
		Status:    domain.CancellationPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.repo.CreateCancellation(ctx, c); err != nil {
		return nil, fmt.Errorf("create cancellation: %w", err)
	}

	ev := eventFor(o)
	ev.Reason = reason
	m.publish(ctx, EventCancellationRequested, ev)
	m.log.Info("cancellation requested", slog.Int64("order_id", orderID))

	return c, nil
}

func (m *Manager) owned(ctx context.Context, customerID, orderID int64) (*domain.Order, error) {
	o, err := m.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (m *Manager) lock(ctx context.Context, id int64) (func(), error) {
	if m.locker == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf(orderLockKeyPattern, id)
	unlock, err := m.locker.Lock(ctx, key, m.lockTTL, m.lockWait)
	if err != nil {
		m.log.Warn("failed to lock order", slog.Int64("order_id", id), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrOrderBusy, err)
	}

	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			m.log.Error("failed to unlock order", slog.Int64("order_id", id), slog.Any("error", err))
		}
	}, nil
}

func (m *Manager) publish(ctx context.Context, key string, ev Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, key, ev); err != nil {
		m.log.Error("failed to publish order event",
			slog.String("routing_key", key),
			slog.Int64("order_id", ev.OrderID),
			slog.Any("error", err),
		)
	}
}

// IsCancellationRejection reports whether err is one of the cancellation eligibility errors.
func IsCancellationRejection(err error) bool {
	return errors.Is(err, ErrCancellationExists) || errors.Is(err, ErrNotCancellable)
}
