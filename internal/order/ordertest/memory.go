// Package ordertest provides in-memory order collaborators for tests.
package ordertest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/order"
)

// Store keeps orders, variant stock and the inventory ledger in memory. It implements
// order.Repository and order.BusinessSource.
type Store struct {
	mu sync.Mutex

	nextOrderID  int64
	nextItemID   int64
	nextCancelID int64

	Orders        map[int64]*domain.Order
	Variants      map[int64]*domain.Variant
	Warehouse     map[int64]float64
	Ledger        []domain.InventoryTransaction
	Cancellations []domain.OrderCancellation
	Options       map[int64][]domain.PaymentOption
	Fees          map[int64][]domain.DeliveryFee
	Customers     map[int64]*domain.Customer

	// FailUpdatePayment makes UpdatePayment fail without side effects.
	FailUpdatePayment error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		Orders:    map[int64]*domain.Order{},
		Variants:  map[int64]*domain.Variant{},
		Warehouse: map[int64]float64{},
		Options:   map[int64][]domain.PaymentOption{},
		Fees:      map[int64][]domain.DeliveryFee{},
		Customers: map[int64]*domain.Customer{},
	}
}

// AddVariant registers a variant whose stock UpdatePayment adjusts.
func (s *Store) AddVariant(v domain.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := v
	s.Variants[v.ID] = &cp
}

// Stock returns the current variant stock.
func (s *Store) Stock(variantID int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.Variants[variantID]; ok {
		return v.Stock
	}
	return 0
}

// LedgerLen returns the number of inventory transactions.
func (s *Store) LedgerLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Ledger)
}

func (s *Store) Create(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOrderID++
	o.ID = s.nextOrderID
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	for i := range o.Items {
		s.nextItemID++
		o.Items[i].ID = s.nextItemID
		o.Items[i].OrderID = o.ID
	}

	s.Orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *Store) Get(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.Orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return s.withRelations(o), nil
}

func (s *Store) FindByCheckoutKey(_ context.Context, businessID, customerID int64, key string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.Orders {
		if key != "" && o.CheckoutKey == key && o.BusinessID == businessID && o.CustomerID == customerID {
			return s.withRelations(o), nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (s *Store) withRelations(o *domain.Order) *domain.Order {
	cp := cloneOrder(o)
	if c, ok := s.Customers[o.CustomerID]; ok {
		cust := *c
		cp.Customer = &cust
	}
	for i := len(s.Cancellations) - 1; i >= 0; i-- {
		if s.Cancellations[i].OrderID == o.ID {
			c := s.Cancellations[i]
			cp.LatestCancellation = &c
			break
		}
	}
	return cp
}

func (s *Store) List(_ context.Context, businessID int64, f domain.OrderFilter) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Order
	for _, o := range s.Orders {
		if o.BusinessID != businessID {
			continue
		}
		if f.CustomerID != 0 && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			continue
		}
		if f.DeliveryStatus != "" && o.DeliveryStatus != f.DeliveryStatus {
			continue
		}
		if f.PaymentMethod != "" && o.PaymentMethod != f.PaymentMethod {
			continue
		}
		out = append(out, *s.withRelations(o))
	}
	sortNewestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) PendingDeposits(_ context.Context, businessID, customerID int64, createdBefore time.Time) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Order
	for _, o := range s.Orders {
		if businessID != 0 && o.BusinessID != businessID {
			continue
		}
		if customerID != 0 && o.CustomerID != customerID {
			continue
		}
		if o.PaymentMethod != domain.PaymentMethodDeposit || o.PaymentStatus != domain.PaymentPending || o.PaymentReceiptURL != "" {
			continue
		}
		if !createdBefore.IsZero() && !o.CreatedAt.Before(createdBefore) {
			continue
		}
		out = append(out, *s.withRelations(o))
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) SetReceipt(_ context.Context, id int64, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.Orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.PaymentReceiptURL = url
	o.PaymentStatus = domain.PaymentPending
	return nil
}

func (s *Store) UpdatePayment(_ context.Context, id int64, status domain.PaymentStatus, derived domain.OrderStatus, moves []domain.InventoryTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUpdatePayment != nil {
		return s.FailUpdatePayment
	}

	o, ok := s.Orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	for _, mv := range moves {
		if _, ok := s.Variants[mv.VariantID]; !ok {
			return order.ErrVariantNotFound
		}
	}

	for _, mv := range moves {
		v := s.Variants[mv.VariantID]
		delta := mv.Quantity
		if mv.Type == domain.StockOut {
			delta = -delta
		}
		v.Stock += delta
		s.Warehouse[mv.VariantID] += delta
		mv.CreatedAt = time.Now().UTC()
		mv.ID = int64(len(s.Ledger) + 1)
		s.Ledger = append(s.Ledger, mv)
	}

	o.PaymentStatus = status
	o.Status = derived
	return nil
}

func (s *Store) UpdateDelivery(_ context.Context, id int64, status domain.DeliveryStatus, derived domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.Orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.DeliveryStatus = status
	o.Status = derived
	return nil
}

func (s *Store) CreateCancellation(_ context.Context, c *domain.OrderCancellation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Orders[c.OrderID]; !ok {
		return order.ErrOrderNotFound
	}
	s.nextCancelID++
	c.ID = s.nextCancelID
	s.Cancellations = append(s.Cancellations, *c)
	return nil
}

func (s *Store) PaymentOptions(_ context.Context, businessID int64) ([]domain.PaymentOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PaymentOption(nil), s.Options[businessID]...), nil
}

func (s *Store) DeliveryFees(_ context.Context, businessID int64) ([]domain.DeliveryFee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DeliveryFee(nil), s.Fees[businessID]...), nil
}

// Seed stores o as is, keeping its id.
func (s *Store) Seed(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID > s.nextOrderID {
		s.nextOrderID = o.ID
	}
	s.Orders[o.ID] = cloneOrder(&o)
}

// Recorder captures notifications and published events.
type Recorder struct {
	mu       sync.Mutex
	Payments []domain.Order
	Delivery []domain.Order
	Events   []string
	// Fail makes every notification fail.
	Fail error
}

func (r *Recorder) PaymentStatusChanged(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Payments = append(r.Payments, *o)
	return r.Fail
}

func (r *Recorder) DeliveryStatusChanged(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Delivery = append(r.Delivery, *o)
	return r.Fail
}

func (r *Recorder) Publish(_ context.Context, routingKey string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, routingKey)
	return nil
}

// ErrNotifyFailed is a canned notification failure.
var ErrNotifyFailed = errors.New("transport unavailable")

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	cp.Customer = nil
	cp.LatestCancellation = nil
	return &cp
}

func sortNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}
