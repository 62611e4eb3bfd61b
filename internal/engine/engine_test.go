package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/chatshop/internal/customer"
	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/media"
	"github.com/Proton-105/chatshop/internal/order"
	"github.com/Proton-105/chatshop/internal/order/ordertest"
	"github.com/Proton-105/chatshop/internal/state"
)

const (
	bizID   = 7
	address = "94770000001"
)

var errSaveFailed = errors.New("save failed")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// keyTemplates renders a template as its key followed by the sorted variables.
type keyTemplates struct{}

func (keyTemplates) Resolve(_ context.Context, _ int64, _, key string) string {
	return key
}

func (keyTemplates) Format(_ context.Context, _ int64, _, key string, vars map[string]any) string {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(key)
	for _, k := range names {
		fmt.Fprintf(&b, " %s=%v", k, vars[k])
	}
	return b.String()
}

// memSessions stores sessions as JSON so every message starts from a persisted copy.
type memSessions struct {
	mu       sync.Mutex
	data     map[state.Key][]byte
	failSave error
}

func (m *memSessions) Load(_ context.Context, key state.Key) (*state.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.data[key]
	if !ok {
		return nil, state.ErrStateNotFound
	}
	var s state.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if _, err := state.Parse(string(s.State)); err != nil {
		return &s, err
	}
	return &s, nil
}

func (m *memSessions) Save(_ context.Context, s *state.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSave != nil {
		return m.failSave
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.data[s.Key()] = raw
	return nil
}

func (m *memSessions) get(t *testing.T) *state.Session {
	t.Helper()
	s, err := m.Load(context.Background(), state.Key{Phone: address, BusinessID: bizID})
	require.NoError(t, err)
	return s
}

type memCustomers struct {
	mu     sync.Mutex
	nextID int64
	byChat map[string]*domain.Customer
	store  *ordertest.Store
}

func (m *memCustomers) FindByChat(_ context.Context, businessID int64, addr string) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byChat[fmt.Sprintf("%d:%s", businessID, addr)]
	if !ok {
		return nil, customer.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCustomers) Upsert(_ context.Context, c *domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%d:%s", c.BusinessID, c.ChatAddress)
	if existing, ok := m.byChat[key]; ok {
		c.ID = existing.ID
	} else {
		m.nextID++
		c.ID = m.nextID
	}
	cp := *c
	m.byChat[key] = &cp
	m.store.Customers[c.ID] = &cp
	return nil
}

type memReceipts struct {
	saved []media.Receipt
}

func (m *memReceipts) Save(_ context.Context, r media.Receipt, data []byte) (string, error) {
	m.saved = append(m.saved, r)
	return fmt.Sprintf("https://media.test/receipt-%d.%s", r.OrderID, r.Ext), nil
}

type fixedBusinesses struct{}

func (fixedBusinesses) Business(_ context.Context, id int64) (*domain.Business, error) {
	return &domain.Business{ID: id, Name: "Lanka Stores", Phone: "0112345678", Email: "shop@lanka.test", Address: "Colombo", IsActive: true}, nil
}

// storeCatalog serves a fixed tree whose variant stock is read from the order store.
type storeCatalog struct {
	store *ordertest.Store
	empty bool
}

func (c storeCatalog) Catalog(_ context.Context, businessID int64) (*domain.Catalog, error) {
	if c.empty {
		return &domain.Catalog{BusinessID: businessID}, nil
	}

	variant := func(id, productID int64, name string, price float64, unit string) domain.Variant {
		return domain.Variant{ID: id, ProductID: productID, Name: name, Price: price, Stock: c.store.Stock(id), Unit: unit, IsActive: true}
	}

	return &domain.Catalog{
		BusinessID: businessID,
		Categories: []domain.Category{
			{
				ID: 1, Name: "Groceries",
				Subcategories: []domain.Subcategory{{
					ID: 11, CategoryID: 1, Name: "Grains",
					Subsubcategories: []domain.Subsubcategory{{
						ID: 111, SubcategoryID: 11, Name: "Rice",
						Products: []domain.Product{{
							ID: 10, Name: "Rice", BasePrice: 200, IsActive: true,
							Variants: []domain.Variant{
								variant(100, 10, "Samba", 250, "kg"),
								variant(101, 10, "Nadu", 200, "kg"),
							},
						}},
					}},
					Products: []domain.Product{{
						ID: 20, Name: "Flour", BasePrice: 180, IsActive: true,
						Variants: []domain.Variant{variant(200, 20, "Wheat", 180, "kg")},
					}},
				}},
			},
			{
				ID: 2, Name: "Drinks",
				Subcategories: []domain.Subcategory{{
					ID: 21, CategoryID: 2, Name: "Juice",
					Products: []domain.Product{{
						ID: 30, Name: "Orange juice", BasePrice: 500, IsActive: true,
						Variants: []domain.Variant{variant(300, 30, "Bottle", 500, "l")},
					}},
				}},
			},
			{
				ID: 3, Name: "Household",
				Subcategories: []domain.Subcategory{{
					ID: 31, CategoryID: 3, Name: "Cleaning",
					Products: []domain.Product{
						{
							ID: 40, Name: "Soap", BasePrice: 120, IsActive: true,
							Variants: []domain.Variant{variant(400, 40, "Bar", 120, "pcs")},
						},
						{
							ID: 50, Name: "Detergent", BasePrice: 450, IsActive: true,
							Variants: []domain.Variant{
								variant(500, 50, "Lemon", 450, "pcs"),
								variant(501, 50, "Lime", 460, "pcs"),
							},
						},
					},
				}},
			},
		},
	}, nil
}

type fixture struct {
	engine    *Engine
	store     *ordertest.Store
	recorder  *ordertest.Recorder
	sessions  *memSessions
	customers *memCustomers
	receipts  *memReceipts
	now       time.Time
}

func newFixture(t *testing.T, sambaStock float64) *fixture {
	t.Helper()

	store := ordertest.NewStore()
	store.AddVariant(domain.Variant{ID: 100, ProductID: 10, Name: "Samba", Price: 250, Stock: sambaStock, Unit: "kg", IsActive: true})
	store.AddVariant(domain.Variant{ID: 101, ProductID: 10, Name: "Nadu", Price: 200, Stock: 50, Unit: "kg", IsActive: true})
	store.AddVariant(domain.Variant{ID: 200, ProductID: 20, Name: "Wheat", Price: 180, Stock: 50, Unit: "kg", IsActive: true})
	store.AddVariant(domain.Variant{ID: 300, ProductID: 30, Name: "Bottle", Price: 500, Stock: 20, Unit: "l", IsActive: true})
	store.AddVariant(domain.Variant{ID: 400, ProductID: 40, Name: "Bar", Price: 120, Stock: 30, Unit: "pcs", IsActive: true})
	store.AddVariant(domain.Variant{ID: 500, ProductID: 50, Name: "Lemon", Price: 450, Stock: 10, Unit: "pcs", IsActive: true})
	store.AddVariant(domain.Variant{ID: 501, ProductID: 50, Name: "Lime", Price: 460, Stock: 10, Unit: "pcs", IsActive: true})
	store.Options[bizID] = []domain.PaymentOption{
		{ID: 1, BusinessID: bizID, Name: "Card", Key: domain.PaymentMethodCard, Enabled: true, SortOrder: 1},
		{ID: 2, BusinessID: bizID, Name: "Bank deposit", Key: domain.PaymentMethodDeposit, Enabled: true, SortOrder: 2},
		{ID: 3, BusinessID: bizID, Name: "Cash on delivery", Key: domain.PaymentMethodCOD, Enabled: true, SortOrder: 3},
	}
	store.Fees[bizID] = []domain.DeliveryFee{
		{UnitType: domain.UnitTypeWeight, MinValue: 0, MaxValue: 5, Fee: 300},
	}

	recorder := &ordertest.Recorder{}
	manager := order.NewManager(store, store, testLogger(), order.WithNotifier(recorder), order.WithPublisher(recorder))

	sessions := &memSessions{data: map[state.Key][]byte{}}
	customers := &memCustomers{byChat: map[string]*domain.Customer{}, store: store}
	receipts := &memReceipts{}

	f := &fixture{
		store:     store,
		recorder:  recorder,
		sessions:  sessions,
		customers: customers,
		receipts:  receipts,
		now:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	f.engine = New(Deps{
		Sessions:   state.NewMachine(sessions, testLogger(), nil),
		Catalogs:   storeCatalog{store: store},
		Businesses: fixedBusinesses{},
		Orders:     manager,
		Customers:  customer.NewService(customers, nil, testLogger()),
		Receipts:   receipts,
		Templates:  keyTemplates{},
	}, Config{DefaultLanguage: "en", SupportTTL: 24 * time.Hour}, testLogger())
	f.engine.now = func() time.Time { return f.now }

	return f
}

// atMainMenu starts the conversation with English already chosen.
func (f *fixture) atMainMenu(t *testing.T) {
	t.Helper()
	session := state.NewSession(state.Key{Phone: address, BusinessID: bizID}, "Nimal")
	session.State = state.StateMainMenu
	session.Language = "en"
	require.NoError(t, f.sessions.Save(context.Background(), session))
}

func (f *fixture) send(t *testing.T, text string) []Outbound {
	t.Helper()
	out, err := f.engine.Handle(context.Background(), Inbound{BusinessID: bizID, Address: address, Name: "Nimal", Text: text})
	require.NoError(t, err)
	return out
}

func (f *fixture) sendMedia(t *testing.T, data []byte, ext string) []Outbound {
	t.Helper()
	out, err := f.engine.Handle(context.Background(), Inbound{
		BusinessID: bizID,
		Address:    address,
		Name:       "Nimal",
		Media:      &Media{Data: data, Ext: ext},
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) walk(t *testing.T, inputs ...string) []Outbound {
	t.Helper()
	var out []Outbound
	for _, in := range inputs {
		out = f.send(t, in)
	}
	return out
}

func (f *fixture) seedCustomer(t *testing.T) int64 {
	t.Helper()
	c := &domain.Customer{BusinessID: bizID, ChatAddress: address, Name: "Nimal", Phone: address, Address: "Kandy"}
	require.NoError(t, f.customers.Upsert(context.Background(), c))
	return c.ID
}

func texts(out []Outbound) string {
	parts := make([]string, 0, len(out))
	for _, o := range out {
		parts = append(parts, o.Text)
	}
	return strings.Join(parts, "\n")
}

// toQuantity walks from the main menu to the Samba variant.
var toQuantity = []string{"3", "1", "1", "1", "1"}

func TestEveryStateHasHandler(t *testing.T) {
	e := New(Deps{Templates: keyTemplates{}}, Config{}, testLogger())
	for _, st := range state.All {
		assert.NotNil(t, e.handler(st), "state %s", st)
	}
}

func TestNormalizeInput(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{in: "1\uFE0F\u20E3", want: "1"},
		{in: " 2\u20E3 ", want: "2"},
		{in: "\U0001F51F", want: "10"},
		{in: "1\uFE0F\u20E32\uFE0F\u20E3", want: "12"},
		{in: "  hello ", want: "hello"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeInput(tc.in))
		})
	}
}

func TestGreetingWithoutLanguageAsksForLanguage(t *testing.T) {
	f := newFixture(t, 10)

	out := f.send(t, "hi")
	assert.Equal(t, "select_language", texts(out))
	assert.Equal(t, state.StateSelectLanguage, f.sessions.get(t).State)

	out = f.send(t, "2\uFE0F\u20E3")
	assert.Contains(t, texts(out), "main_menu business=Lanka Stores")

	session := f.sessions.get(t)
	assert.Equal(t, state.StateMainMenu, session.State)
	assert.Equal(t, "si", session.Language)
}

func TestGreetingResetsFromAnyState(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	f.walk(t, toQuantity...)
	require.Equal(t, state.StateEnterQuantity, f.sessions.get(t).State)

	f.send(t, "Hello")

	session := f.sessions.get(t)
	assert.Equal(t, state.StateMainMenu, session.State)
	assert.Nil(t, session.Context.Catalog)
	assert.Empty(t, session.Context.Back)
}

func TestCatalogDrillDownSkipsSingleChildLevels(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)

	out := f.walk(t, "3", "1")

	session := f.sessions.get(t)
	assert.Equal(t, state.StateSelectSubsubcategory, session.State)
	assert.Equal(t, int64(11), session.Context.Catalog.Selection.SubcategoryID)
	assert.Equal(t, "select_subsubcategory options=1. Rice\nA. Grains", texts(out))
	assert.Equal(t, []string{"1", "A", "0"}, out[0].Options)
}

func TestInvalidCatalogChoiceRepromptsWithoutAdvancing(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	f.send(t, "3")

	out := f.send(t, "9")

	assert.Equal(t, state.StateSelectCategory, f.sessions.get(t).State)
	require.Len(t, out, 2)
	assert.Equal(t, "invalid_choice", out[0].Text)
	assert.True(t, strings.HasPrefix(out[1].Text, "select_category"))
}

func TestBackReturnsTheSameChoiceList(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)

	productList := f.walk(t, "3", "1", "1")
	f.send(t, "1")
	require.Equal(t, state.StateSelectVariant, f.sessions.get(t).State)

	back := f.send(t, "0")

	assert.Equal(t, productList, back)
	assert.Equal(t, state.StateSelectProduct, f.sessions.get(t).State)
}

func TestBackFromQuantityClearsVariant(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)

	f.walk(t, "3", "1", "1")
	variantList := f.send(t, "1")
	f.send(t, "1")
	require.Equal(t, state.StateEnterQuantity, f.sessions.get(t).State)

	back := f.send(t, "0")

	session := f.sessions.get(t)
	assert.Equal(t, state.StateSelectVariant, session.State)
	assert.Zero(t, session.Context.Catalog.Selection.VariantID)
	assert.Equal(t, int64(10), session.Context.Catalog.Selection.ProductID)
	assert.Equal(t, variantList, back)
}

func TestBackWithEmptyStackGoesToMainMenu(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	f.send(t, "1")

	out := f.send(t, "0")
	assert.Equal(t, state.StateMainMenu, f.sessions.get(t).State)
	assert.Contains(t, texts(out), "main_menu")

	f.send(t, "1")
	session := f.sessions.get(t)
	session.Context.Back = nil
	require.NoError(t, f.sessions.Save(context.Background(), session))

	f.send(t, "0")
	assert.Equal(t, state.StateMainMenu, f.sessions.get(t).State)
}

func TestQuantityValidation(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		wantState state.State
		wantText  string
	}{
		{name: "equal to stock", input: "2kg", wantState: state.StateCollectName, wantText: "collect_name"},
		{name: "grams normalized", input: "1500g", wantState: state.StateCollectName, wantText: "collect_name"},
		{name: "just above stock", input: "2.001kg", wantState: state.StateEnterQuantity, wantText: "quantity_insufficient_stock available=2.00 kg requested=2.00 kg"},
		{name: "unit mismatch", input: "500ml", wantState: state.StateEnterQuantity, wantText: "quantity_unit_mismatch unit=kg"},
		{name: "not a number", input: "lots", wantState: state.StateEnterQuantity, wantText: "quantity_invalid unit=kg"},
		{name: "zero", input: "0kg", wantState: state.StateEnterQuantity, wantText: "quantity_invalid unit=kg"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 2)
			f.atMainMenu(t)
			f.walk(t, toQuantity...)

			out := f.send(t, tc.input)

			session := f.sessions.get(t)
			assert.Equal(t, tc.wantState, session.State)
			assert.Equal(t, tc.wantText, texts(out))
			if tc.wantState == state.StateEnterQuantity {
				assert.Nil(t, session.Context.Catalog.Quantity)
				assert.Equal(t, int64(100), session.Context.Catalog.Selection.VariantID)
			}
		})
	}
}

func TestQuantityStoresEnteredUnit(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	f.walk(t, toQuantity...)

	f.send(t, "2kg")

	q := f.sessions.get(t).Context.Catalog.Quantity
	require.NotNil(t, q)
	assert.Equal(t, 2.0, q.Value)
	assert.Equal(t, "kg", q.Unit)
}

// checkout walks from the main menu to the payment method list.
func (f *fixture) checkout(t *testing.T, qty string) []Outbound {
	t.Helper()
	f.atMainMenu(t)
	f.walk(t, toQuantity...)
	return f.walk(t, qty, "Nimal Perera", "12 Galle Road", "0", "0", "yes")
}

func TestCardHappyPath(t *testing.T) {
	f := newFixture(t, 10)

	out := f.checkout(t, "2kg")
	assert.Equal(t, "select_payment_method options=1. Card\n2. Bank deposit\n3. Cash on delivery", texts(out))

	out = f.send(t, "1")

	require.Len(t, f.store.Orders, 1)
	o := f.store.Orders[1]
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, domain.OrderPaid, o.Status)
	assert.Equal(t, 800.0, o.TotalAmount)
	assert.Equal(t, 8.0, f.store.Stock(100))
	assert.Equal(t, 1, f.store.LedgerLen())
	require.Len(t, f.recorder.Payments, 1)
	assert.Equal(t, domain.PaymentPaid, f.recorder.Payments[0].PaymentStatus)

	assert.Contains(t, texts(out), "invoice delivery_fee=Rs.300.00 order_id=1 product=Rice quantity=2.00 kg subtotal=Rs.500.00 total=Rs.800.00 unit_price=Rs.250.00 variant=Samba")
	assert.Contains(t, texts(out), "post_payment")

	session := f.sessions.get(t)
	assert.Equal(t, state.StatePostPayment, session.State)
	assert.Empty(t, session.Context.Back)
	assert.Equal(t, int64(1), session.Context.Payment.OrderID)

	cust, err := f.customers.FindByChat(context.Background(), bizID, address)
	require.NoError(t, err)
	assert.Equal(t, "Nimal Perera", cust.Name)
	assert.Equal(t, address, cust.Phone)
	assert.Empty(t, cust.Email)
	assert.Equal(t, cust.ID, o.CustomerID)
}

func TestCardOrderThroughSingleSubcategory(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)

	out := f.walk(t, "3", "3")
	assert.Equal(t, state.StateSelectProduct, f.sessions.get(t).State)
	assert.Equal(t, "select_product options=1. Soap\n2. Detergent", texts(out))

	f.walk(t, "2", "1", "3", "Nimal Perera", "12 Galle Road", "0", "0", "yes")
	out = f.send(t, "1")

	require.Len(t, f.store.Orders, 1)
	o := f.store.Orders[1]
	assert.Equal(t, domain.OrderPaid, o.Status)
	assert.Equal(t, 1350.0, o.TotalAmount)
	assert.Equal(t, int64(500), o.Items[0].VariantID)
	assert.Equal(t, 7.0, f.store.Stock(500))
	assert.Equal(t, 10.0, f.store.Stock(501))
	require.Len(t, f.recorder.Payments, 1)
	assert.Equal(t, domain.PaymentPaid, f.recorder.Payments[0].PaymentStatus)
	assert.Equal(t, int64(1), f.recorder.Payments[0].ID)
	assert.Contains(t, texts(out), "product=Detergent quantity=3 pcs")
	assert.Equal(t, state.StatePostPayment, f.sessions.get(t).State)
}

func TestPaymentRetryAfterFailedSaveReusesOrder(t *testing.T) {
	testCases := []struct {
		name  string
		retry []string
	}{
		{name: "same choice again", retry: []string{"1"}},
		{name: "back to confirmation first", retry: []string{"0", "yes", "1"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 10)
			f.checkout(t, "2kg")
			f.sessions.failSave = errSaveFailed

			out, err := f.engine.Handle(context.Background(), Inbound{BusinessID: bizID, Address: address, Text: "1"})
			require.ErrorIs(t, err, errSaveFailed)
			assert.Equal(t, "error_temporary", texts(out))
			require.Len(t, f.store.Orders, 1)

			f.sessions.failSave = nil
			require.Equal(t, state.StateSelectPaymentMethod, f.sessions.get(t).State)

			out = f.walk(t, tc.retry...)

			assert.Len(t, f.store.Orders, 1)
			assert.Equal(t, 8.0, f.store.Stock(100))
			assert.Equal(t, 1, f.store.LedgerLen())
			assert.Len(t, f.recorder.Payments, 1)
			assert.Contains(t, texts(out), "order_id=1")
			session := f.sessions.get(t)
			assert.Equal(t, state.StatePostPayment, session.State)
			assert.Equal(t, int64(1), session.Context.Payment.OrderID)
		})
	}
}

func TestConfirmOrderShowsQuote(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	f.walk(t, toQuantity...)

	out := f.walk(t, "2kg", "Nimal", "12 Galle Road", "nimal@example.com", "077-123 4567")

	assert.Equal(t, state.StateConfirmOrder, f.sessions.get(t).State)
	assert.Equal(t, "confirm_order address=12 Galle Road delivery_fee=Rs.300.00 email=nimal@example.com name=Nimal phone=0771234567 product=Rice quantity=2.00 kg subtotal=Rs.500.00 total=Rs.800.00 unit_price=Rs.250.00 variant=Samba", texts(out))
}

func TestCustomerFieldValidation(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	f.walk(t, toQuantity...)
	f.walk(t, "2kg", "Nimal", "12 Galle Road")

	out := f.send(t, "not-an-email")
	assert.Equal(t, "email_invalid", texts(out))
	assert.Equal(t, state.StateCollectEmail, f.sessions.get(t).State)

	f.send(t, "0")
	out = f.send(t, "12ab")
	assert.Equal(t, "phone_invalid", texts(out))
	assert.Equal(t, state.StateCollectPhone, f.sessions.get(t).State)
}

func TestEditFieldFromConfirmation(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	f.walk(t, toQuantity...)
	f.walk(t, "2kg", "Nimal", "12 Galle Road", "0", "0")
	require.Equal(t, state.StateConfirmOrder, f.sessions.get(t).State)

	out := f.send(t, "2")
	assert.Equal(t, "collect_address", texts(out))
	assert.Equal(t, state.StateCollectAddress, f.sessions.get(t).State)

	out = f.send(t, "45 Kandy Road")

	session := f.sessions.get(t)
	assert.Equal(t, state.StateConfirmOrder, session.State)
	assert.Equal(t, "Nimal", session.Context.Customer.Name)
	assert.Equal(t, "45 Kandy Road", session.Context.Customer.Address)
	assert.False(t, session.Context.Customer.Editing)
	assert.Contains(t, texts(out), "address=45 Kandy Road")

	cust, err := f.customers.FindByChat(context.Background(), bizID, address)
	require.NoError(t, err)
	assert.Equal(t, "45 Kandy Road", cust.Address)

	f.send(t, "0")
	assert.Equal(t, state.StateCollectPhone, f.sessions.get(t).State)
}

func TestConfirmNoDiscardsOrder(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	f.walk(t, toQuantity...)
	f.walk(t, "2kg", "Nimal", "12 Galle Road", "0", "0")

	out := f.send(t, "no")

	session := f.sessions.get(t)
	assert.Equal(t, state.StateMainMenu, session.State)
	assert.Nil(t, session.Context.Catalog)
	assert.Nil(t, session.Context.Customer)
	assert.Contains(t, texts(out), "order_discarded")
	assert.Empty(t, f.store.Orders)
}

func TestCashOnDeliveryStaysPending(t *testing.T) {
	f := newFixture(t, 10)
	f.checkout(t, "2kg")

	out := f.send(t, "3")

	o := f.store.Orders[1]
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, 10.0, f.store.Stock(100))
	assert.Empty(t, f.recorder.Payments)
	assert.Contains(t, texts(out), "payment_cod_instructions order_id=1")
	assert.Equal(t, state.StatePostPayment, f.sessions.get(t).State)
}

func TestDepositFlowRequiresReceiptMedia(t *testing.T) {
	f := newFixture(t, 10)
	f.checkout(t, "2kg")

	out := f.send(t, "2")
	assert.Contains(t, texts(out), "payment_deposit_instructions order_id=1")
	assert.Contains(t, texts(out), "upload_receipt")
	assert.Equal(t, state.StateUploadPaymentReceipt, f.sessions.get(t).State)

	out = f.send(t, "here it is")
	assert.Equal(t, "receipt_media_required", texts(out))
	assert.Equal(t, state.StateUploadPaymentReceipt, f.sessions.get(t).State)

	out = f.sendMedia(t, []byte("jpeg"), ".jpg")

	assert.Contains(t, texts(out), "receipt_saved order_id=1")
	assert.Equal(t, state.StatePostPayment, f.sessions.get(t).State)
	o := f.store.Orders[1]
	assert.Equal(t, "https://media.test/receipt-1.jpg", o.PaymentReceiptURL)
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
	require.Len(t, f.receipts.saved, 1)
	assert.Equal(t, "jpg", f.receipts.saved[0].Ext)

	out = f.send(t, "thanks")
	assert.Equal(t, "post_payment", texts(out))
	assert.Equal(t, state.StatePostPayment, f.sessions.get(t).State)

	f.send(t, "0")
	assert.Equal(t, state.StateMainMenu, f.sessions.get(t).State)
}

func TestBackAfterOrderCannotReplaceIt(t *testing.T) {
	f := newFixture(t, 10)
	f.checkout(t, "2kg")
	f.send(t, "2")

	f.send(t, "0")

	assert.Equal(t, state.StateMainMenu, f.sessions.get(t).State)
	assert.Len(t, f.store.Orders, 1)
}

func TestPaymentWithVanishedStockReturnsToQuantity(t *testing.T) {
	f := newFixture(t, 10)
	f.checkout(t, "2kg")
	f.store.Variants[100].Stock = 1

	out := f.send(t, "1")

	session := f.sessions.get(t)
	assert.Equal(t, state.StateEnterQuantity, session.State)
	assert.Nil(t, session.Context.Catalog.Quantity)
	assert.Contains(t, texts(out), "quantity_insufficient_stock")
	assert.Empty(t, f.store.Orders)
}

func seedOrder(f *fixture, id, customerID int64, method domain.PaymentMethod, payment domain.PaymentStatus, delivery domain.DeliveryStatus) {
	f.store.Seed(domain.Order{
		ID:             id,
		BusinessID:     bizID,
		CustomerID:     customerID,
		TotalAmount:    800,
		PaymentMethod:  method,
		PaymentStatus:  payment,
		DeliveryStatus: delivery,
		Status:         order.Derive(payment, delivery),
		CreatedAt:      time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Hour),
		Items: []domain.OrderItem{{
			ProductID: 10, VariantID: 100, ProductName: "Rice", VariantName: "Samba",
			Unit: "kg", Quantity: 2, PricePerUnit: 250, TotalPrice: 500,
		}},
	})
}

func TestCancellationFlow(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	cust := f.seedCustomer(t)
	seedOrder(f, 50, cust, domain.PaymentMethodCard, domain.PaymentPaid, domain.DeliveryPending)
	seedOrder(f, 51, cust, domain.PaymentMethodCard, domain.PaymentPaid, domain.DeliveryShipped)
	seedOrder(f, 52, cust, domain.PaymentMethodCard, domain.PaymentPaid, domain.DeliveryPending)

	out := f.walk(t, "2", "3")
	assert.Equal(t, state.StateAwaitingOrderCancellation, f.sessions.get(t).State)
	assert.Contains(t, texts(out), "cancellation_available")
	assert.Contains(t, texts(out), "cancellation_enter_order")

	out = f.send(t, "51")
	assert.Equal(t, "cancellation_not_eligible order_id=51", texts(out))
	assert.Empty(t, f.store.Cancellations)

	out = f.send(t, "999")
	assert.Equal(t, "cancellation_order_not_found order_id=999", texts(out))

	out = f.send(t, "#50")
	assert.Equal(t, "cancellation_confirm order_id=50", texts(out))
	assert.Equal(t, state.StateConfirmCancellation, f.sessions.get(t).State)

	out = f.send(t, "yes")
	assert.Equal(t, "cancellation_reason", texts(out))

	out = f.send(t, "ordered by mistake")
	assert.Contains(t, texts(out), "cancellation_submitted order_id=50")
	assert.Equal(t, state.StateMainMenu, f.sessions.get(t).State)
	require.Len(t, f.store.Cancellations, 1)
	assert.Equal(t, "ordered by mistake", f.store.Cancellations[0].Reason)
	assert.Equal(t, domain.CancellationPending, f.store.Cancellations[0].Status)
	assert.Equal(t, domain.OrderPaid, f.store.Orders[50].Status)

	out = f.walk(t, "2", "3", "50")
	assert.Equal(t, "cancellation_already_requested order_id=50", texts(out))
	assert.Len(t, f.store.Cancellations, 1)
}

func TestCancellationOfAnotherCustomersOrderIsNotFound(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	cust := f.seedCustomer(t)
	seedOrder(f, 50, cust, domain.PaymentMethodCard, domain.PaymentPaid, domain.DeliveryPending)
	seedOrder(f, 60, cust+100, domain.PaymentMethodCard, domain.PaymentPaid, domain.DeliveryPending)

	out := f.walk(t, "2", "3", "60")

	assert.Equal(t, "cancellation_order_not_found order_id=60", texts(out))
	assert.Equal(t, state.StateAwaitingOrderCancellation, f.sessions.get(t).State)
}

func TestOrderHistoryListsWithoutCancellation(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	cust := f.seedCustomer(t)
	seedOrder(f, 70, cust, domain.PaymentMethodDeposit, domain.PaymentPending, domain.DeliveryPending)

	out := f.walk(t, "2", "1")

	assert.Equal(t, state.StateListOrders, f.sessions.get(t).State)
	assert.Contains(t, texts(out), "order_history_entry date=2026-02-03 delivery_status=pending order_id=70")
	assert.Contains(t, texts(out), "receipt_missing")
	assert.NotContains(t, texts(out), "cancellation_available")

	out = f.send(t, "0")
	assert.Equal(t, state.StateOrderHistoryMenu, f.sessions.get(t).State)
	assert.Equal(t, "order_history_menu", texts(out))

	out = f.send(t, "4")
	assert.Equal(t, "orders_none", texts(out))
}

func TestReceiptForExistingDepositOrder(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	cust := f.seedCustomer(t)
	seedOrder(f, 80, cust, domain.PaymentMethodDeposit, domain.PaymentPending, domain.DeliveryPending)
	seedOrder(f, 81, cust, domain.PaymentMethodDeposit, domain.PaymentPending, domain.DeliveryPending)

	out := f.walk(t, "5", "1")
	assert.Equal(t, state.StateSelectOrderForReceiptUpload, f.sessions.get(t).State)
	assert.Contains(t, texts(out), "receipt_order_option date=2026-02-04 index=1 order_id=81")
	assert.Equal(t, []int64{81, 80}, f.sessions.get(t).Context.Orders.Candidates)

	out = f.send(t, "2")
	assert.Equal(t, "upload_receipt", texts(out))

	f.sendMedia(t, []byte("pdf"), "pdf")

	assert.Equal(t, "https://media.test/receipt-80.pdf", f.store.Orders[80].PaymentReceiptURL)
	assert.Empty(t, f.store.Orders[81].PaymentReceiptURL)
	assert.Equal(t, state.StatePostPayment, f.sessions.get(t).State)
}

func TestReceiptOptionWithoutPendingOrders(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)

	out := f.walk(t, "5", "1")
	assert.Equal(t, "receipt_no_pending", texts(out))
	assert.Equal(t, state.StateSelectReceiptOption, f.sessions.get(t).State)

	out = f.send(t, "2")
	assert.Equal(t, "receipt_help", texts(out))
}

func TestCustomerServiceArchivesUntilMenu(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)

	out := f.send(t, "6")
	assert.Equal(t, "customer_service_welcome", texts(out))

	f.send(t, "my parcel is late")
	f.send(t, "hi")

	session := f.sessions.get(t)
	assert.Equal(t, state.StateCustomerService, session.State)
	require.Len(t, session.Context.Support.Transcript, 2)
	assert.Equal(t, "my parcel is late", session.Context.Support.Transcript[0].Text)
	assert.Equal(t, "hi", session.Context.Support.Transcript[1].Text)

	f.send(t, "MENU")
	assert.Equal(t, state.StateMainMenu, f.sessions.get(t).State)
}

func TestCustomerServiceExpiresLazily(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	f.send(t, "6")

	f.now = f.now.Add(24*time.Hour + time.Minute)
	out := f.send(t, "are you there?")

	assert.Equal(t, state.StateMainMenu, f.sessions.get(t).State)
	assert.Contains(t, texts(out), "customer_service_expired")
	assert.Nil(t, f.sessions.get(t).Context.Support)
}

func TestMissingContextResetsToMainMenu(t *testing.T) {
	f := newFixture(t, 10)
	session := state.NewSession(state.Key{Phone: address, BusinessID: bizID}, "Nimal")
	session.State = state.StateEnterQuantity
	session.Language = "en"
	require.NoError(t, f.sessions.Save(context.Background(), session))

	out := f.send(t, "2")

	assert.Equal(t, state.StateMainMenu, f.sessions.get(t).State)
	require.NotEmpty(t, out)
	assert.Equal(t, "error_session_reset", out[0].Text)
}

func TestVanishedVariantShowsNotFound(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	f.walk(t, toQuantity...)

	session := f.sessions.get(t)
	session.Context.Catalog.Selection.VariantID = 999
	require.NoError(t, f.sessions.Save(context.Background(), session))

	out := f.send(t, "1kg")

	assert.Equal(t, state.StateMainMenu, f.sessions.get(t).State)
	assert.Equal(t, "error_not_found", out[0].Text)
}

func TestEmptyCatalogStaysInMainMenu(t *testing.T) {
	f := newFixture(t, 10)
	f.engine.deps.Catalogs = storeCatalog{empty: true}
	f.atMainMenu(t)

	out := f.send(t, "3")

	assert.Equal(t, state.StateMainMenu, f.sessions.get(t).State)
	assert.Equal(t, "catalog_no_items", out[0].Text)
}

func TestFailedSaveKeepsPreviousState(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)
	f.sessions.failSave = errSaveFailed

	out, err := f.engine.Handle(context.Background(), Inbound{BusinessID: bizID, Address: address, Text: "3"})

	require.ErrorIs(t, err, errSaveFailed)
	assert.Equal(t, "error_temporary", texts(out))
	f.sessions.failSave = nil
	assert.Equal(t, state.StateMainMenu, f.sessions.get(t).State)
}

func TestChangeLanguageFromMainMenu(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)

	out := f.send(t, "4")
	assert.Equal(t, "select_language", texts(out))

	f.send(t, "3")
	session := f.sessions.get(t)
	assert.Equal(t, "ta", session.Language)
	assert.Equal(t, state.StateMainMenu, session.State)
}

func TestBusinessInfo(t *testing.T) {
	f := newFixture(t, 10)
	f.atMainMenu(t)

	out := f.send(t, "1")

	assert.Equal(t, "business_info address=Colombo email=shop@lanka.test name=Lanka Stores phone=0112345678", texts(out))
	assert.Equal(t, state.StateBusinessInfo, f.sessions.get(t).State)
}
