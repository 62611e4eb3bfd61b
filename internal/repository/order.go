package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/order"
)

const orderColumns = `
	o.id, o.business_id, o.customer_id, o.total_amount, o.delivery_fee, o.payment_method,
	o.payment_status, o.delivery_status, o.status, o.payment_receipt_url, o.checkout_key, o.created_at,
	c.id, c.business_id, c.chat_address, c.name, c.phone, c.email, c.address`

// OrderRepository persists orders with their items, cancellations and inventory side effects.
type OrderRepository struct {
	db  txBeginner
	log *slog.Logger
}

// NewOrderRepository creates a pgx-backed order repository.
func NewOrderRepository(db txBeginner, log *slog.Logger) *OrderRepository {
	if log == nil {
		log = slog.Default()
	}

	return &OrderRepository{db: db, log: log}
}

// Create inserts the order and its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			business_id, customer_id, total_amount, delivery_fee, payment_method,
			payment_status, delivery_status, status, checkout_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`,
		o.BusinessID,
		o.CustomerID,
		o.TotalAmount,
		o.DeliveryFee,
		string(o.PaymentMethod),
		string(o.PaymentStatus),
		string(o.DeliveryStatus),
		string(o.Status),
		o.CheckoutKey,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		r.log.Error("failed to insert order", slog.Int64("business_id", o.BusinessID), slog.Any("error", err))
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (
				order_id, product_id, variant_id, product_name, variant_name, unit,
				quantity, price_per_unit, total_price
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`, o.ID, it.ProductID, it.VariantID, it.ProductName, it.VariantName, it.Unit, it.Quantity, it.PricePerUnit, it.TotalPrice).
			Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

// Get returns the order with its customer, items and latest cancellation.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*domain.Order, error) {
	orders, err := r.query(ctx, `WHERE o.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, order.ErrOrderNotFound
	}
	return &orders[0], nil
}

// FindByCheckoutKey returns the customer order placed under key.
func (r *OrderRepository) FindByCheckoutKey(ctx context.Context, businessID, customerID int64, key string) (*domain.Order, error) {
	orders, err := r.query(ctx, `
		WHERE o.business_id = $1 AND o.customer_id = $2 AND o.checkout_key = $3 AND o.checkout_key <> ''
	`, businessID, customerID, key)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, order.ErrOrderNotFound
	}
	return &orders[0], nil
}

// List returns the business orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, businessID int64, f domain.OrderFilter) ([]domain.Order, error) {
	where := []string{"o.business_id = $1"}
	args := []any{businessID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.CustomerID != 0 {
		add("o.customer_id = $%d", f.CustomerID)
	}
	if f.Status != "" {
		add("o.status = $%d", string(f.Status))
	}
	if f.PaymentStatus != "" {
		add("o.payment_status = $%d", string(f.PaymentStatus))
	}
	if f.DeliveryStatus != "" {
		add("o.delivery_status = $%d", string(f.DeliveryStatus))
	}
	if f.PaymentMethod != "" {
		add("o.payment_method = $%d", string(f.PaymentMethod))
	}
	if !f.From.IsZero() {
		add("o.created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("o.created_at < $%d", f.To)
	}

	clause := "WHERE " + strings.Join(where, " AND ")
	if f.Limit > 0 {
		clause += fmt.Sprintf(" ORDER BY o.created_at DESC, o.id DESC LIMIT %d", f.Limit)
	}
	return r.query(ctx, clause, args...)
}

// PendingDeposits returns deposit orders still waiting for a receipt.
func (r *OrderRepository) PendingDeposits(ctx context.Context, businessID, customerID int64, createdBefore time.Time) ([]domain.Order, error) {
	var before *time.Time
	if !createdBefore.IsZero() {
		before = &createdBefore
	}

	return r.query(ctx, `
		WHERE o.payment_method = 'deposit'
			AND o.payment_status = 'pending'
			AND o.payment_receipt_url = ''
			AND ($1::bigint = 0 OR o.business_id = $1)
			AND ($2::bigint = 0 OR o.customer_id = $2)
			AND ($3::timestamptz IS NULL OR o.created_at < $3)
	`, businessID, customerID, before)
}

// SetReceipt stores the receipt reference; the payment stays pending until reviewed.
func (r *OrderRepository) SetReceipt(ctx context.Context, id int64, url string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET payment_receipt_url = $2, payment_status = 'pending', updated_at = NOW()
		WHERE id = $1
	`, id, url)
	if err != nil {
		r.log.Error("failed to set receipt", slog.Int64("order_id", id), slog.Any("error", err))
		return fmt.Errorf("update receipt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// UpdatePayment writes the statuses and books every move against the variant stock, the warehouse
// stock row and the transaction ledger in one transaction.
func (r *OrderRepository) UpdatePayment(ctx context.Context, id int64, status domain.PaymentStatus, derived domain.OrderStatus, moves []domain.InventoryTransaction) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET payment_status = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`, id, string(status), string(derived))
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}

	for _, mv := range moves {
		if err := applyMove(ctx, tx, mv); err != nil {
			r.log.Error("failed to apply stock move",
				slog.Int64("order_id", id),
				slog.Int64("variant_id", mv.VariantID),
				slog.Any("error", err),
			)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit payment update: %w", err)
	}
	return nil
}

func applyMove(ctx context.Context, tx pgx.Tx, mv domain.InventoryTransaction) error {
	var stock float64
	err := tx.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id = $1 FOR UPDATE`, mv.VariantID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %d", order.ErrVariantNotFound, mv.VariantID)
		}
		return fmt.Errorf("lock variant: %w", err)
	}

	delta := mv.Quantity
	if mv.Type == domain.StockOut {
		delta = -delta
	}

	if _, err := tx.Exec(ctx, `UPDATE product_variants SET stock = stock + $2 WHERE id = $1`, mv.VariantID, delta); err != nil {
		return fmt.Errorf("update variant stock: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory_stock (variant_id, location, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (variant_id, location) DO UPDATE SET
			quantity = inventory_stock.quantity + EXCLUDED.quantity,
			updated_at = NOW()
	`, mv.VariantID, domain.WarehouseLocation, delta); err != nil {
		return fmt.Errorf("update warehouse stock: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory_transactions (product_id, variant_id, quantity, type, note)
		VALUES ($1, $2, $3, $4, $5)
	`, mv.ProductID, mv.VariantID, mv.Quantity, string(mv.Type), mv.Note); err != nil {
		return fmt.Errorf("insert inventory transaction: %w", err)
	}
	return nil
}

// UpdateDelivery writes the delivery and aggregate status.
func (r *OrderRepository) UpdateDelivery(ctx context.Context, id int64, status domain.DeliveryStatus, derived domain.OrderStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET delivery_status = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`, id, string(status), string(derived))
	if err != nil {
		r.log.Error("failed to update delivery status", slog.Int64("order_id", id), slog.Any("error", err))
		return fmt.Errorf("update delivery status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// CreateCancellation stores a cancellation request.
func (r *OrderRepository) CreateCancellation(ctx context.Context, c *domain.OrderCancellation) error {
	if c.Status == "" {
		c.Status = domain.CancellationPending
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO order_cancellations (order_id, reason, status)
		SELECT $1, $2, $3
		WHERE EXISTS (SELECT 1 FROM orders WHERE id = $1)
		RETURNING id, created_at
	`, c.OrderID, c.Reason, string(c.Status)).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrOrderNotFound
		}
		r.log.Error("failed to create cancellation", slog.Int64("order_id", c.OrderID), slog.Any("error", err))
		return fmt.Errorf("insert cancellation: %w", err)
	}
	return nil
}

func (r *OrderRepository) query(ctx context.Context, clause string, args ...any) ([]domain.Order, error) {
	if !strings.Contains(clause, "ORDER BY") {
		clause += " ORDER BY o.created_at DESC, o.id DESC"
	}

	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		`+clause, args...)
	if err != nil {
		r.log.Error("failed to query orders", slog.Any("error", err))
		return nil, fmt.Errorf("select orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	if err := r.attachRelations(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (domain.Order, error) {
	var (
		o                                domain.Order
		cID, cBiz                        *int64
		addr, name, phone, email, street *string
	)
	err := row.Scan(
		&o.ID, &o.BusinessID, &o.CustomerID, &o.TotalAmount, &o.DeliveryFee, &o.PaymentMethod,
		&o.PaymentStatus, &o.DeliveryStatus, &o.Status, &o.PaymentReceiptURL, &o.CheckoutKey, &o.CreatedAt,
		&cID, &cBiz, &addr, &name, &phone, &email, &street,
	)
	if err != nil {
		return o, err
	}
	if cID != nil {
		o.Customer = &domain.Customer{
			ID:          *cID,
			BusinessID:  *cBiz,
			ChatAddress: *addr,
			Name:        *name,
			Phone:       *phone,
			Email:       *email,
			Address:     *street,
		}
	}
	return o, nil
}

// attachRelations loads items and the latest cancellation of every order in two queries.
func (r *OrderRepository) attachRelations(ctx context.Context, orders []domain.Order) error {
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, product_name, variant_name, unit,
			quantity, price_per_unit, total_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return fmt.Errorf("select order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderItem, error) {
		var it domain.OrderItem
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.ProductName, &it.VariantName,
			&it.Unit, &it.Quantity, &it.PricePerUnit, &it.TotalPrice)
		return it, err
	})
	if err != nil {
		return fmt.Errorf("scan order items: %w", err)
	}
	for _, it := range items {
		o := &orders[index[it.OrderID]]
		o.Items = append(o.Items, it)
	}

	rows, err = r.db.Query(ctx, `
		SELECT DISTINCT ON (order_id) id, order_id, reason, status, created_at
		FROM order_cancellations
		WHERE order_id = ANY($1)
		ORDER BY order_id, created_at DESC, id DESC
	`, ids)
	if err != nil {
		return fmt.Errorf("select cancellations: %w", err)
	}
	cancels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderCancellation, error) {
		var c domain.OrderCancellation
		err := row.Scan(&c.ID, &c.OrderID, &c.Reason, &c.Status, &c.CreatedAt)
		return c, err
	})
	if err != nil {
		return fmt.Errorf("scan cancellations: %w", err)
	}
	for i := range cancels {
		c := cancels[i]
		orders[index[c.OrderID]].LatestCancellation = &c
	}
	return nil
}
