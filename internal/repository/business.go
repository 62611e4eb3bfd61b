package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/Proton-105/chatshop/internal/domain"
)

// ErrBusinessNotFound is returned when a business id has no row.
var ErrBusinessNotFound = errors.New("business not found")

// BusinessRepository reads tenant profiles and their checkout configuration.
type BusinessRepository struct {
	db  dbtx
	log *slog.Logger
}

// NewBusinessRepository creates a pgx-backed business repository.
func NewBusinessRepository(db dbtx, log *slog.Logger) *BusinessRepository {
	if log == nil {
		log = slog.Default()
	}

	return &BusinessRepository{db: db, log: log}
}

// Business returns the business profile.
func (r *BusinessRepository) Business(ctx context.Context, id int64) (*domain.Business, error) {
	const query = `
		SELECT id, name, email, phone, address, is_active
		FROM businesses
		WHERE id = $1
	`

	var b domain.Business
	err := r.db.QueryRow(ctx, query, id).Scan(&b.ID, &b.Name, &b.Email, &b.Phone, &b.Address, &b.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrBusinessNotFound, id)
		}
		r.log.Error("failed to fetch business", slog.Int64("business_id", id), slog.Any("error", err))
		return nil, fmt.Errorf("select business: %w", err)
	}

	return &b, nil
}

// PaymentOptions returns every configured payment option in display order.
func (r *BusinessRepository) PaymentOptions(ctx context.Context, businessID int64) ([]domain.PaymentOption, error) {
	const query = `
		SELECT id, business_id, name, key, enabled, sort_order
		FROM business_payment_options
		WHERE business_id = $1
		ORDER BY sort_order, id
	`

	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("select payment options: %w", err)
	}

	opts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PaymentOption, error) {
		var o domain.PaymentOption
		err := row.Scan(&o.ID, &o.BusinessID, &o.Name, &o.Key, &o.Enabled, &o.SortOrder)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan payment options: %w", err)
	}
	return opts, nil
}

// DeliveryFees returns the delivery fee bands of the business.
func (r *BusinessRepository) DeliveryFees(ctx context.Context, businessID int64) ([]domain.DeliveryFee, error) {
	const query = `
		SELECT id, business_id, unit_type, min_value, max_value, fee
		FROM business_delivery_fees
		WHERE business_id = $1
		ORDER BY unit_type, min_value
	`

	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("select delivery fees: %w", err)
	}

	fees, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DeliveryFee, error) {
		var f domain.DeliveryFee
		err := row.Scan(&f.ID, &f.BusinessID, &f.UnitType, &f.MinValue, &f.MaxValue, &f.Fee)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan delivery fees: %w", err)
	}
	return fees, nil
}
