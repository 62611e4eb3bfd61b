package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/Proton-105/chatshop/internal/customer"
	"github.com/Proton-105/chatshop/internal/domain"
)

// CustomerRepository stores one customer row per (business, chat address).
type CustomerRepository struct {
	db  dbtx
	log *slog.Logger
}

// NewCustomerRepository creates a pgx-backed customer repository.
func NewCustomerRepository(db dbtx, log *slog.Logger) *CustomerRepository {
	if log == nil {
		log = slog.Default()
	}

	return &CustomerRepository{db: db, log: log}
}

// FindByChat returns the customer talking to the business from address.
func (r *CustomerRepository) FindByChat(ctx context.Context, businessID int64, address string) (*domain.Customer, error) {
	const query = `
		SELECT id, business_id, chat_address, name, phone, email, address, created_at, updated_at
		FROM customers
		WHERE business_id = $1 AND chat_address = $2
	`

	var c domain.Customer
	err := r.db.QueryRow(ctx, query, businessID, address).Scan(
		&c.ID,
		&c.BusinessID,
		&c.ChatAddress,
		&c.Name,
		&c.Phone,
		&c.Email,
		&c.Address,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrCustomerNotFound
		}
		r.log.Error("failed to fetch customer", slog.Int64("business_id", businessID), slog.Any("error", err))
		return nil, fmt.Errorf("select customer: %w", err)
	}

	return &c, nil
}

// Upsert creates or updates the customer and fills in its id and timestamps.
func (r *CustomerRepository) Upsert(ctx context.Context, c *domain.Customer) error {
	const query = `
		INSERT INTO customers (business_id, chat_address, name, phone, email, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (business_id, chat_address) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			address = EXCLUDED.address,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, c.BusinessID, c.ChatAddress, c.Name, c.Phone, c.Email, c.Address).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		r.log.Error("failed to upsert customer", slog.Int64("business_id", c.BusinessID), slog.Any("error", err))
		return fmt.Errorf("upsert customer: %w", err)
	}

	return nil
}
