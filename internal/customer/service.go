// Package customer keeps the customer records captured at checkout.
package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Proton-105/chatshop/internal/domain"
)

var (
	// ErrCustomerNotFound is returned when no customer exists for the conversation.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrInvalidEmail is returned for an email address that does not parse.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidPhone is returned for a phone number with no digits.
	ErrInvalidPhone = errors.New("invalid phone number")
)

// Repository persists customers.
type Repository interface {
	FindByChat(ctx context.Context, businessID int64, address string) (*domain.Customer, error)
	// Upsert creates or updates the customer of (business, chat address) and sets its id.
	Upsert(ctx context.Context, c *domain.Customer) error
}

// Service provides business operations over customers.
type Service struct {
	repo     Repository
	cache    *Cache
	validate *validator.Validate
	log      *slog.Logger
}

// NewService constructs a new Service instance. cache may be nil.
func NewService(repo Repository, cache *Cache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, cache: cache, validate: validator.New(), log: log}
}

// Find returns the customer behind a conversation.
func (s *Service) Find(ctx context.Context, businessID int64, address string) (*domain.Customer, error) {
	cached, err := s.cache.Get(ctx, businessID, address)
	if err != nil {
		s.logError("find.cache", businessID, err)
	}
	if cached != nil {
		return cached, nil
	}

	cust, err := s.repo.FindByChat(ctx, businessID, address)
	if err != nil {
		if !errors.Is(err, ErrCustomerNotFound) {
			s.logError("find", businessID, err)
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, cust); err != nil {
		s.logError("find.cache_set", businessID, err)
	}
	return cust, nil
}

// Save creates or updates the customer and refreshes the cache.
func (s *Service) Save(ctx context.Context, c *domain.Customer) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if err := s.repo.Upsert(ctx, c); err != nil {
		s.logError("save", c.BusinessID, err)
		return fmt.Errorf("upsert customer: %w", err)
	}

	if err := s.cache.Invalidate(ctx, c.BusinessID, c.ChatAddress); err != nil {
		s.logError("save.cache_invalidate", c.BusinessID, err)
	}
	return nil
}

// NormalizeEmail validates an email entered at checkout. "0" means the customer has none.
func (s *Service) NormalizeEmail(input string) (string, error) {
	email := strings.TrimSpace(input)
	if email == "0" {
		return "", nil
	}
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, input)
	}
	return strings.ToLower(email), nil
}

// NormalizePhone validates a phone entered at checkout. "0" means the conversation address.
func (s *Service) NormalizePhone(input, address string) (string, error) {
	phone := strings.TrimSpace(input)
	if phone == "0" {
		return address, nil
	}

	var digits strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && i == 0:
			digits.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidPhone, input)
		}
	}

	out := digits.String()
	if err := s.validate.Var(strings.TrimPrefix(out, "+"), "required,numeric,min=7,max=15"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, input)
	}
	return out, nil
}

func (s *Service) logError(operation string, businessID int64, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("customer service operation failed",
		slog.String("operation", operation),
		slog.Int64("business_id", businessID),
		slog.Any("error", err),
	)
}
