// Package idempotency makes sure each inbound chat update is handled at most once, even when the
// transport redelivers it or several workers poll the same account.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrRequestInProgress is returned while another worker is still handling the same update.
	ErrRequestInProgress = errors.New("request with this key is already in progress")
	// ErrDuplicate is returned for an update that was already handled.
	ErrDuplicate = errors.New("request with this key was already handled")
)

// Operation is the work guarded by a key.
type Operation func(ctx context.Context) error

// Manager runs an operation once per key.
type Manager interface {
	Execute(ctx context.Context, key string, fn Operation) error
}

type manager struct {
	store      Store
	log        *slog.Logger
	processing time.Duration
	ttl        time.Duration
}

// NewManager creates a Manager that remembers completed keys for ttl.
func NewManager(store Store, ttl time.Duration, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &manager{store: store, log: log, processing: 5 * time.Minute, ttl: ttl}
}

// UpdateKey identifies one transport update received by one business account.
func UpdateKey(businessID int64, updateID int) string {
	return fmt.Sprintf("update:%d:%d", businessID, updateID)
}

// Execute claims key and runs fn. A failed fn releases the claim so a redelivery can retry it.
func (m *manager) Execute(ctx context.Context, key string, fn Operation) error {
	if fn == nil {
		return errors.New("operation fn cannot be nil")
	}

	claimed, err := m.store.Claim(ctx, key, m.processing)
	if err != nil {
		// without the store every update is handled rather than dropped
		m.log.Warn("idempotency store unavailable", slog.String("key", key), slog.Any("error", err))
		return fn(ctx)
	}

	if !claimed {
		status, err := m.store.Status(ctx, key)
		if err != nil {
			return err
		}
		if status == StatusCompleted {
			return ErrDuplicate
		}
		return ErrRequestInProgress
	}

	if err := fn(ctx); err != nil {
		if relErr := m.store.Release(ctx, key); relErr != nil {
			m.log.Error("failed to release idempotency claim", slog.String("key", key), slog.Any("error", relErr))
		}
		return err
	}

	if err := m.store.Complete(ctx, key, m.ttl); err != nil {
		m.log.Error("failed to mark update completed", slog.String("key", key), slog.Any("error", err))
	}
	return nil
}
