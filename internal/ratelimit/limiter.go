// Package ratelimit bounds how many inbound messages one conversation may send per window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter describes a rate-limiting strategy.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// ConversationKey is the limiter key of one customer address talking to one business.
func ConversationKey(businessID int64, address string) string {
	return fmt.Sprintf("conv:%d:%s", businessID, address)
}
