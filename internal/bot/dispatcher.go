package bot

import (
	"context"
	"fmt"
	"sync"
)

// Dispatcher routes outbound messages to the bot of their business.
type Dispatcher struct {
	mu   sync.RWMutex
	bots map[int64]*Bot
}

// NewDispatcher indexes bots by business.
func NewDispatcher(bots ...*Bot) *Dispatcher {
	d := &Dispatcher{bots: make(map[int64]*Bot, len(bots))}
	for _, b := range bots {
		d.bots[b.BusinessID()] = b
	}
	return d
}

// Send delivers text through the bot of businessID.
func (d *Dispatcher) Send(ctx context.Context, businessID int64, address, text string) error {
	d.mu.RLock()
	b, ok := d.bots[businessID]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no bot configured for business %d", businessID)
	}
	return b.Send(ctx, address, text)
}
