package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/chatshop/pkg/config"
)

var rateLimitChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ratelimit_checks_total",
	Help: "Inbound rate limit checks by backend and result.",
}, []string{"backend", "result"})

// Guard applies the configured per-conversation limit. It asks the primary limiter first and falls
// back to a stricter in-memory window when the primary errors.
type Guard struct {
	primary  Limiter
	fallback *MemoryLimiter
	limit    int
	window   time.Duration
	exempt   map[string]struct{}
	log      *slog.Logger
}

// NewGuard builds a Guard from configuration. A nil primary limits in memory only.
func NewGuard(cfg config.RateLimitConfig, primary Limiter, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	exempt := make(map[string]struct{}, len(cfg.Exempt))
	for _, addr := range cfg.Exempt {
		exempt[addr] = struct{}{}
	}

	return &Guard{
		primary:  primary,
		fallback: NewMemoryLimiter(),
		limit:    cfg.Limit,
		window:   cfg.Window,
		exempt:   exempt,
		log:      log,
	}
}

// Allow reports whether the conversation may send another message. Limiter failures never block.
func (g *Guard) Allow(ctx context.Context, businessID int64, address string) bool {
	if _, ok := g.exempt[address]; ok || g.limit <= 0 {
		return true
	}

	key := ConversationKey(businessID, address)
	if g.primary != nil {
		res, err := g.primary.Check(ctx, key, g.limit, g.window)
		if err == nil || errors.Is(err, ErrLimitExceeded) {
			rateLimitChecksTotal.WithLabelValues("redis", resultLabel(res)).Inc()
			return res != nil && res.Allowed
		}
		g.log.Warn("redis limiter failed, falling back to in-memory", slog.String("key", key), slog.Any("error", err))
	}

	res, _ := g.fallback.Check(ctx, key, max(g.limit/2, 1), g.window)
	rateLimitChecksTotal.WithLabelValues("memory", resultLabel(res)).Inc()
	return res.Allowed
}

// Sweep drops idle in-memory windows; it runs until ctx is done.
func (g *Guard) Sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.fallback.Sweep(2 * g.window); n > 0 {
				g.log.Debug("swept idle rate limit windows", slog.Int("removed", n))
			}
		}
	}
}

func resultLabel(res *Result) string {
	if res != nil && res.Allowed {
		return "allowed"
	}
	return "rejected"
}
