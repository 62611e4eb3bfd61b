package health

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	telebot "gopkg.in/telebot.v3"
)

// SQL pings a database/sql handle.
func SQL(db *sql.DB) Checkable {
	return CheckFunc(func(ctx context.Context) error {
		if db == nil {
			return ErrUnavailable
		}
		return db.PingContext(ctx)
	})
}

// Pool pings a pgx pool.
func Pool(pool *pgxpool.Pool) Checkable {
	return CheckFunc(func(ctx context.Context) error {
		if pool == nil {
			return ErrUnavailable
		}
		return pool.Ping(ctx)
	})
}

// Pinger abstracts the subset of redis.Client used for health checks.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Redis issues a PING.
func Redis(p Pinger) Checkable {
	return CheckFunc(func(ctx context.Context) error {
		if p == nil {
			return ErrUnavailable
		}
		return p.Ping(ctx).Err()
	})
}

// Bot reports whether a business bot completed its getMe handshake.
func Bot(businessID int64, b *telebot.Bot) Checkable {
	return CheckFunc(func(context.Context) error {
		if b == nil || b.Me == nil {
			return fmt.Errorf("bot of business %d is not initialised", businessID)
		}
		return nil
	})
}
