// Package bot connects one telebot long-poll account per business to the conversation engine.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/chatshop/internal/bot/handlers"
	apperrors "github.com/Proton-105/chatshop/internal/errors"
	"github.com/Proton-105/chatshop/internal/idempotency"
	"github.com/Proton-105/chatshop/internal/middleware"
	"github.com/Proton-105/chatshop/internal/ratelimit"
	"github.com/Proton-105/chatshop/pkg/config"
	"github.com/Proton-105/chatshop/pkg/metrics"
)

const defaultPollTimeout = 10 * time.Second

// ErrInvalidAddress is returned when a conversation address is not a chat id.
var ErrInvalidAddress = errors.New("invalid chat address")

// Deps are the collaborators shared by every business bot.
type Deps struct {
	Conversation handlers.Conversation
	Idempotency  idempotency.Manager
	Guard        *ratelimit.Guard
	// Notice renders the rate-limit reply.
	Notice       middleware.Notice
	Errors       *apperrors.Handler
}

// Bot is the chat account of one business.
type Bot struct {
	businessID int64
	telebot    *telebot.Bot
	router     *Router
	breaker    *apperrors.CircuitBreaker
	log        *slog.Logger
	// runCtx is the context passed to Run; updates handled before Run fall back to Background.
	runCtx atomic.Pointer[context.Context]
}

// New builds the bot of cfg.BusinessID. offline skips the getMe call.
func New(cfg config.BotConfig, deps Deps, log *slog.Logger, offline bool) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.Int64("business_id", cfg.BusinessID))

	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	tb, err := telebot.NewBot(telebot.Settings{
		Token:   cfg.Token,
		Poller:  &telebot.LongPoller{Timeout: timeout},
		Offline: offline,
		OnError: func(err error, c telebot.Context) {
			attrs := []any{slog.Any("error", err)}
			if c != nil && c.Chat() != nil {
				attrs = append(attrs, slog.Int64("chat_id", c.Chat().ID))
			}
			log.Error("failed to handle update", attrs...)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telebot for business %d: %w", cfg.BusinessID, err)
	}

	b := &Bot{
		businessID: cfg.BusinessID,
		telebot:    tb,
		router:     NewRouter(log),
		breaker: apperrors.NewCircuitBreaker(fmt.Sprintf("telegram_%d", cfg.BusinessID), apperrors.BreakerConfig{
			OnStateChange: func(name string, _, to apperrors.BreakerState) {
				metrics.RecordBreakerChange(name, to.String())
			},
		}),
		log: log,
	}

	b.router.Use(RecoveryMiddleware(log, deps.Errors))
	b.router.Use(LoggingMiddleware(log))
	b.router.Use(middleware.Metrics(cfg.BusinessID))
	b.router.Use(middleware.Idempotency(deps.Idempotency, cfg.BusinessID, log))
	b.router.Use(middleware.RateLimit(deps.Guard, cfg.BusinessID, deps.Notice, log))
	b.router.Register(tb, handlers.NewConversationHandler(deps.Conversation, cfg.BusinessID, b.baseContext, cfg.UpdateTimeout, log))

	return b, nil
}

// BusinessID returns the business this account belongs to.
func (b *Bot) BusinessID() int64 {
	return b.businessID
}

// Telebot exposes the underlying telebot.Bot for health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// baseContext is the parent of every update context.
func (b *Bot) baseContext() context.Context {
	if ctx := b.runCtx.Load(); ctx != nil {
		return *ctx
	}
	return context.Background()
}

// Run polls for updates until ctx is cancelled. Cancelling ctx also cancels updates in flight.
func (b *Bot) Run(ctx context.Context) error {
	b.runCtx.Store(&ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.telebot.Start()
	}()

	b.log.Info("bot started", slog.String("username", b.username()))
	<-ctx.Done()

	b.log.Info("stopping bot")
	b.telebot.Stop()
	<-done
	return nil
}

func (b *Bot) username() string {
	if b.telebot.Me == nil {
		return ""
	}
	return b.telebot.Me.Username
}

// Send delivers text to a conversation address, retrying transient transport failures behind a
// circuit breaker.
func (b *Bot) Send(ctx context.Context, address, text string) error {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	return apperrors.WithRetry(ctx, func() error {
		return b.breaker.Call(func() error {
			if _, err := b.telebot.Send(&telebot.Chat{ID: chatID}, text); err != nil {
				return apperrors.NewCollaboratorError("telegram", err)
			}
			return nil
		})
	})
}
