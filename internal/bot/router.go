package bot

import (
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/chatshop/internal/bot/handlers"
)

// Router wraps the conversation handler in the middleware chain and binds it to the update kinds a
// customer can send.
type Router struct {
	mu          sync.RWMutex
	middlewares []handlers.Middleware
	log         *slog.Logger
}

// NewRouter builds a Router with an empty middleware chain.
func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{log: log}
}

// Use appends a middleware to the chain. The first one added runs outermost.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Register binds h, wrapped in the chain, to /start, text, photos and documents.
func (r *Router) Register(tb *telebot.Bot, h handlers.Handler) {
	wrapped := telebot.HandlerFunc(r.Wrap(h))
	for _, endpoint := range []string{handlers.CommandStart, telebot.OnText, telebot.OnPhoto, telebot.OnDocument} {
		tb.Handle(endpoint, wrapped)
	}
}

// Wrap applies every registered middleware to h.
func (r *Router) Wrap(h handlers.Handler) handlers.Handler {
	r.mu.RLock()
	chain := append([]handlers.Middleware(nil), r.middlewares...)
	r.mu.RUnlock()

	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}
