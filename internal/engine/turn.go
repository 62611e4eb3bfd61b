package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Proton-105/chatshop/internal/customer"
	"github.com/Proton-105/chatshop/internal/state"
)

const backKey = "0"

// turn is the work done for one inbound message.
type turn struct {
	e       *Engine
	ctx     context.Context
	s       *state.Session
	in      Inbound
	text    string
	lang    string
	started time.Time
	out     []Outbound
}

func (t *turn) businessID() int64 {
	return t.s.BusinessID
}

func (t *turn) resolve(key string) string {
	return t.e.deps.Templates.Resolve(t.ctx, t.businessID(), t.lang, key)
}

func (t *turn) format(key string, vars map[string]any) string {
	return t.e.deps.Templates.Format(t.ctx, t.businessID(), t.lang, key, vars)
}

// send queues a reply.
func (t *turn) send(text string, options ...string) {
	t.out = append(t.out, Outbound{Text: text, Options: options})
}

// say queues the template key as a reply.
func (t *turn) say(key string, options ...string) {
	t.send(t.resolve(key), options...)
}

func (t *turn) sayf(key string, vars map[string]any, options ...string) {
	t.send(t.format(key, vars), options...)
}

// enter moves forward to next and shows its prompt.
func (t *turn) enter(next state.State) error {
	t.s.Forward(next)
	return t.prompt()
}

// back pops one step and re-renders it. With nothing to return to, the customer lands in the main menu.
func (t *turn) back() error {
	if !t.s.Back() {
		return t.resetToMainMenu()
	}
	return t.prompt()
}

func (t *turn) resetToMainMenu() error {
	t.s.Reset(state.StateMainMenu)
	return t.prompt()
}

// customerID returns the stored customer behind the conversation, or 0 for a customer that never
// completed checkout.
func (t *turn) customerID() (int64, error) {
	if c := t.s.Context.Customer; c != nil && c.CustomerID != 0 {
		return c.CustomerID, nil
	}

	cust, err := t.e.deps.Customers.Find(t.ctx, t.businessID(), t.in.Address)
	if errors.Is(err, customer.ErrCustomerNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find customer: %w", err)
	}
	return cust.ID, nil
}

// logSwallowed records a collaborator failure that the conversation continues past.
func (t *turn) logSwallowed(msg string, err error) {
	t.e.log.Warn(msg,
		slog.String("conversation", t.s.Key().String()),
		slog.String("state", string(t.s.State)),
		slog.Any("error", err),
	)
}

var greetings = map[string]struct{}{
	"hi":    {},
	"hello": {},
	"menu":  {},
}

func isGreeting(text string) bool {
	_, ok := greetings[strings.ToLower(text)]
	return ok
}

func isYes(text string) bool {
	switch strings.ToLower(text) {
	case "yes", "y":
		return true
	}
	return false
}

func isNo(text string) bool {
	switch strings.ToLower(text) {
	case "no", "n":
		return true
	}
	return false
}

// emojiDigits maps keycap emoji to the digits they show.
var emojiDigits = func() *strings.Replacer {
	pairs := []string{"\U0001F51F", "10"}
	for d := '0'; d <= '9'; d++ {
		pairs = append(pairs,
			string(d)+"\uFE0F\u20E3", string(d),
			string(d)+"\u20E3", string(d),
		)
	}
	return strings.NewReplacer(pairs...)
}()

// normalizeInput trims the message and turns keycap emoji into plain digits.
func normalizeInput(text string) string {
	return strings.TrimSpace(emojiDigits.Replace(strings.TrimSpace(text)))
}

// menuIndex parses a 1-based choice among n options.
func menuIndex(text string, n int) (int, bool) {
	i, err := strconv.Atoi(text)
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

func numberedKeys(n int) []string {
	keys := make([]string, 0, n+1)
	for i := 1; i <= n; i++ {
		keys = append(keys, strconv.Itoa(i))
	}
	return keys
}

func withBack(keys []string) []string {
	return append(keys, backKey)
}
