package logger

import (
	"context"
	"log/slog"
	"strings"
)

const (
	mask = "***"
	// visibleTail is how many trailing characters of a chat address stay readable.
	visibleTail = 3
)

// secretKeys are replaced outright.
var secretKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"bot_token":     {},
	"secret":        {},
	"api_key":       {},
	"authorization": {},
	"dsn":           {},
}

// addressKeys carry a customer chat address or phone number; only the tail is kept so log lines
// can still be correlated.
var addressKeys = map[string]struct{}{
	"phone":   {},
	"chat_id": {},
}

// personalKeys carry customer details that never need to be read back from logs.
var personalKeys = map[string]struct{}{
	"address": {},
	"name":    {},
}

// MaskingHandler wraps a slog.Handler and masks credentials and customer details before delegating.
// Conversation keys ("<business>:<address>") keep the business id and lose most of the address.
type MaskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler creates a handler that masks sensitive fields before passing records downstream.
func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

// Enabled reports whether the handler handles records at the given level.
func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// WithAttrs masks attrs before they are bound to the wrapped handler.
func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		masked = append(masked, maskAttr(a))
	}
	return &MaskingHandler{next: h.next.WithAttrs(masked)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

// Handle masks the record attributes, including those nested in groups.
func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(maskAttr(a))
		return true
	})
	return h.next.Handle(ctx, masked)
}

func maskAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		masked := make([]slog.Attr, 0, len(group))
		for _, g := range group {
			masked = append(masked, maskAttr(g))
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}

	key := strings.ToLower(a.Key)
	switch {
	case matches(secretKeys, key):
		return slog.String(a.Key, mask)
	case matches(addressKeys, key):
		return slog.String(a.Key, maskTail(a.Value.String()))
	case matches(personalKeys, key):
		return slog.String(a.Key, mask)
	case key == "email" || strings.HasSuffix(key, "_email"):
		return slog.String(a.Key, maskEmail(a.Value.String()))
	case key == "conversation":
		return slog.String(a.Key, maskConversation(a.Value.String()))
	}
	return a
}

// matches reports whether key is in set, either exactly or as a "_"-separated suffix such as
// "customer_phone".
func matches(set map[string]struct{}, key string) bool {
	if _, ok := set[key]; ok {
		return true
	}
	if i := strings.LastIndexByte(key, '_'); i >= 0 {
		if _, ok := set[key[i+1:]]; ok {
			return true
		}
	}
	return false
}

func maskTail(v string) string {
	if len(v) <= visibleTail {
		return mask
	}
	return mask + v[len(v)-visibleTail:]
}

func maskEmail(v string) string {
	at := strings.LastIndexByte(v, '@')
	if at <= 0 {
		return mask
	}
	return v[:1] + mask + v[at:]
}

func maskConversation(v string) string {
	i := strings.IndexByte(v, ':')
	if i < 0 {
		return maskTail(v)
	}
	return v[:i+1] + maskTail(v[i+1:])
}
