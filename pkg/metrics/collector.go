// Package metrics exposes the Prometheus collectors of the shop bot.
package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/chatshop/internal/state"
)

var (
	inboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_inbound_messages_total",
			Help: "Total number of inbound chat messages labeled by state and status",
		},
		[]string{"state", "status"},
	)
	messageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_message_duration_seconds",
			Help:    "Time spent handling one inbound message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of conversation state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
	ordersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created by the bot labeled by payment method",
		},
		[]string{"payment_method"},
	)
	orderStatusChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_changes_total",
			Help: "Payment and delivery status updates labeled by kind and new status",
		},
		[]string{"kind", "status"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outbound notifications labeled by status",
		},
		[]string{"status"},
	)
	breakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker transitions labeled by breaker and target state",
		},
		[]string{"breaker", "to"},
	)
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Transport updates handled per business account labeled by kind and status",
		},
		[]string{"business_id", "kind", "status"},
	)
	updateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_update_duration_seconds",
			Help:    "Time spent handling one transport update including replies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	conversationsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conversations_by_state",
			Help: "Number of persisted conversations per state",
		},
		[]string{"state"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordMessage counts one handled inbound message.
func RecordMessage(st, status string, duration time.Duration) {
	if st == "" {
		st = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	inboundMessagesTotal.WithLabelValues(st, status).Inc()
	messageDurationSeconds.WithLabelValues(st).Observe(duration.Seconds())
}

// RecordUpdate counts one transport update handled by a business bot.
func RecordUpdate(businessID int64, kind, status string, duration time.Duration) {
	updatesTotal.WithLabelValues(strconv.FormatInt(businessID, 10), kind, status).Inc()
	updateDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordStateTransition tracks FSM transitions.
func RecordStateTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	if code == "" {
		code = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(code, severity).Inc()
}

// RecordOrderCreated counts an order placed through the bot.
func RecordOrderCreated(method string) {
	ordersCreatedTotal.WithLabelValues(method).Inc()
}

// RecordStatusChange counts a payment or delivery status update.
func RecordStatusChange(kind, status string) {
	orderStatusChangesTotal.WithLabelValues(kind, status).Inc()
}

// RecordNotification counts an outbound notification attempt.
func RecordNotification(ok bool) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	notificationsTotal.WithLabelValues(status).Inc()
}

// RecordBreakerChange counts a circuit breaker transition.
func RecordBreakerChange(name, to string) {
	breakerStateChanges.WithLabelValues(name, to).Inc()
}

// StateCounter reports how many conversations sit in each state.
type StateCounter interface {
	CountByState(ctx context.Context) (map[string]int, error)
}

// StateCollector periodically gathers conversation state counts and emits gauge metrics.
type StateCollector struct {
	counter  StateCounter
	log      *slog.Logger
	interval time.Duration
}

// NewStateCollector builds a metrics collector bound to counter.
func NewStateCollector(counter StateCounter, log *slog.Logger, interval time.Duration) *StateCollector {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &StateCollector{counter: counter, log: log, interval: interval}
}

// Run polls the counter until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) error {
	if c == nil || c.counter == nil {
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.collect(ctx); err != nil {
			c.log.Warn("failed to collect conversation states", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *StateCollector) collect(ctx context.Context) error {
	counts, err := c.counter.CountByState(ctx)
	if err != nil {
		return err
	}

	conversationsByState.Reset()

	for _, tracked := range state.All {
		label := string(tracked)
		conversationsByState.WithLabelValues(label).Set(float64(counts[label]))
		delete(counts, label)
	}

	for label, count := range counts {
		conversationsByState.WithLabelValues(label).Set(float64(count))
	}

	return nil
}
