// Package rabbitmq connects to the broker that carries order events out and back-office commands in.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Proton-105/chatshop/pkg/config"
)

const (
	publishTimeout = 5 * time.Second
	commandBinding = "command.#"
)

var (
	// ErrClosed is returned when the connection or channel is gone.
	ErrClosed = errors.New("rabbitmq: connection closed")
	// ErrPermanent marks a delivery that must not be redelivered.
	ErrPermanent = errors.New("rabbitmq: permanent failure")
)

// Handler processes one delivery body. Returning an error wrapping ErrPermanent drops the message;
// any other error requeues it.
type Handler func(ctx context.Context, routingKey string, body []byte) error

// Broker owns one connection and channel.
type Broker struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
	log      *slog.Logger
	mu       sync.Mutex
}

// Dial connects to the broker and declares the event exchange and the command queue.
func Dial(cfg config.RabbitMQConfig, url string, log *slog.Logger) (*Broker, error) {
	if log == nil {
		log = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	b := &Broker{conn: conn, ch: ch, exchange: cfg.EventExchange, queue: cfg.CommandQueue, log: log}
	if err := b.declare(); err != nil {
		b.Close()
		return nil, err
	}

	log.Info("connected to rabbitmq", slog.String("exchange", cfg.EventExchange), slog.String("queue", cfg.CommandQueue))
	return b, nil
}

func (b *Broker) declare() error {
	err := b.ch.ExchangeDeclare(
		b.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", b.exchange, err)
	}

	_, err = b.ch.QueueDeclare(
		b.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", b.queue, err)
	}

	if err := b.ch.QueueBind(b.queue, commandBinding, b.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", b.queue, err)
	}

	return b.ch.Qos(1, 0, false)
}

// Publish sends v as a persistent JSON message on the event exchange.
func (b *Broker) Publish(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ch == nil || b.ch.IsClosed() {
		return ErrClosed
	}

	return b.ch.PublishWithContext(ctx,
		b.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}

// Consume delivers command messages to handle until ctx is cancelled.
func (b *Broker) Consume(ctx context.Context, consumer string, handle Handler) error {
	b.mu.Lock()
	messages, err := b.ch.Consume(
		b.queue,  // queue
		consumer, // consumer
		false,    // auto-ack
		false,    // exclusive
		false,    // no-local
		false,    // no-wait
		nil,      // args
	)
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("consume %s: %w", b.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return ErrClosed
			}
			b.process(ctx, msg, handle)
		}
	}
}

func (b *Broker) process(ctx context.Context, msg amqp.Delivery, handle Handler) {
	err := handle(ctx, msg.RoutingKey, msg.Body)
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			b.log.Error("failed to ack message", slog.Any("error", ackErr))
		}
		return
	}

	requeue := !errors.Is(err, ErrPermanent)
	b.log.Error("failed to handle message",
		slog.String("routing_key", msg.RoutingKey),
		slog.Bool("requeue", requeue),
		slog.Any("error", err),
	)
	if nackErr := msg.Nack(false, requeue); nackErr != nil {
		b.log.Error("failed to nack message", slog.Any("error", nackErr))
	}
}

// Ping reports whether the connection and channel are open.
func (b *Broker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil || b.conn.IsClosed() || b.ch == nil || b.ch.IsClosed() {
		return ErrClosed
	}
	return nil
}

// Close shuts the channel and the connection.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}
