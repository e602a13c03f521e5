package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/insider-one/notification-orchestrator/internal/config"
	"github.com/insider-one/notification-orchestrator/internal/domain"
)

// Broker owns the RabbitMQ topology described in spec.md §4.4: a durable
// topic exchange with one durable queue per channel, bound on
// "notification.<channel>" routing keys. It implements domain.Publisher.
type Broker struct {
	cfg    config.RabbitMQConfig
	logger *slog.Logger

	conn *amqp.Connection

	mu        sync.Mutex
	publishCh *amqp.Channel
	confirms  chan amqp.Confirmation
	returns   chan amqp.Return
}

// channelQueues maps each supported domain.Channel to its durable queue
// name. Both are declared and bound at startup so a publish never races a
// missing binding.
var channelQueues = map[domain.Channel]string{
	domain.ChannelEmail: "email_queue",
	domain.ChannelPush:  "push_queue",
}

// Connect dials RabbitMQ and declares the exchange/queue topology.
func Connect(ctx context.Context, cfg config.RabbitMQConfig, logger *slog.Logger) (*Broker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	b := &Broker{cfg: cfg, logger: logger, conn: conn}

	if err := b.declareTopology(); err != nil {
		conn.Close()
		return nil, err
	}

	publishCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}
	if err := publishCh.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	b.publishCh = publishCh
	b.confirms = publishCh.NotifyPublish(make(chan amqp.Confirmation, 1))
	b.returns = publishCh.NotifyReturn(make(chan amqp.Return, 1))

	logger.Info("connected to RabbitMQ", "exchange", cfg.ExchangeName)
	return b, nil
}

func (b *Broker) declareTopology() error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open setup channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		b.cfg.ExchangeName,
		b.cfg.ExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	for channel, queueName := range channelQueues {
		if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
		}

		routingKey := "notification." + string(channel)
		if err := ch.QueueBind(queueName, routingKey, b.cfg.ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", queueName, err)
		}
	}

	return nil
}

// Publish persists msg onto the exchange under "notification.<channel>",
// marking the publish persistent so broker restarts don't drop accepted
// work (spec.md §4.4 invariants). The call blocks for the broker's
// delivery confirmation; a negative ack or an unroutable (mandatory)
// return is surfaced as an error rather than treated as success, since
// PublishWithContext returning nil only means the frame was written to
// the socket, not that the broker accepted it (spec.md §4.2 step 9,
// §4.4).
func (b *Broker) Publish(ctx context.Context, channel domain.Channel, msg domain.EnrichedNotification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal enriched notification: %w", err)
	}

	routingKey := "notification." + string(channel)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.publishCh.PublishWithContext(ctx, b.cfg.ExchangeName, routingKey, true, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Body:          body,
		MessageId:     msg.NotificationID,
		CorrelationId: msg.CorrelationID,
	}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", routingKey, err)
	}

	select {
	case ret := <-b.returns:
		return fmt.Errorf("message unroutable on %s: %s (%d)", routingKey, ret.ReplyText, ret.ReplyCode)
	case confirm := <-b.confirms:
		if !confirm.Ack {
			return fmt.Errorf("broker nacked publish to %s", routingKey)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for publish confirmation on %s: %w", routingKey, ctx.Err())
	}
}

// Close tears down the publish channel and connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.publishCh != nil {
		b.publishCh.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// Health reports whether the underlying connection is still open.
func (b *Broker) Health(_ context.Context) error {
	if b.conn == nil || b.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection closed")
	}
	return nil
}
