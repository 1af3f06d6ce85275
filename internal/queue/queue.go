// Package queue is the Message Queue Client: exchange,
// queue, and dead-letter topology declaration, publish, and consume over
// a single AMQP connection per consumer process.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/eluceo/jacobine/internal/logger"
	"github.com/eluceo/jacobine/internal/pipelineerr"
	"github.com/eluceo/jacobine/internal/retry"
)

// Client owns one AMQP connection and channel. Like the database
// gateway, it is the sole owner of its handle — no other component
// dials the broker directly.
type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  logger.Logger
}

// Dial connects to the broker at url, retrying with backoff per
// retryCfg — the broker may not be up yet when a consumer process
// starts. It declares nothing; callers call DeclareTopology afterward.
func Dial(ctx context.Context, url string, retryCfg retry.Config, log logger.Logger) (*Client, error) {
	var conn *amqp.Connection

	err := retry.Do(ctx, retryCfg, func(attempt int) error {
		var dialErr error
		conn, dialErr = amqp.Dial(url)
		if dialErr != nil {
			log.Warn("broker dial failed, retrying", logger.Int("attempt", attempt), logger.Error(dialErr))
		}
		return dialErr
	})
	if err != nil {
		return nil, pipelineerr.NewTransportError(err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, pipelineerr.NewTransportError(err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, pipelineerr.NewTransportError(err)
	}

	return &Client{conn: conn, ch: ch, log: log}, nil
}

// Close tears down the channel and connection.
func (c *Client) Close() error {
	if err := c.ch.Close(); err != nil {
		c.log.Warn("error closing channel", logger.Error(err))
	}
	return c.conn.Close()
}

// Topology describes the exchange/queue/binding/dead-letter shape for
// one stage: a durable topic exchange per project, one durable queue per
// routing key bound to it under that same key, and — when dead
// lettering is enabled — a twin `<queue>.deadletter` queue bound under
// the same routing key to a per-project direct dead-letter exchange.
type Topology struct {
	Exchange    string
	Queue       string
	RoutingKey  string
	DeadLetter  bool
	DLXExchange string
}

// DeclareTopology idempotently declares the exchange, queue, binding,
// and (when enabled) the dead-letter exchange/queue/binding for t. Queue
// declaration sets the `x-dead-letter-exchange` argument so a
// reject-no-requeue on the primary queue is routed there automatically
// by the broker — the client never republishes rejected messages
// itself.
func (c *Client) DeclareTopology(t Topology) error {
	if err := c.ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return pipelineerr.NewTransportError(fmt.Errorf("declare exchange %s: %w", t.Exchange, err))
	}

	var args amqp.Table
	if t.DeadLetter {
		dlx := deadLetterExchangeName(t)
		if err := c.ch.ExchangeDeclare(dlx, "direct", true, false, false, false, nil); err != nil {
			return pipelineerr.NewTransportError(fmt.Errorf("declare dead-letter exchange %s: %w", dlx, err))
		}

		dlq := t.Queue + ".deadletter"
		if _, err := c.ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return pipelineerr.NewTransportError(fmt.Errorf("declare dead-letter queue %s: %w", dlq, err))
		}
		if err := c.ch.QueueBind(dlq, t.RoutingKey, dlx, false, nil); err != nil {
			return pipelineerr.NewTransportError(fmt.Errorf("bind dead-letter queue %s: %w", dlq, err))
		}

		args = amqp.Table{"x-dead-letter-exchange": dlx}
	}

	if _, err := c.ch.QueueDeclare(t.Queue, true, false, false, false, args); err != nil {
		return pipelineerr.NewTransportError(fmt.Errorf("declare queue %s: %w", t.Queue, err))
	}
	if err := c.ch.QueueBind(t.Queue, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return pipelineerr.NewTransportError(fmt.Errorf("bind queue %s: %w", t.Queue, err))
	}

	return nil
}

// deadLetterExchangeName returns t's dead-letter exchange name: the
// explicit override if set, else the primary exchange name suffixed with
// ".deadletter".
func deadLetterExchangeName(t Topology) string {
	if t.DLXExchange != "" {
		return t.DLXExchange
	}
	return t.Exchange + ".deadletter"
}

// Publish marshals payload as JSON and publishes it as a persistent
// message to exchange under routingKey.
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pipelineerr.NewUsageError(fmt.Sprintf("marshal payload for %s: %v", routingKey, err))
	}

	err = c.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return pipelineerr.NewTransportError(fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err))
	}
	return nil
}

// Delivery wraps an inbound AMQP delivery with the disposition
// primitives a stage consumer needs: ack, reject-no-requeue, nack-requeue.
type Delivery struct {
	amqp.Delivery
}

// Ack acknowledges successful, complete processing of the message.
func (d Delivery) Ack() error { return d.Delivery.Ack(false) }

// RejectNoRequeue permanently discards the message — it is routed to the
// dead-letter queue if one is bound, per the UsageError/DatabaseError/
// NotFoundError/ProcessError/FetchError disposition rules. Used for
// poison messages that will never succeed on retry.
func (d Delivery) RejectNoRequeue() error { return d.Delivery.Nack(false, false) }

// NackRequeue returns the message to the front of its queue for another
// consumer (or this one) to retry. Used for errors outside the pipeline
// error taxonomy, which are assumed transient, and for a transport
// failure before the consumer exits.
func (d Delivery) NackRequeue() error { return d.Delivery.Nack(false, true) }

// Consume begins consuming from queue with prefetch already bounded to 1
// by the channel-wide Qos set in Dial, handing deliveries back on the
// returned channel. The returned channel closes when ctx is cancelled or
// the underlying AMQP delivery channel closes.
func (c *Client) Consume(ctx context.Context, queue, consumerTag string) (<-chan Delivery, error) {
	raw, err := c.ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, pipelineerr.NewTransportError(fmt.Errorf("consume from %s: %w", queue, err))
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-raw:
				if !ok {
					return
				}
				select {
				case out <- Delivery{d}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
