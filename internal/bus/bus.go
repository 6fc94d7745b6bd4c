// Package bus carries push events between services over RabbitMQ. Each
// push channel maps to one fanout exchange; every consumer gets its own
// exclusive queue, so all gateway instances see every event.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"chowline/internal/channels"
	"chowline/internal/config"
	"chowline/internal/domain"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func Dial(cfg config.RabbitMQConfig) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	c := &Client{conn: conn, ch: ch}
	if err := c.declareExchanges(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func exchangeFor(ch channels.Channel) string { return string(ch) + ".fanout" }

func (c *Client) declareExchanges() error {
	for _, ch := range channels.All() {
		if err := c.ch.ExchangeDeclare(exchangeFor(ch), "fanout", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchangeFor(ch), err)
		}
	}
	return nil
}

func (c *Client) Ping() error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// Close attempts channel and connection closure independently.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// NotifyClose relays broker-side closure for consumer diagnostics.
func (c *Client) NotifyClose() <-chan *amqp.Error {
	return c.conn.NotifyClose(make(chan *amqp.Error, 1))
}

// Publish wraps payload in the wire frame for the given event and fans it
// out on the channel's exchange.
func (c *Client) Publish(ctx context.Context, ch channels.Channel, ev channels.Event, payload any) error {
	if err := channels.Validate(ch, ev); err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", ev, err)
	}
	body, err := json.Marshal(domain.Frame{Event: string(ev), Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", ev, err)
	}
	return c.ch.PublishWithContext(
		ctx,
		exchangeFor(ch),
		"", // routing key ignored by fanout
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Headers:      amqp.Table{"x-channel": string(ch)},
			Body:         body,
		},
	)
}

// Consume binds a fresh exclusive queue to the channel's exchange and
// starts delivering frames. The queue dies with the connection.
func (c *Client) Consume(ch channels.Channel, consumer string) (<-chan amqp.Delivery, error) {
	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue for %s: %w", ch, err)
	}
	if err := c.ch.QueueBind(q.Name, "", exchangeFor(ch), false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s to %s: %w", q.Name, exchangeFor(ch), err)
	}
	return c.ch.Consume(q.Name, consumer, true, true, false, false, nil)
}
