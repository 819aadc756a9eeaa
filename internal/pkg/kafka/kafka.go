// Package kafka publishes domain events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
)

type Client struct {
	Brokers []string
}

func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewWriter hashes on the message key, so events of one order stay on one partition.
func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes outbox events as Kafka messages.
type Publisher struct {
	w messageWriter
}

func NewPublisher(c *Client, topic string) *Publisher {
	return &Publisher{w: c.NewWriter(topic)}
}

// Message is the wire form of ev. The event type and id travel as headers.
func Message(ev entity.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(ev.Key),
		Value: ev.Payload,
		Time:  ev.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID)},
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, ev entity.OutboxEvent) error {
	msg := Message(ev)
	if msg.Time.IsZero() {
		msg.Time = time.Now().UTC()
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publish %s %s: %w", ev.Type, ev.EventID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}
