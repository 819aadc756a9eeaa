package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestNewClient(t *testing.T) {
	c := NewClient(" broker-1:9092, ,broker-2:9092")
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, c.Brokers)
	assert.True(t, c.Enabled())
	assert.False(t, NewClient("").Enabled())
}

func TestPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &Publisher{w: w}
	ev := entity.OutboxEvent{
		EventID:   "e1",
		Type:      entity.EventOrderPaid,
		Key:       "order-1",
		Payload:   []byte(`{"orderId":"order-1"}`),
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "order-1", string(msg.Key))
	assert.JSONEq(t, `{"orderId":"order-1"}`, string(msg.Value))
	assert.Equal(t, ev.CreatedAt, msg.Time)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte(entity.EventOrderPaid)})

	w.err = errors.New("leader not available")
	assert.ErrorIs(t, p.Publish(context.Background(), ev), w.err)
}
