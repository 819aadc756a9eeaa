package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated  = "order.created"
	EventOrderPaid     = "order.paid"
	EventPaymentFailed = "payment.failed"
)

// OutboxEvent is a domain event written in the same transaction as the state
// change it describes and relayed to the broker afterwards.
type OutboxEvent struct {
	ID        int64
	EventID   string
	Type      string
	Key       string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    *time.Time
}

func NewOutboxEvent(eventType, key string, payload any) (OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("outbox: marshal %s: %w", eventType, err)
	}
	return OutboxEvent{
		EventID:   uuid.NewString(),
		Type:      eventType,
		Key:       key,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}, nil
}
