package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is one payment attempt, keyed by the processor's reference.
type Payment struct {
	ID          string
	OrderID     string
	ProviderRef string
	Amount      decimal.Decimal
	Status      PaymentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PaymentIntent is what the processor hands back for a charge request.
type PaymentIntent struct {
	// Ref is the processor's unique id for the charge attempt.
	Ref string
	// ClientSecret lets the buyer's client confirm the payment directly with the processor.
	ClientSecret string
}

type PaymentEventType string

const (
	PaymentEventSucceeded PaymentEventType = "payment.succeeded"
	PaymentEventFailed    PaymentEventType = "payment.failed"
	PaymentEventOther     PaymentEventType = "other"
)

// PaymentEvent is a verified asynchronous outcome reported by the processor.
type PaymentEvent struct {
	ID         string
	Type       PaymentEventType
	RawType    string
	PaymentRef string
	OrderID    string
	UserID     string
}
