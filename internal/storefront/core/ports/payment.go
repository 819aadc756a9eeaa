package ports

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
)

// ErrInvalidSignature is returned by verifiers when a webhook cannot be authenticated.
var ErrInvalidSignature = errors.New("invalid webhook signature")

type IntentRequest struct {
	Amount decimal.Decimal
	// OrderID and UserID travel as opaque metadata and come back on webhook events.
	OrderID string
	UserID  string
}

// PaymentGateway is the outbound side of the payment processor.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*entity.PaymentIntent, error)
}

// PaymentEventVerifier authenticates and decodes an inbound processor webhook.
type PaymentEventVerifier interface {
	VerifyPaymentEvent(payload []byte, header http.Header) (*entity.PaymentEvent, error)
}

// IdentityEventVerifier authenticates and decodes an inbound identity-provider webhook.
type IdentityEventVerifier interface {
	VerifyIdentityEvent(payload []byte, header http.Header) (*entity.IdentityEvent, error)
}
