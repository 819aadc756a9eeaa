// Package stripe adapts Stripe payment intents and webhooks to the payment ports.
package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
)

// Metadata keys carried on every intent and echoed back on its events.
const (
	MetadataOrderID = "orderId"
	MetadataUserID  = "userId"
)

type Gateway struct {
	client   *paymentintent.Client
	currency string
}

var _ ports.PaymentGateway = (*Gateway)(nil)

func NewGateway(secretKey, currency string) *Gateway {
	return NewGatewayWithBackend(secretKey, currency, stripe.GetBackend(stripe.APIBackend))
}

// NewGatewayWithBackend is used to point the client at a stub server.
func NewGatewayWithBackend(secretKey, currency string, backend stripe.Backend) *Gateway {
	return &Gateway{
		client:   &paymentintent.Client{B: backend, Key: secretKey},
		currency: currency,
	}
}

func (g *Gateway) CreateIntent(ctx context.Context, req ports.IntentRequest) (*entity.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(entity.MinorUnits(req.Amount)),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, req.OrderID)
	params.AddMetadata(MetadataUserID, req.UserID)
	// A retried request for the same order must not open a second intent.
	params.SetIdempotencyKey("order-" + req.OrderID)

	pi, err := g.client.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent for order %s: %w", req.OrderID, err)
	}
	return &entity.PaymentIntent{Ref: pi.ID, ClientSecret: pi.ClientSecret}, nil
}
