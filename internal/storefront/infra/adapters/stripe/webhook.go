package stripe

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
)

const SignatureHeader = "Stripe-Signature"

type Verifier struct {
	secret string
}

var _ ports.PaymentEventVerifier = (*Verifier)(nil)

func NewVerifier(webhookSecret string) *Verifier {
	return &Verifier{secret: webhookSecret}
}

// VerifyPaymentEvent checks the signature and timestamp tolerance and maps
// payment_intent events onto the domain event. Every other type is returned
// as PaymentEventOther.
func (v *Verifier) VerifyPaymentEvent(payload []byte, header http.Header) (*entity.PaymentEvent, error) {
	sig := header.Get(SignatureHeader)
	if sig == "" {
		return nil, fmt.Errorf("%w: missing %s header", ports.ErrInvalidSignature, SignatureHeader)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, sig, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidSignature, err)
	}

	out := &entity.PaymentEvent{ID: ev.ID, RawType: string(ev.Type), Type: entity.PaymentEventOther}
	switch string(ev.Type) {
	case "payment_intent.succeeded":
		out.Type = entity.PaymentEventSucceeded
	case "payment_intent.payment_failed":
		out.Type = entity.PaymentEventFailed
	default:
		return out, nil
	}

	var pi stripe.PaymentIntent
	if ev.Data == nil {
		return nil, fmt.Errorf("stripe: event %s has no data", ev.ID)
	}
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("stripe: decode payment intent of event %s: %w", ev.ID, err)
	}
	out.PaymentRef = pi.ID
	out.OrderID = pi.Metadata[MetadataOrderID]
	out.UserID = pi.Metadata[MetadataUserID]
	return out, nil
}
