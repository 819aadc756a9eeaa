// Package fakepay is an in-process payment processor for local runs and tests.
// Intents never leave the process and webhooks are authenticated with a
// shared-secret HMAC instead of a processor signature scheme.
package fakepay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
)

const SignatureHeader = "X-Fakepay-Signature"

// Event types accepted by the verifier.
const (
	TypeSucceeded = "payment_intent.succeeded"
	TypeFailed    = "payment_intent.payment_failed"
)

type Gateway struct {
	mu      sync.Mutex
	intents map[string]ports.IntentRequest
	// FailNext makes the next CreateIntent call fail once.
	FailNext bool
}

var _ ports.PaymentGateway = (*Gateway)(nil)

func NewGateway() *Gateway {
	return &Gateway{intents: make(map[string]ports.IntentRequest)}
}

func (g *Gateway) CreateIntent(ctx context.Context, req ports.IntentRequest) (*entity.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailNext {
		g.FailNext = false
		return nil, fmt.Errorf("fakepay: processor unavailable")
	}
	ref := "pi_mock_" + uuid.NewString()
	g.intents[ref] = req
	slog.DebugContext(ctx, "mock payment intent created", "payment_ref", ref, "order_id", req.OrderID)
	return &entity.PaymentIntent{Ref: ref, ClientSecret: ref + "_secret_mock"}, nil
}

// Intent returns the request behind ref.
func (g *Gateway) Intent(ref string) (ports.IntentRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.intents[ref]
	return req, ok
}

// Event is the wire form of a fakepay webhook.
type Event struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	PaymentRef string `json:"paymentRef"`
	OrderID    string `json:"orderId,omitempty"`
	UserID     string `json:"userId,omitempty"`
}

type Verifier struct {
	secret []byte
}

var _ ports.PaymentEventVerifier = (*Verifier)(nil)

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the header value that authenticates payload.
func (v *Verifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Encode marshals ev and returns it with a signed header.
func (v *Verifier) Encode(ev Event) ([]byte, http.Header, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, nil, fmt.Errorf("fakepay: marshal event: %w", err)
	}
	h := http.Header{}
	h.Set(SignatureHeader, v.Sign(payload))
	return payload, h, nil
}

func (v *Verifier) VerifyPaymentEvent(payload []byte, header http.Header) (*entity.PaymentEvent, error) {
	sig, err := hex.DecodeString(header.Get(SignatureHeader))
	if err != nil || len(sig) == 0 {
		return nil, fmt.Errorf("%w: missing or malformed %s", ports.ErrInvalidSignature, SignatureHeader)
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, fmt.Errorf("%w: signature mismatch", ports.ErrInvalidSignature)
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("fakepay: decode event: %w", err)
	}
	out := &entity.PaymentEvent{
		ID:         ev.ID,
		RawType:    ev.Type,
		PaymentRef: ev.PaymentRef,
		OrderID:    ev.OrderID,
		UserID:     ev.UserID,
	}
	switch ev.Type {
	case TypeSucceeded:
		out.Type = entity.PaymentEventSucceeded
	case TypeFailed:
		out.Type = entity.PaymentEventFailed
	default:
		out.Type = entity.PaymentEventOther
	}
	return out, nil
}
