package fakepay

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
)

func TestGateway_CreateIntent(t *testing.T) {
	g := NewGateway()
	req := ports.IntentRequest{Amount: decimal.RequireFromString("12.00"), OrderID: "o1", UserID: "u1"}

	intent, err := g.CreateIntent(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(intent.Ref, "pi_mock_"))
	assert.NotEmpty(t, intent.ClientSecret)

	got, ok := g.Intent(intent.Ref)
	require.True(t, ok)
	assert.Equal(t, "o1", got.OrderID)

	g.FailNext = true
	_, err = g.CreateIntent(context.Background(), req)
	assert.Error(t, err)
	_, err = g.CreateIntent(context.Background(), req)
	assert.NoError(t, err)
}

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("secret")
	payload, header, err := v.Encode(Event{ID: "evt_1", Type: TypeSucceeded, PaymentRef: "pi_mock_1", OrderID: "o1", UserID: "u1"})
	require.NoError(t, err)

	ev, err := v.VerifyPaymentEvent(payload, header)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentEventSucceeded, ev.Type)
	assert.Equal(t, "pi_mock_1", ev.PaymentRef)
	assert.Equal(t, "o1", ev.OrderID)
	assert.Equal(t, "u1", ev.UserID)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("secret")
	payload, _, err := NewVerifier("other").Encode(Event{ID: "evt_1", Type: TypeFailed})
	require.NoError(t, err)

	bad := http.Header{}
	bad.Set(SignatureHeader, NewVerifier("other").Sign(payload))
	_, err = v.VerifyPaymentEvent(payload, bad)
	assert.ErrorIs(t, err, ports.ErrInvalidSignature)

	_, err = v.VerifyPaymentEvent(payload, http.Header{})
	assert.ErrorIs(t, err, ports.ErrInvalidSignature)
}

func TestVerifier_UnknownTypeIsOther(t *testing.T) {
	v := NewVerifier("secret")
	payload, header, err := v.Encode(Event{ID: "evt_2", Type: "charge.refunded"})
	require.NoError(t, err)

	ev, err := v.VerifyPaymentEvent(payload, header)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentEventOther, ev.Type)
	assert.Equal(t, "charge.refunded", ev.RawType)
}
