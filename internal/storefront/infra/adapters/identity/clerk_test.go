package identity

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
)

const testSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

func signed(t *testing.T, payload []byte, at time.Time) http.Header {
	t.Helper()
	wh, err := svix.NewWebhook(testSecret)
	require.NoError(t, err)
	sig, err := wh.Sign("msg_1", at, payload)
	require.NoError(t, err)

	h := http.Header{}
	h.Set("svix-id", "msg_1")
	h.Set("svix-timestamp", strconv.FormatInt(at.Unix(), 10))
	h.Set("svix-signature", sig)
	return h
}

const createdPayload = `{
	"type": "user.created",
	"data": {
		"id": "user_2abc",
		"username": "jdoe",
		"first_name": "Jane",
		"last_name": "Doe",
		"primary_email_address_id": "idn_2",
		"email_addresses": [
			{"id": "idn_1", "email_address": "old@example.com"},
			{"id": "idn_2", "email_address": "jane@example.com"}
		]
	}
}`

func TestVerifier_UserCreated(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	payload := []byte(createdPayload)
	ev, err := v.VerifyIdentityEvent(payload, signed(t, payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, entity.IdentityUserCreated, ev.Type)
	assert.Equal(t, "user_2abc", ev.User.ID)
	assert.Equal(t, "jane@example.com", ev.User.Email)
	assert.Equal(t, "jdoe", ev.User.FullName)
	assert.Equal(t, entity.RoleUser, ev.User.Role)
}

func TestVerifier_NoPrimaryEmail(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	payload := []byte(`{"type":"user.updated","data":{"id":"user_1","email_addresses":[],"primary_email_address_id":null}}`)
	ev, err := v.VerifyIdentityEvent(payload, signed(t, payload, time.Now()))
	require.NoError(t, err)
	assert.Empty(t, ev.User.Email)
	assert.Equal(t, "Unknown", ev.User.FullName)
}

func TestVerifier_Rejects(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)
	payload := []byte(createdPayload)

	_, err = v.VerifyIdentityEvent(payload, http.Header{})
	assert.ErrorIs(t, err, ports.ErrInvalidSignature)

	h := signed(t, payload, time.Now())
	_, err = v.VerifyIdentityEvent([]byte(`{"type":"user.deleted","data":{"id":"user_2abc"}}`), h)
	assert.ErrorIs(t, err, ports.ErrInvalidSignature)

	_, err = v.VerifyIdentityEvent(payload, signed(t, payload, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, ports.ErrInvalidSignature)
}

func TestHasHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("svix-id", "msg_1")
	h.Set("svix-timestamp", "1")
	assert.False(t, HasHeaders(h))
	h.Set("svix-signature", "v1,abc")
	assert.True(t, HasHeaders(h))
}
