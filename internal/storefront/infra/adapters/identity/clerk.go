// Package identity verifies user lifecycle webhooks from the identity
// provider. Deliveries are signed with the Svix scheme.
package identity

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
)

// Headers that must be present on every delivery.
var RequiredHeaders = []string{"svix-id", "svix-timestamp", "svix-signature"}

type Verifier struct {
	wh *svix.Webhook
}

var _ ports.IdentityEventVerifier = (*Verifier)(nil)

func NewVerifier(secret string) (*Verifier, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("identity: webhook secret: %w", err)
	}
	return &Verifier{wh: wh}, nil
}

type emailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type userData struct {
	ID                    string         `json:"id"`
	Username              string         `json:"username"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	EmailAddresses        []emailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
}

type event struct {
	Type string   `json:"type"`
	Data userData `json:"data"`
}

// HasHeaders reports whether all signature headers are present.
func HasHeaders(h http.Header) bool {
	for _, k := range RequiredHeaders {
		if h.Get(k) == "" {
			return false
		}
	}
	return true
}

// VerifyIdentityEvent authenticates payload and decodes it. A user without a
// primary email is returned with an empty Email; rejecting it is up to the caller.
func (v *Verifier) VerifyIdentityEvent(payload []byte, header http.Header) (*entity.IdentityEvent, error) {
	if !HasHeaders(header) {
		return nil, fmt.Errorf("%w: missing svix headers", ports.ErrInvalidSignature)
	}
	if err := v.wh.Verify(payload, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidSignature, err)
	}

	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("identity: decode event: %w", err)
	}
	return &entity.IdentityEvent{
		Type: entity.IdentityEventType(ev.Type),
		User: entity.User{
			ID:         ev.Data.ID,
			Email:      ev.Data.primaryEmail(),
			FullName:   ev.Data.fullName(),
			Role:       entity.RoleUser,
			IsVerified: true,
		},
	}, nil
}

func (d userData) primaryEmail() string {
	for _, e := range d.EmailAddresses {
		if e.ID == d.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	return ""
}

func (d userData) fullName() string {
	if d.Username != "" {
		return d.Username
	}
	if name := strings.TrimSpace(d.FirstName + " " + d.LastName); name != "" {
		return name
	}
	return "Unknown"
}
