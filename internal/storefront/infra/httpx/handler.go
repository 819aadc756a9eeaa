// Package httpx is the HTTP surface of the storefront.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
	"github.com/jcmexdev/storefront/internal/storefront/core/service"
	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx/envelope"
	"github.com/jcmexdev/storefront/internal/storefront/paymentlog"
)

const maxBodyBytes = 1 << 20

type CartService interface {
	GetCart(ctx context.Context, userID string) (*entity.CartView, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*entity.CartView, error)
	UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*entity.CartView, error)
	RemoveItem(ctx context.Context, userID, itemID string) (*entity.CartView, error)
}

type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, userID string, addr entity.ShippingAddress) (*service.CheckoutResult, error)
}

type OrderService interface {
	ListMine(ctx context.Context, userID string) ([]entity.Order, error)
	GetMine(ctx context.Context, userID, orderID string) (*entity.Order, error)
	ListAll(ctx context.Context) ([]entity.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string) (*entity.Order, error)
	PaymentTrail(ctx context.Context, orderID string) ([]paymentlog.Entry, error)
}

type PaymentReconciler interface {
	Handle(ctx context.Context, ev *entity.PaymentEvent) (service.Outcome, error)
}

type UserService interface {
	Apply(ctx context.Context, ev *entity.IdentityEvent) (bool, error)
	RequireAdmin(ctx context.Context, userID string) (*entity.User, error)
}

// Handler serves every storefront route. Cache may be nil, which disables
// checkout idempotency keys.
type Handler struct {
	Cart       CartService
	Checkout   CheckoutService
	Orders     OrderService
	Reconciler PaymentReconciler
	Users      UserService

	PaymentEvents  ports.PaymentEventVerifier
	IdentityEvents ports.IdentityEventVerifier
	// PaymentSignatureHeader names the header the payment verifier reads.
	PaymentSignatureHeader string

	Cache ports.Cache
}

// decode reads a JSON body. Malformed input is a validation failure.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return apperr.New(apperr.Validation, "Validation Error")
	}
	return nil
}

func ok(w http.ResponseWriter, message string, data any) {
	envelope.Write(w, http.StatusOK, envelope.OK(message, data))
}
