package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx/envelope"
	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx/middlewares"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	idempotencyInFlight = "in-flight"
	inFlightTTL         = 2 * time.Minute
	replayTTL           = 24 * time.Hour
)

// storedResponse is a finished checkout kept for replay under its idempotency key.
type storedResponse struct {
	Status int               `json:"status"`
	Body   envelope.Response `json:"body"`
}

// CreateCheckout places an order for the caller's cart. With an
// Idempotency-Key header and a cache, a successful checkout is replayed for
// 24h under that key and a concurrent duplicate gets 409. Failed attempts
// release the key.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middlewares.UserID(ctx)

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key == "" || h.Cache == nil {
		status, body := h.checkout(w, r, userID)
		envelope.Write(w, status, body)
		return
	}

	cacheKey := h.Cache.GenerateKey("checkout", userID+":"+key)
	acquired, err := h.Cache.SetNX(ctx, cacheKey, idempotencyInFlight, inFlightTTL)
	if err != nil {
		slog.WarnContext(ctx, "idempotency cache unavailable", "error", err)
		status, body := h.checkout(w, r, userID)
		envelope.Write(w, status, body)
		return
	}
	if !acquired {
		h.replay(w, r, cacheKey)
		return
	}

	status, body := h.checkout(w, r, userID)
	if status >= http.StatusBadRequest {
		// Only a placed order spends the key; a fixed cart can be retried with it.
		if err := h.Cache.Delete(ctx, cacheKey); err != nil {
			slog.WarnContext(ctx, "idempotency key release failed", "error", err)
		}
	} else if data, err := json.Marshal(storedResponse{Status: status, Body: body}); err == nil {
		if err := h.Cache.Set(ctx, cacheKey, data, replayTTL); err != nil {
			slog.WarnContext(ctx, "idempotency response store failed", "error", err)
		}
	}
	envelope.Write(w, status, body)
}

func (h *Handler) replay(w http.ResponseWriter, r *http.Request, cacheKey string) {
	val, err := h.Cache.Get(r.Context(), cacheKey)
	if err != nil || val == "" || val == idempotencyInFlight {
		envelope.Write(w, http.StatusConflict, envelope.Fail(envelope.CodeInFlight, "A request with this idempotency key is in progress"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		envelope.WriteError(w, apperr.Wrap(err, "decode stored response"))
		return
	}
	w.Header().Set("Idempotent-Replayed", "true")
	envelope.Write(w, stored.Status, stored.Body)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request, userID string) (int, envelope.Response) {
	var req CheckoutRequest
	if err := decode(w, r, &req); err != nil {
		return envelope.FromError(err)
	}
	if req.ShippingAddress == nil || len(req.ShippingAddress.Missing()) > 0 {
		return envelope.FromError(apperr.New(apperr.Validation, "Validation Error"))
	}

	res, err := h.Checkout.CreateCheckoutSession(r.Context(), userID, *req.ShippingAddress)
	if err != nil {
		return envelope.FromError(err)
	}
	return http.StatusOK, envelope.OK("Checkout initiated successfully", CheckoutResponse{
		ClientSecret: res.ClientSecret,
		OrderID:      res.OrderID,
		TotalAmount:  entity.FormatAmount(res.TotalAmount),
	})
}
