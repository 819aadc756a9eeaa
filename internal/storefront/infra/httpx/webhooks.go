package httpx

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx/envelope"
)

func readPayload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Webhook Error", http.StatusBadRequest)
		return nil, false
	}
	return payload, true
}

// PaymentWebhook acknowledges everything it can act on or never will with
// 200 and answers 500 only when a retry may succeed.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.PaymentSignatureHeader != "" && r.Header.Get(h.PaymentSignatureHeader) == "" {
		http.Error(w, "Missing Signature", http.StatusBadRequest)
		return
	}
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}

	ev, err := h.PaymentEvents.VerifyPaymentEvent(payload, r.Header)
	if err != nil {
		if errors.Is(err, ports.ErrInvalidSignature) {
			slog.WarnContext(ctx, "payment webhook rejected", "error", err)
		} else {
			slog.WarnContext(ctx, "payment webhook undecodable", "error", err)
		}
		http.Error(w, "Webhook Error", http.StatusBadRequest)
		return
	}

	outcome, err := h.Reconciler.Handle(ctx, ev)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	slog.InfoContext(ctx, "payment webhook handled", "event_id", ev.ID, "type", ev.RawType, "outcome", string(outcome))
	envelope.WriteJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": outcome})
}

func (h *Handler) IdentityWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}

	ev, err := h.IdentityEvents.VerifyIdentityEvent(payload, r.Header)
	if err != nil {
		slog.WarnContext(ctx, "identity webhook rejected", "error", err)
		http.Error(w, "Webhook Error", http.StatusBadRequest)
		return
	}

	applied, err := h.Users.Apply(ctx, ev)
	switch {
	case apperr.Is(err, apperr.Validation):
		http.Error(w, apperr.Message(err), http.StatusBadRequest)
		return
	case err != nil:
		slog.ErrorContext(ctx, "identity webhook failed", "type", string(ev.Type), "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !applied {
		slog.InfoContext(ctx, "identity event ignored", "type", string(ev.Type))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Webhook processed")
}
