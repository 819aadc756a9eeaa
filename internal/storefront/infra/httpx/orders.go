package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx/envelope"
	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx/middlewares"
)

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListMine(r.Context(), middlewares.UserID(r.Context()))
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	ok(w, "Orders fetched successfully", mapOrders(orders))
}

func (h *Handler) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.GetMine(r.Context(), middlewares.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	ok(w, "Order details fetched successfully", mapOrder(*order))
}

func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListAll(r.Context())
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	ok(w, "All orders fetched successfully", mapOrders(orders))
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderStatusRequest
	if err := decode(w, r, &req); err != nil {
		envelope.WriteError(w, err)
		return
	}
	if req.Status == "" {
		envelope.WriteError(w, apperr.New(apperr.Validation, "Invalid status value"))
		return
	}
	order, err := h.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	ok(w, "Order status updated successfully", mapOrder(*order))
}

// GetOrderPaymentLog shows operators where an order's checkout and payment stopped.
func (h *Handler) GetOrderPaymentLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Orders.PaymentTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	ok(w, "Payment log fetched successfully", mapPaymentLog(entries))
}
