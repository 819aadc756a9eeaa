package httpx

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx/envelope"
	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx/middlewares"
)

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.Cart.GetCart(r.Context(), middlewares.UserID(r.Context()))
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	if view == nil {
		ok(w, "Cart not found", nil)
		return
	}
	ok(w, "Cart fetched successfully", mapCart(view))
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decode(w, r, &req); err != nil {
		envelope.WriteError(w, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if strings.TrimSpace(req.ProductID) == "" || quantity < 1 {
		envelope.WriteError(w, apperr.New(apperr.Validation, "Validation Error"))
		return
	}

	view, err := h.Cart.AddItem(r.Context(), middlewares.UserID(r.Context()), req.ProductID, quantity)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	ok(w, "Item added to cart successfully", mapCart(view))
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if err := decode(w, r, &req); err != nil {
		envelope.WriteError(w, err)
		return
	}
	if req.Quantity == nil || *req.Quantity < 1 {
		envelope.WriteError(w, apperr.New(apperr.Validation, "Validation Error"))
		return
	}

	view, err := h.Cart.UpdateItem(r.Context(), middlewares.UserID(r.Context()), chi.URLParam(r, "itemId"), *req.Quantity)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	ok(w, "Cart updated successfully", mapCart(view))
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.Cart.RemoveItem(r.Context(), middlewares.UserID(r.Context()), chi.URLParam(r, "itemId"))
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	ok(w, "Item removed from cart successfully", mapCart(view))
}
