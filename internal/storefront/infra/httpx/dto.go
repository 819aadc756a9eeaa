package httpx

import (
	"time"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/paymentlog"
)

type AddItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type UpdateItemRequest struct {
	Quantity *int `json:"quantity"`
}

type CheckoutRequest struct {
	ShippingAddress *entity.ShippingAddress `json:"shippingAddress"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

type CartProductResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

type CartItemResponse struct {
	ID       string              `json:"id"`
	Quantity int                 `json:"quantity"`
	Product  CartProductResponse `json:"product"`
	Subtotal string              `json:"subtotal"`
}

type CartResponse struct {
	ID     string             `json:"id"`
	UserID string             `json:"userId"`
	Items  []CartItemResponse `json:"items"`
	Total  string             `json:"total"`
}

type CheckoutResponse struct {
	ClientSecret string `json:"clientSecret"`
	OrderID      string `json:"orderId"`
	TotalAmount  string `json:"totalAmount"`
}

type OrderProductResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

type OrderItemResponse struct {
	ID        string               `json:"id"`
	UnitPrice string               `json:"unitPrice"`
	Quantity  int                  `json:"quantity"`
	Product   OrderProductResponse `json:"product"`
}

type BuyerResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type OrderResponse struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"userId,omitempty"`
	User            *BuyerResponse         `json:"user,omitempty"`
	TotalAmount     string                 `json:"totalAmount"`
	Status          string                 `json:"status"`
	PaymentStatus   string                 `json:"paymentStatus"`
	ShippingAddress entity.ShippingAddress `json:"shippingAddress"`
	Items           []OrderItemResponse    `json:"items"`
	CreatedAt       string                 `json:"createdAt"`
}

func mapCart(view *entity.CartView) *CartResponse {
	if view == nil {
		return nil
	}
	items := make([]CartItemResponse, len(view.Lines))
	for i, l := range view.Lines {
		items[i] = CartItemResponse{
			ID:       l.Item.ID,
			Quantity: l.Item.Quantity,
			Product: CartProductResponse{
				ID:    l.Product.ID,
				Title: l.Product.Title,
				Slug:  l.Product.Slug,
				Price: entity.FormatAmount(l.Product.Price),
				Stock: l.Product.Stock,
			},
			Subtotal: entity.FormatAmount(l.Subtotal),
		}
	}
	return &CartResponse{ID: view.ID, UserID: view.UserID, Items: items, Total: entity.FormatAmount(view.Total)}
}

func mapOrder(o entity.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ID:        it.ID,
			UnitPrice: entity.FormatAmount(it.UnitPrice),
			Quantity:  it.Quantity,
			Product:   OrderProductResponse{ID: it.ProductID, Title: it.Title, Slug: it.Slug},
		}
	}
	resp := OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		TotalAmount:     entity.FormatAmount(o.TotalAmount),
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		ShippingAddress: o.ShippingAddress,
		Items:           items,
		CreatedAt:       o.CreatedAt.UTC().Format(time.RFC3339),
	}
	if o.Buyer != nil {
		resp.User = &BuyerResponse{ID: o.Buyer.ID, Email: o.Buyer.Email, FullName: o.Buyer.FullName}
	}
	return resp
}

func mapOrders(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = mapOrder(o)
	}
	return out
}

type PaymentLogEntryResponse struct {
	Status     string `json:"status"`
	PaymentRef string `json:"paymentRef,omitempty"`
	EventID    string `json:"eventId,omitempty"`
	Detail     string `json:"detail,omitempty"`
	TraceID    string `json:"traceId,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

func mapPaymentLog(entries []paymentlog.Entry) []PaymentLogEntryResponse {
	out := make([]PaymentLogEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = PaymentLogEntryResponse{
			Status:     string(e.Status),
			PaymentRef: e.PaymentRef,
			EventID:    e.EventID,
			Detail:     e.Detail,
			TraceID:    e.TraceID,
			CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return out
}
