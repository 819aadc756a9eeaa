package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
	"github.com/jcmexdev/storefront/internal/storefront/paymentlog"
)

// CheckoutResult is what the buyer needs to confirm payment on the client.
type CheckoutResult struct {
	ClientSecret string
	OrderID      string
	TotalAmount  decimal.Decimal
}

// CheckoutService turns an active cart into a pending order and a payment intent.
type CheckoutService struct {
	store   ports.Store
	gateway ports.PaymentGateway
	obs     Observers
}

// NewCheckoutService builds the service. A zero Observers disables auditing and metrics.
func NewCheckoutService(store ports.Store, gateway ports.PaymentGateway, obs Observers) *CheckoutService {
	return &CheckoutService{store: store, gateway: gateway, obs: obs}
}

// CreateCheckoutSession freezes the active cart into a pending order, asks the
// processor for a payment intent and records the pending payment.
//
// The order commits before the processor is called and no transaction is
// held open across that call. If the intent or the payment insert fails the
// order stays behind without a payment; the orphan sweeper cancels it later.
// Stock is not touched here.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, userID string, addr entity.ShippingAddress) (*CheckoutResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if missing := addr.Missing(); len(missing) > 0 {
		return nil, apperr.New(apperr.Validation, "Validation Error: missing %s", strings.Join(missing, ", "))
	}

	s.obs.audit(ctx, paymentlog.StatusCheckoutStarted, "", "", "", "user="+userID)

	order, err := s.placeOrder(ctx, userID, addr)
	if err != nil {
		s.obs.Metrics.Checkout(outcomeOf(err))
		return nil, err
	}
	s.obs.audit(ctx, paymentlog.StatusOrderPlaced, order.ID, "", "", "total="+entity.FormatAmount(order.TotalAmount))
	slog.InfoContext(ctx, "order placed",
		"order_id", order.ID,
		"user_id", userID,
		"total", entity.FormatAmount(order.TotalAmount),
	)

	intent, err := s.gateway.CreateIntent(ctx, ports.IntentRequest{
		Amount:  order.TotalAmount,
		OrderID: order.ID,
		UserID:  userID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "payment intent failed", "order_id", order.ID, "error", err)
		s.obs.audit(ctx, paymentlog.StatusIntentFailed, order.ID, "", "", err.Error())
		s.obs.Metrics.Checkout("intent_failed")
		return nil, apperr.Wrap(err, "create payment intent")
	}

	payment := &entity.Payment{
		OrderID:     order.ID,
		ProviderRef: intent.Ref,
		Amount:      order.TotalAmount,
		Status:      entity.PaymentStatusPending,
	}
	if err := s.store.InsertPayment(ctx, payment); err != nil {
		slog.ErrorContext(ctx, "payment record failed", "order_id", order.ID, "payment_ref", intent.Ref, "error", err)
		s.obs.Metrics.Checkout("payment_record_failed")
		return nil, apperr.Wrap(err, "record payment")
	}
	s.obs.audit(ctx, paymentlog.StatusPaymentRecorded, order.ID, intent.Ref, "", "")
	s.obs.Metrics.Checkout("ok")

	return &CheckoutResult{
		ClientSecret: intent.ClientSecret,
		OrderID:      order.ID,
		TotalAmount:  order.TotalAmount,
	}, nil
}

// placeOrder validates the cart and persists the priced order in one transaction.
func (s *CheckoutService) placeOrder(ctx context.Context, userID string, addr entity.ShippingAddress) (*entity.Order, error) {
	var order *entity.Order
	err := s.store.WithinTx(ctx, func(q ports.Queries) error {
		cart, err := q.FindActiveCart(ctx, userID)
		if isNotFound(err) {
			return apperr.New(apperr.CartEmpty, "Cart is empty")
		}
		if err != nil {
			return apperr.Wrap(err, "load cart")
		}
		lines, err := q.ListCartLines(ctx, cart.ID)
		if err != nil {
			return apperr.Wrap(err, "load cart lines")
		}
		if len(lines) == 0 {
			return apperr.New(apperr.CartEmpty, "Cart is empty")
		}

		o := &entity.Order{
			ID:              uuid.NewString(),
			UserID:          userID,
			Status:          entity.OrderStatusPending,
			ShippingAddress: addr,
			TotalAmount:     decimal.Zero,
			Items:           make([]entity.OrderItem, 0, len(lines)),
		}
		for _, line := range lines {
			if line.Product.Stock < line.Item.Quantity {
				return apperr.New(apperr.OutOfStock, "Out of stock: %s", line.Product.Title)
			}
			o.TotalAmount = o.TotalAmount.Add(entity.LineTotal(line.Product.Price, line.Item.Quantity))
			o.Items = append(o.Items, entity.OrderItem{
				ProductID: line.Product.ID,
				Quantity:  line.Item.Quantity,
				UnitPrice: line.Product.Price,
			})
		}

		if err := q.InsertOrder(ctx, o); err != nil {
			return apperr.Wrap(err, "insert order")
		}
		ev, err := entity.NewOutboxEvent(entity.EventOrderCreated, o.ID, orderEvent{
			OrderID:     o.ID,
			UserID:      userID,
			TotalAmount: entity.FormatAmount(o.TotalAmount),
		})
		if err != nil {
			return apperr.Wrap(err, "build order event")
		}
		if err := q.AppendOutbox(ctx, ev); err != nil {
			return apperr.Wrap(err, "append order event")
		}
		order = o
		return nil
	})
	return order, err
}

// orderEvent is the payload of the order.* and payment.* outbox events.
type orderEvent struct {
	OrderID     string `json:"orderId"`
	UserID      string `json:"userId,omitempty"`
	TotalAmount string `json:"totalAmount,omitempty"`
	PaymentRef  string `json:"paymentRef,omitempty"`
}

func outcomeOf(err error) string {
	return strings.ToLower(string(apperr.KindOf(err)))
}
