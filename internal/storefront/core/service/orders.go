package service

import (
	"context"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
	"github.com/jcmexdev/storefront/internal/storefront/paymentlog"
)

// OrderService serves order history to buyers and the order list and
// status changes to operators.
type OrderService struct {
	store ports.Store
	trail paymentlog.Repository
}

// NewOrderService builds the service. trail may be nil, in which case every
// order has an empty payment trail.
func NewOrderService(store ports.Store, trail paymentlog.Repository) *OrderService {
	return &OrderService{store: store, trail: trail}
}

// ListMine returns the caller's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, userID string) ([]entity.Order, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	orders, err := s.store.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "list orders")
	}
	return orders, nil
}

// GetMine hides orders of other users behind NotFound.
func (s *OrderService) GetMine(ctx context.Context, userID, orderID string) (*entity.Order, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if isNotFound(err) || (err == nil && order.UserID != userID) {
		return nil, apperr.New(apperr.NotFound, "Order not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "load order")
	}
	return order, nil
}

// ListAll returns every order with its buyer, for operators.
func (s *OrderService) ListAll(ctx context.Context) ([]entity.Order, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "list orders")
	}
	return orders, nil
}

// UpdateStatus is the operator's status change. Orders only move forward
// along the fulfilment line, or to cancelled before they ship.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status string) (*entity.Order, error) {
	next, ok := entity.ParseOrderStatus(status)
	if !ok {
		return nil, apperr.New(apperr.Validation, "Invalid status value")
	}

	var updated *entity.Order
	err := s.store.WithinTx(ctx, func(q ports.Queries) error {
		order, err := q.GetOrder(ctx, orderID)
		if isNotFound(err) {
			return apperr.New(apperr.NotFound, "Order not found")
		}
		if err != nil {
			return apperr.Wrap(err, "load order")
		}
		if !order.Status.CanMoveTo(next) {
			return apperr.New(apperr.Conflict, "Cannot move order from %s to %s", order.Status, next)
		}
		moved, err := q.TransitionOrder(ctx, orderID, next, order.Status)
		if err != nil {
			return apperr.Wrap(err, "update order status")
		}
		if !moved {
			return apperr.New(apperr.Conflict, "Order status changed concurrently, retry")
		}
		if updated, err = q.GetOrder(ctx, orderID); err != nil {
			return apperr.Wrap(err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// PaymentTrail returns the audit entries of an existing order, oldest first.
func (s *OrderService) PaymentTrail(ctx context.Context, orderID string) ([]paymentlog.Entry, error) {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		if isNotFound(err) {
			return nil, apperr.New(apperr.NotFound, "Order not found")
		}
		return nil, apperr.Wrap(err, "load order")
	}
	if s.trail == nil {
		return []paymentlog.Entry{}, nil
	}
	entries, err := s.trail.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Wrap(err, "list payment log")
	}
	return entries, nil
}
