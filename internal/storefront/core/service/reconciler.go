package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
	"github.com/jcmexdev/storefront/internal/storefront/paymentlog"
)

// Outcome is what the reconciler did with an event. Every outcome is
// acknowledged to the processor; only a returned error asks for a retry.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	// OutcomeReplayed means the payment had already left the expected state.
	OutcomeReplayed Outcome = "replayed"
	// OutcomeUncorrelated means the event names a payment or order we do not know.
	OutcomeUncorrelated Outcome = "uncorrelated"
	OutcomeIgnored      Outcome = "ignored"
	// OutcomeOrderCancelled means the payment settled but its order had been
	// cancelled. The order is not revived and stock is left alone.
	OutcomeOrderCancelled Outcome = "order_cancelled"
)

const processedEventTTL = 72 * time.Hour

// Reconciler applies verified processor events to payments, orders and stock.
// Replays are made harmless by the compare-and-swap on the payment status;
// the optional cache only short-circuits events already seen.
type Reconciler struct {
	store ports.Store
	cache ports.Cache
	obs   Observers
}

// NewReconciler accepts a nil cache.
func NewReconciler(store ports.Store, cache ports.Cache, obs Observers) *Reconciler {
	return &Reconciler{store: store, cache: cache, obs: obs}
}

type shortfall struct {
	productID string
	quantity  int
}

// Handle applies one verified event and reports what it did. A non-nil
// error means the event was not applied and the processor should retry.
func (r *Reconciler) Handle(ctx context.Context, ev *entity.PaymentEvent) (Outcome, error) {
	outcome, err := r.handle(ctx, ev)
	if err != nil {
		r.obs.Metrics.Webhook("payment", "error")
		return "", err
	}
	r.obs.Metrics.Webhook("payment", string(outcome))
	return outcome, nil
}

func (r *Reconciler) handle(ctx context.Context, ev *entity.PaymentEvent) (Outcome, error) {
	if ev.Type != entity.PaymentEventSucceeded && ev.Type != entity.PaymentEventFailed {
		slog.InfoContext(ctx, "unhandled payment event", "event_id", ev.ID, "type", ev.RawType)
		r.obs.audit(ctx, paymentlog.StatusEventIgnored, ev.OrderID, ev.PaymentRef, ev.ID, "unhandled type "+ev.RawType)
		return OutcomeIgnored, nil
	}
	if ev.OrderID == "" {
		slog.WarnContext(ctx, "payment event without order id", "event_id", ev.ID, "payment_ref", ev.PaymentRef)
		r.obs.audit(ctx, paymentlog.StatusEventIgnored, "", ev.PaymentRef, ev.ID, "order id missing in metadata")
		return OutcomeIgnored, nil
	}
	if r.seen(ctx, ev.ID) {
		r.obs.audit(ctx, paymentlog.StatusEventReplayed, ev.OrderID, ev.PaymentRef, ev.ID, "duplicate delivery")
		return OutcomeReplayed, nil
	}

	var (
		outcome Outcome
		err     error
	)
	switch ev.Type {
	case entity.PaymentEventSucceeded:
		outcome, err = r.paymentSucceeded(ctx, ev)
	case entity.PaymentEventFailed:
		outcome, err = r.paymentFailed(ctx, ev)
	}
	if err != nil {
		slog.ErrorContext(ctx, "payment event failed", "event_id", ev.ID, "order_id", ev.OrderID, "error", err)
		return "", err
	}

	switch outcome {
	case OutcomeUncorrelated:
		slog.WarnContext(ctx, "payment event for unknown payment", "event_id", ev.ID, "order_id", ev.OrderID, "payment_ref", ev.PaymentRef)
		r.obs.audit(ctx, paymentlog.StatusEventIgnored, ev.OrderID, ev.PaymentRef, ev.ID, "unknown payment reference")
	case OutcomeReplayed:
		r.obs.audit(ctx, paymentlog.StatusEventReplayed, ev.OrderID, ev.PaymentRef, ev.ID, "payment already settled")
	case OutcomeOrderCancelled:
		slog.WarnContext(ctx, "payment succeeded for cancelled order", "event_id", ev.ID, "order_id", ev.OrderID, "payment_ref", ev.PaymentRef)
		r.obs.audit(ctx, paymentlog.StatusPaidAfterCancel, ev.OrderID, ev.PaymentRef, ev.ID, "order already cancelled")
	}
	r.remember(ctx, ev.ID)
	return outcome, nil
}

// paymentSucceeded settles the payment, moves a pending order to processing,
// decrements stock and retires the buyer's cart in one transaction. An order
// an operator already advanced keeps its status. A cancelled order stays
// cancelled and only the payment is settled.
func (r *Reconciler) paymentSucceeded(ctx context.Context, ev *entity.PaymentEvent) (Outcome, error) {
	var short []shortfall
	outcome := OutcomeApplied

	err := r.store.WithinTx(ctx, func(q ports.Queries) error {
		short = nil

		pay, err := q.GetPaymentByRef(ctx, ev.PaymentRef)
		if isNotFound(err) {
			outcome = OutcomeUncorrelated
			return nil
		}
		if err != nil {
			return apperr.Wrap(err, "load payment")
		}
		if pay.OrderID != ev.OrderID {
			outcome = OutcomeUncorrelated
			return nil
		}

		changed, err := q.TransitionPayment(ctx, ev.PaymentRef, entity.PaymentStatusSucceeded,
			entity.PaymentStatusPending, entity.PaymentStatusFailed)
		if err != nil {
			return apperr.Wrap(err, "settle payment")
		}
		if !changed {
			outcome = OutcomeReplayed
			return nil
		}

		if _, err := q.TransitionOrder(ctx, ev.OrderID, entity.OrderStatusProcessing, entity.OrderStatusPending); err != nil {
			return apperr.Wrap(err, "mark order processing")
		}
		order, err := q.GetOrder(ctx, ev.OrderID)
		if err != nil {
			return apperr.Wrap(err, "load order")
		}
		if order.Status == entity.OrderStatusCancelled {
			outcome = OutcomeOrderCancelled
			return nil
		}
		for _, item := range order.Items {
			clamped, err := q.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return apperr.Wrap(err, "decrement stock")
			}
			if clamped {
				short = append(short, shortfall{productID: item.ProductID, quantity: item.Quantity})
			}
		}
		if ev.UserID != "" {
			if err := q.DeactivateActiveCart(ctx, ev.UserID); err != nil {
				return apperr.Wrap(err, "deactivate cart")
			}
		}

		out, err := entity.NewOutboxEvent(entity.EventOrderPaid, order.ID, orderEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			TotalAmount: entity.FormatAmount(order.TotalAmount),
			PaymentRef:  ev.PaymentRef,
		})
		if err != nil {
			return apperr.Wrap(err, "build order event")
		}
		return q.AppendOutbox(ctx, out)
	})
	if err != nil {
		return "", err
	}

	if outcome == OutcomeApplied {
		slog.InfoContext(ctx, "payment succeeded", "order_id", ev.OrderID, "payment_ref", ev.PaymentRef, "event_id", ev.ID)
		r.obs.audit(ctx, paymentlog.StatusPaymentSucceeded, ev.OrderID, ev.PaymentRef, ev.ID, "")
		for _, s := range short {
			slog.WarnContext(ctx, "stock shortfall on paid order",
				"order_id", ev.OrderID,
				"product_id", s.productID,
				"quantity", s.quantity,
			)
			r.obs.Metrics.StockShortfall()
			r.obs.audit(ctx, paymentlog.StatusStockShortfall, ev.OrderID, ev.PaymentRef, ev.ID, "product="+s.productID)
		}
	}
	return outcome, nil
}

// paymentFailed marks a pending payment failed. The order is left for an operator.
func (r *Reconciler) paymentFailed(ctx context.Context, ev *entity.PaymentEvent) (Outcome, error) {
	outcome := OutcomeApplied

	err := r.store.WithinTx(ctx, func(q ports.Queries) error {
		pay, err := q.GetPaymentByRef(ctx, ev.PaymentRef)
		if isNotFound(err) {
			outcome = OutcomeUncorrelated
			return nil
		}
		if err != nil {
			return apperr.Wrap(err, "load payment")
		}
		if pay.OrderID != ev.OrderID {
			outcome = OutcomeUncorrelated
			return nil
		}

		changed, err := q.TransitionPayment(ctx, ev.PaymentRef, entity.PaymentStatusFailed, entity.PaymentStatusPending)
		if err != nil {
			return apperr.Wrap(err, "fail payment")
		}
		if !changed {
			outcome = OutcomeReplayed
			return nil
		}

		out, err := entity.NewOutboxEvent(entity.EventPaymentFailed, ev.OrderID, orderEvent{
			OrderID:    ev.OrderID,
			UserID:     ev.UserID,
			PaymentRef: ev.PaymentRef,
		})
		if err != nil {
			return apperr.Wrap(err, "build payment event")
		}
		return q.AppendOutbox(ctx, out)
	})
	if err != nil {
		return "", err
	}

	if outcome == OutcomeApplied {
		slog.InfoContext(ctx, "payment failed", "order_id", ev.OrderID, "payment_ref", ev.PaymentRef, "event_id", ev.ID)
		r.obs.audit(ctx, paymentlog.StatusPaymentFailed, ev.OrderID, ev.PaymentRef, ev.ID, "")
	}
	return outcome, nil
}

func (r *Reconciler) seen(ctx context.Context, eventID string) bool {
	if r.cache == nil || eventID == "" {
		return false
	}
	v, err := r.cache.Get(ctx, r.cache.GenerateKey("payment-event", eventID))
	if err != nil {
		slog.WarnContext(ctx, "event dedup lookup failed", "event_id", eventID, "error", err)
		return false
	}
	return v != ""
}

func (r *Reconciler) remember(ctx context.Context, eventID string) {
	if r.cache == nil || eventID == "" {
		return
	}
	if err := r.cache.Set(ctx, r.cache.GenerateKey("payment-event", eventID), "1", processedEventTTL); err != nil {
		slog.WarnContext(ctx, "event dedup store failed", "event_id", eventID, "error", err)
	}
}
