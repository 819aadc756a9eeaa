package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
	"github.com/jcmexdev/storefront/internal/storefront/paymentlog"
)

func succeeded(eventID, ref, orderID, userID string) *entity.PaymentEvent {
	return &entity.PaymentEvent{
		ID: eventID, Type: entity.PaymentEventSucceeded, RawType: "payment_intent.succeeded",
		PaymentRef: ref, OrderID: orderID, UserID: userID,
	}
}

func failed(eventID, ref, orderID string) *entity.PaymentEvent {
	return &entity.PaymentEvent{
		ID: eventID, Type: entity.PaymentEventFailed, RawType: "payment_intent.payment_failed",
		PaymentRef: ref, OrderID: orderID,
	}
}

func TestReconciler_PaymentSucceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t, buyer, map[string]int{mugID: 2, toteID: 3})

	outcome, err := f.recon.Handle(ctx, succeeded("evt_1", f.lastRef(), res.OrderID, buyer))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	order, err := f.store.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusProcessing, order.Status)
	assert.Equal(t, entity.PaymentStatusSucceeded, order.PaymentStatus)

	assert.Equal(t, 8, f.stock(t, mugID))
	assert.Equal(t, 7, f.stock(t, toteID))

	view, err := f.cart.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Nil(t, view, "the purchased cart is retired")

	pending, err := f.store.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, entity.EventOrderPaid, pending[1].Type)

	assert.Contains(t, f.log.statuses(res.OrderID), paymentlog.StatusPaymentSucceeded)
}

func TestReconciler_ReplayDecrementsOnce(t *testing.T) {
	for _, withCache := range []bool{false, true} {
		name := "store only"
		if withCache {
			name = "with dedup cache"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			if withCache {
				f.recon = NewReconciler(f.store, newMapCache(), Observers{PaymentLog: f.log})
			}
			ctx := context.Background()
			res := f.placeOrder(t, buyer, map[string]int{mugID: 3})
			ev := succeeded("evt_1", f.lastRef(), res.OrderID, buyer)

			outcomes := map[Outcome]int{}
			for i := 0; i < 5; i++ {
				outcome, err := f.recon.Handle(ctx, ev)
				require.NoError(t, err)
				outcomes[outcome]++
			}

			assert.Equal(t, 1, outcomes[OutcomeApplied])
			assert.Equal(t, 4, outcomes[OutcomeReplayed])
			assert.Equal(t, 7, f.stock(t, mugID))
		})
	}
}

func TestReconciler_ConcurrentReplaysDecrementOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t, buyer, map[string]int{mugID: 4})
	ref := f.lastRef()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.recon.Handle(ctx, succeeded("evt_1", ref, res.OrderID, buyer))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, f.stock(t, mugID))
}

func TestReconciler_OversoldStockClampsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.placeOrder(t, buyer, map[string]int{mugID: 7})
	firstRef := f.lastRef()
	second := f.placeOrder(t, other, map[string]int{mugID: 7})
	secondRef := f.lastRef()

	_, err := f.recon.Handle(ctx, succeeded("evt_a", firstRef, first.OrderID, buyer))
	require.NoError(t, err)
	_, err = f.recon.Handle(ctx, succeeded("evt_b", secondRef, second.OrderID, other))
	require.NoError(t, err)

	assert.Equal(t, 0, f.stock(t, mugID))
	assert.Contains(t, f.log.statuses(second.OrderID), paymentlog.StatusStockShortfall)

	order, err := f.store.GetOrder(ctx, second.OrderID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusProcessing, order.Status)
}

func TestReconciler_PaymentFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t, buyer, map[string]int{mugID: 1})
	ref := f.lastRef()

	outcome, err := f.recon.Handle(ctx, failed("evt_f", ref, res.OrderID))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	order, err := f.store.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusPending, order.Status, "failure never cancels the order")
	assert.Equal(t, entity.PaymentStatusFailed, order.PaymentStatus)
	assert.Equal(t, 10, f.stock(t, mugID))

	// The processor may still succeed the same intent after a failed attempt.
	outcome, err = f.recon.Handle(ctx, succeeded("evt_s", ref, res.OrderID, buyer))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, 9, f.stock(t, mugID))

	// A late failure does not undo a success.
	outcome, err = f.recon.Handle(ctx, failed("evt_f2", ref, res.OrderID))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplayed, outcome)
	pay, err := f.store.GetPaymentByRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusSucceeded, pay.Status)
}

func TestReconciler_AcknowledgesWhatItCannotUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t, buyer, map[string]int{mugID: 1})
	ref := f.lastRef()

	tests := []struct {
		name string
		ev   *entity.PaymentEvent
		want Outcome
	}{
		{"missing order id", succeeded("evt_1", ref, "", buyer), OutcomeIgnored},
		{"unknown payment", succeeded("evt_2", "pi_unknown", res.OrderID, buyer), OutcomeUncorrelated},
		{"order mismatch", succeeded("evt_3", ref, "order-elsewhere", buyer), OutcomeUncorrelated},
		{"unhandled type", &entity.PaymentEvent{ID: "evt_4", Type: entity.PaymentEventOther, RawType: "charge.refunded", PaymentRef: ref, OrderID: res.OrderID}, OutcomeIgnored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := f.recon.Handle(ctx, tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome)
		})
	}

	assert.Equal(t, 10, f.stock(t, mugID))
	pay, err := f.store.GetPaymentByRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPending, pay.Status)
}

type failingStore struct {
	ports.Store
	err error
}

func (s failingStore) WithinTx(context.Context, func(ports.Queries) error) error { return s.err }

func TestReconciler_StoreFailureAsksForRetry(t *testing.T) {
	f := newFixture(t)
	res := f.placeOrder(t, buyer, map[string]int{mugID: 1})
	boom := errors.New("connection reset")

	recon := NewReconciler(failingStore{Store: f.store, err: boom}, newMapCache(), Observers{})
	_, err := recon.Handle(context.Background(), succeeded("evt_1", f.lastRef(), res.OrderID, buyer))
	require.ErrorIs(t, err, boom)

	// A failed attempt is not remembered, so the retry is processed.
	outcome, err := f.recon.Handle(context.Background(), succeeded("evt_1", f.lastRef(), res.OrderID, buyer))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
}

func TestReconciler_LatePaymentKeepsAdvancedStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t, buyer, map[string]int{mugID: 2})

	_, err := f.orders.UpdateStatus(ctx, res.OrderID, "shipped")
	require.NoError(t, err)

	outcome, err := f.recon.Handle(ctx, succeeded("evt_late", f.lastRef(), res.OrderID, buyer))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	order, err := f.store.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusShipped, order.Status)
	assert.Equal(t, entity.PaymentStatusSucceeded, order.PaymentStatus)
	assert.Equal(t, 8, f.stock(t, mugID))

	_, err = f.orders.UpdateStatus(ctx, res.OrderID, "cancelled")
	assert.True(t, apperr.Is(err, apperr.Conflict), "a shipped order cannot be cancelled")
}

func TestReconciler_PaymentForCancelledOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t, buyer, map[string]int{mugID: 2})
	ref := f.lastRef()

	_, err := f.orders.UpdateStatus(ctx, res.OrderID, "cancelled")
	require.NoError(t, err)

	outcome, err := f.recon.Handle(ctx, succeeded("evt_c", ref, res.OrderID, buyer))
	require.NoError(t, err)
	assert.Equal(t, OutcomeOrderCancelled, outcome)

	order, err := f.store.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCancelled, order.Status)
	assert.Equal(t, entity.PaymentStatusSucceeded, order.PaymentStatus)
	assert.Equal(t, 10, f.stock(t, mugID))
	assert.Contains(t, f.log.statuses(res.OrderID), paymentlog.StatusPaidAfterCancel)

	view, err := f.cart.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.NotNil(t, view, "the cart is left to the buyer")

	outcome, err = f.recon.Handle(ctx, succeeded("evt_c2", ref, res.OrderID, buyer))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplayed, outcome)
}
