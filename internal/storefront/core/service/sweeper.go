package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
	"github.com/jcmexdev/storefront/internal/storefront/paymentlog"
)

// OrderSweeper cancels pending orders whose payment intent was never recorded.
type OrderSweeper struct {
	store   ports.Store
	timeout time.Duration
	obs     Observers
	now     func() time.Time
}

// NewOrderSweeper builds a sweeper that cancels orders older than timeout.
func NewOrderSweeper(store ports.Store, timeout time.Duration, obs Observers) *OrderSweeper {
	return &OrderSweeper{store: store, timeout: timeout, obs: obs, now: time.Now}
}

// Sweep runs one pass and returns the ids it cancelled.
func (s *OrderSweeper) Sweep(ctx context.Context) ([]string, error) {
	ids, err := s.store.CancelOrphanedOrders(ctx, s.now().Add(-s.timeout))
	if err != nil {
		return nil, apperr.Wrap(err, "cancel orphaned orders")
	}
	for _, id := range ids {
		s.obs.audit(ctx, paymentlog.StatusOrderSwept, id, "", "", "no payment after "+s.timeout.String())
	}
	if len(ids) > 0 {
		slog.InfoContext(ctx, "orphaned orders cancelled", "count", len(ids))
		s.obs.Metrics.OrdersSwept(len(ids))
	}
	return ids, nil
}

// Run sweeps every interval until ctx is done.
func (s *OrderSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "order sweep failed", "error", err)
			}
		}
	}
}
