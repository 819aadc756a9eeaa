// Package service implements the storefront use cases on top of the ports.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jcmexdev/storefront/internal/pkg/metrics"
	"github.com/jcmexdev/storefront/internal/storefront/core/apperr"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
	"github.com/jcmexdev/storefront/internal/storefront/paymentlog"
)

// Observers are the optional side channels of the pipeline. A zero value is
// valid: nothing is audited and nothing is counted.
type Observers struct {
	PaymentLog paymentlog.Repository
	Metrics    *metrics.Pipeline
}

// audit appends to the payment log. A failed write is logged and otherwise
// ignored; the audit trail never blocks a payment.
func (o Observers) audit(ctx context.Context, status paymentlog.Status, orderID, paymentRef, eventID, detail string) {
	if o.PaymentLog == nil {
		return
	}
	if err := o.PaymentLog.Save(ctx, paymentlog.NewEntry(ctx, status, orderID, paymentRef, eventID, detail)); err != nil {
		slog.WarnContext(ctx, "payment log write failed",
			"status", string(status),
			"order_id", orderID,
			"error", err,
		)
	}
}

func requireUser(userID string) error {
	if userID == "" {
		return apperr.New(apperr.Unauthorized, "Unauthorized")
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ports.ErrNotFound)
}
