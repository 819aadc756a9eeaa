package paymentlog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// NewEntry builds an entry stamped with the span active in ctx. Outside a
// span (unit tests, background sweeps without tracing) the ids stay empty.
func NewEntry(ctx context.Context, status Status, orderID, paymentRef, eventID, detail string) *Entry {
	entry := &Entry{
		OrderID:    orderID,
		PaymentRef: paymentRef,
		EventID:    eventID,
		Status:     status,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}

	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
		entry.SpanID = sc.SpanID().String()
	}
	return entry
}
