// Package paymentlog defines the append-only audit trail of the checkout and
// reconciliation pipeline.
//
// Every step of a checkout and every decision the webhook reconciler takes is
// written as one row, stamped with the trace and span that produced it. The
// trail answers two operator questions:
//
//  1. Where did this order stop? An order with ORDER_PLACED but no
//     PAYMENT_RECORDED lost its payment intent and is a sweep candidate.
//
//  2. What did the processor tell us, and when? Replayed and ignored events
//     stay visible next to the ones that changed state.
package paymentlog

import "time"

// Status is the pipeline milestone an entry records.
type Status string

const (
	StatusCheckoutStarted  Status = "CHECKOUT_STARTED"
	StatusOrderPlaced      Status = "ORDER_PLACED"
	StatusIntentFailed     Status = "INTENT_FAILED"
	StatusPaymentRecorded  Status = "PAYMENT_RECORDED"
	StatusPaymentSucceeded Status = "PAYMENT_SUCCEEDED"
	StatusPaymentFailed    Status = "PAYMENT_FAILED"
	StatusEventReplayed    Status = "EVENT_REPLAYED"
	StatusEventIgnored     Status = "EVENT_IGNORED"
	StatusStockShortfall   Status = "STOCK_SHORTFALL"
	StatusOrderSwept       Status = "ORDER_SWEPT"
	// StatusPaidAfterCancel marks money captured for an order that was
	// already cancelled. It needs a refund by an operator.
	StatusPaidAfterCancel Status = "PAID_AFTER_CANCEL"
)

// Entry is a single row in the payment_log table.
type Entry struct {
	// OrderID is empty for events that could not be correlated to an order.
	OrderID string

	// PaymentRef is the processor reference, once one exists.
	PaymentRef string

	// EventID is the processor's event id for entries written by the reconciler.
	EventID string

	Status Status

	// Detail is a short human readable note, e.g. the product that ran short.
	Detail string

	// TraceID and SpanID locate the request that wrote the entry in the tracing backend.
	TraceID string
	SpanID  string

	CreatedAt time.Time
}
