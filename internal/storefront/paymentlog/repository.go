package paymentlog

import "context"

// Repository persists audit entries. The table is append-only.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
	// ListByOrder returns an order's entries oldest first.
	ListByOrder(ctx context.Context, orderID string) ([]Entry, error)
}
