package ports

import (
	"context"
	"errors"
	"time"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
)

// ErrNotFound is returned by every Queries lookup whose row does not exist.
var ErrNotFound = errors.New("not found")

// Queries is the set of row operations the core needs. Every method is atomic
// on its own; WithinTx groups several of them into one all-or-nothing unit.
type Queries interface {
	GetProduct(ctx context.Context, id string) (*entity.Product, error)
	// DecrementStock subtracts quantity from the product's stock as a single
	// store-side operation. When the current stock cannot cover quantity the
	// stock is set to zero instead and shortfall is true. Stock never goes negative.
	DecrementStock(ctx context.Context, productID string, quantity int) (shortfall bool, err error)

	FindActiveCart(ctx context.Context, userID string) (*entity.Cart, error)
	// EnsureActiveCart returns the user's active cart, creating it if none
	// exists. Concurrent callers for the same user observe the same cart.
	// Inside WithinTx the cart stays locked until the transaction ends, so
	// cart mutations of one user are serialised.
	EnsureActiveCart(ctx context.Context, userID string) (*entity.Cart, error)
	// DeactivateActiveCart flags the user's active cart as checked out. No-op when there is none.
	DeactivateActiveCart(ctx context.Context, userID string) error
	// ListCartLines returns the cart's items joined with their products, newest first.
	ListCartLines(ctx context.Context, cartID string) ([]entity.CartLine, error)
	FindCartItem(ctx context.Context, cartID, productID string) (*entity.CartItem, error)
	GetCartItemDetail(ctx context.Context, itemID string) (*entity.CartItemDetail, error)
	InsertCartItem(ctx context.Context, item *entity.CartItem) error
	UpdateCartItemQuantity(ctx context.Context, itemID string, quantity int) error
	DeleteCartItem(ctx context.Context, itemID string) error

	// InsertOrder persists the order row and all of its items.
	InsertOrder(ctx context.Context, order *entity.Order) error
	// GetOrder returns the order with its items and latest payment status.
	GetOrder(ctx context.Context, orderID string) (*entity.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]entity.Order, error)
	// ListOrders returns every order, newest first, with the buyer attached.
	ListOrders(ctx context.Context) ([]entity.Order, error)
	// TransitionOrder sets the order's status to `to` only if its current
	// status is one of from, reporting whether the row changed.
	TransitionOrder(ctx context.Context, orderID string, to entity.OrderStatus, from ...entity.OrderStatus) (bool, error)
	// CancelOrphanedOrders cancels pending orders created before the cutoff
	// that never got a payment row, returning their ids.
	CancelOrphanedOrders(ctx context.Context, createdBefore time.Time) ([]string, error)

	InsertPayment(ctx context.Context, p *entity.Payment) error
	GetPaymentByRef(ctx context.Context, ref string) (*entity.Payment, error)
	// TransitionPayment sets the payment's status to `to` only if its current
	// status is one of from, reporting whether the row changed. This is the
	// compare-and-swap that serialises replays of the same processor event.
	TransitionPayment(ctx context.Context, ref string, to entity.PaymentStatus, from ...entity.PaymentStatus) (bool, error)

	GetUser(ctx context.Context, id string) (*entity.User, error)
	// UpsertUser inserts the user or updates email and name; the role of an
	// existing user is preserved.
	UpsertUser(ctx context.Context, u *entity.User) error
	DeleteUser(ctx context.Context, id string) error

	AppendOutbox(ctx context.Context, ev entity.OutboxEvent) error
	FetchPendingOutbox(ctx context.Context, limit int) ([]entity.OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id int64) error
}

// Store is the transactional relational store.
type Store interface {
	Queries
	// WithinTx runs fn in one transaction. fn's error rolls everything back
	// and is returned unchanged.
	WithinTx(ctx context.Context, fn func(q Queries) error) error
}
