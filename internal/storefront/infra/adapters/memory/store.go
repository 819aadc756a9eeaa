// Package memory is an in-process implementation of ports.Store. It backs
// local development (no DATABASE_URL) and the service tests.
//
// Transactions are serialised on one mutex and run against a private copy of
// the data set that replaces the live one only when fn succeeds, which gives
// the same all-or-nothing contract as the Postgres store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
)

type cartItemRow struct {
	entity.CartItem
	seq int64
}

type orderRow struct {
	entity.Order
	seq int64
}

type paymentRow struct {
	entity.Payment
	seq int64
}

type state struct {
	products map[string]entity.Product
	carts    map[string]entity.Cart
	items    map[string]cartItemRow
	orders   map[string]orderRow
	payments map[string]paymentRow // keyed by provider ref
	users    map[string]entity.User
	outbox   []entity.OutboxEvent
	seq      int64
}

func newState() *state {
	return &state{
		products: map[string]entity.Product{},
		carts:    map[string]entity.Cart{},
		items:    map[string]cartItemRow{},
		orders:   map[string]orderRow{},
		payments: map[string]paymentRow{},
		users:    map[string]entity.User{},
	}
}

func (s *state) clone() *state {
	c := &state{
		products: make(map[string]entity.Product, len(s.products)),
		carts:    make(map[string]entity.Cart, len(s.carts)),
		items:    make(map[string]cartItemRow, len(s.items)),
		orders:   make(map[string]orderRow, len(s.orders)),
		payments: make(map[string]paymentRow, len(s.payments)),
		users:    make(map[string]entity.User, len(s.users)),
		outbox:   make([]entity.OutboxEvent, len(s.outbox)),
		seq:      s.seq,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]entity.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	copy(c.outbox, s.outbox)
	return c
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store is safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ ports.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// WithinTx runs fn against a snapshot of the store. fn must only use q; calling
// the Store's own methods from inside fn deadlocks.
func (s *Store) WithinTx(ctx context.Context, fn func(q ports.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	draft := s.st.clone()
	if err := fn(&queries{st: draft, now: s.now}); err != nil {
		return err
	}
	s.st = draft
	return nil
}

// autocommit runs a single statement against the live data set.
func (s *Store) autocommit() (*queries, func()) {
	s.mu.Lock()
	return &queries{st: s.st, now: s.now}, s.mu.Unlock
}

// PutProduct inserts or replaces a catalog row.
func (s *Store) PutProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	s.st.products[p.ID] = p
}

// PutUser inserts or replaces a user row, role included.
func (s *Store) PutUser(u entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Role == "" {
		u.Role = entity.RoleUser
	}
	s.st.users[u.ID] = u
}

func (s *Store) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.GetProduct(ctx, id)
}

func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.DecrementStock(ctx, productID, quantity)
}

func (s *Store) FindActiveCart(ctx context.Context, userID string) (*entity.Cart, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.FindActiveCart(ctx, userID)
}

func (s *Store) EnsureActiveCart(ctx context.Context, userID string) (*entity.Cart, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.EnsureActiveCart(ctx, userID)
}

func (s *Store) DeactivateActiveCart(ctx context.Context, userID string) error {
	q, unlock := s.autocommit()
	defer unlock()
	return q.DeactivateActiveCart(ctx, userID)
}

func (s *Store) ListCartLines(ctx context.Context, cartID string) ([]entity.CartLine, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.ListCartLines(ctx, cartID)
}

func (s *Store) FindCartItem(ctx context.Context, cartID, productID string) (*entity.CartItem, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.FindCartItem(ctx, cartID, productID)
}

func (s *Store) GetCartItemDetail(ctx context.Context, itemID string) (*entity.CartItemDetail, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.GetCartItemDetail(ctx, itemID)
}

func (s *Store) InsertCartItem(ctx context.Context, item *entity.CartItem) error {
	q, unlock := s.autocommit()
	defer unlock()
	return q.InsertCartItem(ctx, item)
}

func (s *Store) UpdateCartItemQuantity(ctx context.Context, itemID string, quantity int) error {
	q, unlock := s.autocommit()
	defer unlock()
	return q.UpdateCartItemQuantity(ctx, itemID, quantity)
}

func (s *Store) DeleteCartItem(ctx context.Context, itemID string) error {
	q, unlock := s.autocommit()
	defer unlock()
	return q.DeleteCartItem(ctx, itemID)
}

func (s *Store) InsertOrder(ctx context.Context, order *entity.Order) error {
	q, unlock := s.autocommit()
	defer unlock()
	return q.InsertOrder(ctx, order)
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*entity.Order, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.GetOrder(ctx, orderID)
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.ListOrdersByUser(ctx, userID)
}

func (s *Store) ListOrders(ctx context.Context) ([]entity.Order, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.ListOrders(ctx)
}

func (s *Store) TransitionOrder(ctx context.Context, orderID string, to entity.OrderStatus, from ...entity.OrderStatus) (bool, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.TransitionOrder(ctx, orderID, to, from...)
}

func (s *Store) CancelOrphanedOrders(ctx context.Context, createdBefore time.Time) ([]string, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.CancelOrphanedOrders(ctx, createdBefore)
}

func (s *Store) InsertPayment(ctx context.Context, p *entity.Payment) error {
	q, unlock := s.autocommit()
	defer unlock()
	return q.InsertPayment(ctx, p)
}

func (s *Store) GetPaymentByRef(ctx context.Context, ref string) (*entity.Payment, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.GetPaymentByRef(ctx, ref)
}

func (s *Store) TransitionPayment(ctx context.Context, ref string, to entity.PaymentStatus, from ...entity.PaymentStatus) (bool, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.TransitionPayment(ctx, ref, to, from...)
}

func (s *Store) GetUser(ctx context.Context, id string) (*entity.User, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.GetUser(ctx, id)
}

func (s *Store) UpsertUser(ctx context.Context, u *entity.User) error {
	q, unlock := s.autocommit()
	defer unlock()
	return q.UpsertUser(ctx, u)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	q, unlock := s.autocommit()
	defer unlock()
	return q.DeleteUser(ctx, id)
}

func (s *Store) AppendOutbox(ctx context.Context, ev entity.OutboxEvent) error {
	q, unlock := s.autocommit()
	defer unlock()
	return q.AppendOutbox(ctx, ev)
}

func (s *Store) FetchPendingOutbox(ctx context.Context, limit int) ([]entity.OutboxEvent, error) {
	q, unlock := s.autocommit()
	defer unlock()
	return q.FetchPendingOutbox(ctx, limit)
}

func (s *Store) MarkOutboxSent(ctx context.Context, id int64) error {
	q, unlock := s.autocommit()
	defer unlock()
	return q.MarkOutboxSent(ctx, id)
}
