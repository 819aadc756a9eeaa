package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
)

// queries operates on one data set; the caller holds the store mutex.
type queries struct {
	st  *state
	now func() time.Time
}

var _ ports.Queries = (*queries)(nil)

func (q *queries) GetProduct(_ context.Context, id string) (*entity.Product, error) {
	p, ok := q.st.products[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &p, nil
}

func (q *queries) DecrementStock(_ context.Context, productID string, quantity int) (bool, error) {
	p, ok := q.st.products[productID]
	if !ok {
		return false, ports.ErrNotFound
	}
	shortfall := p.Stock < quantity
	if shortfall {
		p.Stock = 0
	} else {
		p.Stock -= quantity
	}
	p.UpdatedAt = q.now()
	q.st.products[productID] = p
	return shortfall, nil
}

func (q *queries) FindActiveCart(_ context.Context, userID string) (*entity.Cart, error) {
	for _, c := range q.st.carts {
		if c.UserID == userID && c.IsActive {
			return &c, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (q *queries) EnsureActiveCart(ctx context.Context, userID string) (*entity.Cart, error) {
	if c, err := q.FindActiveCart(ctx, userID); err == nil {
		return c, nil
	}
	now := q.now()
	c := entity.Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.st.carts[c.ID] = c
	return &c, nil
}

func (q *queries) DeactivateActiveCart(ctx context.Context, userID string) error {
	c, err := q.FindActiveCart(ctx, userID)
	if err != nil {
		return nil
	}
	c.IsActive = false
	c.UpdatedAt = q.now()
	q.st.carts[c.ID] = *c
	return nil
}

func (q *queries) ListCartLines(_ context.Context, cartID string) ([]entity.CartLine, error) {
	var rows []cartItemRow
	for _, it := range q.st.items {
		if it.CartID == cartID {
			rows = append(rows, it)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	lines := make([]entity.CartLine, 0, len(rows))
	for _, it := range rows {
		p, ok := q.st.products[it.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, entity.CartLine{Item: it.CartItem, Product: p})
	}
	return lines, nil
}

func (q *queries) FindCartItem(_ context.Context, cartID, productID string) (*entity.CartItem, error) {
	for _, it := range q.st.items {
		if it.CartID == cartID && it.ProductID == productID {
			item := it.CartItem
			return &item, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (q *queries) GetCartItemDetail(_ context.Context, itemID string) (*entity.CartItemDetail, error) {
	it, ok := q.st.items[itemID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cart, ok := q.st.carts[it.CartID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	p, ok := q.st.products[it.ProductID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &entity.CartItemDetail{Item: it.CartItem, Cart: cart, Product: p}, nil
}

func (q *queries) InsertCartItem(ctx context.Context, item *entity.CartItem) error {
	if _, err := q.FindCartItem(ctx, item.CartID, item.ProductID); err == nil {
		return fmt.Errorf("memory: cart %s already holds product %s", item.CartID, item.ProductID)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := q.now()
	item.CreatedAt, item.UpdatedAt = now, now
	q.st.items[item.ID] = cartItemRow{CartItem: *item, seq: q.st.next()}
	return nil
}

func (q *queries) UpdateCartItemQuantity(_ context.Context, itemID string, quantity int) error {
	it, ok := q.st.items[itemID]
	if !ok {
		return ports.ErrNotFound
	}
	it.Quantity = quantity
	it.UpdatedAt = q.now()
	q.st.items[itemID] = it
	return nil
}

func (q *queries) DeleteCartItem(_ context.Context, itemID string) error {
	if _, ok := q.st.items[itemID]; !ok {
		return ports.ErrNotFound
	}
	delete(q.st.items, itemID)
	return nil
}

func (q *queries) InsertOrder(_ context.Context, order *entity.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if _, ok := q.st.orders[order.ID]; ok {
		return fmt.Errorf("memory: order %s already exists", order.ID)
	}
	now := q.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt

	row := orderRow{Order: *order, seq: q.st.next()}
	row.Items = make([]entity.OrderItem, len(order.Items))
	for i, it := range order.Items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = order.ID
		order.Items[i] = it
		row.Items[i] = it
	}
	row.PaymentStatus = ""
	row.Buyer = nil
	q.st.orders[order.ID] = row
	return nil
}

// view renders a stored order with its joined read-model fields.
func (q *queries) view(row orderRow) entity.Order {
	o := row.Order
	o.Items = make([]entity.OrderItem, len(row.Items))
	for i, it := range row.Items {
		if p, ok := q.st.products[it.ProductID]; ok {
			it.Title, it.Slug = p.Title, p.Slug
		}
		o.Items[i] = it
	}

	o.PaymentStatus = entity.PaymentStatusPending
	var latest int64
	for _, p := range q.st.payments {
		if p.OrderID == o.ID && p.seq > latest {
			latest = p.seq
			o.PaymentStatus = p.Status
		}
	}
	return o
}

func (q *queries) GetOrder(_ context.Context, orderID string) (*entity.Order, error) {
	row, ok := q.st.orders[orderID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	o := q.view(row)
	return &o, nil
}

func (q *queries) sortedOrders(keep func(orderRow) bool) []orderRow {
	var rows []orderRow
	for _, o := range q.st.orders {
		if keep(o) {
			rows = append(rows, o)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	return rows
}

func (q *queries) ListOrdersByUser(_ context.Context, userID string) ([]entity.Order, error) {
	rows := q.sortedOrders(func(o orderRow) bool { return o.UserID == userID })
	out := make([]entity.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, q.view(row))
	}
	return out, nil
}

func (q *queries) ListOrders(_ context.Context) ([]entity.Order, error) {
	rows := q.sortedOrders(func(orderRow) bool { return true })
	out := make([]entity.Order, 0, len(rows))
	for _, row := range rows {
		o := q.view(row)
		if u, ok := q.st.users[o.UserID]; ok {
			o.Buyer = &u
		}
		out = append(out, o)
	}
	return out, nil
}

func (q *queries) TransitionOrder(_ context.Context, orderID string, to entity.OrderStatus, from ...entity.OrderStatus) (bool, error) {
	row, ok := q.st.orders[orderID]
	if !ok {
		return false, ports.ErrNotFound
	}
	if !slices.Contains(from, row.Status) {
		return false, nil
	}
	row.Status = to
	row.UpdatedAt = q.now()
	q.st.orders[orderID] = row
	return true, nil
}

func (q *queries) CancelOrphanedOrders(_ context.Context, createdBefore time.Time) ([]string, error) {
	paid := map[string]bool{}
	for _, p := range q.st.payments {
		paid[p.OrderID] = true
	}

	var ids []string
	for id, row := range q.st.orders {
		if row.Status != entity.OrderStatusPending || paid[id] || !row.CreatedAt.Before(createdBefore) {
			continue
		}
		row.Status = entity.OrderStatusCancelled
		row.UpdatedAt = q.now()
		q.st.orders[id] = row
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (q *queries) InsertPayment(_ context.Context, p *entity.Payment) error {
	if _, ok := q.st.payments[p.ProviderRef]; ok {
		return fmt.Errorf("memory: payment ref %q already exists", p.ProviderRef)
	}
	if _, ok := q.st.orders[p.OrderID]; !ok {
		return fmt.Errorf("memory: payment for unknown order %s: %w", p.OrderID, ports.ErrNotFound)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := q.now()
	p.CreatedAt, p.UpdatedAt = now, now
	q.st.payments[p.ProviderRef] = paymentRow{Payment: *p, seq: q.st.next()}
	return nil
}

func (q *queries) GetPaymentByRef(_ context.Context, ref string) (*entity.Payment, error) {
	p, ok := q.st.payments[ref]
	if !ok {
		return nil, ports.ErrNotFound
	}
	payment := p.Payment
	return &payment, nil
}

func (q *queries) TransitionPayment(_ context.Context, ref string, to entity.PaymentStatus, from ...entity.PaymentStatus) (bool, error) {
	p, ok := q.st.payments[ref]
	if !ok {
		return false, ports.ErrNotFound
	}
	for _, f := range from {
		if p.Status == f {
			p.Status = to
			p.UpdatedAt = q.now()
			q.st.payments[ref] = p
			return true, nil
		}
	}
	return false, nil
}

func (q *queries) GetUser(_ context.Context, id string) (*entity.User, error) {
	u, ok := q.st.users[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &u, nil
}

func (q *queries) UpsertUser(_ context.Context, u *entity.User) error {
	now := q.now()
	if cur, ok := q.st.users[u.ID]; ok {
		cur.Email = u.Email
		cur.FullName = u.FullName
		cur.IsVerified = u.IsVerified
		cur.UpdatedAt = now
		q.st.users[u.ID] = cur
		*u = cur
		return nil
	}
	if u.Role == "" {
		u.Role = entity.RoleUser
	}
	u.CreatedAt, u.UpdatedAt = now, now
	q.st.users[u.ID] = *u
	return nil
}

func (q *queries) DeleteUser(_ context.Context, id string) error {
	delete(q.st.users, id)
	return nil
}

func (q *queries) AppendOutbox(_ context.Context, ev entity.OutboxEvent) error {
	ev.ID = q.st.next()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = q.now()
	}
	q.st.outbox = append(q.st.outbox, ev)
	return nil
}

func (q *queries) FetchPendingOutbox(_ context.Context, limit int) ([]entity.OutboxEvent, error) {
	var out []entity.OutboxEvent
	for _, ev := range q.st.outbox {
		if ev.SentAt != nil {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (q *queries) MarkOutboxSent(_ context.Context, id int64) error {
	for i := range q.st.outbox {
		if q.st.outbox[i].ID == id {
			now := q.now()
			q.st.outbox[i].SentAt = &now
			return nil
		}
	}
	return ports.ErrNotFound
}
