package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
)

type queries struct {
	db dbtx
}

var _ ports.Queries = (*queries)(nil)

const productColumns = `p.id, p.title, p.slug, p.price::text, p.stock, p.is_active, p.category_id, p.created_by, p.created_at, p.updated_at`

func scanProduct(row pgx.Row, extra ...any) (*entity.Product, error) {
	var p entity.Product
	var price string
	dest := append([]any{&p.ID, &p.Title, &p.Slug, &price, &p.Stock, &p.IsActive, &p.CategoryID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	var err error
	if p.Price, err = parseDecimal(price); err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *queries) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	p, err := scanProduct(q.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("postgres: get product %s: %w", id, notFound(err))
	}
	return p, nil
}

// DecrementStock locks the product row, clamps at zero and reports whether
// the previous stock was short of quantity, all in one statement.
func (q *queries) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	const stmt = `
		WITH prev AS (
			SELECT id, stock FROM products WHERE id = $1 FOR UPDATE
		)
		UPDATE products p
		SET    stock = GREATEST(prev.stock - $2::int, 0), updated_at = now()
		FROM   prev
		WHERE  p.id = prev.id
		RETURNING prev.stock < $2::int`

	var shortfall bool
	if err := q.db.QueryRow(ctx, stmt, productID, quantity).Scan(&shortfall); err != nil {
		return false, fmt.Errorf("postgres: decrement stock %s: %w", productID, notFound(err))
	}
	return shortfall, nil
}

const cartColumns = `c.id, c.user_id, c.is_active, c.created_at, c.updated_at`

func scanCart(row pgx.Row) (*entity.Cart, error) {
	var c entity.Cart
	if err := row.Scan(&c.ID, &c.UserID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *queries) FindActiveCart(ctx context.Context, userID string) (*entity.Cart, error) {
	c, err := scanCart(q.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts c WHERE c.user_id = $1 AND c.is_active`, userID))
	if err != nil {
		return nil, fmt.Errorf("postgres: find active cart: %w", notFound(err))
	}
	return c, nil
}

// EnsureActiveCart relies on the partial unique index: a losing concurrent
// insert does nothing and the reselect returns the winner's cart. The
// reselect takes the row lock, so a second transaction for the same user
// waits here and then reads the first one's committed lines.
func (q *queries) EnsureActiveCart(ctx context.Context, userID string) (*entity.Cart, error) {
	const insert = `
		INSERT INTO carts (id, user_id, is_active) VALUES ($1, $2, true)
		ON CONFLICT (user_id) WHERE is_active DO NOTHING`
	if _, err := q.db.Exec(ctx, insert, uuid.NewString(), userID); err != nil {
		return nil, fmt.Errorf("postgres: create cart: %w", err)
	}
	c, err := scanCart(q.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts c WHERE c.user_id = $1 AND c.is_active FOR UPDATE`, userID))
	if err != nil {
		return nil, fmt.Errorf("postgres: lock active cart: %w", notFound(err))
	}
	return c, nil
}

func (q *queries) DeactivateActiveCart(ctx context.Context, userID string) error {
	_, err := q.db.Exec(ctx, `UPDATE carts SET is_active = false, updated_at = now() WHERE user_id = $1 AND is_active`, userID)
	if err != nil {
		return fmt.Errorf("postgres: deactivate cart: %w", err)
	}
	return nil
}

const itemColumns = `ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at`

func itemDest(it *entity.CartItem) []any {
	return []any{&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt}
}

func (q *queries) ListCartLines(ctx context.Context, cartID string) ([]entity.CartLine, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+productColumns+`, `+itemColumns+`
		FROM   cart_items ci
		JOIN   products p ON p.id = ci.product_id
		WHERE  ci.cart_id = $1
		ORDER  BY ci.created_at DESC, ci.id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cart lines: %w", err)
	}
	defer rows.Close()

	var lines []entity.CartLine
	for rows.Next() {
		var line entity.CartLine
		p, err := scanProduct(rows, itemDest(&line.Item)...)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan cart line: %w", err)
		}
		line.Product = *p
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (q *queries) FindCartItem(ctx context.Context, cartID, productID string) (*entity.CartItem, error) {
	var it entity.CartItem
	err := q.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM cart_items ci WHERE ci.cart_id = $1 AND ci.product_id = $2`,
		cartID, productID).Scan(itemDest(&it)...)
	if err != nil {
		return nil, fmt.Errorf("postgres: find cart item: %w", notFound(err))
	}
	return &it, nil
}

func (q *queries) GetCartItemDetail(ctx context.Context, itemID string) (*entity.CartItemDetail, error) {
	var d entity.CartItemDetail
	dest := append(itemDest(&d.Item), &d.Cart.ID, &d.Cart.UserID, &d.Cart.IsActive, &d.Cart.CreatedAt, &d.Cart.UpdatedAt)
	p, err := scanProduct(q.db.QueryRow(ctx, `
		SELECT `+productColumns+`, `+itemColumns+`, `+cartColumns+`
		FROM   cart_items ci
		JOIN   carts c    ON c.id = ci.cart_id
		JOIN   products p ON p.id = ci.product_id
		WHERE  ci.id = $1`, itemID), dest...)
	if err != nil {
		return nil, fmt.Errorf("postgres: get cart item %s: %w", itemID, notFound(err))
	}
	d.Product = *p
	return &d, nil
}

func (q *queries) InsertCartItem(ctx context.Context, item *entity.CartItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity) VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		item.ID, item.CartID, item.ProductID, item.Quantity).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: cart %s already holds product %s: %w", item.CartID, item.ProductID, err)
		}
		return fmt.Errorf("postgres: insert cart item: %w", err)
	}
	return nil
}

func (q *queries) UpdateCartItemQuantity(ctx context.Context, itemID string, quantity int) error {
	tag, err := q.db.Exec(ctx, `UPDATE cart_items SET quantity = $2, updated_at = now() WHERE id = $1`, itemID, quantity)
	if err != nil {
		return fmt.Errorf("postgres: update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (q *queries) DeleteCartItem(ctx context.Context, itemID string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("postgres: delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// InsertOrder sends the order and its items as one batch.
func (q *queries) InsertOrder(ctx context.Context, order *entity.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = order.CreatedAt

	addr, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("postgres: marshal address: %w", err)
	}

	b := &pgx.Batch{}
	b.Queue(`
		INSERT INTO orders (id, user_id, total_amount, status, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $6)`,
		order.ID, order.UserID, order.TotalAmount.String(), string(order.Status), addr, order.CreatedAt)
	for i := range order.Items {
		it := &order.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = order.ID
		b.Queue(`INSERT INTO order_items (id, order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4, $5::numeric)`,
			it.ID, it.OrderID, it.ProductID, it.Quantity, it.UnitPrice.String())
	}

	br := q.db.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: insert order %s: %w", order.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: insert order %s: %w", order.ID, err)
	}
	return nil
}

const orderSelect = `
	SELECT o.id, o.user_id, o.total_amount::text, o.status, o.shipping_address, o.created_at, o.updated_at,
	       COALESCE((SELECT pay.status FROM payments pay WHERE pay.order_id = o.id
	                 ORDER BY pay.created_at DESC, pay.id DESC LIMIT 1), 'pending'),
	       u.id, u.email, u.full_name, u.role
	FROM   orders o
	LEFT   JOIN users u ON u.id = o.user_id`

func scanOrder(row pgx.Row) (*entity.Order, error) {
	var (
		o                              entity.Order
		total, status, payStatus       string
		addr                           []byte
		buyerID, email, fullName, role *string
	)
	if err := row.Scan(&o.ID, &o.UserID, &total, &status, &addr, &o.CreatedAt, &o.UpdatedAt, &payStatus,
		&buyerID, &email, &fullName, &role); err != nil {
		return nil, err
	}
	var err error
	if o.TotalAmount, err = parseDecimal(total); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("postgres: decode address of order %s: %w", o.ID, err)
	}
	o.Status = entity.OrderStatus(status)
	o.PaymentStatus = entity.PaymentStatus(payStatus)
	if buyerID != nil {
		o.Buyer = &entity.User{ID: *buyerID, Email: deref(email), FullName: deref(fullName), Role: entity.Role(deref(role))}
	}
	return &o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// attachItems loads the items of every order in one query.
func (q *queries) attachItems(ctx context.Context, orders []entity.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := q.db.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_price::text, p.title, p.slug
		FROM   order_items oi
		JOIN   products p ON p.id = oi.product_id
		WHERE  oi.order_id = ANY($1)
		ORDER  BY oi.order_id, oi.id`, ids)
	if err != nil {
		return fmt.Errorf("postgres: list order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it entity.OrderItem
		var price string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &price, &it.Title, &it.Slug); err != nil {
			return fmt.Errorf("postgres: scan order item: %w", err)
		}
		if it.UnitPrice, err = parseDecimal(price); err != nil {
			return err
		}
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return rows.Err()
}

func (q *queries) listOrders(ctx context.Context, where string, args ...any) ([]entity.Order, error) {
	rows, err := q.db.Query(ctx, orderSelect+where+` ORDER BY o.created_at DESC, o.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	var orders []entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}

	if err := q.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (q *queries) GetOrder(ctx context.Context, orderID string) (*entity.Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, orderID))
	if err != nil {
		return nil, fmt.Errorf("postgres: get order %s: %w", orderID, notFound(err))
	}
	o.Buyer = nil
	orders := []entity.Order{*o}
	if err := q.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (q *queries) ListOrdersByUser(ctx context.Context, userID string) ([]entity.Order, error) {
	orders, err := q.listOrders(ctx, ` WHERE o.user_id = $1`, userID)
	for i := range orders {
		orders[i].Buyer = nil
	}
	return orders, err
}

func (q *queries) ListOrders(ctx context.Context) ([]entity.Order, error) {
	return q.listOrders(ctx, "")
}

func (q *queries) TransitionOrder(ctx context.Context, orderID string, to entity.OrderStatus, from ...entity.OrderStatus) (bool, error) {
	allowed := make([]string, len(from))
	for i, f := range from {
		allowed[i] = string(f)
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE  id = $1 AND status = ANY($3)`, orderID, string(to), allowed)
	if err != nil {
		return false, fmt.Errorf("postgres: transition order %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: transition order %s: %w", orderID, err)
	}
	if !exists {
		return false, ports.ErrNotFound
	}
	return false, nil
}

func (q *queries) CancelOrphanedOrders(ctx context.Context, createdBefore time.Time) ([]string, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE orders o
		SET    status = 'cancelled', updated_at = now()
		WHERE  o.status = 'pending'
		  AND  o.created_at < $1
		  AND  NOT EXISTS (SELECT 1 FROM payments pay WHERE pay.order_id = o.id)
		RETURNING o.id`, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("postgres: cancel orphaned orders: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: cancel orphaned orders: %w", err)
	}
	return ids, nil
}

func (q *queries) InsertPayment(ctx context.Context, p *entity.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO payments (id, order_id, provider_ref, amount, status) VALUES ($1, $2, $3, $4::numeric, $5)
		RETURNING created_at, updated_at`,
		p.ID, p.OrderID, p.ProviderRef, p.Amount.String(), string(p.Status)).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert payment %s: %w", p.ProviderRef, err)
	}
	return nil
}

func (q *queries) GetPaymentByRef(ctx context.Context, ref string) (*entity.Payment, error) {
	var p entity.Payment
	var amount, status string
	err := q.db.QueryRow(ctx, `
		SELECT id, order_id, provider_ref, amount::text, status, created_at, updated_at
		FROM   payments WHERE provider_ref = $1`, ref).
		Scan(&p.ID, &p.OrderID, &p.ProviderRef, &amount, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: get payment %s: %w", ref, notFound(err))
	}
	if p.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	p.Status = entity.PaymentStatus(status)
	return &p, nil
}

func (q *queries) TransitionPayment(ctx context.Context, ref string, to entity.PaymentStatus, from ...entity.PaymentStatus) (bool, error) {
	allowed := make([]string, len(from))
	for i, f := range from {
		allowed[i] = string(f)
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE payments SET status = $2, updated_at = now()
		WHERE  provider_ref = $1 AND status = ANY($3)`, ref, string(to), allowed)
	if err != nil {
		return false, fmt.Errorf("postgres: transition payment %s: %w", ref, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE provider_ref = $1)`, ref).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: transition payment %s: %w", ref, err)
	}
	if !exists {
		return false, ports.ErrNotFound
	}
	return false, nil
}

func (q *queries) GetUser(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	var role string
	err := q.db.QueryRow(ctx, `
		SELECT id, email, full_name, role, is_verified, created_at, updated_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.FullName, &role, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: get user %s: %w", id, notFound(err))
	}
	u.Role = entity.Role(role)
	return &u, nil
}

func (q *queries) UpsertUser(ctx context.Context, u *entity.User) error {
	role := u.Role
	if role == "" {
		role = entity.RoleUser
	}
	var stored string
	err := q.db.QueryRow(ctx, `
		INSERT INTO users (id, email, full_name, role, is_verified) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email, full_name = EXCLUDED.full_name,
			is_verified = EXCLUDED.is_verified, updated_at = now()
		RETURNING role, created_at, updated_at`,
		u.ID, u.Email, u.FullName, string(role), u.IsVerified).Scan(&stored, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert user %s: %w", u.ID, err)
	}
	u.Role = entity.Role(stored)
	return nil
}

func (q *queries) DeleteUser(ctx context.Context, id string) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete user %s: %w", id, err)
	}
	return nil
}

func (q *queries) AppendOutbox(ctx context.Context, ev entity.OutboxEvent) error {
	_, err := q.db.Exec(ctx, `INSERT INTO outbox (event_id, type, key, payload) VALUES ($1, $2, $3, $4)`,
		ev.EventID, ev.Type, ev.Key, []byte(ev.Payload))
	if err != nil {
		return fmt.Errorf("postgres: append outbox %s: %w", ev.Type, err)
	}
	return nil
}

func (q *queries) FetchPendingOutbox(ctx context.Context, limit int) ([]entity.OutboxEvent, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, event_id, type, key, payload, created_at, sent_at
		FROM   outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch outbox: %w", err)
	}
	defer rows.Close()

	var out []entity.OutboxEvent
	for rows.Next() {
		var ev entity.OutboxEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.Type, &ev.Key, &payload, &ev.CreatedAt, &ev.SentAt); err != nil {
			return nil, fmt.Errorf("postgres: scan outbox: %w", err)
		}
		ev.Payload = payload
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (q *queries) MarkOutboxSent(ctx context.Context, id int64) error {
	if _, err := q.db.Exec(ctx, `UPDATE outbox SET sent_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: mark outbox %d sent: %w", id, err)
	}
	return nil
}
