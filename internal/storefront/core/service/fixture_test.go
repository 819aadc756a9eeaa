package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
	"github.com/jcmexdev/storefront/internal/storefront/infra/adapters/memory"
	"github.com/jcmexdev/storefront/internal/storefront/paymentlog"
)

const (
	buyer   = "user-buyer"
	other   = "user-other"
	mugID   = "p-mug"
	toteID  = "p-tote"
	retired = "p-retired"
)

type fakeGateway struct {
	mu   sync.Mutex
	reqs []ports.IntentRequest
	err  error
}

func (g *fakeGateway) CreateIntent(_ context.Context, req ports.IntentRequest) (*entity.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.reqs = append(g.reqs, req)
	ref := fmt.Sprintf("pi_test_%d", len(g.reqs))
	return &entity.PaymentIntent{Ref: ref, ClientSecret: ref + "_secret"}, nil
}

type recordingLog struct {
	mu      sync.Mutex
	entries []paymentlog.Entry
}

func (l *recordingLog) Save(_ context.Context, e *paymentlog.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *e)
	return nil
}

func (l *recordingLog) ListByOrder(_ context.Context, orderID string) ([]paymentlog.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []paymentlog.Entry
	for _, e := range l.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *recordingLog) statuses(orderID string) []paymentlog.Status {
	entries, _ := l.ListByOrder(context.Background(), orderID)
	out := make([]paymentlog.Status, len(entries))
	for i, e := range entries {
		out[i] = e.Status
	}
	return out
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapCache() *mapCache { return &mapCache{data: map[string]string{}} }

func (c *mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = fmt.Sprint(value)
	return nil
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *mapCache) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = fmt.Sprint(value)
	return true, nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mapCache) GenerateKey(operation, key string) string {
	return "test:" + operation + ":" + key
}

type fixture struct {
	store    *memory.Store
	gateway  *fakeGateway
	log      *recordingLog
	cart     *CartService
	checkout *CheckoutService
	recon    *Reconciler
	orders   *OrderService
	users    *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewSeededStore(
		entity.Product{ID: mugID, Title: "Mug", Slug: "mug", Price: decimal.RequireFromString("10.00"), Stock: 10, IsActive: true},
		entity.Product{ID: toteID, Title: "Tote", Slug: "tote", Price: decimal.RequireFromString("5.50"), Stock: 10, IsActive: true},
		entity.Product{ID: retired, Title: "Poster", Slug: "poster", Price: decimal.RequireFromString("3.00"), Stock: 10, IsActive: false},
	)
	gw := &fakeGateway{}
	log := &recordingLog{}
	obs := Observers{PaymentLog: log}
	return &fixture{
		store:    store,
		gateway:  gw,
		log:      log,
		cart:     NewCartService(store),
		checkout: NewCheckoutService(store, gw, obs),
		recon:    NewReconciler(store, nil, obs),
		orders:   NewOrderService(store, log),
		users:    NewUserService(store, obs),
	}
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) setStock(t *testing.T, productID string, stock int) {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	p.Stock = stock
	f.store.PutProduct(*p)
}

var testAddress = entity.ShippingAddress{
	Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US",
}

// placeOrder fills the buyer's cart and checks out.
func (f *fixture) placeOrder(t *testing.T, userID string, lines map[string]int) *CheckoutResult {
	t.Helper()
	ctx := context.Background()
	for productID, qty := range lines {
		_, err := f.cart.AddItem(ctx, userID, productID, qty)
		require.NoError(t, err)
	}
	res, err := f.checkout.CreateCheckoutSession(ctx, userID, testAddress)
	require.NoError(t, err)
	return res
}

func (f *fixture) lastRef() string {
	f.gateway.mu.Lock()
	defer f.gateway.mu.Unlock()
	return fmt.Sprintf("pi_test_%d", len(f.gateway.reqs))
}
