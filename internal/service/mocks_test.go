package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"marketplace-service/internal/entity"
	"marketplace-service/internal/events"
	"marketplace-service/internal/repository"
)

type fakeCartStore struct {
	mu    sync.Mutex
	carts map[string]*entity.Cart
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{carts: make(map[string]*entity.Cart)}
}

func (f *fakeCartStore) Load(_ context.Context, sessionID string) (*entity.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[sessionID]
	if !ok {
		return entity.NewCart(), nil
	}
	cp := &entity.Cart{Token: c.Token, Lines: make(map[int64]entity.CartLine, len(c.Lines))}
	for k, v := range c.Lines {
		cp.Lines[k] = v
	}
	return cp, nil
}

func (f *fakeCartStore) Save(_ context.Context, sessionID string, cart *entity.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[sessionID] = cart
	return nil
}

func (f *fakeCartStore) Delete(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.carts, sessionID)
	return nil
}

type fakeGuard struct {
	mu       sync.Mutex
	used     map[string]bool
	released []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{used: make(map[string]bool)}
}

func (g *fakeGuard) Acquire(_ context.Context, token string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.used[token] {
		return false, nil
	}
	g.used[token] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.used, token)
	g.released = append(g.released, token)
	return nil
}

type fakeQuoter struct {
	fee decimal.Decimal
	err error
}

func (q *fakeQuoter) DeliveryFee(_ context.Context, _ int64, t entity.DeliveryType, _ decimal.Decimal) (decimal.Decimal, error) {
	if q.err != nil {
		return decimal.Zero, q.err
	}
	if t == entity.DeliveryPickup {
		return decimal.Zero, nil
	}
	return q.fee, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evts ...events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
	return p.err
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// collidingStore fails the first n checkouts with a duplicate order number.
type collidingStore struct {
	repository.OrderStore
	n        int
	attempts int
}

func (c *collidingStore) CreateCheckout(ctx context.Context, master *entity.MasterOrder, subs []*entity.SubOrder) error {
	c.attempts++
	if c.attempts <= c.n {
		return repository.ErrDuplicateOrderNumber
	}
	return c.OrderStore.CreateCheckout(ctx, master, subs)
}

var errBoom = errors.New("boom")

var (
	client   = entity.Principal{UserID: 1, Role: entity.RoleClient, ProfileID: 7, SessionID: "s1"}
	stranger = entity.Principal{UserID: 2, Role: entity.RoleClient, ProfileID: 8, SessionID: "s2"}
	sellerX  = entity.Principal{UserID: 3, Role: entity.RoleSeller, ProfileID: 10, SessionID: "x"}
	sellerY  = entity.Principal{UserID: 4, Role: entity.RoleSeller, ProfileID: 20, SessionID: "y"}
)

type fixture struct {
	svc    *OrderService
	carts  *CartService
	repo   *repository.MemoryRepository
	store  *fakeCartStore
	guard  *fakeGuard
	quoter *fakeQuoter
	pub    *recordingPublisher
	now    time.Time
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	repo := repository.NewMemoryRepository()
	repo.PutProduct(entity.Product{ID: 1, SellerID: 10, Name: "ProductA", Price: decimal.RequireFromString("10.00"), StockQuantity: 10, IsActive: true})
	repo.PutProduct(entity.Product{ID: 2, SellerID: 20, Name: "ProductB", Price: decimal.RequireFromString("5.00"), StockQuantity: 10, IsActive: true})
	repo.PutProduct(entity.Product{ID: 3, SellerID: 10, Name: "ProductC", Price: decimal.RequireFromString("1.00"), StockQuantity: 3, IsActive: true})
	repo.PutProduct(entity.Product{ID: 4, SellerID: 10, Name: "Hidden", Price: decimal.RequireFromString("1.00"), StockQuantity: 50, IsActive: false})

	f := &fixture{
		repo:   repo,
		store:  newFakeCartStore(),
		guard:  newFakeGuard(),
		quoter: &fakeQuoter{fee: decimal.Zero},
		pub:    &recordingPublisher{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewOrderService(repo, repo, f.store, f.guard, f.quoter, f.pub, nil, Options{LowStockThreshold: 5})
	f.svc.now = func() time.Time { return f.now }
	f.carts = NewCartService(repo, f.store)
	return f
}

func (f *fixture) addToCart(t *testing.T, sessionID string, productID int64, qty int) {
	t.Helper()
	_, err := f.carts.Add(context.Background(), sessionID, productID, qty, false)
	require.NoError(t, err)
}

// checkout fills the client's cart with the given product quantities and
// checks out for pickup.
func (f *fixture) checkout(t *testing.T, lines map[int64]int) *CheckoutResult {
	t.Helper()
	for id, qty := range lines {
		f.addToCart(t, client.SessionID, id, qty)
	}
	res, err := f.svc.Checkout(context.Background(), client, entity.DeliverySelection{Type: entity.DeliveryPickup})
	require.NoError(t, err)
	return res
}

// advance walks a sub-order through the given statuses as its seller.
func (f *fixture) advance(t *testing.T, seller entity.Principal, id int64, statuses ...entity.OrderStatus) {
	t.Helper()
	for _, st := range statuses {
		_, err := f.svc.UpdateStatus(context.Background(), seller, id, string(st))
		require.NoError(t, err, "moving to %s", st)
	}
}
