package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"marketplace-service/internal/entity"
)

// MemoryRepository keeps everything in process. Every write holds one mutex
// and validates before it mutates, so a failed write changes nothing.
type MemoryRepository struct {
	mu sync.RWMutex

	products  map[int64]entity.Product
	masters   map[int64]entity.MasterOrder
	subOrders map[int64]entity.SubOrder
	payments  map[int64]entity.Payment  // by sub-order id
	delivery  map[int64]entity.Delivery // by sub-order id
	reviews   map[int64]entity.Review   // by sub-order id
	ratings   map[int64]entity.SellerRating

	orderNumbers   map[string]struct{}
	checkoutTokens map[string]struct{}
	nextID         int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products:       make(map[int64]entity.Product),
		masters:        make(map[int64]entity.MasterOrder),
		subOrders:      make(map[int64]entity.SubOrder),
		payments:       make(map[int64]entity.Payment),
		delivery:       make(map[int64]entity.Delivery),
		reviews:        make(map[int64]entity.Review),
		ratings:        make(map[int64]entity.SellerRating),
		orderNumbers:   make(map[string]struct{}),
		checkoutTokens: make(map[string]struct{}),
	}
}

// PutProduct creates or replaces a catalog product.
func (m *MemoryRepository) PutProduct(p entity.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *MemoryRepository) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryRepository) GetProduct(_ context.Context, id int64) (*entity.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product: %w", entity.ErrNotFound)
	}
	return &p, nil
}

func (m *MemoryRepository) GetActiveProduct(ctx context.Context, id int64) (*entity.Product, error) {
	p, err := m.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("product: %w", entity.ErrNotFound)
	}
	return p, nil
}

func (m *MemoryRepository) LowStockProducts(_ context.Context, sellerID int64, threshold int) ([]entity.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.Product
	for _, p := range m.products {
		if p.SellerID == sellerID && p.IsActive && p.StockQuantity <= threshold {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StockQuantity != out[j].StockQuantity {
			return out[i].StockQuantity < out[j].StockQuantity
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryRepository) CreateCheckout(_ context.Context, master *entity.MasterOrder, subs []*entity.SubOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{})
	if master != nil {
		if _, dup := m.orderNumbers[master.Number]; dup {
			return ErrDuplicateOrderNumber
		}
		seen[master.Number] = struct{}{}
	}
	for _, o := range subs {
		if _, dup := m.orderNumbers[o.OrderNumber]; dup {
			return ErrDuplicateOrderNumber
		}
		if _, dup := seen[o.OrderNumber]; dup {
			return ErrDuplicateOrderNumber
		}
		seen[o.OrderNumber] = struct{}{}
		if _, dup := m.checkoutTokens[tokenKey(o.CheckoutToken, o.SellerID)]; dup {
			return fmt.Errorf("%w: sub-order already exists", entity.ErrConflict)
		}
	}

	var masterID *int64
	if master != nil {
		id := m.id()
		masterID = &id
		master.ID = id
		stored := *master
		stored.SubOrders = nil
		m.masters[id] = stored
		m.orderNumbers[master.Number] = struct{}{}
	}
	for _, o := range subs {
		o.ID = m.id()
		o.MasterOrderID = masterID
		for i := range o.Items {
			o.Items[i].ID = m.id()
			o.Items[i].SubOrderID = o.ID
		}
		m.subOrders[o.ID] = copySubOrder(o)
		m.orderNumbers[o.OrderNumber] = struct{}{}
		m.checkoutTokens[tokenKey(o.CheckoutToken, o.SellerID)] = struct{}{}
	}
	if master != nil {
		master.SubOrders = subs
	}
	return nil
}

func tokenKey(token string, sellerID int64) string {
	return fmt.Sprintf("%s/%d", token, sellerID)
}

func copySubOrder(o *entity.SubOrder) entity.SubOrder {
	c := *o
	c.Items = append([]entity.OrderItem(nil), o.Items...)
	return c
}

func (m *MemoryRepository) GetSubOrder(_ context.Context, id int64) (*entity.SubOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.subOrders[id]
	if !ok {
		return nil, fmt.Errorf("sub-order: %w", entity.ErrNotFound)
	}
	c := copySubOrder(&o)
	return &c, nil
}

func (m *MemoryRepository) GetMasterOrder(_ context.Context, id int64) (*entity.MasterOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mo, ok := m.masters[id]
	if !ok {
		return nil, fmt.Errorf("master order: %w", entity.ErrNotFound)
	}
	mo.SubOrders = m.filterSubOrders(func(o *entity.SubOrder) bool {
		return o.MasterOrderID != nil && *o.MasterOrderID == id
	})
	sort.Slice(mo.SubOrders, func(i, j int) bool { return mo.SubOrders[i].ID < mo.SubOrders[j].ID })
	return &mo, nil
}

func (m *MemoryRepository) ListMasterOrders(_ context.Context, clientID int64) ([]*entity.MasterOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entity.MasterOrder
	for _, mo := range m.masters {
		if mo.ClientID == clientID {
			c := mo
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryRepository) ListClientSubOrders(_ context.Context, clientID int64) ([]*entity.SubOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.filterSubOrders(func(o *entity.SubOrder) bool { return o.ClientID == clientID })), nil
}

func (m *MemoryRepository) ListSellerSubOrders(_ context.Context, sellerID int64, status entity.OrderStatus) ([]*entity.SubOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.filterSubOrders(func(o *entity.SubOrder) bool {
		return o.SellerID == sellerID && (status == "" || o.Status == status)
	})), nil
}

func (m *MemoryRepository) CountSellerSubOrders(ctx context.Context, sellerID int64, status entity.OrderStatus) (int, error) {
	subs, err := m.ListSellerSubOrders(ctx, sellerID, status)
	return len(subs), err
}

func (m *MemoryRepository) filterSubOrders(keep func(o *entity.SubOrder) bool) []*entity.SubOrder {
	var out []*entity.SubOrder
	for _, o := range m.subOrders {
		if keep(&o) {
			c := copySubOrder(&o)
			out = append(out, &c)
		}
	}
	return out
}

func newestFirst(subs []*entity.SubOrder) []*entity.SubOrder {
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.After(subs[j].CreatedAt)
		}
		return subs[i].ID > subs[j].ID
	})
	return subs
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id int64, from, to entity.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.subOrders[id]
	if !ok {
		return fmt.Errorf("sub-order: %w", entity.ErrNotFound)
	}
	if o.Status != from {
		return entity.Conflictf("sub-order %d is %s, expected %s", id, o.Status, from)
	}
	o.Status = to
	o.UpdatedAt = at
	if to == entity.StatusDelivered {
		t := at
		o.DeliveredAt = &t
	}
	m.subOrders[id] = o
	return nil
}

func (m *MemoryRepository) ConfirmAndDeductStock(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.subOrders[id]
	if !ok {
		return fmt.Errorf("sub-order: %w", entity.ErrNotFound)
	}
	if o.Status != entity.StatusPaid {
		return fmt.Errorf("%w: sub-order %d is %s, not paid", entity.ErrInvalidTransition, id, o.Status)
	}

	need := make(map[int64]int)
	for _, it := range o.Items {
		need[it.ProductID] += it.Quantity
	}
	ids := make([]int64, 0, len(need))
	for pid := range need {
		ids = append(ids, pid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// First pass: validate all
	for _, pid := range ids {
		p, ok := m.products[pid]
		if !ok {
			return fmt.Errorf("product: %w", entity.ErrNotFound)
		}
		if p.StockQuantity < need[pid] {
			return &entity.InsufficientStockError{ProductID: pid, ProductName: p.Name, Available: p.StockQuantity, Requested: need[pid]}
		}
	}
	// Second pass: apply
	for _, pid := range ids {
		p := m.products[pid]
		p.StockQuantity -= need[pid]
		m.products[pid] = p
	}

	o.Status = entity.StatusConfirmed
	o.UpdatedAt = at
	m.subOrders[id] = o
	return nil
}

func (m *MemoryRepository) VerifyPayment(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.subOrders[id]
	if !ok {
		return fmt.Errorf("sub-order: %w", entity.ErrNotFound)
	}
	if o.Status != entity.StatusPending {
		return entity.Conflictf("sub-order %d is %s, expected %s", id, o.Status, entity.StatusPending)
	}
	o.Status = entity.StatusPaid
	o.PaymentStatus = entity.PaymentCompleted
	o.UpdatedAt = at
	m.subOrders[id] = o

	if p, ok := m.payments[id]; ok {
		t := at
		p.IsSuccessful = true
		p.PaidAt = &t
		m.payments[id] = p
	}
	m.recomputeMaster(o.MasterOrderID)
	return nil
}

func (m *MemoryRepository) recomputeMaster(masterID *int64) {
	if masterID == nil {
		return
	}
	mo, ok := m.masters[*masterID]
	if !ok {
		return
	}
	status := entity.PaymentCompleted
	for _, o := range m.subOrders {
		if o.MasterOrderID != nil && *o.MasterOrderID == *masterID && o.PaymentStatus != entity.PaymentCompleted {
			status = entity.PaymentPending
			break
		}
	}
	mo.PaymentStatus = status
	m.masters[*masterID] = mo
}

func (m *MemoryRepository) CreatePayment(_ context.Context, p *entity.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.subOrders[p.SubOrderID]
	if !ok {
		return fmt.Errorf("sub-order: %w", entity.ErrNotFound)
	}
	if _, exists := m.payments[p.SubOrderID]; exists {
		return entity.Conflictf("sub-order %d already has a payment", p.SubOrderID)
	}
	if !o.CanPay() {
		return fmt.Errorf("%w: sub-order %d cannot be paid (%s/%s)", entity.ErrInvalidTransition, p.SubOrderID, o.Status, o.PaymentStatus)
	}

	p.ID = m.id()
	m.payments[p.SubOrderID] = *p
	if p.IsSuccessful {
		o.Status = entity.StatusPaid
		o.PaymentStatus = entity.PaymentCompleted
	} else {
		o.PaymentStatus = entity.PaymentProcessing
	}
	o.UpdatedAt = p.CreatedAt
	m.subOrders[o.ID] = o
	m.recomputeMaster(o.MasterOrderID)
	return nil
}

func (m *MemoryRepository) GetPayment(_ context.Context, subOrderID int64) (*entity.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[subOrderID]
	if !ok {
		return nil, fmt.Errorf("payment: %w", entity.ErrNotFound)
	}
	return &p, nil
}

func (m *MemoryRepository) StartDelivery(_ context.Context, d *entity.Delivery, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.subOrders[d.SubOrderID]
	if !ok {
		return fmt.Errorf("sub-order: %w", entity.ErrNotFound)
	}
	if o.Status != entity.StatusReadyForDelivery {
		return fmt.Errorf("%w: sub-order %d is %s, not ready for delivery", entity.ErrInvalidTransition, d.SubOrderID, o.Status)
	}
	if _, exists := m.delivery[d.SubOrderID]; exists {
		return fmt.Errorf("%w: delivery already exists", entity.ErrConflict)
	}

	d.ID = m.id()
	m.delivery[d.SubOrderID] = *d
	o.Status = entity.StatusInDelivery
	o.UpdatedAt = at
	m.subOrders[o.ID] = o
	return nil
}

func (m *MemoryRepository) GetDelivery(_ context.Context, subOrderID int64) (*entity.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.delivery[subOrderID]
	if !ok {
		return nil, fmt.Errorf("delivery: %w", entity.ErrNotFound)
	}
	return &d, nil
}

func (m *MemoryRepository) CreateReview(_ context.Context, r *entity.Review) (*entity.SellerRating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.subOrders[r.SubOrderID]
	if !ok {
		return nil, fmt.Errorf("sub-order: %w", entity.ErrNotFound)
	}
	if o.Status != entity.StatusDelivered {
		return nil, fmt.Errorf("%w: sub-order %d is %s, not delivered", entity.ErrInvalidTransition, r.SubOrderID, o.Status)
	}
	if _, exists := m.reviews[r.SubOrderID]; exists {
		return nil, fmt.Errorf("%w: review already exists", entity.ErrConflict)
	}

	r.ID = m.id()
	m.reviews[r.SubOrderID] = *r

	sum, count := 0, 0
	for _, rv := range m.reviews {
		if rv.SellerID == r.SellerID {
			sum += rv.Rating
			count++
		}
	}
	rating := entity.SellerRating{
		SellerID:     r.SellerID,
		Rating:       decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(count))).Round(2),
		TotalReviews: count,
	}
	m.ratings[r.SellerID] = rating
	return &rating, nil
}

func (m *MemoryRepository) HasReview(_ context.Context, subOrderID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.reviews[subOrderID]
	return ok, nil
}

func (m *MemoryRepository) GetSellerRating(_ context.Context, sellerID int64) (*entity.SellerRating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ratings[sellerID]
	if !ok {
		return &entity.SellerRating{SellerID: sellerID}, nil
	}
	return &r, nil
}
