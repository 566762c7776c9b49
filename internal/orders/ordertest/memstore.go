// Package ordertest provides in-memory implementations of the orders
// collaborators for tests.
package ordertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/orders"
)

// MemStore is an orders.Store and orders.Ledger over maps. One mutex guards
// everything, which gives Settle the same all-or-nothing behaviour as the
// postgres transaction.
type MemStore struct {
	mu       sync.Mutex
	stock    map[string]int
	orders   map[string]*orders.Order
	byRef    map[string]string
	payments map[string]orders.Payment

	// Fail* inject errors into the next matching call.
	FailInsert error
	FailSettle error
	FailUpsert error
}

func NewMemStore() *MemStore {
	return &MemStore{
		stock:    map[string]int{},
		orders:   map[string]*orders.Order{},
		byRef:    map[string]string{},
		payments: map[string]orders.Payment{},
	}
}

func (m *MemStore) SetStock(variantID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[variantID] = n
}

func (m *MemStore) Stock(variantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[variantID]
}

func (m *MemStore) Reserve(_ context.Context, variantID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.stock[variantID]
	if !ok {
		return fmt.Errorf("%w: variant %s", orders.ErrResolution, variantID)
	}
	if cur < qty {
		return orders.ErrInsufficientStock
	}
	m.stock[variantID] = cur - qty
	return nil
}

func (m *MemStore) Release(_ context.Context, variantID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stock[variantID]; !ok {
		return fmt.Errorf("%w: variant %s", orders.ErrResolution, variantID)
	}
	m.stock[variantID] += qty
	return nil
}

func (m *MemStore) InsertOrder(_ context.Context, o *orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailInsert; err != nil {
		m.FailInsert = nil
		return err
	}
	if _, dup := m.byRef[o.PaymentReference]; dup {
		return fmt.Errorf("duplicate reference %s", o.PaymentReference)
	}
	cp := *o
	cp.Items = append([]orders.OrderItem(nil), o.Items...)
	m.orders[o.ID] = &cp
	m.byRef[o.PaymentReference] = o.ID
	return nil
}

// Put stores o as-is, bypassing the builder. Useful to seed aged orders.
func (m *MemStore) Put(o orders.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = &o
	m.byRef[o.PaymentReference] = o.ID
}

func (m *MemStore) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	cp := *o
	cp.Items = append([]orders.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *MemStore) GetOrderStatus(ctx context.Context, id string) (orders.Status, time.Time, error) {
	o, err := m.GetOrder(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	return o.Status, o.UpdatedAt, nil
}

func (m *MemStore) GetOrderByReference(ctx context.Context, ref string) (*orders.Order, error) {
	m.mu.Lock()
	id, ok := m.byRef[ref]
	m.mu.Unlock()
	if !ok {
		return nil, orders.ErrNotFound
	}
	return m.GetOrder(ctx, id)
}

func (m *MemStore) Settle(_ context.Context, orderID string, from, to orders.Status, release bool) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailSettle; err != nil {
		m.FailSettle = nil
		return 0, false, err
	}
	if !orders.CanTransition(from, to) {
		return 0, false, fmt.Errorf("%w: %s -> %s", orders.ErrInvalidTransition, from, to)
	}
	o, ok := m.orders[orderID]
	if !ok || o.Status != from {
		return 0, false, nil
	}
	released := 0
	if release {
		for _, it := range o.Items {
			m.stock[it.VariantID] += it.Qty
			released += it.Qty
		}
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return released, true, nil
}

func (m *MemStore) UpsertPayment(_ context.Context, p orders.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailUpsert; err != nil {
		m.FailUpsert = nil
		return err
	}
	m.payments[p.Reference] = p
	return nil
}

func (m *MemStore) Payment(ref string) (orders.Payment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[ref]
	return p, ok
}

func (m *MemStore) ListAwaitingBefore(_ context.Context, cutoff time.Time) ([]orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []orders.Order
	for _, o := range m.orders {
		if o.Status == orders.StatusAwaitingPayment && o.CreatedAt.Before(cutoff) {
			cp := *o
			cp.Items = append([]orders.OrderItem(nil), o.Items...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) MarkShipped(_ context.Context, orderID, carrier, tracking string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != orders.StatusPaid {
		return false, nil
	}
	o.Status = orders.StatusShipped
	o.CarrierName, o.TrackingNumber = carrier, tracking
	o.ShippedAt, o.UpdatedAt = &at, at
	return true, nil
}

func (m *MemStore) MarkDelivered(_ context.Context, orderID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != orders.StatusShipped {
		return false, nil
	}
	o.Status = orders.StatusDelivered
	o.DeliveredAt, o.UpdatedAt = &at, at
	return true, nil
}

// Orders returns a snapshot of every stored order.
func (m *MemStore) Orders() []orders.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]orders.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out
}
