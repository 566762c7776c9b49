package orders_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/ariefcatur/chat-storefront/internal/payments"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentOrders_NeverOversell(t *testing.T) {
	const stock, buyers = 7, 40
	h := newHarness(t)
	h.store.SetStock(variant42, stock)

	var ok, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.CreateOrder(t.Context(), customerID, []orders.ItemRequest{item("p-runner", "42", 1)}, testShipping)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, orders.ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, stock, ok.Load())
	assert.EqualValues(t, buyers-stock, rejected.Load())
	assert.Zero(t, h.store.Stock(variant42))
}

func TestConcurrentWebhooksAndSweep_ReleaseOnce(t *testing.T) {
	h := newHarness(t)
	h.svc.Dedup = nil
	res := h.mustCreate(t, item("p-runner", "42", 3))
	require.Equal(t, 2, h.store.Stock(variant42))

	ev := webhook(t, res.Reference, txID(300), payments.StatusDeclined, eventSecret)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = h.svc.HandlePaymentEvent(t.Context(), ev)
		}()
		go func() {
			defer wg.Done()
			_, _ = h.svc.SweepExpiredOrders(t.Context(), h.now.Add(3*time.Hour), 2*time.Hour)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, h.store.Stock(variant42))
	assert.True(t, h.order(t, res.OrderID).Status.Closed())
}

// Whatever mix of orders and payment outcomes happens, stock on hand plus
// units held by open or paid orders equals the starting stock.
func TestStockConservationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("reserved + available is conserved", prop.ForAll(
		func(qtys []int, outcomes []int) bool {
			h := newHarness(t)
			const initial = 12
			h.store.SetStock(variant42, initial)

			for i, q := range qtys {
				res, err := h.svc.CreateOrder(t.Context(), customerID, []orders.ItemRequest{item("p-runner", "42", q)}, testShipping)
				if err != nil {
					if !errors.Is(err, orders.ErrInsufficientStock) {
						return false
					}
					continue
				}
				if i >= len(outcomes) {
					continue
				}
				switch outcomes[i] % 4 {
				case 0:
					_, err = h.svc.HandlePaymentEvent(t.Context(), webhook(t, res.Reference, txID(i), payments.StatusApproved, eventSecret))
				case 1:
					_, err = h.svc.HandlePaymentEvent(t.Context(), webhook(t, res.Reference, txID(i), payments.StatusDeclined, eventSecret))
				case 2:
					_, err = h.svc.SweepExpiredOrders(t.Context(), h.now.Add(3*time.Hour), 2*time.Hour)
				}
				if err != nil {
					return false
				}
			}

			held := 0
			for _, o := range h.store.Orders() {
				if !o.Status.Closed() {
					held += o.Units()
				}
			}
			return h.store.Stock(variant42) >= 0 && h.store.Stock(variant42)+held == initial
		},
		gen.SliceOfN(8, gen.IntRange(1, 4)),
		gen.SliceOfN(8, gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}
