package orders_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/ariefcatur/chat-storefront/internal/orders/ordertest"
	"github.com/ariefcatur/chat-storefront/internal/payments"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	eventSecret = "test_events_secret"

	variant42 = "11111111-0000-0000-0000-000000000042"
	variant43 = "11111111-0000-0000-0000-000000000043"
	variantM  = "22222222-0000-0000-0000-00000000000m"

	customerID = "cust-1"
)

type harness struct {
	svc      *orders.Service
	store    *ordertest.MemStore
	checkout *ordertest.Checkout
	notifier *ordertest.Notifier
	events   *ordertest.Events
	dedup    *ordertest.Dedup
	cache    *ordertest.Cache
	settings *ordertest.Settings
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    ordertest.NewMemStore(),
		checkout: &ordertest.Checkout{},
		notifier: &ordertest.Notifier{},
		events:   &ordertest.Events{},
		dedup:    &ordertest.Dedup{},
		cache:    &ordertest.Cache{},
		settings: &ordertest.Settings{Creds: payments.Credentials{
			PublicKey:       "pub_test_abc",
			IntegritySecret: "test_integrity_secret",
			EventSecret:     eventSecret,
		}},
		now: time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC),
	}
	h.store.SetStock(variant42, 5)
	h.store.SetStock(variant43, 1)
	h.store.SetStock(variantM, 3)

	h.svc = &orders.Service{
		Store:  h.store,
		Ledger: h.store,
		Resolver: &ordertest.Catalog{Items: []orders.ResolvedItem{
			{ProductID: "p-runner", VariantID: variant42, Name: "Nike Pegasus 41", Size: "42", PriceCents: 45000000, Stock: 5},
			{ProductID: "p-runner", VariantID: variant43, Name: "Nike Pegasus 41", Size: "43", PriceCents: 45000000, Stock: 1},
			{ProductID: "p-tee", VariantID: variantM, Name: "Camiseta Basica", Size: "M", PriceCents: 8990000, Stock: 3},
		}},
		Customers: ordertest.Customers{
			customerID: {Phone: "+573001112233", Name: "Laura"},
			"no-phone": {Name: "Sin Telefono"},
		},
		Settings:        h.settings,
		Checkout:        h.checkout,
		Notifier:        h.notifier,
		Events:          h.events,
		Cache:           h.cache,
		Dedup:           h.dedup,
		Log:             zap.NewNop(),
		ServiceName:     "storefront-test",
		CheckoutTimeout: time.Second,
		Now:             func() time.Time { return h.now },
	}
	return h
}

var testShipping = orders.Shipping{Name: "Laura Gomez", Address: "Cra 7 # 45-10", City: "Bogota"}

func item(ref string, size orders.Size, qty int) orders.ItemRequest {
	return orders.ItemRequest{ProductRef: ref, Size: size, Quantity: qty}
}

func (h *harness) order(t *testing.T, id string) orders.Order {
	t.Helper()
	for _, o := range h.store.Orders() {
		if o.ID == id {
			return o
		}
	}
	t.Fatalf("order %s not stored", id)
	return orders.Order{}
}

// mustCreate places an order for one unit of size 42 and returns its result.
func (h *harness) mustCreate(t *testing.T, items ...orders.ItemRequest) orders.CreateOrderResult {
	t.Helper()
	if len(items) == 0 {
		items = []orders.ItemRequest{item("p-runner", "42", 1)}
	}
	res, err := h.svc.CreateOrder(t.Context(), customerID, items, testShipping)
	require.NoError(t, err)
	require.True(t, res.Success)
	return res
}

// webhook builds a transaction.updated delivery signed with secret.
func webhook(t *testing.T, reference, id, status, secret string) payments.Event {
	t.Helper()
	body := map[string]any{
		"event": payments.EventTransactionUpdated,
		"data": map[string]any{
			"transaction": map[string]any{
				"id":              id,
				"reference":       reference,
				"status":          status,
				"amount_in_cents": 45000000,
			},
		},
		"signature": map[string]any{
			"properties": []string{"transaction.id", "transaction.status", "transaction.amount_in_cents"},
		},
		"timestamp": 1772377200,
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	ev, err := payments.ParseEvent(raw, http.Header{})
	require.NoError(t, err)
	sum, err := payments.EventChecksum(ev, secret)
	require.NoError(t, err)
	ev.Checksum = sum
	return ev
}

func txID(n int) string { return fmt.Sprintf("1234-1772377200-%05d", n) }
