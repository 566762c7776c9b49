//go:build integration

package orders_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/ariefcatur/chat-storefront/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(dsn, zap.NewNop()))

	pool, err := postgres.Connect(ctx, dsn, postgres.PoolOptions{MaxConns: 32})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

type fixture struct {
	productID, variantID, customerID string
}

func seed(t *testing.T, db *pgxpool.Pool, stock int) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	require.NoError(t, db.QueryRow(ctx, `
		INSERT INTO products(brand, model, sku, colorway, price_cents)
		VALUES ('Nike', 'Pegasus 41', $1, 'Black/White', 45000000) RETURNING id`,
		"PEG41-"+uuid.NewString()[:8]).Scan(&f.productID))
	require.NoError(t, db.QueryRow(ctx, `
		INSERT INTO product_variants(product_id, size, stock) VALUES ($1, '42', $2) RETURNING id`,
		f.productID, stock).Scan(&f.variantID))
	require.NoError(t, db.QueryRow(ctx, `
		INSERT INTO customers(phone_e164, name) VALUES ($1, 'Laura') RETURNING id`,
		"+57300"+uuid.NewString()[:7]).Scan(&f.customerID))
	return f
}

func stockOf(t *testing.T, db *pgxpool.Pool, variantID string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(),
		`SELECT stock FROM product_variants WHERE id = $1`, variantID).Scan(&n))
	return n
}

func TestStockLedger_Postgres(t *testing.T) {
	db := newTestPool(t)
	f := seed(t, db, 10)
	ledger := &orders.StockLedger{DB: db, Retries: 5}
	ctx := context.Background()

	t.Run("concurrent reserve never oversells", func(t *testing.T) {
		var ok atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := ledger.Reserve(ctx, f.variantID, 1)
				if err == nil {
					ok.Add(1)
					return
				}
				assert.ErrorIs(t, err, orders.ErrInsufficientStock)
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 10, ok.Load())
		assert.Zero(t, stockOf(t, db, f.variantID))
	})

	t.Run("release restores", func(t *testing.T) {
		require.NoError(t, ledger.Release(ctx, f.variantID, 4))
		assert.Equal(t, 4, stockOf(t, db, f.variantID))
	})

	t.Run("unknown and malformed variants", func(t *testing.T) {
		assert.ErrorIs(t, ledger.Reserve(ctx, uuid.NewString(), 1), orders.ErrResolution)
		assert.ErrorIs(t, ledger.Reserve(ctx, "not-a-uuid", 1), orders.ErrResolution)
		assert.ErrorIs(t, ledger.Release(ctx, uuid.NewString(), 1), orders.ErrResolution)
	})
}

func TestRepo_Postgres(t *testing.T) {
	db := newTestPool(t)
	f := seed(t, db, 3)
	repo := &orders.Repo{DB: db}
	ledger := &orders.StockLedger{DB: db}
	ctx := context.Background()

	newOrder := func(qty int, created time.Time) *orders.Order {
		require.NoError(t, ledger.Reserve(ctx, f.variantID, qty))
		id := uuid.NewString()
		o := &orders.Order{
			ID:               id,
			CustomerID:       f.customerID,
			Status:           orders.StatusAwaitingPayment,
			TotalCents:       int64(qty) * 45000000,
			PaymentReference: "ORD-" + id[:13],
			ShippingName:     "Laura",
			ShippingAddress:  "Cra 7",
			ShippingCity:     "Bogota",
			CreatedAt:        created,
			UpdatedAt:        created,
			Items: []orders.OrderItem{{
				ID: uuid.NewString(), OrderID: id, ProductID: f.productID, VariantID: f.variantID,
				Qty: qty, UnitPriceCents: 45000000,
			}},
		}
		require.NoError(t, repo.InsertOrder(ctx, o))
		return o
	}

	now := time.Now().UTC()
	old := newOrder(2, now.Add(-3*time.Hour))
	fresh := newOrder(1, now.Add(-time.Hour))
	require.Zero(t, stockOf(t, db, f.variantID))

	got, err := repo.GetOrderByReference(ctx, old.PaymentReference)
	require.NoError(t, err)
	assert.Equal(t, old.ID, got.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Qty)

	_, err = repo.GetOrder(ctx, uuid.NewString())
	assert.ErrorIs(t, err, orders.ErrNotFound)
	_, err = repo.GetOrder(ctx, "garbage")
	assert.ErrorIs(t, err, orders.ErrNotFound)

	stale, err := repo.ListAwaitingBefore(ctx, now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)

	// Racing settlements of the same order release its stock once.
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, ok, err := repo.Settle(ctx, old.ID, orders.StatusAwaitingPayment, orders.StatusExpired, true)
			if err != nil {
				t.Errorf("settle: %v", err)
				return
			}
			if ok {
				wins.Add(1)
				assert.Equal(t, 2, n)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
	assert.Equal(t, 2, stockOf(t, db, f.variantID))

	_, _, err = repo.Settle(ctx, old.ID, orders.StatusPaid, orders.StatusCancelled, true)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	require.NoError(t, repo.UpsertPayment(ctx, orders.Payment{
		OrderID: fresh.ID, Reference: fresh.PaymentReference, TransactionID: "tx-1",
		Status: "pending", Provider: "wompi", RawEvent: []byte(`{"transaction":{"id":"tx-1"}}`), UpdatedAt: now,
	}))
	require.NoError(t, repo.UpsertPayment(ctx, orders.Payment{
		OrderID: fresh.ID, Reference: fresh.PaymentReference, TransactionID: "tx-1",
		Status: "approved", Provider: "wompi", UpdatedAt: now,
	}))
	var payStatus string
	require.NoError(t, db.QueryRow(ctx, `SELECT status FROM payments WHERE reference = $1`, fresh.PaymentReference).Scan(&payStatus))
	assert.Equal(t, "approved", payStatus)

	_, ok, err := repo.Settle(ctx, fresh.ID, orders.StatusAwaitingPayment, orders.StatusPaid, false)
	require.NoError(t, err)
	require.True(t, ok)

	shipped, err := repo.MarkShipped(ctx, fresh.ID, "Servientrega", "SV-1", now)
	require.NoError(t, err)
	assert.True(t, shipped)
	shipped, err = repo.MarkShipped(ctx, fresh.ID, "Servientrega", "SV-2", now)
	require.NoError(t, err)
	assert.False(t, shipped)

	delivered, err := repo.MarkDelivered(ctx, fresh.ID, now)
	require.NoError(t, err)
	assert.True(t, delivered)

	status, _, err := repo.GetOrderStatus(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, status)
	assert.Equal(t, 2, stockOf(t, db, f.variantID), "paid stock stays sold")
}
