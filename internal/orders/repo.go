package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the postgres Store.
type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, customer_id, status, total_cents, payment_reference,
	shipping_name, shipping_address, shipping_city,
	COALESCE(carrier_name, ''), COALESCE(tracking_number, ''),
	created_at, updated_at, shipped_at, delivered_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.CustomerID, &status, &o.TotalCents, &o.PaymentReference,
		&o.ShippingName, &o.ShippingAddress, &o.ShippingCity,
		&o.CarrierName, &o.TrackingNumber,
		&o.CreatedAt, &o.UpdatedAt, &o.ShippedAt, &o.DeliveredAt)
	if err != nil {
		return nil, err
	}
	if o.Status, err = parseStatus(status); err != nil {
		return nil, fmt.Errorf("order %s: %w", o.ID, err)
	}
	return &o, nil
}

func (r *Repo) InsertOrder(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders(id, customer_id, status, total_cents, payment_reference,
			shipping_name, shipping_address, shipping_city, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.CustomerID, string(o.Status), o.TotalCents, o.PaymentReference,
		o.ShippingName, o.ShippingAddress, o.ShippingCity, o.CreatedAt, o.UpdatedAt,
	); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(`
			INSERT INTO order_items(id, order_id, product_id, variant_id, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			it.ID, o.ID, it.ProductID, it.VariantID, it.Qty, it.UnitPriceCents)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	if o.Items, err = r.items(ctx, r.DB, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) GetOrderByReference(ctx context.Context, ref string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_reference = $1`, ref))
	if err != nil {
		return nil, notFound(err)
	}
	if o.Items, err = r.items(ctx, r.DB, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrderStatus is the cheap read behind the status endpoint.
func (r *Repo) GetOrderStatus(ctx context.Context, id string) (Status, time.Time, error) {
	var s string
	var updated time.Time
	err := r.DB.QueryRow(ctx, `SELECT status, updated_at FROM orders WHERE id = $1`, id).Scan(&s, &updated)
	if err != nil {
		return "", time.Time{}, notFound(err)
	}
	status, err := parseStatus(s)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("order %s: %w", id, err)
	}
	return status, updated, nil
}

type rowsQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// items are returned ordered by variant id so every transaction that
// touches several variants locks them in the same order.
func (r *Repo) items(ctx context.Context, q rowsQuerier, orderID string) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, qty, unit_price_cents
		FROM order_items WHERE order_id = $1 ORDER BY variant_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Qty, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) Settle(ctx context.Context, orderID string, from, to Status, releaseStock bool) (int, bool, error) {
	if !CanTransition(from, to) {
		return 0, false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, orderID, string(from), string(to))
	if err != nil {
		return 0, false, err
	}
	if ct.RowsAffected() == 0 {
		return 0, false, nil
	}

	released := 0
	if releaseStock {
		items, err := r.items(ctx, tx, orderID)
		if err != nil {
			return 0, false, err
		}
		for _, it := range items {
			if err := release(ctx, tx, it.VariantID, it.Qty); err != nil {
				return 0, false, fmt.Errorf("release variant %s: %w", it.VariantID, err)
			}
			released += it.Qty
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return released, true, nil
}

func (r *Repo) UpsertPayment(ctx context.Context, p Payment) error {
	var raw any
	if len(p.RawEvent) > 0 {
		raw = string(p.RawEvent)
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO payments(order_id, reference, transaction_id, status, provider, raw_event, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7)
		ON CONFLICT (reference) DO UPDATE SET
			transaction_id = EXCLUDED.transaction_id,
			status         = EXCLUDED.status,
			provider       = EXCLUDED.provider,
			raw_event      = EXCLUDED.raw_event,
			updated_at     = EXCLUDED.updated_at`,
		p.OrderID, p.Reference, p.TransactionID, p.Status, p.Provider, raw, p.UpdatedAt)
	return err
}

func (r *Repo) ListAwaitingBefore(ctx context.Context, cutoff time.Time) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+`
		FROM orders WHERE status = 'awaiting_payment' AND created_at < $1
		ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, err
	}
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Items, err = r.items(ctx, r.DB, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repo) MarkShipped(ctx context.Context, orderID, carrier, tracking string, at time.Time) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = 'shipped', carrier_name = $2, tracking_number = $3,
			shipped_at = $4, updated_at = $4
		WHERE id = $1 AND status = 'paid'`, orderID, carrier, tracking, at)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) MarkDelivered(ctx context.Context, orderID string, at time.Time) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = 'delivered', delivered_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'shipped'`, orderID, at)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// notFound maps a missing row, or an id that is not a valid uuid, to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(classify(err), ErrResolution) {
		return ErrNotFound
	}
	return err
}
