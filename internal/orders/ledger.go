package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// statements serve standalone reservations and Settle's transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StockLedger keeps variant stock in product_variants.stock. Each call is a
// single conditional UPDATE, so stock never goes below zero and concurrent
// reservations never oversell.
type StockLedger struct {
	DB      *pgxpool.Pool
	Retries int
}

func (l *StockLedger) Reserve(ctx context.Context, variantID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: qty must be > 0", ErrValidation)
	}
	return l.retry(ctx, func() error { return reserve(ctx, l.DB, variantID, qty) })
}

func (l *StockLedger) Release(ctx context.Context, variantID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: qty must be > 0", ErrValidation)
	}
	return l.retry(ctx, func() error { return release(ctx, l.DB, variantID, qty) })
}

// retry repeats fn while postgres reports lock contention. Once the budget
// is spent the caller sees ErrConcurrencyExhausted.
func (l *StockLedger) retry(ctx context.Context, fn func() error) error {
	budget := l.Retries
	if budget <= 0 {
		budget = 5
	}
	backoff := 10 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !retryable(err) {
			return err
		}
		if attempt+1 >= budget {
			return fmt.Errorf("%w: %v", ErrConcurrencyExhausted, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func reserve(ctx context.Context, q querier, variantID string, qty int) error {
	ct, err := q.Exec(ctx, `
		UPDATE product_variants SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`, variantID, qty)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM product_variants WHERE id = $1)`, variantID).Scan(&exists); err != nil {
		return classify(err)
	}
	if !exists {
		return fmt.Errorf("%w: variant %s", ErrResolution, variantID)
	}
	return ErrInsufficientStock
}

func release(ctx context.Context, q querier, variantID string, qty int) error {
	ct, err := q.Exec(ctx, `UPDATE product_variants SET stock = stock + $2 WHERE id = $1`, variantID, qty)
	if err != nil {
		return classify(err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: variant %s", ErrResolution, variantID)
	}
	return nil
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgInvalidText          = "22P02"
	pgCheckViolation       = "23514"
)

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return false
}

// classify maps postgres errors onto ledger errors. A malformed id cannot name
// a variant, and a CHECK violation means the stock floor held.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInvalidText:
			return fmt.Errorf("%w: %s", ErrResolution, pgErr.Message)
		case pgCheckViolation:
			return ErrInsufficientStock
		}
	}
	return err
}
