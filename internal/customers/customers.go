package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("customer not found")

type Customer struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone_e164"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizePhone turns what the messaging channel hands us ("whatsapp:+57 300
// 111 2233") into E.164 ("+573001112233").
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "whatsapp:")
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", fmt.Errorf("%w: invalid phone %q", orders.ErrValidation, raw)
		}
	}
	out := b.String()
	if !strings.HasPrefix(out, "+") {
		out = "+" + out
	}
	if n := len(out) - 1; n < 8 || n > 15 {
		return "", fmt.Errorf("%w: invalid phone %q", orders.ErrValidation, raw)
	}
	return out, nil
}

type Repo struct{ DB *pgxpool.Pool }

// FindOrCreateByPhone returns the customer for phone, creating it on first
// contact. An existing customer keeps its name unless it was empty.
func (r *Repo) FindOrCreateByPhone(ctx context.Context, phone, name string) (Customer, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return Customer{}, err
	}
	var c Customer
	err = r.DB.QueryRow(ctx, `
		INSERT INTO customers(phone_e164, name) VALUES ($1, $2)
		ON CONFLICT (phone_e164) DO UPDATE
			SET name = CASE WHEN customers.name = '' THEN EXCLUDED.name ELSE customers.name END
		RETURNING id, phone_e164, name, created_at`,
		phone, strings.TrimSpace(name)).Scan(&c.ID, &c.Phone, &c.Name, &c.CreatedAt)
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Customer, error) {
	var c Customer
	err := r.DB.QueryRow(ctx, `SELECT id, phone_e164, name, created_at FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Phone, &c.Name, &c.CreatedAt)
	if missing(err) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

// missing reports lookups that found nothing. A malformed uuid can never
// match a row, so 22P02 counts as missing.
func missing(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// Contact implements orders.CustomerLookup.
func (r *Repo) Contact(ctx context.Context, id string) (orders.Contact, error) {
	c, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return orders.Contact{}, fmt.Errorf("%w: %s", orders.ErrUnknownCustomer, id)
	}
	if err != nil {
		return orders.Contact{}, err
	}
	return orders.Contact{Phone: c.Phone, Name: c.Name}, nil
}
