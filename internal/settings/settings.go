package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/chat-storefront/internal/config"
	"github.com/ariefcatur/chat-storefront/internal/payments"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stored is the single settings row; nil fields were never set.
type Stored struct {
	PublicKey       *string
	IntegritySecret *string
	EventSecret     *string
}

// Resolver reads payment credentials on every call so a key rotated in the
// settings table applies to the next request. Stored values win over the
// environment defaults.
type Resolver struct {
	DB       *pgxpool.Pool
	Defaults config.WompiConfig
}

func (r *Resolver) PaymentCredentials(ctx context.Context) (payments.Credentials, error) {
	var s Stored
	if r.DB != nil {
		err := r.DB.QueryRow(ctx, `
			SELECT wompi_public_key, wompi_integrity_secret, wompi_event_secret
			FROM settings WHERE id = 1`).Scan(&s.PublicKey, &s.IntegritySecret, &s.EventSecret)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return payments.Credentials{}, fmt.Errorf("read settings: %w", err)
		}
	}
	return Merge(s, r.Defaults), nil
}

// Merge applies the stored-then-environment precedence per key.
func Merge(s Stored, env config.WompiConfig) payments.Credentials {
	return payments.Credentials{
		PublicKey:       pick(s.PublicKey, env.PublicKey),
		IntegritySecret: pick(s.IntegritySecret, env.IntegritySecret),
		EventSecret:     pick(s.EventSecret, env.EventSecret),
	}
}

func pick(stored *string, fallback string) string {
	if stored != nil && *stored != "" {
		return *stored
	}
	return fallback
}

// Save upserts the settings row. Empty arguments clear the stored value so
// the environment default applies again.
func (r *Resolver) Save(ctx context.Context, c payments.Credentials) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO settings(id, wompi_public_key, wompi_integrity_secret, wompi_event_secret, updated_at)
		VALUES (1, NULLIF($1, ''), NULLIF($2, ''), NULLIF($3, ''), now())
		ON CONFLICT (id) DO UPDATE SET
			wompi_public_key       = EXCLUDED.wompi_public_key,
			wompi_integrity_secret = EXCLUDED.wompi_integrity_secret,
			wompi_event_secret     = EXCLUDED.wompi_event_secret,
			updated_at             = now()`,
		c.PublicKey, c.IntegritySecret, c.EventSecret)
	return err
}
