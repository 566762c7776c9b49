package payments

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

var ErrIncompleteCredentials = errors.New("payment credentials incomplete")

// Credentials are the merchant keys, resolved per invocation.
type Credentials struct {
	PublicKey       string
	IntegritySecret string
	EventSecret     string
}

// CanCharge reports whether checkout links can be signed.
func (c Credentials) CanCharge() bool {
	return c.PublicKey != "" && c.IntegritySecret != ""
}

type LinkRequest struct {
	Reference   string
	AmountCents int64
	Currency    string
	Credentials Credentials
}

// Checkout issues a payment link for a reference.
type Checkout interface {
	Link(ctx context.Context, req LinkRequest) (string, error)
}

// HostedCheckout builds a signed hosted-checkout URL.
type HostedCheckout struct {
	BaseURL string
}

func (h HostedCheckout) Link(ctx context.Context, req LinkRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !req.Credentials.CanCharge() {
		return "", ErrIncompleteCredentials
	}
	if req.Reference == "" || req.AmountCents <= 0 || req.Currency == "" {
		return "", errors.New("reference, amount and currency are required")
	}
	base := h.BaseURL
	if base == "" {
		base = "https://checkout.wompi.co/p/"
	}
	sig := Integrity(req.Reference, req.AmountCents, req.Currency, req.Credentials.IntegritySecret)

	var b strings.Builder
	b.WriteString(base)
	if strings.Contains(base, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	b.WriteString("public-key=" + url.QueryEscape(req.Credentials.PublicKey))
	b.WriteString("&currency=" + url.QueryEscape(req.Currency))
	b.WriteString("&amount-in-cents=" + strconv.FormatInt(req.AmountCents, 10))
	b.WriteString("&reference=" + url.QueryEscape(req.Reference))
	b.WriteString("&signature:integrity=" + sig)
	return b.String(), nil
}
