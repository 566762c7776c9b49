package orders

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type Order struct {
	ID               string      `json:"id"`
	CustomerID       string      `json:"customer_id"`
	Status           Status      `json:"status"`
	TotalCents       int64       `json:"total_cents"`
	PaymentReference string      `json:"payment_reference"`
	ShippingName     string      `json:"shipping_name"`
	ShippingAddress  string      `json:"shipping_address"`
	ShippingCity     string      `json:"shipping_city"`
	CarrierName      string      `json:"carrier_name,omitempty"`
	TrackingNumber   string      `json:"tracking_number,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	ShippedAt        *time.Time  `json:"shipped_at,omitempty"`
	DeliveredAt      *time.Time  `json:"delivered_at,omitempty"`
	Items            []OrderItem `json:"items,omitempty"`
}

// OrderItem is immutable once the order is inserted; UnitPriceCents is the
// catalog price at order time.
type OrderItem struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func (o *Order) Units() int {
	n := 0
	for _, it := range o.Items {
		n += it.Qty
	}
	return n
}

// ShortID is the customer-facing order number.
func (o *Order) ShortID() string {
	if len(o.ID) > 8 {
		return o.ID[:8]
	}
	return o.ID
}

type Payment struct {
	OrderID       string          `json:"order_id"`
	Reference     string          `json:"reference"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Provider      string          `json:"provider"`
	RawEvent      json.RawMessage `json:"raw_event"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Shipping struct {
	Name    string `json:"shipping_name" validate:"required"`
	Address string `json:"shipping_address" validate:"required"`
	City    string `json:"shipping_city" validate:"required"`
}

// ItemRequest is one basket line as sent by the conversational agent.
type ItemRequest struct {
	ProductRef string `json:"product_id" validate:"required"`
	Size       Size   `json:"size" validate:"required"`
	Quantity   int    `json:"quantity" validate:"gte=0"`
}

// ResolvedItem is a catalog match for a product reference and size.
type ResolvedItem struct {
	ProductID  string
	VariantID  string
	Name       string
	Size       Size
	PriceCents int64
	Stock      int
}

type Contact struct {
	Phone string
	Name  string
}

// Size accepts both JSON numbers (42, 42.5) and strings ("42", "M").
type Size string

func (s *Size) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = Size(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = Size(n.String())
	return nil
}

// Matches compares numerically when both sides parse as numbers, so "42"
// matches "42.0".
func (s Size) Matches(other Size) bool {
	a, errA := strconv.ParseFloat(string(s), 64)
	b, errB := strconv.ParseFloat(string(other), 64)
	if errA == nil && errB == nil {
		return a == b
	}
	return strings.EqualFold(strings.TrimSpace(string(s)), strings.TrimSpace(string(other)))
}
