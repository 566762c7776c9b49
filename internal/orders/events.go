package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated    = "OrderCreated"
	EventOrderPaid       = "OrderPaid"
	EventOrderCancelled  = "OrderCancelled"
	EventOrderExpired    = "OrderExpired"
	EventOrderShipped    = "OrderShipped"
	EventOrderDelivered  = "OrderDelivered"
	EventPaymentConflict = "PaymentConflict"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	VariantID string `json:"variant_id"`
	Qty       int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Reference  string    `json:"payment_reference"`
	Items      []ItemQty `json:"items"`
	TotalCents int64     `json:"total_cents"`
}

type OrderClosedPayload struct {
	OrderID       string `json:"order_id"`
	Reason        string `json:"reason"` // DECLINED | VOIDED | ERROR | EXPIRED | CHECKOUT_FAILED
	UnitsReleased int    `json:"units_released"`
}

type OrderPaidPayload struct {
	OrderID       string `json:"order_id"`
	Reference     string `json:"payment_reference"`
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`
}

type OrderShippedPayload struct {
	OrderID        string `json:"order_id"`
	CarrierName    string `json:"carrier_name"`
	TrackingNumber string `json:"tracking_number"`
}

type OrderDeliveredPayload struct {
	OrderID string `json:"order_id"`
}

// PaymentConflictPayload flags an approved payment for an order that was
// already closed; it needs a manual refund.
type PaymentConflictPayload struct {
	OrderID       string `json:"order_id"`
	Reference     string `json:"payment_reference"`
	TransactionID string `json:"transaction_id"`
	OrderStatus   Status `json:"order_status"`
}
