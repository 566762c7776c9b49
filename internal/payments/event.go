package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	EventTransactionUpdated = "transaction.updated"

	HeaderChecksum  = "X-Event-Checksum"
	HeaderTimestamp = "X-Event-Timestamp"
)

// Provider transaction statuses.
const (
	StatusApproved = "APPROVED"
	StatusDeclined = "DECLINED"
	StatusVoided   = "VOIDED"
	StatusError    = "ERROR"
	StatusPending  = "PENDING"
)

// defaultProperties is the signed chain used when an event does not declare one.
var defaultProperties = []string{"transaction.id", "transaction.status", "transaction.amount_in_cents"}

type Transaction struct {
	ID            string `json:"id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	AmountInCents int64  `json:"amount_in_cents"`
}

type Signature struct {
	Properties []string `json:"properties"`
	Checksum   string   `json:"checksum"`
}

// Event is a payment webhook delivery. Checksum and Timestamp are resolved
// from the body first and the headers second.
type Event struct {
	Event       string
	Transaction Transaction
	Signature   Signature
	Timestamp   string
	Checksum    string

	// Data is the "data" object exactly as received, kept for audit.
	Data json.RawMessage
}

type wireEvent struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Signature Signature       `json:"signature"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// ParseEvent decodes a webhook body; h may be nil.
func ParseEvent(body []byte, h http.Header) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if len(w.Data) == 0 {
		return Event{}, fmt.Errorf("decode event: missing data")
	}

	var data struct {
		Transaction Transaction `json:"transaction"`
	}
	if err := json.Unmarshal(w.Data, &data); err != nil {
		return Event{}, fmt.Errorf("decode transaction: %w", err)
	}

	ev := Event{
		Event:       w.Event,
		Transaction: data.Transaction,
		Signature:   w.Signature,
		Timestamp:   strings.Trim(string(bytes.TrimSpace(w.Timestamp)), `"`),
		Checksum:    w.Signature.Checksum,
		Data:        w.Data,
	}
	if h != nil {
		if c := h.Get(HeaderChecksum); c != "" {
			ev.Checksum = c
		}
		if ev.Timestamp == "" || ev.Timestamp == "null" {
			ev.Timestamp = h.Get(HeaderTimestamp)
		}
	}
	return ev, nil
}

// Failed reports whether status releases the reservation.
func Failed(status string) bool {
	switch strings.ToUpper(status) {
	case StatusDeclined, StatusVoided, StatusError:
		return true
	}
	return false
}
