package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/logx"
	"github.com/ariefcatur/chat-storefront/internal/notify"
	"github.com/ariefcatur/chat-storefront/internal/payments"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Service is the order lifecycle engine. Store, Ledger and Log are required;
// the remaining collaborators may be nil and are then skipped.
type Service struct {
	Store     Store
	Ledger    Ledger
	Resolver  Resolver
	Customers CustomerLookup
	Settings  SettingsSource
	Checkout  payments.Checkout
	Notifier  Notifier
	Events    EventSink
	Cache     StatusCache
	Dedup     Dedup
	Log       *zap.Logger

	ServiceName     string
	Currency        string
	CheckoutTimeout time.Duration
	Now             func() time.Time

	// RequireSignature rejects payment webhooks while no event secret is
	// configured. Set in production.
	RequireSignature bool
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) currency() string {
	if s.Currency == "" {
		return "COP"
	}
	return s.Currency
}

func (s *Service) logger(ctx context.Context) *zap.Logger {
	return logx.FromContextOr(ctx, s.Log)
}

func (s *Service) emit(ctx context.Context, eventType, orderID string, payload any) {
	if s.Events == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger(ctx).Error("encode event payload", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now(),
		Producer:      s.ServiceName,
		TraceID:       traceID(ctx),
		CorrelationID: orderID,
		Payload:       body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		s.logger(ctx).Error("encode event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	s.Events.PublishTo(TopicFor(eventType), PartitionKey(orderID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) forget(ctx context.Context, orderID string) {
	if s.Cache != nil {
		s.Cache.Forget(ctx, orderID)
	}
}

// Notification statuses reported by transitions.
const (
	NotificationQueued   = "queued"
	NotificationDropped  = "dropped"
	NotificationNoPhone  = "skipped_no_phone"
	NotificationDisabled = "disabled"
)

// notifyCustomer queues a message built from the customer's contact. It never
// fails the caller: lookup and queueing problems are logged.
func (s *Service) notifyCustomer(ctx context.Context, o *Order, kind notify.Kind, body func(name string) string) string {
	if s.Notifier == nil || s.Customers == nil {
		return NotificationDisabled
	}
	log := s.logger(ctx).With(zap.String("order_id", o.ID), zap.String("kind", string(kind)))

	contact, err := s.Customers.Contact(ctx, o.CustomerID)
	if err != nil {
		log.Warn("customer lookup for notification failed", zap.Error(err))
		return NotificationNoPhone
	}
	if contact.Phone == "" {
		return NotificationNoPhone
	}
	ok := s.Notifier.Enqueue(ctx, notify.Message{
		Kind:       kind,
		CustomerID: o.CustomerID,
		OrderID:    o.ID,
		To:         contact.Phone,
		Body:       body(contact.Name),
	})
	if !ok {
		return NotificationDropped
	}
	return NotificationQueued
}

type traceKey struct{}

// WithTraceID tags lifecycle events emitted under ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	v, _ := ctx.Value(traceKey{}).(string)
	return v
}
