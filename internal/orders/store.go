package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/notify"
	"github.com/ariefcatur/chat-storefront/internal/payments"
	kafkago "github.com/segmentio/kafka-go"
)

// Ledger is the only code path allowed to change variant stock. Both calls
// are single atomic statements against the stored counter.
type Ledger interface {
	// Reserve decrements stock by qty iff stock >= qty.
	Reserve(ctx context.Context, variantID string, qty int) error
	// Release increments stock by qty.
	Release(ctx context.Context, variantID string, qty int) error
}

type Store interface {
	// InsertOrder writes the order and its items in one transaction.
	InsertOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	GetOrderByReference(ctx context.Context, ref string) (*Order, error)

	// Settle moves an order from `from` to `to` with a compare-and-set on the
	// status. With release set, every line item's qty goes back through the
	// ledger in the same transaction. ok is false when the order was no
	// longer in `from`; nothing changed in that case.
	Settle(ctx context.Context, orderID string, from, to Status, release bool) (released int, ok bool, err error)

	// UpsertPayment merges the payment row keyed by reference.
	UpsertPayment(ctx context.Context, p Payment) error

	// ListAwaitingBefore returns awaiting_payment orders created before cutoff, with items.
	ListAwaitingBefore(ctx context.Context, cutoff time.Time) ([]Order, error)

	// MarkShipped and MarkDelivered are compare-and-set transitions
	// (paid→shipped, shipped→delivered).
	MarkShipped(ctx context.Context, orderID, carrier, tracking string, at time.Time) (bool, error)
	MarkDelivered(ctx context.Context, orderID string, at time.Time) (bool, error)
}

// Resolver maps a free-text or id product reference plus size to a variant.
type Resolver interface {
	ResolveVariant(ctx context.Context, productRef string, size Size) (ResolvedItem, error)
}

// CustomerLookup returns an error wrapping ErrUnknownCustomer when the id
// does not name a customer.
type CustomerLookup interface {
	Contact(ctx context.Context, customerID string) (Contact, error)
}

// SettingsSource resolves payment credentials for one invocation.
type SettingsSource interface {
	PaymentCredentials(ctx context.Context) (payments.Credentials, error)
}

type Notifier interface {
	Enqueue(ctx context.Context, m notify.Message) bool
}

type EventSink interface {
	PublishTo(topic string, key, value []byte, headers ...kafkago.Header)
}

// StatusCache holds read-side copies of order status.
type StatusCache interface {
	Forget(ctx context.Context, orderID string)
}

// Dedup remembers webhook deliveries that were already applied.
type Dedup interface {
	Seen(ctx context.Context, key string) bool
	Mark(ctx context.Context, key string)
}
