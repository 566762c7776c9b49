package ordertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ariefcatur/chat-storefront/internal/notify"
	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/ariefcatur/chat-storefront/internal/payments"
	kafkago "github.com/segmentio/kafka-go"
)

// Catalog resolves product references from a fixed list. Refs match by
// product id or case-insensitively by name.
type Catalog struct {
	Items []orders.ResolvedItem
}

func (c *Catalog) ResolveVariant(_ context.Context, ref string, size orders.Size) (orders.ResolvedItem, error) {
	found := false
	for _, it := range c.Items {
		if it.ProductID != ref && !strings.EqualFold(it.Name, ref) {
			continue
		}
		found = true
		if it.Size.Matches(size) {
			return it, nil
		}
	}
	if !found {
		return orders.ResolvedItem{}, fmt.Errorf("%w: product %q", orders.ErrResolution, ref)
	}
	return orders.ResolvedItem{}, fmt.Errorf("%w: size %s of %q", orders.ErrResolution, size, ref)
}

type Settings struct {
	Creds payments.Credentials
	Err   error
}

func (s *Settings) PaymentCredentials(context.Context) (payments.Credentials, error) {
	return s.Creds, s.Err
}

// Checkout signs links with payments.HostedCheckout unless Err is set.
type Checkout struct {
	Err error

	mu    sync.Mutex
	Calls []payments.LinkRequest
}

func (c *Checkout) Link(ctx context.Context, req payments.LinkRequest) (string, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, req)
	c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	return payments.HostedCheckout{}.Link(ctx, req)
}

type Customers map[string]orders.Contact

func (c Customers) Contact(_ context.Context, id string) (orders.Contact, error) {
	ct, ok := c[id]
	if !ok {
		return orders.Contact{}, fmt.Errorf("%w: %s", orders.ErrUnknownCustomer, id)
	}
	return ct, nil
}

type Notifier struct {
	Reject bool

	mu   sync.Mutex
	sent []notify.Message
}

func (n *Notifier) Enqueue(_ context.Context, m notify.Message) bool {
	if n.Reject {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, m)
	return true
}

func (n *Notifier) Messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.sent...)
}

type Published struct {
	Topic string
	Key   []byte
	Value []byte
}

// Events records lifecycle events instead of producing them to Kafka.
type Events struct {
	mu  sync.Mutex
	all []Published
}

func (e *Events) PublishTo(topic string, key, value []byte, _ ...kafkago.Header) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, Published{Topic: topic, Key: key, Value: value})
}

// Topics lists the topics published to, in order.
func (e *Events) Topics() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.all))
	for _, p := range e.all {
		out = append(out, p.Topic)
	}
	return out
}

func (e *Events) Count(topic string) int {
	n := 0
	for _, t := range e.Topics() {
		if t == topic {
			n++
		}
	}
	return n
}

type Dedup struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (d *Dedup) Seen(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keys[key]
}

func (d *Dedup) Mark(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys == nil {
		d.keys = map[string]bool{}
	}
	d.keys[key] = true
}

type Cache struct {
	mu        sync.Mutex
	Forgotten []string
}

func (c *Cache) Forget(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Forgotten = append(c.Forgotten, id)
}
