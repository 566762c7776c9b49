package notify

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const TopicWhatsApp = "notifications.whatsapp"

type Publisher interface {
	PublishTo(topic string, key, value []byte, headers ...kafkago.Header)
}

// KafkaOutbox hands messages to the notifier service through Kafka instead
// of sending them in-process.
type KafkaOutbox struct {
	Producer Publisher
	Topic    string
	Log      *zap.Logger
}

func (o *KafkaOutbox) Enqueue(_ context.Context, m Message) bool {
	b, err := json.Marshal(m)
	if err != nil {
		if o.Log != nil {
			o.Log.Error("encode notification", zap.Error(err))
		}
		return false
	}
	topic := o.Topic
	if topic == "" {
		topic = TopicWhatsApp
	}
	o.Producer.PublishTo(topic, []byte(m.To), b,
		kafkago.Header{Key: "x-notification-kind", Value: []byte(m.Kind)},
	)
	return true
}

// Handler consumes outbox messages. Undecodable messages and failed sends are
// logged and committed; notifications are best-effort.
func Handler(sender Sender, audit AuditLog, log *zap.Logger) func(ctx context.Context, km kafkago.Message) error {
	return func(ctx context.Context, km kafkago.Message) error {
		var m Message
		if err := json.Unmarshal(km.Value, &m); err != nil {
			log.Error("skip undecodable notification", zap.Error(err), zap.Int64("offset", km.Offset))
			return nil
		}
		Deliver(ctx, sender, audit, log, m)
		return nil
	}
}
