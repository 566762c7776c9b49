package orders

const (
	TopicOrderCreated    = "order.created"
	TopicOrderPaid       = "order.paid"
	TopicOrderCancelled  = "order.cancelled"
	TopicOrderExpired    = "order.expired"
	TopicOrderShipped    = "order.shipped"
	TopicOrderDelivered  = "order.delivered"
	TopicPaymentConflict = "order.payment_conflict"
)

var topicByEvent = map[string]string{
	EventOrderCreated:    TopicOrderCreated,
	EventOrderPaid:       TopicOrderPaid,
	EventOrderCancelled:  TopicOrderCancelled,
	EventOrderExpired:    TopicOrderExpired,
	EventOrderShipped:    TopicOrderShipped,
	EventOrderDelivered:  TopicOrderDelivered,
	EventPaymentConflict: TopicPaymentConflict,
}

// TopicFor maps an event type to its topic.
func TopicFor(eventType string) string { return topicByEvent[eventType] }

// Partition key = order_id so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
