package orders

import "fmt"

type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusCancelled       Status = "cancelled"
	StatusExpired         Status = "expired"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
)

var validNext = map[Status]map[Status]bool{
	StatusAwaitingPayment: {StatusPaid: true, StatusCancelled: true, StatusExpired: true},
	StatusPaid:            {StatusShipped: true},
	StatusShipped:         {StatusDelivered: true},
	StatusCancelled:       {},
	StatusExpired:         {},
	StatusDelivered:       {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Closed reports whether the order can no longer be paid.
func (s Status) Closed() bool {
	return s == StatusCancelled || s == StatusExpired
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// parseStatus rejects values the state machine does not know, so a bad row
// never reaches a transition check.
func parseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return s, nil
}
