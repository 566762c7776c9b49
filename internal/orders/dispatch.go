package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/chat-storefront/internal/notify"
	"go.uber.org/zap"
)

type TransitionResult struct {
	Success            bool   `json:"success"`
	OrderID            string `json:"order_id"`
	Status             Status `json:"status,omitempty"`
	NotificationStatus string `json:"notification_status,omitempty"`
	Error              string `json:"error,omitempty"`
}

// Dispatch records the shipment of a paid order. Stock is not touched.
func (s *Service) Dispatch(ctx context.Context, orderID, carrier, tracking string) (TransitionResult, error) {
	carrier, tracking = strings.TrimSpace(carrier), strings.TrimSpace(tracking)
	if carrier == "" || tracking == "" {
		err := fmt.Errorf("%w: carrier and tracking number required", ErrValidation)
		return TransitionResult{OrderID: orderID, Error: err.Error()}, err
	}

	o, err := s.transitionable(ctx, orderID, StatusShipped)
	if err != nil {
		return TransitionResult{OrderID: orderID, Error: err.Error()}, err
	}
	ok, err := s.Store.MarkShipped(ctx, orderID, carrier, tracking, s.now())
	if err != nil {
		return TransitionResult{OrderID: orderID, Error: err.Error()}, fmt.Errorf("mark shipped: %w", err)
	}
	if !ok {
		return s.lostRace(orderID, StatusShipped)
	}

	s.logger(ctx).Info("order shipped", zap.String("order_id", orderID), zap.String("carrier", carrier))
	s.forget(ctx, orderID)
	s.emit(ctx, EventOrderShipped, orderID, OrderShippedPayload{OrderID: orderID, CarrierName: carrier, TrackingNumber: tracking})

	ns := s.notifyCustomer(ctx, o, notify.KindDispatched, func(name string) string {
		return notify.Dispatched(name, carrier, tracking)
	})
	return TransitionResult{Success: true, OrderID: orderID, Status: StatusShipped, NotificationStatus: ns}, nil
}

// MarkDelivered closes a shipped order.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) (TransitionResult, error) {
	o, err := s.transitionable(ctx, orderID, StatusDelivered)
	if err != nil {
		return TransitionResult{OrderID: orderID, Error: err.Error()}, err
	}
	ok, err := s.Store.MarkDelivered(ctx, orderID, s.now())
	if err != nil {
		return TransitionResult{OrderID: orderID, Error: err.Error()}, fmt.Errorf("mark delivered: %w", err)
	}
	if !ok {
		return s.lostRace(orderID, StatusDelivered)
	}

	s.logger(ctx).Info("order delivered", zap.String("order_id", orderID))
	s.forget(ctx, orderID)
	s.emit(ctx, EventOrderDelivered, orderID, OrderDeliveredPayload{OrderID: orderID})

	short := o.ShortID()
	ns := s.notifyCustomer(ctx, o, notify.KindDelivered, func(name string) string {
		return notify.Delivered(name, short)
	})
	return TransitionResult{Success: true, OrderID: orderID, Status: StatusDelivered, NotificationStatus: ns}, nil
}

func (s *Service) transitionable(ctx context.Context, orderID string, to Status) (*Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	return o, nil
}

func (s *Service) lostRace(orderID string, to Status) (TransitionResult, error) {
	err := fmt.Errorf("%w: order %s changed before moving to %s", ErrInvalidTransition, orderID, to)
	return TransitionResult{OrderID: orderID, Error: err.Error()}, err
}
