package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/payments"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateOrderResult struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"order_id,omitempty"`
	Reference   string `json:"payment_reference,omitempty"`
	TotalCents  int64  `json:"total_cents,omitempty"`
	CheckoutURL string `json:"checkout_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

func failed(err error) (CreateOrderResult, error) {
	return CreateOrderResult{Error: err.Error()}, err
}

// CreateOrder reserves stock for the whole basket, records the order as
// awaiting_payment and returns a signed checkout link. Stock is held from
// this point until payment, decline or expiry.
func (s *Service) CreateOrder(ctx context.Context, customerID string, items []ItemRequest, ship Shipping) (CreateOrderResult, error) {
	log := s.logger(ctx).With(zap.String("customer_id", customerID))

	if err := validateBasket(customerID, items, ship); err != nil {
		return failed(err)
	}

	if err := s.checkCustomer(ctx, customerID); err != nil {
		log.Info("order rejected: customer lookup failed", zap.Error(err))
		return failed(err)
	}

	// Credentials are checked before any stock moves.
	creds, err := s.credentials(ctx)
	if err != nil {
		return failed(err)
	}
	if !creds.CanCharge() {
		log.Error("order rejected: payment credentials missing")
		return failed(ErrPaymentConfigMissing)
	}

	lines := make([]OrderItem, 0, len(items))
	var total int64
	for _, it := range items {
		r, err := s.Resolver.ResolveVariant(ctx, it.ProductRef, it.Size)
		if err != nil {
			return failed(err)
		}
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		total += r.PriceCents * int64(qty)
		lines = append(lines, OrderItem{
			ID:             uuid.NewString(),
			ProductID:      r.ProductID,
			VariantID:      r.VariantID,
			Qty:            qty,
			UnitPriceCents: r.PriceCents,
		})
	}

	reserved, err := s.reserveAll(ctx, lines)
	if err != nil {
		log.Info("order rejected: reservation failed", zap.Error(err))
		return failed(err)
	}

	now := s.now()
	order := &Order{
		ID:               uuid.NewString(),
		CustomerID:       customerID,
		Status:           StatusAwaitingPayment,
		TotalCents:       total,
		PaymentReference: newReference(now),
		ShippingName:     ship.Name,
		ShippingAddress:  ship.Address,
		ShippingCity:     ship.City,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for i := range lines {
		lines[i].OrderID = order.ID
	}
	order.Items = lines

	if err := s.Store.InsertOrder(ctx, order); err != nil {
		s.compensate(ctx, reserved)
		return failed(fmt.Errorf("insert order: %w", err))
	}
	log = log.With(zap.String("order_id", order.ID), zap.String("reference", order.PaymentReference))
	log.Info("order reserved", zap.Int64("total_cents", total), zap.Int("units", order.Units()))

	created := OrderCreatedPayload{
		OrderID:    order.ID,
		CustomerID: customerID,
		Reference:  order.PaymentReference,
		TotalCents: total,
	}
	for _, it := range lines {
		created.Items = append(created.Items, ItemQty{VariantID: it.VariantID, Qty: it.Qty})
	}
	s.emit(ctx, EventOrderCreated, order.ID, created)

	link, err := s.checkoutLink(ctx, order, creds)
	if err != nil {
		log.Error("checkout link failed, cancelling order", zap.Error(err))
		s.abandon(ctx, order, "CHECKOUT_FAILED")
		return failed(fmt.Errorf("%w: %v", ErrCheckout, err))
	}

	return CreateOrderResult{
		Success:     true,
		OrderID:     order.ID,
		Reference:   order.PaymentReference,
		TotalCents:  total,
		CheckoutURL: link,
	}, nil
}

func validateBasket(customerID string, items []ItemRequest, ship Shipping) error {
	if customerID == "" {
		return fmt.Errorf("%w: customer required", ErrValidation)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: items required", ErrValidation)
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductRef) == "" {
			return fmt.Errorf("%w: product required", ErrValidation)
		}
		if it.Quantity < 0 {
			return fmt.Errorf("%w: quantity must be > 0", ErrValidation)
		}
	}
	if ship.Name == "" || ship.Address == "" || ship.City == "" {
		return fmt.Errorf("%w: shipping name, address and city required", ErrValidation)
	}
	return nil
}

func (s *Service) checkCustomer(ctx context.Context, customerID string) error {
	if s.Customers == nil {
		return nil
	}
	_, err := s.Customers.Contact(ctx, customerID)
	if err != nil && !errors.Is(err, ErrUnknownCustomer) {
		return fmt.Errorf("load customer: %w", err)
	}
	return err
}

// reserveAll reserves every line or none: on the first failure the lines
// already reserved in this call are released again.
func (s *Service) reserveAll(ctx context.Context, lines []OrderItem) ([]OrderItem, error) {
	reserved := make([]OrderItem, 0, len(lines))
	for _, it := range lines {
		if err := s.Ledger.Reserve(ctx, it.VariantID, it.Qty); err != nil {
			s.compensate(ctx, reserved)
			return nil, fmt.Errorf("variant %s: %w", it.VariantID, err)
		}
		reserved = append(reserved, it)
	}
	return reserved, nil
}

// compensate releases reservations made by a request that did not produce an
// order. It runs even if the request context was cancelled.
func (s *Service) compensate(ctx context.Context, reserved []OrderItem) {
	ctx = context.WithoutCancel(ctx)
	for _, it := range reserved {
		if err := s.Ledger.Release(ctx, it.VariantID, it.Qty); err != nil {
			s.logger(ctx).Error("compensating release failed",
				zap.String("variant_id", it.VariantID), zap.Int("qty", it.Qty), zap.Error(err))
		}
	}
}

func (s *Service) credentials(ctx context.Context) (payments.Credentials, error) {
	if s.Settings == nil {
		return payments.Credentials{}, nil
	}
	creds, err := s.Settings.PaymentCredentials(ctx)
	if err != nil {
		return payments.Credentials{}, fmt.Errorf("load payment settings: %w", err)
	}
	return creds, nil
}

func (s *Service) checkoutLink(ctx context.Context, o *Order, creds payments.Credentials) (string, error) {
	if s.Checkout == nil {
		return "", errors.New("no checkout provider configured")
	}
	timeout := s.CheckoutTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.Checkout.Link(ctx, payments.LinkRequest{
		Reference:   o.PaymentReference,
		AmountCents: o.TotalCents,
		Currency:    s.currency(),
		Credentials: creds,
	})
}

// abandon cancels a fresh order whose checkout link could not be issued and
// returns its stock.
func (s *Service) abandon(ctx context.Context, o *Order, reason string) {
	ctx = context.WithoutCancel(ctx)
	released, ok, err := s.Store.Settle(ctx, o.ID, StatusAwaitingPayment, StatusCancelled, true)
	if err != nil {
		s.logger(ctx).Error("cancel after checkout failure; sweeper will expire it",
			zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	if ok {
		s.forget(ctx, o.ID)
		s.emit(ctx, EventOrderCancelled, o.ID, OrderClosedPayload{OrderID: o.ID, Reason: reason, UnitsReleased: released})
	}
}

func newReference(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), strings.ToUpper(uuid.NewString()[:6]))
}
