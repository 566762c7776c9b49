package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/chat-storefront/internal/notify"
	"github.com/ariefcatur/chat-storefront/internal/payments"
	"go.uber.org/zap"
)

// Payment event outcomes.
const (
	OutcomePaid      = "paid"
	OutcomeCancelled = "cancelled"
	OutcomeIgnored   = "ignored"
	OutcomeNoop      = "noop"
	OutcomeConflict  = "conflict"
)

type PaymentEventResult struct {
	Success bool   `json:"success"`
	Outcome string `json:"outcome,omitempty"`
	OrderID string `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

const providerWompi = "wompi"

// HandlePaymentEvent applies one webhook delivery. Deliveries may repeat and
// arrive out of order; the status compare-and-set in Settle makes every
// outcome apply at most once.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev payments.Event) (PaymentEventResult, error) {
	tx := ev.Transaction
	log := s.logger(ctx).With(
		zap.String("reference", tx.Reference),
		zap.String("transaction_id", tx.ID),
		zap.String("tx_status", tx.Status),
	)

	creds, err := s.credentials(ctx)
	if err != nil {
		return PaymentEventResult{Error: err.Error()}, err
	}
	switch {
	case creds.EventSecret == "" && s.RequireSignature:
		log.Error("webhook rejected: event secret not configured")
		err := fmt.Errorf("%w: event secret not configured", ErrAuthenticity)
		return PaymentEventResult{Error: err.Error()}, err
	case creds.EventSecret == "":
		log.Warn("event secret not configured, accepting webhook unverified")
	case !payments.Verify(ev, creds.EventSecret):
		log.Warn("webhook rejected: checksum mismatch")
		return PaymentEventResult{Error: ErrAuthenticity.Error()}, ErrAuthenticity
	}

	if ev.Event != payments.EventTransactionUpdated {
		log.Debug("webhook ignored", zap.String("event", ev.Event))
		return PaymentEventResult{Success: true, Outcome: OutcomeIgnored}, nil
	}
	if tx.Reference == "" {
		return PaymentEventResult{Error: ErrUnknownOrder.Error()}, fmt.Errorf("%w: empty reference", ErrUnknownOrder)
	}

	dedupKey := tx.ID + ":" + strings.ToUpper(tx.Status)
	if s.Dedup != nil && tx.ID != "" && s.Dedup.Seen(ctx, dedupKey) {
		log.Debug("webhook redelivery skipped")
		return PaymentEventResult{Success: true, Outcome: OutcomeNoop}, nil
	}

	o, err := s.Store.GetOrderByReference(ctx, tx.Reference)
	if errors.Is(err, ErrNotFound) {
		log.Warn("webhook for unknown reference")
		return PaymentEventResult{Error: ErrUnknownOrder.Error()}, fmt.Errorf("%w: %s", ErrUnknownOrder, tx.Reference)
	}
	if err != nil {
		return PaymentEventResult{Error: err.Error()}, fmt.Errorf("load order: %w", err)
	}
	log = log.With(zap.String("order_id", o.ID))

	if err := s.Store.UpsertPayment(ctx, Payment{
		OrderID:       o.ID,
		Reference:     tx.Reference,
		TransactionID: tx.ID,
		Status:        strings.ToLower(tx.Status),
		Provider:      providerWompi,
		RawEvent:      ev.Data,
		UpdatedAt:     s.now(),
	}); err != nil {
		return PaymentEventResult{OrderID: o.ID, Error: err.Error()}, fmt.Errorf("record payment: %w", err)
	}

	outcome, err := s.applyPayment(ctx, log, o, tx)
	if err != nil {
		return PaymentEventResult{OrderID: o.ID, Error: err.Error()}, err
	}
	if s.Dedup != nil && tx.ID != "" {
		s.Dedup.Mark(ctx, dedupKey)
	}
	return PaymentEventResult{Success: true, Outcome: outcome, OrderID: o.ID}, nil
}

func (s *Service) applyPayment(ctx context.Context, log *zap.Logger, o *Order, tx payments.Transaction) (string, error) {
	status := strings.ToUpper(tx.Status)

	switch {
	case status == payments.StatusApproved:
		_, ok, err := s.Store.Settle(ctx, o.ID, StatusAwaitingPayment, StatusPaid, false)
		if err != nil {
			return "", fmt.Errorf("mark paid: %w", err)
		}
		if !ok {
			return s.lateApproval(ctx, log, o, tx)
		}
		log.Info("order paid")
		s.forget(ctx, o.ID)
		s.emit(ctx, EventOrderPaid, o.ID, OrderPaidPayload{
			OrderID:       o.ID,
			Reference:     o.PaymentReference,
			TransactionID: tx.ID,
			AmountCents:   tx.AmountInCents,
		})
		short, total := o.ShortID(), o.TotalCents
		s.notifyCustomer(ctx, o, notify.KindPaymentConfirmed, func(name string) string {
			return notify.PaymentConfirmed(name, total, short)
		})
		return OutcomePaid, nil

	case payments.Failed(status):
		released, ok, err := s.Store.Settle(ctx, o.ID, StatusAwaitingPayment, StatusCancelled, true)
		if err != nil {
			return "", fmt.Errorf("cancel order: %w", err)
		}
		if !ok {
			log.Info("payment failure for settled order, nothing to release")
			return OutcomeNoop, nil
		}
		log.Info("order cancelled, stock released", zap.Int("units_released", released))
		s.forget(ctx, o.ID)
		s.emit(ctx, EventOrderCancelled, o.ID, OrderClosedPayload{OrderID: o.ID, Reason: status, UnitsReleased: released})
		return OutcomeCancelled, nil
	}

	log.Debug("payment status without effect")
	return OutcomeNoop, nil
}

// lateApproval handles an APPROVED event that lost the race against a
// cancel, expiry or an earlier approval.
func (s *Service) lateApproval(ctx context.Context, log *zap.Logger, o *Order, tx payments.Transaction) (string, error) {
	cur, err := s.Store.GetOrder(ctx, o.ID)
	if err != nil {
		return "", fmt.Errorf("reload order: %w", err)
	}
	if !cur.Status.Closed() {
		return OutcomeNoop, nil
	}
	log.Error("payment approved for closed order, refund required", zap.String("order_status", string(cur.Status)))
	s.emit(ctx, EventPaymentConflict, o.ID, PaymentConflictPayload{
		OrderID:       o.ID,
		Reference:     o.PaymentReference,
		TransactionID: tx.ID,
		OrderStatus:   cur.Status,
	})
	return OutcomeConflict, nil
}
