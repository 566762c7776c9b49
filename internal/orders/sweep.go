package orders

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type SweepSummary struct {
	Processed     int      `json:"processed"`
	UnitsReleased int      `json:"units_released"`
	Errors        []string `json:"errors"`
}

// SweepExpiredOrders expires awaiting_payment orders created before
// now-threshold and returns their stock. Orders are handled independently;
// one failure does not stop the rest. Orders that were paid or cancelled
// while the sweep ran are skipped.
func (s *Service) SweepExpiredOrders(ctx context.Context, now time.Time, threshold time.Duration) (SweepSummary, error) {
	sum := SweepSummary{Errors: []string{}}
	if threshold <= 0 {
		return sum, fmt.Errorf("%w: threshold must be positive", ErrValidation)
	}
	cutoff := now.Add(-threshold)
	log := s.logger(ctx).With(zap.Time("cutoff", cutoff))

	stale, err := s.Store.ListAwaitingBefore(ctx, cutoff)
	if err != nil {
		return sum, fmt.Errorf("list stale orders: %w", err)
	}
	if len(stale) == 0 {
		log.Debug("sweep: nothing to expire")
		return sum, nil
	}

	for _, o := range stale {
		if err := ctx.Err(); err != nil {
			sum.Errors = append(sum.Errors, err.Error())
			break
		}
		released, ok, err := s.Store.Settle(ctx, o.ID, StatusAwaitingPayment, StatusExpired, true)
		if err != nil {
			log.Error("sweep: expire failed", zap.String("order_id", o.ID), zap.Error(err))
			sum.Errors = append(sum.Errors, fmt.Sprintf("order %s: %v", o.ID, err))
			continue
		}
		if !ok {
			continue
		}
		sum.Processed++
		sum.UnitsReleased += released
		s.forget(ctx, o.ID)
		s.emit(ctx, EventOrderExpired, o.ID, OrderClosedPayload{OrderID: o.ID, Reason: "EXPIRED", UnitsReleased: released})
	}

	log.Info("sweep finished",
		zap.Int("candidates", len(stale)),
		zap.Int("processed", sum.Processed),
		zap.Int("units_released", sum.UnitsReleased),
		zap.Int("errors", len(sum.Errors)),
	)
	return sum, nil
}
