package sweeper

import (
	"context"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/orders"
	"go.uber.org/zap"
)

type Sweeper interface {
	SweepExpiredOrders(ctx context.Context, now time.Time, threshold time.Duration) (orders.SweepSummary, error)
}

// Locker keeps two replicas from sweeping at the same time.
type Locker interface {
	TryAcquire(ctx context.Context) (release func(context.Context), ok bool, err error)
}

type Observer interface {
	ObserveSweep(sum orders.SweepSummary)
}

// Scheduler runs the expiry sweep on a fixed interval.
type Scheduler struct {
	Orders    Sweeper
	Lock      Locker
	Metrics   Observer
	Interval  time.Duration
	Threshold time.Duration
	Log       *zap.Logger
	Now       func() time.Time
}

// Run sweeps once right away and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	s.log().Info("sweeper started", zap.Duration("interval", interval), zap.Duration("threshold", s.threshold()))

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log().Error("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.log().Info("sweeper stopped")
			return nil
		case <-t.C:
		}
	}
}

// RunOnce sweeps if the lock is free. ran is false when another replica
// holds the lock.
func (s *Scheduler) RunOnce(ctx context.Context) (sum orders.SweepSummary, ran bool, err error) {
	if s.Lock != nil {
		release, ok, err := s.Lock.TryAcquire(ctx)
		if err != nil {
			return orders.SweepSummary{}, false, err
		}
		if !ok {
			s.log().Info("sweep skipped: lock held elsewhere")
			return orders.SweepSummary{}, false, nil
		}
		defer release(context.WithoutCancel(ctx))
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	sum, err = s.Orders.SweepExpiredOrders(ctx, now, s.threshold())
	if err != nil {
		return sum, false, err
	}
	if s.Metrics != nil {
		s.Metrics.ObserveSweep(sum)
	}
	return sum, true, nil
}

func (s *Scheduler) threshold() time.Duration {
	if s.Threshold <= 0 {
		return 2 * time.Hour
	}
	return s.Threshold
}

func (s *Scheduler) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
