package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/chat-storefront/internal/config"
	kafkax "github.com/ariefcatur/chat-storefront/internal/kafka"
	"github.com/ariefcatur/chat-storefront/internal/logx"
	"github.com/ariefcatur/chat-storefront/internal/notify"
	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/ariefcatur/chat-storefront/internal/postgres"
	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logx.New(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}).
		With(zap.String("service", cfg.ServiceName+"-notifier"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("notifier exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: 4, MinConns: 1})
	if err != nil {
		return err
	}
	defer db.Close()

	sender := notify.NewTwilio(cfg.Twilio)
	outbox := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.Notify.Group, notify.TopicWhatsApp, cfg.Notify.Workers, log)
	conflicts := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.Notify.Group+"-conflicts", orders.TopicPaymentConflict, 1, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return outbox.Start(gctx, notify.Handler(sender, &notify.Conversations{DB: db}, log))
	})
	g.Go(func() error {
		return conflicts.Start(gctx, conflictAlert(log))
	})
	return g.Wait()
}

// conflictAlert surfaces payments approved for orders that were already
// closed. Someone has to refund them by hand.
func conflictAlert(log *zap.Logger) kafkax.Handler {
	return func(_ context.Context, m kafkago.Message) error {
		var env orders.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			log.Error("skip undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
			return nil
		}
		p, err := kafkax.UnwrapPayload[orders.PaymentConflictPayload](env.Payload)
		if err != nil {
			log.Error("skip undecodable payment conflict", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}
		log.Error("refund required: payment approved for closed order",
			zap.String("order_id", p.OrderID),
			zap.String("reference", p.Reference),
			zap.String("transaction_id", p.TransactionID),
			zap.String("order_status", string(p.OrderStatus)),
		)
		return nil
	}
}
