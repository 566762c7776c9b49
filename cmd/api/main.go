package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/catalog"
	"github.com/ariefcatur/chat-storefront/internal/config"
	"github.com/ariefcatur/chat-storefront/internal/customers"
	"github.com/ariefcatur/chat-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/chat-storefront/internal/kafka"
	"github.com/ariefcatur/chat-storefront/internal/logx"
	"github.com/ariefcatur/chat-storefront/internal/metrics"
	"github.com/ariefcatur/chat-storefront/internal/notify"
	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/ariefcatur/chat-storefront/internal/payments"
	"github.com/ariefcatur/chat-storefront/internal/postgres"
	"github.com/ariefcatur/chat-storefront/internal/redisx"
	"github.com/ariefcatur/chat-storefront/internal/settings"
	"github.com/ariefcatur/chat-storefront/internal/sweeper"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logx.New(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}).
		With(zap.String("service", cfg.ServiceName))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("api exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if err := postgres.Migrate(cfg.PostgresDSN, log); err != nil {
		return err
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: 16, MinConns: 2})
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer, shared by lifecycle events and the notification outbox
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)
	defer prod.WaitClosed()
	defer prod.Close()

	m := metrics.New()

	twilio := notify.NewTwilio(cfg.Twilio)
	convs := &notify.Conversations{DB: db}

	var notifier orders.Notifier
	switch cfg.Notify.Mode {
	case "kafka":
		notifier = &notify.KafkaOutbox{Producer: prod, Log: log}
	default:
		async := notify.NewAsync(twilio, convs, log,
			cfg.Notify.Workers, cfg.Notify.Queue)
		async.Start(ctx)
		defer async.Close()
		go m.CountNotifications(async.Results())
		notifier = async
	}
	log.Info("notifications configured", zap.String("mode", cfg.Notify.Mode))

	repo := &orders.Repo{DB: db}
	products := &catalog.Repo{DB: db}
	people := &customers.Repo{DB: db}
	creds := &settings.Resolver{DB: db, Defaults: cfg.Wompi}
	cache := &redisx.StatusCache{RDB: rdb, Log: log}

	svc := &orders.Service{
		Store:           repo,
		Ledger:          &orders.StockLedger{DB: db, Retries: cfg.StockRetries},
		Resolver:        products,
		Customers:       people,
		Settings:        creds,
		Checkout:        payments.HostedCheckout{BaseURL: cfg.Wompi.CheckoutURL},
		Notifier:        notifier,
		Events:          prod,
		Cache:           cache,
		Dedup:           &redisx.Dedup{RDB: rdb, Scope: "webhook", Log: log},
		Log:             log,
		ServiceName:     cfg.ServiceName,
		Currency:        cfg.Wompi.Currency,
		CheckoutTimeout: cfg.CheckoutTimeout,

		RequireSignature: cfg.IsProduction(),
	}

	router := httpx.NewRouter(log, m.Middleware)
	router.Handle("/metrics", m.Handler())
	(&httpx.OrdersHandler{
		Orders: svc,
		Status: repo,
		Cache:  cache,
		Sweeps: &sweeper.Scheduler{
			Orders:    svc,
			Lock:      &redisx.Lock{RDB: rdb, Job: "sweeper", TTL: cfg.Sweeper.LockTTL},
			Metrics:   m,
			Threshold: cfg.Sweeper.Threshold,
			Log:       log,
		},
		Log: log,
	}).Register(router)
	(&httpx.CatalogHandler{Catalog: products, Customers: people, Log: log}).Register(router)
	(&httpx.SettingsHandler{Store: creds, Log: log}).Register(router)
	(&httpx.ConversationHandler{Conversations: convs, Sender: twilio, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
