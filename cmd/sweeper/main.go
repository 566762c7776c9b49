package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/config"
	kafkax "github.com/ariefcatur/chat-storefront/internal/kafka"
	"github.com/ariefcatur/chat-storefront/internal/logx"
	"github.com/ariefcatur/chat-storefront/internal/metrics"
	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/ariefcatur/chat-storefront/internal/postgres"
	"github.com/ariefcatur/chat-storefront/internal/redisx"
	"github.com/ariefcatur/chat-storefront/internal/sweeper"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logx.New(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}).
		With(zap.String("service", cfg.ServiceName+"-sweeper"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("sweeper exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: 4, MinConns: 1})
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 256, log)
	prod.Start(ctx)
	defer prod.WaitClosed()
	defer prod.Close()

	svc := &orders.Service{
		Store:       &orders.Repo{DB: db},
		Ledger:      &orders.StockLedger{DB: db, Retries: cfg.StockRetries},
		Events:      prod,
		Cache:       &redisx.StatusCache{RDB: rdb, Log: log},
		Log:         log,
		ServiceName: cfg.ServiceName + "-sweeper",
	}

	m := metrics.New()
	s := &sweeper.Scheduler{
		Orders:    svc,
		Lock:      &redisx.Lock{RDB: rdb, Job: "sweeper", TTL: cfg.Sweeper.LockTTL},
		Metrics:   m,
		Interval:  cfg.Sweeper.Interval,
		Threshold: cfg.Sweeper.Threshold,
		Log:       log,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Run(gctx) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
