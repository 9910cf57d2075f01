package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/checkout"
	"github.com/ariefcatur/go-jewelry-checkout/internal/config"
	kafkax "github.com/ariefcatur/go-jewelry-checkout/internal/kafka"
	"github.com/ariefcatur/go-jewelry-checkout/internal/logging"
	"github.com/ariefcatur/go-jewelry-checkout/internal/metrics"
	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/ariefcatur/go-jewelry-checkout/internal/payment"
	"github.com/ariefcatur/go-jewelry-checkout/internal/paymentevents"
	"github.com/ariefcatur/go-jewelry-checkout/internal/postgres"
	"github.com/ariefcatur/go-jewelry-checkout/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "payment-worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	service := cfg.ServiceName + "-payment-worker"
	log, err := logging.New(logging.Options{Service: service, Env: cfg.Env, Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	prodCtx, stopProducer := context.WithCancel(context.Background())
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 256, log.Named("kafka"))
	prod.Start(prodCtx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	// Confirmation never issues instruments; the registry is only there to
	// satisfy the service.
	svc := &checkout.Service{
		Store:    &orders.Repo{DB: db},
		Payments: payment.NewRegistry(),
		Cache:    redisx.NewOrderCache(rdb, cfg.OrderCacheTTL),
		Events:   &kafkax.EventPublisher{Producer: prod, ServiceName: service},
		Metrics:  metrics.NewCheckout(reg),
		Log:      log.Named("checkout"),
	}
	handler := &paymentevents.Service{
		Payments: svc,
		Dedup:    redisx.NewDedup(rdb, "payment-worker"),
		Log:      log.Named("settlement"),
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.SettlementGroup, orders.TopicPaymentSettled, cfg.SettlementWorkers, log.Named("consumer"))

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.WorkerHTTPAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("settlement consumer started",
			zap.String("group", cfg.SettlementGroup),
			zap.String("topic", orders.TopicPaymentSettled),
			zap.Int("workers", cfg.SettlementWorkers),
		)
		return cons.Start(gctx, handler.HandleSettled)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	err = g.Wait()

	stopProducer()
	prod.WaitClosed()
	return err
}
