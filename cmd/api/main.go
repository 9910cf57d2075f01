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
	"github.com/ariefcatur/go-jewelry-checkout/internal/httpx"
	kafkax "github.com/ariefcatur/go-jewelry-checkout/internal/kafka"
	"github.com/ariefcatur/go-jewelry-checkout/internal/logging"
	"github.com/ariefcatur/go-jewelry-checkout/internal/metrics"
	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/ariefcatur/go-jewelry-checkout/internal/payment"
	"github.com/ariefcatur/go-jewelry-checkout/internal/postgres"
	"github.com/ariefcatur/go-jewelry-checkout/internal/redisx"
	"github.com/ariefcatur/go-jewelry-checkout/internal/tracking"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "checkout-api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(logging.Options{Service: cfg.ServiceName, Env: cfg.Env, Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	// Kafka producer outlives the HTTP server so in-flight requests can
	// still publish during shutdown.
	prodCtx, stopProducer := context.WithCancel(context.Background())
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("kafka"))
	prod.Start(prodCtx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gens := []payment.Generator{
		payment.NewPixGenerator(payment.PixConfig{
			Key:          cfg.PixKey,
			MerchantName: cfg.PixMerchantName,
			MerchantCity: cfg.PixMerchantCity,
			Expiry:       cfg.PixExpiry,
		}, nil),
	}
	if cfg.StripeSecretKey != "" {
		gens = append(gens, payment.NewCardGenerator(payment.ProviderStripe, payment.NewStripeClient(cfg.StripeSecretKey)))
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, credit card payments disabled")
	}

	repo := &orders.Repo{DB: db}
	svc := &checkout.Service{
		Store:       repo,
		Payments:    payment.NewRegistry(gens...),
		Idempotency: redisx.NewIdempotencyStore(rdb, cfg.IdempotencyTTL),
		Cache:       redisx.NewOrderCache(rdb, cfg.OrderCacheTTL),
		Events:      &kafkax.EventPublisher{Producer: prod, ServiceName: cfg.ServiceName},
		Metrics:     metrics.NewCheckout(reg),
		Log:         log.Named("checkout"),
		Shipping: checkout.FlatRateShipping{
			Rate:     cfg.ShippingRate,
			FreeFrom: cfg.FreeShippingFrom,
		},
		ProviderTimeout: cfg.ProviderTimeout,
	}

	router := httpx.NewRouter(httpx.Deps{
		Checkout: svc,
		Tracking: &tracking.Service{Store: repo},
		Catalog:  repo,
		Auth:     &httpx.Authenticator{Secret: []byte(cfg.JWTSecret)},
		Log:      log.Named("http"),
		Metrics:  metrics.NewHTTP(reg),
		Gatherer: reg,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	err = g.Wait()

	stopProducer()
	prod.WaitClosed()
	return err
}
