package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderflow-backend/internal/cron"
	"github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/internal/products"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/instance"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/migrate"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/redis"
	"github.com/angelmondragon/orderflow-backend/pkg/stripe"
)

const lockName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single payment timeout sweep, print the result and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	// stdout carries the -once result.
	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Output:      os.Stderr,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	lifecycleMetrics := metrics.NewLifecycleMetrics(prometheus.DefaultRegisterer)
	outboxRepo := outbox.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repository: ordersRepo,
		DB:         dbClient,
		Outbox:     outbox.NewService(outboxRepo, logg),
		Ledger:     products.NewLedger(),
		Logger:     logg,
		Metrics:    lifecycleMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	sweepParams := cron.PaymentTimeoutJobParams{
		Logger:    logg,
		Orders:    ordersRepo,
		Lifecycle: ordersService,
		Metrics:   lifecycleMetrics,
		Timeout:   cfg.Checkout.PaymentTimeout,
		BatchSize: cfg.Checkout.SweepBatchSize,
	}
	if gateway := paymentGateway(cfg, logg); gateway != nil {
		sweepParams.Gateway = gateway
	}
	sweep, err := cron.NewPaymentTimeoutJob(sweepParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment timeout job", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})

	if *once {
		result, err := sweep.Sweep(ctx)
		if out, encErr := json.Marshal(result); encErr == nil {
			fmt.Println(string(out))
		}
		if err != nil {
			logg.Error(ctx, "payment timeout sweep finished with failures", err)
			os.Exit(1)
		}
		return
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		Repository:  outboxRepo,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockName, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweep, retention),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// paymentGateway returns nil when stripe is not configured; swept intents then
// expire on the gateway side.
func paymentGateway(cfg *config.Config, logg *logger.Logger) *stripe.Gateway {
	client, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Warn(context.Background(), fmt.Sprintf("stripe unavailable, intents will not be cancelled: %v", err))
		return nil
	}
	gateway, err := stripe.NewGateway(client, cfg.Breaker, logg)
	if err != nil {
		logg.Warn(context.Background(), fmt.Sprintf("payment gateway unavailable: %v", err))
		return nil
	}
	return gateway
}
