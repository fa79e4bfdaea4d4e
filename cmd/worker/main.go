package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-stock-ledger/internal/config"
	kafkax "github.com/ariefcatur/go-stock-ledger/internal/kafka"
	"github.com/ariefcatur/go-stock-ledger/internal/ledger"
	"github.com/ariefcatur/go-stock-ledger/internal/logging"
	"github.com/ariefcatur/go-stock-ledger/internal/orders"
	"github.com/ariefcatur/go-stock-ledger/internal/postgres"
	"github.com/ariefcatur/go-stock-ledger/internal/redisx"
	"github.com/ariefcatur/go-stock-ledger/internal/telemetry"
	"github.com/ariefcatur/go-stock-ledger/internal/worker"
	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName+"-worker", cfg.OtelEndpoint)
	if err != nil {
		log.Fatal("tracing setup", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	g, ctx := errgroup.WithContext(ctx)

	// Low-stock board, fed by movement events
	alerts := &worker.LowStockAlerts{
		Redis:     rdb,
		Threshold: cfg.LowStockThreshold,
		Service:   cfg.ServiceName + "-worker",
		Log:       log.Named("alerts"),
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, ledger.TopicMovementRecorded, cfg.WorkerConcurrency, log)
	g.Go(func() error {
		log.Info("movement consumer started",
			zap.String("group", cfg.WorkerGroup),
			zap.String("topic", ledger.TopicMovementRecorded),
			zap.Int("workers", cfg.WorkerConcurrency),
		)
		return cons.Start(ctx, alerts.HandleMovementRecorded)
	})

	// Reservation sweeper
	if cfg.ReservationTTL > 0 {
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PGMaxConns)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		st := postgres.NewStore(pool)
		svc := orders.New(st, st, ledger.New(st, ledger.WithLogger(log)),
			orders.WithLogger(log.Named("orders")),
			orders.WithReservations(cfg.ReservationTTL),
		)
		sw := &worker.Sweeper{
			Orders:   svc,
			Locker:   redislock.New(rdb),
			Interval: cfg.SweepInterval,
			Log:      log.Named("sweeper"),
		}
		g.Go(func() error {
			log.Info("reservation sweeper started", zap.Duration("interval", cfg.SweepInterval))
			return sw.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("worker exited", zap.Error(err))
		return
	}
	log.Info("worker stopped")
}
