package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-stock-ledger/internal/catalog"
	"github.com/ariefcatur/go-stock-ledger/internal/config"
	"github.com/ariefcatur/go-stock-ledger/internal/events"
	"github.com/ariefcatur/go-stock-ledger/internal/httpx"
	kafkax "github.com/ariefcatur/go-stock-ledger/internal/kafka"
	"github.com/ariefcatur/go-stock-ledger/internal/ledger"
	"github.com/ariefcatur/go-stock-ledger/internal/logging"
	"github.com/ariefcatur/go-stock-ledger/internal/model"
	"github.com/ariefcatur/go-stock-ledger/internal/orders"
	"github.com/ariefcatur/go-stock-ledger/internal/postgres"
	"github.com/ariefcatur/go-stock-ledger/internal/redisx"
	"github.com/ariefcatur/go-stock-ledger/internal/store"
	"github.com/ariefcatur/go-stock-ledger/internal/store/memstore"
	"github.com/ariefcatur/go-stock-ledger/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Seeded by migration 000002 for the postgres driver.
var demoUser = model.User{ID: "00000000-0000-0000-0000-000000000001", Name: "Demo", Email: "demo@example.com"}

// storage is the store plus the user lookup orders need.
type storage interface {
	store.Store
	orders.Users
}

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

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		log.Fatal("tracing setup", zap.Error(err))
	}

	// Store
	var st storage
	switch cfg.StoreDriver {
	case "memory":
		mem := memstore.New()
		mem.PutUser(demoUser)
		st = mem
		log.Warn("using in-memory store; data is lost on exit")
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PGMaxConns)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		st = postgres.NewStore(pool)
	default:
		log.Fatal("unknown store driver", zap.String("driver", cfg.StoreDriver))
	}

	// Redis
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			log.Warn("redis unreachable; caches will miss until it recovers", zap.Error(err))
		}
	}

	// Kafka producer
	var pub events.Publisher = events.Nop{}
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.Start(context.Background())
		pub = prod
	}

	// Services
	l := ledger.New(st,
		ledger.WithPublisher(pub),
		ledger.WithLogger(log.Named("ledger")),
		ledger.WithProducer(cfg.ServiceName),
	)
	cat := catalog.New(st, l, log.Named("catalog"))
	ord := orders.New(st, st, l,
		orders.WithPublisher(pub),
		orders.WithLogger(log.Named("orders")),
		orders.WithProducer(cfg.ServiceName),
		orders.WithReservations(cfg.ReservationTTL),
	)

	// Router
	router := httpx.NewRouter(log, cfg.RequestTimeout)
	(&httpx.ProductsHandler{Catalog: cat, Ledger: l, LowStockAt: cfg.LowStockThreshold, Log: log}).Register(router)
	(&httpx.InventoryHandler{Ledger: l, Log: log}).Register(router)
	oh := &httpx.OrdersHandler{Orders: ord, Log: log}
	if rdb != nil {
		oh.Redis = rdb
		(&httpx.AlertsHandler{Redis: rdb, Log: log}).Register(router)
	}
	oh.Register(router)

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
}
