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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appcart "github.com/Zhima-Mochi/minishop-commerce/internal/application/cart"
	"github.com/Zhima-Mochi/minishop-commerce/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-commerce/internal/application/order"
	domcart "github.com/Zhima-Mochi/minishop-commerce/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/txn"
	"github.com/Zhima-Mochi/minishop-commerce/internal/domain/user"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/seed"
	"github.com/Zhima-Mochi/minishop-commerce/internal/infrastructure/sqlstore"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability"
	"github.com/Zhima-Mochi/minishop-commerce/internal/pkg/config"
	"github.com/Zhima-Mochi/minishop-commerce/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-commerce/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-commerce/internal/presentation/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	baseLogger, err := logging.NewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)
	logger := zaplogger.New(baseLogger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters, histograms := infraobs.Instruments(prometrics.New(registry, "", ""))
	oteltrace.InstallPropagator()
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), logger, counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	data, err := seed.Load(cfg.CatalogSeedFile)
	if err != nil {
		return err
	}
	if err := data.Apply(ctx, st.products, st.users); err != nil {
		return err
	}
	logger.Info("catalog_seeded",
		observability.F("products", len(data.Products)),
		observability.F("users", len(data.Users)),
	)

	carts, closeCarts, err := openCartStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeCarts() }()

	bus := outbox.NewBus(logger, tel)
	apporder.NewEventWorker(workerpresentation.NewSubscriber(bus, logger, tel), tel).Start()
	bus.Start(ctx)

	guard := inventory.NewGuard(st.products, tel)
	guards := func(repo product.Repository) apporder.StockGuard { return guard.WithRepository(repo) }

	createOrder := apporder.NewCreateOrderUseCase(st.orders, st.tx, st.users, guards, id.NewULID(), bus, tel,
		apporder.WithClientPrices(cfg.OrderTrustClientPrice),
		apporder.WithRowIDs(id.UUID{}),
	)
	lifecycle := apporder.NewLifecycleService(st.orders, st.tx, guards, bus, tel)
	cartService := appcart.NewService(carts, st.products, createOrder, tel)

	handler := httppresentation.NewHandler(httppresentation.Deps{
		Cart:                cartService,
		Orders:              createOrder,
		Lifecycle:           lifecycle,
		Auth:                httppresentation.NewAuthenticator(cfg.JWTSecret),
		Gatherer:            registry,
		Logger:              logger,
		Telemetry:           tel,
		OrderRateLimitRPS:   cfg.OrderRateLimitRPS,
		OrderRateLimitBurst: cfg.OrderRateLimitBurst,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("storage", cfg.StorageDriver),
			observability.F("cart_store", cfg.CartStore),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("http_server_error", observability.F("error", err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		logger.Info("http_server_stopped")
	}
	bus.Stop(shutdownCtx)
	return nil
}

type catalogStore interface {
	product.Repository
	seed.ProductWriter
}

type userStore interface {
	user.Directory
	seed.UserWriter
}

type storage struct {
	products catalogStore
	orders   order.Repository
	users    userStore
	tx       txn.Manager
	close    func() error
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite, config.StoragePostgres:
		db, err := sqlstore.Open(cfg.StorageDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		st := sqlstore.New(db)
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return &storage{
			products: st.Products(),
			orders:   st.Orders(),
			users:    st.Users(),
			tx:       st,
			close:    st.Close,
		}, nil
	default:
		st := memory.NewStore()
		return &storage{
			products: st.Products(),
			orders:   st.Orders(),
			users:    memory.NewUserDirectory(),
			tx:       st,
			close:    func() error { return nil },
		}, nil
	}
}

func openCartStore(ctx context.Context, cfg *config.Config) (domcart.Store, func() error, error) {
	if cfg.CartStore != config.CartStoreRedis {
		return memory.NewCartStore(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return redisstore.NewCartStore(client, cfg.CartTTL), client.Close, nil
}
