package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/procurehub/webshop-backend/api/routes"
	"github.com/procurehub/webshop-backend/internal/cart"
	"github.com/procurehub/webshop-backend/internal/checkout"
	"github.com/procurehub/webshop-backend/internal/orders"
	"github.com/procurehub/webshop-backend/internal/punchout"
	"github.com/procurehub/webshop-backend/internal/valuehelp"
	"github.com/procurehub/webshop-backend/pkg/config"
	"github.com/procurehub/webshop-backend/pkg/db"
	"github.com/procurehub/webshop-backend/pkg/docstore"
	"github.com/procurehub/webshop-backend/pkg/logger"
	"github.com/procurehub/webshop-backend/pkg/metrics"
	"github.com/procurehub/webshop-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	storefrontMetrics := metrics.NewStorefrontMetrics(registry)

	store, err := docstore.NewGormStore(dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create document store", err)
		os.Exit(1)
	}
	writer, err := docstore.NewDebouncedWriter(store, cfg.Cart.DebounceWindow, logg, storefrontMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create debounced writer", err)
		os.Exit(1)
	}

	cartManager, err := cart.NewManager(writer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart manager", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(cartManager)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	fileStore := checkout.NewMemoryFileStore()

	catalogRepo, err := punchout.NewCatalogRepo(dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog repo", err)
		os.Exit(1)
	}
	sessions, err := punchout.NewSessionStore(redisClient, cfg.Punchout.SessionTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create punch-out session store", err)
		os.Exit(1)
	}
	importer, err := punchout.NewImporter(cartManager, sessions, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog importer", err)
		os.Exit(1)
	}
	punchoutService, err := punchout.NewService(catalogRepo, sessions, importer, cfg.Punchout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create punch-out service", err)
		os.Exit(1)
	}

	erpClient, err := orders.NewClient(cfg.ERP)
	if err != nil {
		logg.Error(context.Background(), "failed to create order client", err)
		os.Exit(1)
	}
	ordersService, err := orders.NewService(cartManager, checkoutService, erpClient, fileStore, logg, storefrontMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	valueHelpService, err := valuehelp.NewService(dbClient, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create value help service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient, registry,
			cartManager, checkoutService, fileStore,
			punchoutService, ordersService, valueHelpService,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stop:
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "error shutting down http server", err)
	}

	// Flush coalesced cart writes before the process exits; the debounce
	// window means the newest mutations may still be buffered.
	if err := writer.Close(shutdownCtx); err != nil {
		logg.Error(ctx, "error flushing document writes", err)
	}

	logg.Info(ctx, "api server stopped")
}
