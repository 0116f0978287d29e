package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pokeshop/internal/config"
	"pokeshop/internal/currency"
	"pokeshop/internal/database"
	"pokeshop/internal/events"
	"pokeshop/internal/handlers"
	"pokeshop/internal/logger"
	"pokeshop/internal/repositories"
	"pokeshop/internal/server"
	"pokeshop/internal/services"
	"pokeshop/pkg/mercadopago"
	"pokeshop/pkg/rabbitmq"
	"pokeshop/pkg/redisx"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, zlog *zap.Logger) error {
	// --- Database ---
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, zlog)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// --- Message broker (optional) ---
	var publisher services.EventPublisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, zlog)
		if err != nil {
			return err
		}
		defer mqClient.Close()
		publisher = mqClient
	} else {
		zlog.Warn("RABBITMQ_URL not set, order events are disabled")
	}

	// --- Redis (optional) ---
	var webhookDedup services.Deduper
	var eventDedup events.Deduper
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			zlog.Warn("redis unreachable, notification dedup relies on the database only", zap.Error(err))
		} else {
			webhookDedup = redisx.NewDeduper(rdb, "webhook", redisx.TTLDedup)
			eventDedup = redisx.NewDeduper(rdb, "order_event", redisx.TTLDedup)
		}
		cancel()
	}

	// --- Repositories ---
	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	// --- External providers ---
	mpClient := mercadopago.NewClient(cfg.MercadoPago.APIURL, cfg.MercadoPago.AccessToken, cfg.HTTPClientTimeout)
	rates := currency.NewCache(
		currency.NewDolarAPIFetcher(cfg.Currency.APIURL, cfg.HTTPClientTimeout),
		cfg.Currency.FallbackRate,
		zlog,
		currency.WithTTL(cfg.Currency.TTL),
	)
	rates.GetRate()

	// --- Services ---
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, zlog)
	productService := services.NewProductService(productRepo, rates)
	orderService := services.NewOrderService(orderRepo, productRepo, publisher, services.Pricing{
		ShippingCost: cfg.Checkout.ShippingCost,
		TaxRate:      cfg.Checkout.TaxRate,
	}, zlog)
	checkoutService := services.NewCheckoutService(orderService, mpClient, services.CheckoutURLs{
		BaseURL:         cfg.AppBaseURL,
		NotificationURL: cfg.MercadoPago.NotificationURL,
	}, zlog)
	webhookService := services.NewWebhookService(orderService, mpClient, webhookDedup,
		cfg.MercadoPago.WebhookSecret, cfg.IsDevelopment(), zlog)

	if err := authService.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return err
	}

	// --- HTTP ---
	app := server.NewApp(server.Deps{
		Log:         zlog,
		AuthService: authService,
		CronSecret:  cfg.CronSecret,
		Auth:        handlers.NewAuthHandler(authService, zlog),
		Products:    handlers.NewProductHandler(productService, zlog),
		Orders:      handlers.NewOrderHandler(orderService, zlog),
		MercadoPago: handlers.NewMercadoPagoHandler(checkoutService, webhookService, zlog),
		Currency:    handlers.NewCurrencyHandler(rates, zlog),
	})

	// --- Order event consumer ---
	if mqClient != nil {
		eventLogger := events.NewOrderEventLogger(zlog, eventDedup)
		if err := mqClient.ConsumeOrderEvents(eventLogger.Handle); err != nil {
			zlog.Error("failed to start order event consumer", zap.Error(err))
		}
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("starting server", zap.String("addr", cfg.AppPort), zap.String("env", cfg.Env))
		errCh <- app.Listen(cfg.AppPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	zlog.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
	zlog.Info("server gracefully stopped")
	return nil
}
