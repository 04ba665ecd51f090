package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/retailpos/retailpos-backend/api/routes"
	"github.com/retailpos/retailpos-backend/internal/catalog"
	"github.com/retailpos/retailpos-backend/internal/fiscal"
	"github.com/retailpos/retailpos-backend/internal/margins"
	"github.com/retailpos/retailpos-backend/internal/orders"
	"github.com/retailpos/retailpos-backend/internal/pricing"
	"github.com/retailpos/retailpos-backend/internal/sales"
	"github.com/retailpos/retailpos-backend/internal/serial"
	"github.com/retailpos/retailpos-backend/internal/shifts"
	"github.com/retailpos/retailpos-backend/internal/users"
	"github.com/retailpos/retailpos-backend/pkg/config"
	"github.com/retailpos/retailpos-backend/pkg/db"
	"github.com/retailpos/retailpos-backend/pkg/logger"
	"github.com/retailpos/retailpos-backend/pkg/metrics"
	"github.com/retailpos/retailpos-backend/pkg/migrate"
	"github.com/retailpos/retailpos-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "pos-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "pos-api",
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	posMetrics := metrics.NewPOSMetrics(registry)

	device, err := buildFiscalDevice(cfg, logg, posMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize fiscal device", err)
		os.Exit(1)
	}
	defer func() {
		if device != nil {
			if err := device.Close(); err != nil {
				logg.Error(context.Background(), "error closing fiscal device", err)
			}
		}
	}()

	conn := dbClient.DB()
	warehouseRepo := catalog.NewWarehouseRepository(conn)
	productRepo := catalog.NewProductRepository(conn)
	priceRepo := pricing.NewRepository(conn)

	usersService, err := users.NewService(users.NewRepository(conn), cfg.JWT, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	pricingService, err := pricing.NewService(dbClient, priceRepo, warehouseRepo, productRepo, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing service", err)
		os.Exit(1)
	}

	marginsService, err := margins.NewService(dbClient, cfg.Margins, productRepo, priceRepo, warehouseRepo,
		margins.NewReportRepository(conn), margins.NewInvoiceRepository(conn), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create margins service", err)
		os.Exit(1)
	}

	shiftsService, err := shifts.NewService(dbClient, shifts.NewRepository(conn),
		shifts.NewSafeBagRepository(conn), shifts.NewReportRepository(conn), logg, posMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create shifts service", err)
		os.Exit(1)
	}

	salesService, err := sales.NewService(dbClient, sales.NewRepository(conn), productRepo,
		pricingService, shiftsService, device, logg, posMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create sales service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(dbClient, orders.NewRepository(conn), productRepo,
		pricingService, salesService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		Users:       usersService,
		Pricing:     pricingService,
		Margins:     marginsService,
		Sales:       salesService,
		Orders:      ordersService,
		Shifts:      shiftsService,
		Warehouses:  warehouseRepo,
		Device:      device,
		Idempotency: redisClient,
		Gatherer:    registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"dialect": cfg.Fiscal.Dialect,
	})
	logg.Info(ctx, "starting pos api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "pos api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildFiscalDevice opens the configured printer, or the offline
// simulator when POS_FISCAL_SIMULATION is set.
func buildFiscalDevice(cfg *config.Config, logg *logger.Logger, m *metrics.POSMetrics) (fiscal.Device, error) {
	if cfg.Fiscal.Simulation {
		logg.Info(context.Background(), "fiscal simulation enabled, no printer attached")
		return fiscal.NewSimulator(), nil
	}

	dialect, err := fiscal.DialectFromConfig(cfg.Fiscal)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(cfg.Fiscal.Port, cfg.Fiscal.BaudRate)
	if err != nil {
		return nil, err
	}
	return fiscal.NewDriver(port, dialect, cfg.Fiscal, logg, m)
}
