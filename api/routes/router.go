package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/api/controllers"
	"github.com/retailpos/retailpos-backend/api/middleware"
	"github.com/retailpos/retailpos-backend/internal/catalog"
	"github.com/retailpos/retailpos-backend/internal/fiscal"
	"github.com/retailpos/retailpos-backend/internal/margins"
	"github.com/retailpos/retailpos-backend/internal/orders"
	"github.com/retailpos/retailpos-backend/internal/pricing"
	"github.com/retailpos/retailpos-backend/internal/sales"
	"github.com/retailpos/retailpos-backend/internal/shifts"
	"github.com/retailpos/retailpos-backend/internal/users"
	"github.com/retailpos/retailpos-backend/pkg/config"
	"github.com/retailpos/retailpos-backend/pkg/db"
	"github.com/retailpos/retailpos-backend/pkg/logger"
	pkgredis "github.com/retailpos/retailpos-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers. Optional
// collaborators may be nil; the affected endpoints then degrade to
// service-unavailable errors.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    *db.Client
	Redis pkgredis.Pinger

	Users      users.Service
	Pricing    pricing.Service
	Margins    margins.Service
	Sales      sales.Service
	Orders     orders.Service
	Shifts     shifts.Service
	Warehouses *catalog.WarehouseRepository

	Device fiscal.Device

	Idempotency pkgredis.IdempotencyStore
	Gatherer    prometheus.Gatherer
}

// NewRouter assembles the HTTP surface. Health, metrics and login stay
// public; everything under /api/v1 requires a cashier token.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.Logging(deps.Logger))

	r.Get("/health/live", controllers.HealthLive(deps.Config))
	r.Get("/health/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.DB, deps.Redis))

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", controllers.AuthLogin(deps.Users, deps.Logger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Config.JWT, deps.Logger))
			if deps.Idempotency != nil {
				r.Use(middleware.Idempotency(deps.Idempotency, deps.Logger))
			}

			r.Route("/warehouses", func(r chi.Router) {
				r.Put("/{warehouseID}/products/{productID}/price", controllers.SetWarehousePrice(deps.Pricing, deps.Logger))
				r.Get("/{warehouseID}/products/{productID}/price", controllers.GetWarehousePrice(deps.Pricing, deps.Logger, deps.Warehouses))
				r.Post("/{sourceID}/copy-prices-to/{targetID}", controllers.CopyPrices(deps.Pricing, deps.Logger))
			})
			r.Get("/products/{productID}/prices", controllers.ProductPriceHistory(deps.Pricing, deps.Logger))

			r.Route("/margin", func(r chi.Router) {
				r.Get("/product/{productID}/analysis", controllers.MarginAnalysis(deps.Margins, deps.Logger))
				r.Get("/product/{productID}/reports", controllers.MarginReports(deps.Margins, deps.Logger))
				r.Post("/product/{productID}/correct", controllers.CorrectMargin(deps.Margins, deps.Logger))
				r.Get("/products/low-margins", controllers.LowMargins(deps.Margins, deps.Logger, defaultLowMarginThreshold(deps.Config)))
			})
			r.Post("/purchase-invoices", controllers.PostPurchaseInvoice(deps.Margins, deps.Logger))

			r.Route("/pos", func(r chi.Router) {
				r.Post("/sale", controllers.CompleteSale(deps.Sales, deps.Logger))
				r.Get("/transactions/{transactionID}", controllers.GetTransaction(deps.Sales, deps.Logger))
				r.Get("/transactions/number/{number}", controllers.GetTransactionByNumber(deps.Sales, deps.Logger))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.CreateOrder(deps.Orders, deps.Logger))
				r.Get("/", controllers.ListOrders(deps.Orders, deps.Logger))
				r.Get("/{orderID}", controllers.GetOrder(deps.Orders, deps.Logger))
				r.Post("/{orderID}/cancel", controllers.CancelOrder(deps.Orders, deps.Logger))
				r.Post("/{orderID}/convert-to-pos", controllers.ConvertOrder(deps.Orders, deps.Logger))
			})

			r.Route("/shifts", func(r chi.Router) {
				r.Get("/current", controllers.CurrentShift(deps.Shifts, deps.Logger))
				r.Post("/open-enhanced", controllers.OpenShift(deps.Shifts, deps.Logger))
				r.Post("/close-enhanced", controllers.CloseShift(deps.Shifts, deps.Logger))
				r.Post("/safebag", controllers.RecordSafeBag(deps.Shifts, deps.Logger))
			})
			r.Get("/admin/daily-closure-reports", controllers.ClosureReports(deps.Shifts, deps.Logger))

			r.Route("/fiscal", func(r chi.Router) {
				r.Post("/open", controllers.FiscalOpen(deps.Device, deps.Logger))
				r.Post("/status", controllers.FiscalStatus(deps.Device, deps.Logger))
				r.Post("/receipt", controllers.FiscalReceipt(deps.Device, deps.Logger))
				r.Post("/cancel", controllers.FiscalCancel(deps.Device, deps.Logger))
				r.Post("/report/x", controllers.FiscalXReport(deps.Device, deps.Logger))
				r.Post("/report/z", controllers.FiscalZReport(deps.Device, deps.Logger))
			})
		})
	})

	return r
}

// defaultLowMarginThreshold falls back to the configured target margin
// so the report lists everything that earns less than the chain aims
// for.
func defaultLowMarginThreshold(cfg *config.Config) decimal.Decimal {
	if cfg != nil && cfg.Margins.TargetMarginPct > 0 {
		return decimal.NewFromFloat(cfg.Margins.TargetMarginPct)
	}
	return decimal.NewFromInt(10)
}
