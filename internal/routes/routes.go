package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/wallet-ledger/wallet_ledger/internal/config"
	"github.com/wallet-ledger/wallet_ledger/internal/engine"
	"github.com/wallet-ledger/wallet_ledger/internal/ledger"
	"github.com/wallet-ledger/wallet_ledger/internal/metrics"
	"github.com/wallet-ledger/wallet_ledger/internal/middleware"
	"github.com/wallet-ledger/wallet_ledger/internal/notification"
	"github.com/wallet-ledger/wallet_ledger/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. A nil DB falls
// back to the in-memory store, which keeps local runs and handler tests off
// the network.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		store = ledger.NewMemory()
	}

	engineMetrics := metrics.NewEngine("walletledger")
	notifier := notification.NewLoggerNotifier(d.Logger)
	coordinator := engine.NewCoordinator(engine.Options{
		Store:    store,
		Notifier: notifier,
		Metrics:  engineMetrics,
		Logger:   d.Logger,
		Timeout:  d.Cfg.TxTimeout,
	})

	walletSvc := wallet.NewService(store, d.Cfg.DefaultCurrency)
	walletHandler := wallet.NewHandler(walletSvc)
	txHandler := engine.NewHandler(coordinator, d.Cfg.DefaultCurrency)

	RegisterHealthRoutes(app, d)
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(engineMetrics.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, walletHandler)

	txGroup := api.Group("/wallet")
	if d.Cache != nil {
		txGroup.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterTransactionRoutes(txGroup, txHandler)

	return nil
}
