// Package main provides the Lightning API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/BolajiAyodeji/lightning/pkg/eventbus"
	"github.com/BolajiAyodeji/lightning/pkg/limiter"
	"github.com/BolajiAyodeji/lightning/pkg/persistence"
	"github.com/BolajiAyodeji/lightning/pkg/queue"
	"github.com/BolajiAyodeji/lightning/pkg/services"
	"github.com/BolajiAyodeji/lightning/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	runQueue    queue.RunQueue
	limiter     limiter.Limiter
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	runQueue queue.RunQueue,
	gate limiter.Limiter,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		runQueue:    runQueue,
		limiter:     gate,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() (*fiber.App, error) {
	workOrderService, err := services.NewWorkOrders(a.persistence, a.eventBus, a.runQueue, a.limiter, a.logger)
	if err != nil {
		return nil, err
	}

	handlers := web.NewAPIHandlers(workOrderService, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Lightning API")
	})

	w := app.Group("/workorders")
	w.Get("/", handlers.ListWorkOrders)
	w.Post("/", handlers.CreateWorkOrder)
	w.Post("/retry", handlers.RetryWorkOrders)
	w.Get("/:id", handlers.GetWorkOrder)

	r := app.Group("/runs")
	r.Post("/retry", handlers.RetryRunSteps)
	r.Post("/:id/retry", handlers.RetryRun)
	r.Post("/:id/state", handlers.UpdateRunState)

	app.Get("/health", handlers.HealthCheck)

	return app, nil
}

func (a *API) Start(port int) error {
	app, err := a.App()
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
