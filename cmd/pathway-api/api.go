// Package main provides the Pathway API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/pathwayhq/pathway/pkg/activator"
	"github.com/pathwayhq/pathway/pkg/engine"
	"github.com/pathwayhq/pathway/pkg/eventbus"
	"github.com/pathwayhq/pathway/pkg/persistence"
	"github.com/pathwayhq/pathway/pkg/registry"
	"github.com/pathwayhq/pathway/pkg/web"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	eng := engine.New(registry.NewRegistry(a.logger),
		engine.WithLogger(a.logger),
		engine.WithTracer(a.tracer),
	)
	act := activator.NewActivator(a.logger, a.persistence, eng, a.eventBus)

	handlers := web.NewAPIHandlers(a.logger, a.persistence, act, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Pathway API")
	})

	d := app.Group("/definitions")
	d.Get("/", handlers.GetDefinitions)
	d.Post("/", handlers.CreateDefinition)
	d.Get("/:name", handlers.GetDefinition)
	d.Post("/:name/execute", handlers.ExecuteFlow)

	i := app.Group("/instances")
	i.Get("/", handlers.GetInstances)
	i.Get("/:id", handlers.GetInstance)
	i.Post("/:id/cancel", handlers.CancelInstance)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
