// Package main provides the Lattice API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/latticehq/lattice/pkg/eventbus"
	"github.com/latticehq/lattice/pkg/persistence"
	"github.com/latticehq/lattice/pkg/registry"
	"github.com/latticehq/lattice/pkg/services"
	"github.com/latticehq/lattice/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	modelService := services.NewModel(a.persistence, a.eventBus)
	nodeService := services.NewNode(a.persistence, a.registry, a.eventBus)
	connectionService := services.NewConnection(a.persistence, a.eventBus)
	publishingService := services.NewPublishing(a.persistence, a.eventBus)
	versioningService := services.NewVersioning(a.persistence, a.eventBus)

	handlers := web.NewAPIHandlers(
		modelService,
		nodeService,
		connectionService,
		publishingService,
		versioningService,
		a.validate,
		a.registry,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Lattice API")
	})

	m := app.Group("/models")
	m.Get("/", handlers.GetModels)
	m.Post("/", handlers.CreateModel)
	m.Get("/:id", handlers.GetModel)
	m.Patch("/:id", handlers.UpdateModel)
	m.Delete("/:id", handlers.DeleteModel)
	m.Post("/:id/publish", handlers.PublishModel)
	m.Post("/:id/archive", handlers.ArchiveModel)
	m.Post("/:id/recover", handlers.RecoverModel)

	// Node endpoints:
	m.Get("/:id/nodes", handlers.GetNodes)
	m.Post("/:id/nodes", handlers.CreateNode)
	m.Get("/:id/nodes/:nodeId", handlers.GetNode)
	m.Patch("/:id/nodes/:nodeId", handlers.UpdateNode)
	m.Delete("/:id/nodes/:nodeId", handlers.DeleteNode)

	// Relationship endpoints:
	m.Get("/:id/relationships", handlers.GetRelationships)
	m.Post("/:id/relationships", handlers.Connect)
	m.Delete("/:id/relationships", handlers.Disconnect)

	// Version endpoints:
	m.Post("/:id/versions", handlers.CreateVersion)
	m.Get("/:id/versions", handlers.GetVersions)
	m.Get("/:id/versions/:versionId", handlers.GetVersion)
	m.Post("/:id/versions/:versionId/restore", handlers.RestoreVersion)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
