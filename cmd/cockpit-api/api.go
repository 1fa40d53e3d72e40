// Package main provides the Cockpit API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/start-berlin/cockpit/pkg/eventbus"
	"github.com/start-berlin/cockpit/pkg/persistence"
	"github.com/start-berlin/cockpit/pkg/token"
	"github.com/start-berlin/cockpit/pkg/web"
)

type API struct {
	logger             *slog.Logger
	persistence        persistence.Persistence
	publisher          eventbus.EventPublisher
	tokens             *token.Signer
	slackSigningSecret string
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	tokens *token.Signer,
	slackSigningSecret string,
) *API {
	return &API{
		logger:             logger,
		persistence:        persistence,
		publisher:          publisher,
		tokens:             tokens,
		slackSigningSecret: slackSigningSecret,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.logger, a.persistence, a.publisher, a.tokens, a.slackSigningSecret)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Cockpit API")
	})

	app.Post("/events", handlers.PostEvent)
	app.Post("/slack/events", handlers.SlackEvents)
	app.Get("/approve", handlers.Approve)

	runs := app.Group("/runs")
	runs.Get("/", handlers.GetRuns)
	runs.Get("/:id", handlers.GetRun)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
