package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jobsweep/backend/internal/api/handlers"
	"github.com/jobsweep/backend/internal/config"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, deps *Dependencies) {
	// Health check routes (no prefix)
	app.Get("/health", handlers.HealthCheck(deps.Checks, deps.Gauges))
	app.Get("/ready", handlers.ReadinessCheck(deps.Checks))
	app.Get("/", handlers.Root(cfg))

	// API routes
	api := app.Group("/api")

	sessionHandler := handlers.NewSessionHandler(deps.Sessions)
	eventsHandler := handlers.NewEventsHandler(deps.Events, deps.Sessions, deps.Heartbeat)
	jobsHandler := handlers.NewJobsHandler(deps.Jobs, deps.Archive, deps.Platforms)

	// UI message surface
	api.Post("/messages", sessionHandler.Message)

	// Sessions
	sessions := api.Group("/sessions")
	sessions.Post("/", sessionHandler.Start)
	sessions.Get("/:id", sessionHandler.Get)
	sessions.Post("/:id/stop", sessionHandler.Stop)
	sessions.Get("/:id/progress", sessionHandler.Progress)
	sessions.Get("/:id/events", eventsHandler.Session)

	api.Get("/events", eventsHandler.All)

	// Results
	api.Get("/jobs/latest", jobsHandler.Latest)
	api.Get("/archive/sessions", jobsHandler.Archived)
	api.Get("/platforms", jobsHandler.Platforms)
}

// Dependencies holds all service dependencies for handlers
type Dependencies struct {
	Sessions  SessionService
	Events    handlers.Subscriber
	Jobs      handlers.JobCache
	Archive   handlers.ArchiveReader // nil when the archive is disabled
	Platforms handlers.PlatformCatalog
	Checks    map[string]handlers.Pinger
	Gauges    map[string]handlers.Gauge
	Heartbeat time.Duration
}

// SessionService is what the session routes need from the orchestrator
type SessionService interface {
	handlers.SessionService
	handlers.ProgressReader
}
