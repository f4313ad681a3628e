package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jobsweep/backend/internal/config"
)

const version = "1.0.0"

// Pinger is a dependency that can report its health
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping implements Pinger
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Gauge reports a live count, such as open event streams
type Gauge func() int

// HealthCheck returns the health status of every dependency and the current
// gauge readings. The service is healthy as long as it runs; degraded
// dependencies are reported only.
func HealthCheck(deps map[string]Pinger, gauges map[string]Gauge) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		statuses := fiber.Map{}
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				statuses[name] = "unavailable"
				continue
			}
			statuses[name] = "healthy"
		}

		stats := fiber.Map{}
		for name, g := range gauges {
			stats[name] = g()
		}

		return c.JSON(fiber.Map{
			"status":       "healthy",
			"version":      version,
			"dependencies": statuses,
			"stats":        stats,
		})
	}
}

// ReadinessCheck returns whether the service is ready to accept traffic
func ReadinessCheck(deps map[string]Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "not_ready",
					"reason": name + " not reachable",
				})
			}
		}

		return c.JSON(fiber.Map{
			"status": "ready",
		})
	}
}

// Root returns basic API info
func Root(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":     "Jobsweep API",
			"version":  version,
			"health":   "/health",
			"ready":    "/ready",
			"sessions": "/api/sessions",
			"debug":    cfg.Server.Debug,
		})
	}
}
