package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jobsweep/backend/internal/domain"
)

// errorResponse maps domain errors to the API error body
func errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNoEnabledPlatforms):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "no_enabled_platforms",
			"message": err.Error(),
		})
	case errors.Is(err, domain.ErrUnsupportedPlatform):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "unsupported_platform",
			"message": err.Error(),
		})
	case errors.Is(err, domain.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "Session not found",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "invalid_request",
		"message": message,
	})
}
